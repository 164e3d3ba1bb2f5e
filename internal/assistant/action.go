// Package assistant implements the AI action pipeline: parsing a completion
// response into typed actions, gating each through the kind×role ACL, and
// applying the survivors as scoped row-store mutations.
package assistant

import (
	"encoding/json"
	"strings"
)

// Kind discriminates action variants on the wire (the `type` field).
type Kind string

const (
	KindChat           Kind = "chat"
	KindAdd            Kind = "add"
	KindUpdate         Kind = "update"
	KindDelete         Kind = "delete"
	KindShiftAll       Kind = "shift_all"
	KindDeleteMatching Kind = "delete_matching"
	KindUpdatePlan     Kind = "update_plan"
	KindAddMemo        Kind = "add_memo"
	KindUpdateMemo     Kind = "update_memo"
	KindDeleteMemo     Kind = "delete_memo"
	KindGenerateMemos  Kind = "generate_memos"
	KindAddMoment      Kind = "add_moment"
	KindUpdateMoment   Kind = "update_moment"
	KindDeleteMoment   Kind = "delete_moment"
	KindAddMember      Kind = "add_member"
	KindRemoveMember   Kind = "remove_member"
	KindSetVisibility  Kind = "set_visibility"
)

// Action is the closed set of mutations a completion response may request.
// Payloads are untrusted model output; changesets stay raw maps and are
// allowlisted at execution time.
type Action interface {
	ActionKind() Kind
}

type ScheduleDraft struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	Title   string `json:"title"`
	Place   string `json:"place"`
	PlaceEn string `json:"place_en"`
	Memo    string `json:"memo"`
	PlanB   string `json:"plan_b"`
	PlanC   string `json:"plan_c"`
}

type MemoDraft struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

type MomentDraft struct {
	Photo string `json:"photo"`
	Note  string `json:"note"`
}

type Chat struct{}

type AddSchedule struct{ Draft ScheduleDraft }

type UpdateSchedule struct {
	ID      int64
	Changes map[string]any
}

type DeleteSchedule struct{ ID int64 }

type ShiftAll struct{ Days int }

type DeleteMatching struct{ Pattern string }

type UpdatePlan struct{ Changes map[string]any }

type AddMemo struct{ Draft MemoDraft }

type UpdateMemo struct {
	ID      int64
	Changes map[string]any
}

type DeleteMemo struct{ ID int64 }

type GenerateMemos struct{}

type AddMoment struct {
	ScheduleID int64
	Draft      MomentDraft
}

type UpdateMoment struct {
	ID      int64
	Changes map[string]any
}

type DeleteMoment struct{ ID int64 }

type AddMember struct{ Email string }

type RemoveMember struct{ UserID int64 }

type SetVisibility struct{ Visibility string }

// Invalid is produced when a wire action fails shape validation. It flows
// through the executor so the batch records an explicit failure instead of
// silently dropping the entry.
type Invalid struct {
	Kind   Kind
	Reason string
}

func (Chat) ActionKind() Kind           { return KindChat }
func (AddSchedule) ActionKind() Kind    { return KindAdd }
func (UpdateSchedule) ActionKind() Kind { return KindUpdate }
func (DeleteSchedule) ActionKind() Kind { return KindDelete }
func (ShiftAll) ActionKind() Kind       { return KindShiftAll }
func (DeleteMatching) ActionKind() Kind { return KindDeleteMatching }
func (UpdatePlan) ActionKind() Kind     { return KindUpdatePlan }
func (AddMemo) ActionKind() Kind        { return KindAddMemo }
func (UpdateMemo) ActionKind() Kind     { return KindUpdateMemo }
func (DeleteMemo) ActionKind() Kind     { return KindDeleteMemo }
func (GenerateMemos) ActionKind() Kind  { return KindGenerateMemos }
func (AddMoment) ActionKind() Kind      { return KindAddMoment }
func (UpdateMoment) ActionKind() Kind   { return KindUpdateMoment }
func (DeleteMoment) ActionKind() Kind   { return KindDeleteMoment }
func (AddMember) ActionKind() Kind      { return KindAddMember }
func (RemoveMember) ActionKind() Kind   { return KindRemoveMember }
func (SetVisibility) ActionKind() Kind  { return KindSetVisibility }
func (a Invalid) ActionKind() Kind      { return a.Kind }

// wireAction is the loose shape emitted by the completion service.
type wireAction struct {
	Type       string          `json:"type"`
	ID         json.Number     `json:"id"`
	Days       *int            `json:"days"`
	Pattern    string          `json:"pattern"`
	Email      string          `json:"email"`
	UserID     json.Number     `json:"user_id"`
	Visibility string          `json:"visibility"`
	ScheduleID json.Number     `json:"schedule_id"`
	Changes    map[string]any  `json:"changes"`
	Schedule   *ScheduleDraft  `json:"schedule"`
	Memo       *MemoDraft      `json:"memo"`
	Moment     *MomentDraft    `json:"moment"`
}

func asID(n json.Number) int64 {
	v, err := n.Int64()
	if err != nil {
		return 0
	}
	return v
}

// decodeAction turns one wire entry into a typed Action. Shape failures
// yield Invalid rather than an error: one malformed entry must not stop the
// batch, and must stay visible in the results.
func decodeAction(raw json.RawMessage) Action {
	var w wireAction
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return Invalid{Kind: "unknown", Reason: "not an object"}
	}
	kind := Kind(w.Type)
	switch kind {
	case KindChat:
		return Chat{}
	case KindAdd:
		if w.Schedule == nil || w.Schedule.Title == "" {
			return Invalid{Kind: kind, Reason: "schedule with title required"}
		}
		return AddSchedule{Draft: *w.Schedule}
	case KindUpdate:
		if asID(w.ID) <= 0 {
			return Invalid{Kind: kind, Reason: "numeric id required"}
		}
		if len(w.Changes) == 0 {
			return Invalid{Kind: kind, Reason: "changes required"}
		}
		return UpdateSchedule{ID: asID(w.ID), Changes: w.Changes}
	case KindDelete:
		if asID(w.ID) <= 0 {
			return Invalid{Kind: kind, Reason: "numeric id required"}
		}
		return DeleteSchedule{ID: asID(w.ID)}
	case KindShiftAll:
		if w.Days == nil || *w.Days == 0 {
			return Invalid{Kind: kind, Reason: "non-zero days required"}
		}
		return ShiftAll{Days: *w.Days}
	case KindDeleteMatching:
		if strings.TrimSpace(w.Pattern) == "" {
			return Invalid{Kind: kind, Reason: "pattern required"}
		}
		return DeleteMatching{Pattern: w.Pattern}
	case KindUpdatePlan:
		if len(w.Changes) == 0 {
			return Invalid{Kind: kind, Reason: "changes required"}
		}
		return UpdatePlan{Changes: w.Changes}
	case KindAddMemo:
		if w.Memo == nil || w.Memo.Title == "" {
			return Invalid{Kind: kind, Reason: "memo with title required"}
		}
		return AddMemo{Draft: *w.Memo}
	case KindUpdateMemo:
		if asID(w.ID) <= 0 {
			return Invalid{Kind: kind, Reason: "numeric id required"}
		}
		if len(w.Changes) == 0 {
			return Invalid{Kind: kind, Reason: "changes required"}
		}
		return UpdateMemo{ID: asID(w.ID), Changes: w.Changes}
	case KindDeleteMemo:
		if asID(w.ID) <= 0 {
			return Invalid{Kind: kind, Reason: "numeric id required"}
		}
		return DeleteMemo{ID: asID(w.ID)}
	case KindGenerateMemos:
		return GenerateMemos{}
	case KindAddMoment:
		if asID(w.ScheduleID) <= 0 {
			return Invalid{Kind: kind, Reason: "numeric schedule_id required"}
		}
		if w.Moment == nil {
			return Invalid{Kind: kind, Reason: "moment required"}
		}
		return AddMoment{ScheduleID: asID(w.ScheduleID), Draft: *w.Moment}
	case KindUpdateMoment:
		if asID(w.ID) <= 0 {
			return Invalid{Kind: kind, Reason: "numeric id required"}
		}
		if len(w.Changes) == 0 {
			return Invalid{Kind: kind, Reason: "changes required"}
		}
		return UpdateMoment{ID: asID(w.ID), Changes: w.Changes}
	case KindDeleteMoment:
		if asID(w.ID) <= 0 {
			return Invalid{Kind: kind, Reason: "numeric id required"}
		}
		return DeleteMoment{ID: asID(w.ID)}
	case KindAddMember:
		if strings.TrimSpace(w.Email) == "" {
			return Invalid{Kind: kind, Reason: "email required"}
		}
		return AddMember{Email: strings.TrimSpace(w.Email)}
	case KindRemoveMember:
		if asID(w.UserID) <= 0 {
			return Invalid{Kind: kind, Reason: "numeric user_id required"}
		}
		return RemoveMember{UserID: asID(w.UserID)}
	case KindSetVisibility:
		if w.Visibility == "" {
			return Invalid{Kind: kind, Reason: "visibility required"}
		}
		return SetVisibility{Visibility: w.Visibility}
	default:
		if w.Type == "" {
			return Invalid{Kind: "unknown", Reason: "type required"}
		}
		// Unknown kinds stay fail-closed at the ACL gate.
		return Invalid{Kind: kind, Reason: "unknown action type"}
	}
}
