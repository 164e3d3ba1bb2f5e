package assistant

// Response is the assembled chat endpoint payload.
type Response struct {
	Reply               string   `json:"reply"`
	Actions             []Result `json:"actions"`
	HasChanges          bool     `json:"hasChanges"`
	HasMemoChanges      bool     `json:"hasMemoChanges"`
	HasMomentChanges    bool     `json:"hasMomentChanges"`
	HasMemberChanges    bool     `json:"hasMemberChanges"`
	HasVisibilityChange bool     `json:"hasVisibilityChange"`
	ModifiedScheduleIDs []int64  `json:"modifiedScheduleIds"`
}

var (
	memoKinds     = map[Kind]bool{KindAddMemo: true, KindUpdateMemo: true, KindDeleteMemo: true, KindGenerateMemos: true}
	momentKinds   = map[Kind]bool{KindAddMoment: true, KindUpdateMoment: true, KindDeleteMoment: true}
	memberKinds   = map[Kind]bool{KindAddMember: true, KindRemoveMember: true}
	scheduleKinds = map[Kind]bool{KindAdd: true, KindUpdate: true, KindDelete: true}
)

// Assemble aggregates executor results into the change flags and the list
// of schedule ids the client scrolls to and highlights. Pure; results were
// validated by the executor already.
func Assemble(reply string, results []Result) Response {
	resp := Response{
		Reply:               reply,
		Actions:             results,
		HasChanges:          len(results) > 0,
		ModifiedScheduleIDs: []int64{},
	}
	if resp.Actions == nil {
		resp.Actions = []Result{}
	}
	for _, r := range results {
		if !r.Success {
			continue
		}
		switch {
		case memoKinds[r.Kind]:
			resp.HasMemoChanges = true
		case momentKinds[r.Kind]:
			resp.HasMomentChanges = true
		case memberKinds[r.Kind]:
			resp.HasMemberChanges = true
		case r.Kind == KindSetVisibility:
			resp.HasVisibilityChange = true
		case scheduleKinds[r.Kind] && r.ID != 0:
			resp.ModifiedScheduleIDs = append(resp.ModifiedScheduleIDs, r.ID)
		}
	}
	return resp
}
