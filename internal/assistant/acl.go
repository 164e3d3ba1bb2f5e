package assistant

import "tripline/internal/domain"

// permission is one row of the action ACL: may the plan owner / a plan
// member execute this kind.
type permission struct {
	Owner  bool
	Member bool
}

// actionACL is the whole permission surface in one table. Moments are the
// only mutations members may request; ownership of the specific moment is a
// second check inside the executor. Kinds absent from the table are denied.
var actionACL = map[Kind]permission{
	KindChat:           {Owner: true, Member: true},
	KindAdd:            {Owner: true, Member: false},
	KindUpdate:         {Owner: true, Member: false},
	KindDelete:         {Owner: true, Member: false},
	KindShiftAll:       {Owner: true, Member: false},
	KindDeleteMatching: {Owner: true, Member: false},
	KindUpdatePlan:     {Owner: true, Member: false},
	KindAddMemo:        {Owner: true, Member: false},
	KindUpdateMemo:     {Owner: true, Member: false},
	KindDeleteMemo:     {Owner: true, Member: false},
	KindGenerateMemos:  {Owner: true, Member: false},
	KindAddMoment:      {Owner: true, Member: true},
	KindUpdateMoment:   {Owner: true, Member: true},
	KindDeleteMoment:   {Owner: true, Member: true},
	KindAddMember:      {Owner: true, Member: false},
	KindRemoveMember:   {Owner: true, Member: false},
	KindSetVisibility:  {Owner: true, Member: false},
}

// Kinds returns every action kind the ACL knows about.
func Kinds() []Kind {
	res := make([]Kind, 0, len(actionACL))
	for k := range actionACL {
		res = append(res, k)
	}
	return res
}

// CanExecute reports whether an access level may execute an action kind.
// Only owner and member are meaningful subjects; public and none are
// unconditionally denied, as are unknown kinds.
func CanExecute(kind Kind, level domain.AccessLevel) bool {
	p, ok := actionACL[kind]
	if !ok {
		return false
	}
	switch level {
	case domain.AccessOwner:
		return p.Owner
	case domain.AccessMember:
		return p.Member
	default:
		return false
	}
}
