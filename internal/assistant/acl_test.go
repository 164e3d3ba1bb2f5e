package assistant

import (
	"testing"

	"tripline/internal/domain"
)

func TestACLCoversEveryKind(t *testing.T) {
	all := []Kind{
		KindChat, KindAdd, KindUpdate, KindDelete, KindShiftAll,
		KindDeleteMatching, KindUpdatePlan, KindAddMemo, KindUpdateMemo,
		KindDeleteMemo, KindGenerateMemos, KindAddMoment, KindUpdateMoment,
		KindDeleteMoment, KindAddMember, KindRemoveMember, KindSetVisibility,
	}
	if len(Kinds()) != len(all) {
		t.Fatalf("ACL table has %d kinds, expected %d", len(Kinds()), len(all))
	}
	for _, k := range all {
		if _, ok := actionACL[k]; !ok {
			t.Fatalf("kind %s missing from ACL table", k)
		}
	}
}

func TestACLOwnerMayExecuteEverything(t *testing.T) {
	for _, k := range Kinds() {
		if !CanExecute(k, domain.AccessOwner) {
			t.Fatalf("owner denied %s", k)
		}
	}
}

func TestACLMemberLimitedToChatAndMoments(t *testing.T) {
	allowed := map[Kind]bool{
		KindChat:         true,
		KindAddMoment:    true,
		KindUpdateMoment: true,
		KindDeleteMoment: true,
	}
	for _, k := range Kinds() {
		got := CanExecute(k, domain.AccessMember)
		if got != allowed[k] {
			t.Fatalf("member CanExecute(%s) = %v, want %v", k, got, allowed[k])
		}
	}
}

func TestACLPublicAndNoneDeniedEverything(t *testing.T) {
	for _, level := range []domain.AccessLevel{domain.AccessPublic, domain.AccessNone} {
		for _, k := range Kinds() {
			if CanExecute(k, level) {
				t.Fatalf("level %s allowed %s", level, k)
			}
		}
	}
}

func TestACLUnknownKindDenied(t *testing.T) {
	if CanExecute("format_disk", domain.AccessOwner) {
		t.Fatal("unknown kind must be denied")
	}
}
