package assistant

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAssembleEmptyBatch(t *testing.T) {
	resp := Assemble("hello", nil)
	if resp.HasChanges {
		t.Fatal("empty batch must not report changes")
	}
	if resp.Actions == nil || resp.ModifiedScheduleIDs == nil {
		t.Fatal("slices must be initialized, not nil")
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"actions":[]`, `"modifiedScheduleIds":[]`} {
		if !strings.Contains(s, want) {
			t.Fatalf("payload %s missing %s", s, want)
		}
	}
}

func TestAssembleFlagsOnlyFromSuccesses(t *testing.T) {
	resp := Assemble("ok", []Result{
		{Kind: KindAddMemo, Success: false, Error: "boom"},
		{Kind: KindAddMoment, Success: true, ID: 4},
		{Kind: KindSetVisibility, Success: false, Error: "Permission denied"},
	})
	if !resp.HasChanges {
		t.Fatal("non-empty batch must report hasChanges")
	}
	if resp.HasMemoChanges {
		t.Fatal("failed memo action must not set hasMemoChanges")
	}
	if !resp.HasMomentChanges {
		t.Fatal("successful moment action must set hasMomentChanges")
	}
	if resp.HasVisibilityChange {
		t.Fatal("denied visibility action must not set hasVisibilityChange")
	}
}

func TestAssembleModifiedScheduleIDs(t *testing.T) {
	resp := Assemble("ok", []Result{
		{Kind: KindAdd, Success: true, ID: 11},
		{Kind: KindUpdate, Success: true, ID: 12},
		{Kind: KindUpdate, Success: false, ID: 13, Error: "schedule not found in plan"},
		{Kind: KindDelete, Success: true, ID: 14},
		{Kind: KindShiftAll, Success: true, Count: 3},
	})
	want := []int64{11, 12, 14}
	if len(resp.ModifiedScheduleIDs) != len(want) {
		t.Fatalf("ids = %v, want %v", resp.ModifiedScheduleIDs, want)
	}
	for i, id := range want {
		if resp.ModifiedScheduleIDs[i] != id {
			t.Fatalf("ids = %v, want %v", resp.ModifiedScheduleIDs, want)
		}
	}
}
