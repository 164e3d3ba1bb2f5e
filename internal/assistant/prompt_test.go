package assistant

import (
	"strings"
	"testing"

	"tripline/internal/assistant/llm"
	"tripline/internal/domain"
)

func TestBuildMessagesShape(t *testing.T) {
	pc := PlanContext{
		Plan: domain.Plan{ID: 1, Title: "Kyoto", StartDate: "2026-04-01", EndDate: "2026-04-05"},
		Schedules: []domain.Schedule{
			{ID: 10, PlanID: 1, Date: "2026-04-02", Title: "Fushimi Inari"},
		},
	}
	system, msgs, err := BuildMessages(pc, nil, "add a tea ceremony", nil, 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(system, `"reply"`) {
		t.Fatal("system prompt must pin the response contract")
	}
	// Context turn, canned ack, user message.
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "user" || !strings.Contains(msgs[0].Parts[0].Text, "Fushimi Inari") {
		t.Fatalf("context turn = %+v", msgs[0])
	}
	if msgs[1].Role != "model" {
		t.Fatalf("ack turn role = %s", msgs[1].Role)
	}
	last := msgs[len(msgs)-1]
	if last.Role != "user" || last.Parts[0].Text != "add a tea ceremony" {
		t.Fatalf("final turn = %+v", last)
	}
}

func TestBuildMessagesHistoryTruncationAndRoles(t *testing.T) {
	history := make([]HistoryMessage, 0, 30)
	for i := 0; i < 30; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, HistoryMessage{Role: role, Content: "turn"})
	}
	_, msgs, err := BuildMessages(PlanContext{Plan: domain.Plan{ID: 1}}, history, "hi", nil, 20)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// 2 context turns + 20 history + final message.
	if len(msgs) != 23 {
		t.Fatalf("expected 23 messages, got %d", len(msgs))
	}
	for _, m := range msgs {
		if m.Role != "user" && m.Role != "model" {
			t.Fatalf("unexpected role %q", m.Role)
		}
	}
}

func TestBuildMessagesInlineImage(t *testing.T) {
	img := &llm.Blob{MIMEType: "image/jpeg", Data: "aGVsbG8="}
	_, msgs, err := BuildMessages(PlanContext{Plan: domain.Plan{ID: 1}}, nil, "what is this", img, 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	last := msgs[len(msgs)-1]
	if len(last.Parts) != 2 || last.Parts[1].InlineData == nil {
		t.Fatalf("final turn should carry the image part, got %+v", last)
	}
	if last.Parts[1].InlineData.MIMEType != "image/jpeg" {
		t.Fatalf("mime = %s", last.Parts[1].InlineData.MIMEType)
	}
}

func TestBuildMessagesSkipsUnknownRoles(t *testing.T) {
	history := []HistoryMessage{
		{Role: "system", Content: "injected"},
		{Role: "user", Content: "real turn"},
	}
	_, msgs, err := BuildMessages(PlanContext{Plan: domain.Plan{ID: 1}}, history, "hi", nil, 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, m := range msgs {
		for _, p := range m.Parts {
			if p.Text == "injected" {
				t.Fatal("unknown-role history turns must be dropped")
			}
		}
	}
}
