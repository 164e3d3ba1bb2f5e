package assistant

import (
	"encoding/json"
	"fmt"
	"time"

	"tripline/internal/assistant/llm"
	"tripline/internal/domain"
)

// systemPrompt fixes the response contract the parser expects.
const systemPrompt = `You are Tripline's travel planning assistant. You help the user refine a trip plan: its dated schedule items, travel memos, shared moments, members and visibility.

Always respond with a single JSON object of the shape {"reply": "...", "actions": [...]}. "reply" is your conversational answer in the user's language. "actions" lists the mutations you want applied, each an object with a "type" field: add {schedule}, update {id, changes}, delete {id}, shift_all {days}, delete_matching {pattern}, update_plan {changes}, add_memo {memo}, update_memo {id, changes}, delete_memo {id}, generate_memos {}, add_moment {schedule_id, moment}, update_moment {id, changes}, delete_moment {id}, add_member {email}, remove_member {user_id}, set_visibility {visibility}. Emit an empty actions array when the user only wants conversation. Only reference ids present in the trip context. Dates are YYYY-MM-DD, times HH:MM.`

// PlanContext is the snapshot of plan state serialized into the prompt so
// the model grounds its actions in real rows and ids.
type PlanContext struct {
	Plan        domain.Plan       `json:"plan"`
	Schedules   []domain.Schedule `json:"schedules"`
	Memos       []domain.Memo     `json:"memos,omitempty"`
	Members     []domain.Member   `json:"members,omitempty"`
	Moments     []domain.Moment   `json:"moments,omitempty"`
	GeneratedAt string            `json:"generatedAt"`
}

// HistoryMessage is one prior conversation turn from the client.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// historyLimit bounds how much prior conversation rides along.
const defaultHistoryLimit = 20

// BuildMessages assembles the completion request: context block, truncated
// history, then the user's message with an optional inline image.
func BuildMessages(pc PlanContext, history []HistoryMessage, message string, image *llm.Blob, historyLimit int) (string, []llm.Message, error) {
	if pc.GeneratedAt == "" {
		pc.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	}
	ctxJSON, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return "", nil, err
	}
	msgs := []llm.Message{{
		Role:  "user",
		Parts: []llm.Part{{Text: fmt.Sprintf("Current trip context:\n%s", ctxJSON)}},
	}, {
		Role:  "model",
		Parts: []llm.Part{{Text: `{"reply": "Understood. I have the current trip context.", "actions": []}`}},
	}}
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	for _, h := range truncateHistory(history, historyLimit) {
		if h.Content == "" {
			continue
		}
		role := h.Role
		switch role {
		case "assistant", "model":
			role = "model"
		case "user":
		default:
			continue
		}
		msgs = append(msgs, llm.Message{Role: role, Parts: []llm.Part{{Text: h.Content}}})
	}
	parts := []llm.Part{{Text: message}}
	if image != nil {
		parts = append(parts, llm.Part{InlineData: image})
	}
	msgs = append(msgs, llm.Message{Role: "user", Parts: parts})
	return systemPrompt, msgs, nil
}

func truncateHistory(history []HistoryMessage, limit int) []HistoryMessage {
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
