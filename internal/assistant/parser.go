package assistant

import (
	"encoding/json"
	"strings"
)

// Parsed is a completion response split into the conversational reply and
// the requested actions.
type Parsed struct {
	Reply   string
	Actions []Action
}

type wireResponse struct {
	Reply   string            `json:"reply"`
	Actions []json.RawMessage `json:"actions"`
}

// ParseResponse interprets raw completion text as `{reply, actions}`. Models
// emit non-JSON or fenced JSON often enough that every failure mode
// degrades to plain chat: the raw text becomes the reply and no actions are
// attempted. Never returns an error.
func ParseResponse(raw string) Parsed {
	text := strings.TrimSpace(raw)
	body := stripFence(text)
	var w wireResponse
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return Parsed{Reply: text}
	}
	reply := w.Reply
	if reply == "" {
		reply = text
	}
	actions := make([]Action, 0, len(w.Actions))
	for _, entry := range w.Actions {
		actions = append(actions, decodeAction(entry))
	}
	return Parsed{Reply: reply, Actions: actions}
}

// stripFence unwraps a ```json ... ``` (or bare ```) code fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	rest := strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	}
	if i := strings.LastIndex(rest, "```"); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}
