package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"tripline/internal/app"
	"tripline/internal/assistant"
	"tripline/internal/assistant/llm"
	"tripline/internal/events"
)

// ChatRequest is one assistant turn: the user's message, optional inline
// image and the client-held conversation history.
type ChatRequest struct {
	Message string                     `json:"message,omitempty"`
	Image   *llm.Blob                  `json:"image,omitempty"`
	History []assistant.HistoryMessage `json:"history,omitempty"`
}

func registerAssistant(api huma.API, a app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "assistant-chat",
		Method:      http.MethodPost,
		Path:        "/plans/{plan_id}/assistant",
		Summary:     "Send a message to the plan assistant",
		Description: "Runs the completion pipeline: plan context is serialized into the prompt, the model's response is parsed into actions, each action is permission-gated and applied in order, and the batch outcome is returned.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		PlanID int64       `path:"plan_id"`
		Body   ChatRequest `json:"body"`
	}) (*struct {
		Body assistant.Response `json:"body"`
	}, error) {
		if input.Body.Message == "" && input.Body.Image == nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "message or image is required", nil)
		}
		user, level, authErr := requireParticipant(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}

		pc, err := loadPlanContext(ctx, a, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		system, messages, err := assistant.BuildMessages(pc, input.Body.History, input.Body.Message, input.Body.Image, a.Config.Assistant.HistoryLimit)
		if err != nil {
			return nil, handleError(err)
		}
		raw, err := a.LLM.Complete(ctx, system, messages)
		if err != nil {
			return nil, handleError(err)
		}

		parsed := assistant.ParseResponse(raw)
		results := a.Executor().Apply(ctx, input.PlanID, user, level, parsed.Actions)
		resp := assistant.Assemble(parsed.Reply, results)

		applied := 0
		for _, r := range results {
			if r.Success {
				applied++
			}
		}
		logEvent(ctx, a, "assistant.chat", input.PlanID, "plan", input.PlanID, user.ID, events.EventPayload{
			"actions": len(results),
			"applied": applied,
		})
		return &struct {
			Body assistant.Response `json:"body"`
		}{Body: resp}, nil
	})
}

// loadPlanContext snapshots the plan's current state for the prompt.
func loadPlanContext(ctx context.Context, a app.App, planID int64) (assistant.PlanContext, error) {
	var pc assistant.PlanContext
	plan, err := a.Repo.GetPlan(ctx, planID)
	if err != nil {
		return pc, err
	}
	schedules, err := a.Repo.ListSchedules(ctx, planID)
	if err != nil {
		return pc, err
	}
	memos, err := a.Repo.ListMemos(ctx, planID)
	if err != nil {
		return pc, err
	}
	members, err := a.Repo.ListMembers(ctx, planID)
	if err != nil {
		return pc, err
	}
	moments, err := a.Repo.ListMoments(ctx, planID)
	if err != nil {
		return pc, err
	}
	return assistant.PlanContext{
		Plan:        plan,
		Schedules:   schedules,
		Memos:       memos,
		Members:     members,
		Moments:     moments,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}
