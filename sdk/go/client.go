// Package triplinesdk is a minimal client for the Tripline HTTP API.
package triplinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one Tripline server as one bearer identity.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Plan is the API plan model.
type Plan struct {
	ID         int64  `json:"id"`
	OwnerID    int64  `json:"owner_id"`
	Title      string `json:"title"`
	Region     string `json:"region,omitempty"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Visibility string `json:"visibility"`
	ShareToken string `json:"share_token,omitempty"`
}

// Schedule is the API schedule model.
type Schedule struct {
	ID     int64  `json:"id"`
	PlanID int64  `json:"plan_id"`
	Date   string `json:"date"`
	Time   string `json:"time,omitempty"`
	Title  string `json:"title"`
	Place  string `json:"place,omitempty"`
	Memo   string `json:"memo,omitempty"`
}

// ActionResult is one applied assistant action.
type ActionResult struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	ID      int64  `json:"id,omitempty"`
	Count   int64  `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ChatResponse is the assistant endpoint payload.
type ChatResponse struct {
	Reply               string         `json:"reply"`
	Actions             []ActionResult `json:"actions"`
	HasChanges          bool           `json:"hasChanges"`
	HasMemoChanges      bool           `json:"hasMemoChanges"`
	HasMomentChanges    bool           `json:"hasMomentChanges"`
	HasMemberChanges    bool           `json:"hasMemberChanges"`
	HasVisibilityChange bool           `json:"hasVisibilityChange"`
	ModifiedScheduleIDs []int64        `json:"modifiedScheduleIds"`
}

// HistoryMessage is one prior conversation turn.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreatePlan creates a plan owned by the bearer identity.
func (c *Client) CreatePlan(ctx context.Context, title, region, startDate, endDate string) (Plan, error) {
	body := map[string]any{
		"title":      title,
		"region":     region,
		"start_date": startDate,
		"end_date":   endDate,
	}
	var resp Plan
	err := c.do(ctx, http.MethodPost, "v1/plans", body, &resp)
	return resp, err
}

// ListPlans returns plans owned by or shared with the bearer identity.
func (c *Client) ListPlans(ctx context.Context) ([]Plan, error) {
	var resp []Plan
	err := c.do(ctx, http.MethodGet, "v1/plans", nil, &resp)
	return resp, err
}

// GetPlan fetches one plan.
func (c *Client) GetPlan(ctx context.Context, planID int64) (Plan, error) {
	var resp Plan
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v1/plans/%d", planID), nil, &resp)
	return resp, err
}

// ListSchedules returns a plan's schedules in date order.
func (c *Client) ListSchedules(ctx context.Context, planID int64) ([]Schedule, error) {
	var resp []Schedule
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v1/plans/%d/schedules", planID), nil, &resp)
	return resp, err
}

// CreateSchedule adds a schedule to a plan.
func (c *Client) CreateSchedule(ctx context.Context, planID int64, date, timeOfDay, title, place string) (Schedule, error) {
	body := map[string]any{
		"date":  date,
		"time":  timeOfDay,
		"title": title,
		"place": place,
	}
	var resp Schedule
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v1/plans/%d/schedules", planID), body, &resp)
	return resp, err
}

// Chat sends one assistant turn for a plan.
func (c *Client) Chat(ctx context.Context, planID int64, message string, history []HistoryMessage) (ChatResponse, error) {
	body := map[string]any{
		"message": message,
	}
	if len(history) > 0 {
		body["history"] = history
	}
	var resp ChatResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v1/plans/%d/assistant", planID), body, &resp)
	return resp, err
}

// SharedPlan reads a public plan by its share token, no auth needed.
func (c *Client) SharedPlan(ctx context.Context, token string) (Plan, []Schedule, error) {
	var resp struct {
		Plan      Plan       `json:"plan"`
		Schedules []Schedule `json:"schedules"`
	}
	endpoint := fmt.Sprintf("v1/plans/share/%s", url.PathEscape(token))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Plan, resp.Schedules, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
