package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tripline/internal/app"
	"tripline/internal/assistant"
	"tripline/internal/config"
	"tripline/internal/db"
	"tripline/internal/domain"
	"tripline/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	app    app.App
	// model is swapped per test to script the completion service.
	model http.HandlerFunc
	close func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ts := &testServer{client: &http.Client{}}
	ts.model = func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiCompletion(`hello`)))
	}
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.model(w, r)
	}))

	cfg := config.Default()
	cfg.Assistant.Endpoint = fake.URL
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts.app = app.New(conn, cfg, logger)

	handler, err := New(Config{
		App:      ts.app,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: testSecret, Logger: logger},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts.URL = "http://" + ln.Addr().String()
	ts.close = func() {
		srv.Shutdown(context.Background())
		ln.Close()
		fake.Close()
		conn.Close()
	}
	return ts, func() { ts.Close() }
}

// geminiCompletion wraps text into the generateContent response envelope.
func geminiCompletion(text string) string {
	b, _ := json.Marshal(text)
	return `{"candidates":[{"content":{"parts":[{"text":` + string(b) + `}]}}]}`
}

func authHeader(t *testing.T, email, name string) map[string]string {
	t.Helper()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: email,
		Name:  name,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createPlan(t *testing.T, srv *testServer, headers map[string]string) domain.Plan {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/plans", map[string]any{
		"title":      "Kyoto",
		"region":     "Japan",
		"start_date": "2026-04-01",
		"end_date":   "2026-04-05",
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create plan status %d: %s", res.StatusCode, data)
	}
	var p domain.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal plan: %v", err)
	}
	return p
}

func planURL(srv *testServer, p domain.Plan) string {
	return srv.URL + "/v1/plans/" + strconv.FormatInt(p.ID, 10)
}

func TestChatAppliesModelActions(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	owner := authHeader(t, "owner@example.com", "Owner")
	plan := createPlan(t, srv, owner)

	srv.model = func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiCompletion(`{"reply":"Added a tea ceremony.","actions":[{"type":"add","schedule":{"date":"2026-04-02","time":"15:00","title":"Tea ceremony","place":"Gion"}}]}`)))
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/assistant", map[string]any{
		"message": "add a tea ceremony on the 2nd",
	}, owner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("chat status %d: %s", res.StatusCode, data)
	}
	var chat assistant.Response
	if err := json.Unmarshal(data, &chat); err != nil {
		t.Fatalf("unmarshal chat: %v", err)
	}
	if chat.Reply != "Added a tea ceremony." {
		t.Fatalf("reply = %q", chat.Reply)
	}
	if !chat.HasChanges || len(chat.Actions) != 1 || !chat.Actions[0].Success {
		t.Fatalf("actions = %+v", chat.Actions)
	}
	if len(chat.ModifiedScheduleIDs) != 1 {
		t.Fatalf("modified ids = %v", chat.ModifiedScheduleIDs)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, planURL(srv, plan)+"/schedules", nil, owner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list schedules status %d: %s", res.StatusCode, data)
	}
	var schedules []domain.Schedule
	if err := json.Unmarshal(data, &schedules); err != nil {
		t.Fatalf("unmarshal schedules: %v", err)
	}
	if len(schedules) != 1 || schedules[0].Title != "Tea ceremony" {
		t.Fatalf("schedules = %+v", schedules)
	}
}

func TestChatNonJSONResponseIsPlainReply(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	owner := authHeader(t, "owner@example.com", "")
	plan := createPlan(t, srv, owner)

	srv.model = func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiCompletion("Sounds like a lovely trip!")))
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/assistant", map[string]any{
		"message": "what do you think?",
	}, owner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("chat status %d: %s", res.StatusCode, data)
	}
	var chat assistant.Response
	if err := json.Unmarshal(data, &chat); err != nil {
		t.Fatalf("unmarshal chat: %v", err)
	}
	if chat.Reply != "Sounds like a lovely trip!" || chat.HasChanges {
		t.Fatalf("chat = %+v", chat)
	}
}

func TestChatRequiresMessageOrImage(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	owner := authHeader(t, "owner@example.com", "")
	plan := createPlan(t, srv, owner)

	res, data := doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/assistant", map[string]any{}, owner)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
}

func TestChatAuthz(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	owner := authHeader(t, "owner@example.com", "")
	plan := createPlan(t, srv, owner)
	body := map[string]any{"message": "hi"}

	res, _ := doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/assistant", body, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", res.StatusCode)
	}

	stranger := authHeader(t, "stranger@example.com", "")
	res, _ = doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/assistant", body, stranger)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger status = %d", res.StatusCode)
	}
}

func TestChatModelUnavailable(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	owner := authHeader(t, "owner@example.com", "")
	plan := createPlan(t, srv, owner)

	srv.model = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/assistant", map[string]any{
		"message": "hi",
	}, owner)
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
	if !bytes.Contains(data, []byte("Failed to get response from AI assistant")) {
		t.Fatalf("body = %s", data)
	}
}

func TestChatMemberDeniedOwnerOnlyAction(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	owner := authHeader(t, "owner@example.com", "")
	member := authHeader(t, "member@example.com", "")
	plan := createPlan(t, srv, owner)

	// The member token must resolve to a user row before the invite.
	if res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, member); res.StatusCode != http.StatusOK {
		t.Fatalf("member bootstrap status %d", res.StatusCode)
	}
	if res, data := doJSON(t, srv.Client(), http.MethodPut, planURL(srv, plan)+"/visibility", map[string]any{"visibility": "shared"}, owner); res.StatusCode != http.StatusOK {
		t.Fatalf("set visibility status %d: %s", res.StatusCode, data)
	}
	if res, data := doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/members", map[string]any{"email": "member@example.com"}, owner); res.StatusCode != http.StatusCreated {
		t.Fatalf("add member status %d: %s", res.StatusCode, data)
	}

	srv.model = func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiCompletion(`{"reply":"Deleting.","actions":[{"type":"delete_matching","pattern":"hotel"}]}`)))
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/assistant", map[string]any{
		"message": "delete the hotel stuff",
	}, member)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("chat status %d: %s", res.StatusCode, data)
	}
	var chat assistant.Response
	if err := json.Unmarshal(data, &chat); err != nil {
		t.Fatalf("unmarshal chat: %v", err)
	}
	if len(chat.Actions) != 1 || chat.Actions[0].Success {
		t.Fatalf("actions = %+v", chat.Actions)
	}
	if chat.Actions[0].Error != "Permission denied" {
		t.Fatalf("error = %q", chat.Actions[0].Error)
	}
}

func TestShareTokenLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	owner := authHeader(t, "owner@example.com", "")
	plan := createPlan(t, srv, owner)

	res, data := doJSON(t, srv.Client(), http.MethodPut, planURL(srv, plan)+"/visibility", map[string]any{"visibility": "public"}, owner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set visibility status %d: %s", res.StatusCode, data)
	}
	var public domain.Plan
	if err := json.Unmarshal(data, &public); err != nil {
		t.Fatalf("unmarshal plan: %v", err)
	}
	if public.ShareToken == "" {
		t.Fatal("going public must mint a share token")
	}

	// The shared read needs no credential at all.
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/plans/share/"+public.ShareToken, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("shared read status %d: %s", res.StatusCode, data)
	}
	var shared SharedPlanResponse
	if err := json.Unmarshal(data, &shared); err != nil {
		t.Fatalf("unmarshal shared: %v", err)
	}
	if shared.Plan.Title != "Kyoto" {
		t.Fatalf("shared plan = %+v", shared.Plan)
	}

	// Revoking to private keeps the token but stops resolving it.
	if res, data := doJSON(t, srv.Client(), http.MethodPut, planURL(srv, plan)+"/visibility", map[string]any{"visibility": "private"}, owner); res.StatusCode != http.StatusOK {
		t.Fatalf("revoke status %d: %s", res.StatusCode, data)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/plans/share/"+public.ShareToken, nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("revoked shared read status = %d", res.StatusCode)
	}
}

func TestPlanReadAccess(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	owner := authHeader(t, "owner@example.com", "")
	plan := createPlan(t, srv, owner)

	res, _ := doJSON(t, srv.Client(), http.MethodGet, planURL(srv, plan), nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", res.StatusCode)
	}
	stranger := authHeader(t, "stranger@example.com", "")
	res, _ = doJSON(t, srv.Client(), http.MethodGet, planURL(srv, plan), nil, stranger)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger status = %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, planURL(srv, plan), nil, owner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("owner status = %d", res.StatusCode)
	}
}

func TestCreatePlanValidation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	owner := authHeader(t, "owner@example.com", "")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/plans", map[string]any{
		"title":      "Backwards",
		"start_date": "2026-04-05",
		"end_date":   "2026-04-01",
	}, owner)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
}

func TestDevLoginRoundTrip(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{
		"email": "dev@example.com",
		"name":  "Dev",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, data)
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if login.Token == "" {
		t.Fatal("empty token")
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, data)
	}
	var me domain.User
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.Email != "dev@example.com" {
		t.Fatalf("me = %+v", me)
	}
}

func TestGarbageTokenIsAnonymousNotRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	// A broken credential degrades to anonymous: open endpoints keep
	// working, identity-requiring ones answer 401.
	headers := map[string]string{"Authorization": "Bearer not-a-jwt"}
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, headers)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me status = %d", res.StatusCode)
	}
}

func TestMemberContentPermissions(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	owner := authHeader(t, "owner@example.com", "")
	member := authHeader(t, "member@example.com", "")
	plan := createPlan(t, srv, owner)

	if res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, member); res.StatusCode != http.StatusOK {
		t.Fatalf("member bootstrap failed")
	}
	if res, data := doJSON(t, srv.Client(), http.MethodPut, planURL(srv, plan)+"/visibility", map[string]any{"visibility": "shared"}, owner); res.StatusCode != http.StatusOK {
		t.Fatalf("set visibility status %d: %s", res.StatusCode, data)
	}
	if res, data := doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/members", map[string]any{"email": "member@example.com"}, owner); res.StatusCode != http.StatusCreated {
		t.Fatalf("add member status %d: %s", res.StatusCode, data)
	}

	// Members read everything but cannot edit schedules directly.
	res, _ := doJSON(t, srv.Client(), http.MethodGet, planURL(srv, plan), nil, member)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("member read status = %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/schedules", map[string]any{
		"date":  "2026-04-02",
		"title": "Sneaky edit",
	}, member)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("member schedule create status = %d", res.StatusCode)
	}

	// Moments are the member write surface.
	res, data := doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/schedules", map[string]any{
		"date":  "2026-04-02",
		"title": "Fushimi Inari",
	}, owner)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("owner schedule create status %d: %s", res.StatusCode, data)
	}
	var sched domain.Schedule
	if err := json.Unmarshal(data, &sched); err != nil {
		t.Fatalf("unmarshal schedule: %v", err)
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/moments", map[string]any{
		"schedule_id": sched.ID,
		"note":        "so many torii",
	}, member)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("member moment create status %d: %s", res.StatusCode, data)
	}
}

func TestPlanShiftEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	owner := authHeader(t, "owner@example.com", "")
	plan := createPlan(t, srv, owner)

	if res, data := doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/schedules", map[string]any{
		"date":  "2026-04-02",
		"title": "Castle",
	}, owner); res.StatusCode != http.StatusCreated {
		t.Fatalf("schedule create status %d: %s", res.StatusCode, data)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/shift", map[string]any{"days": 7}, owner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("shift status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, planURL(srv, plan), nil, owner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get plan status %d", res.StatusCode)
	}
	var shifted domain.Plan
	if err := json.Unmarshal(data, &shifted); err != nil {
		t.Fatalf("unmarshal plan: %v", err)
	}
	if shifted.StartDate != "2026-04-08" || shifted.EndDate != "2026-04-12" {
		t.Fatalf("plan range = %s..%s", shifted.StartDate, shifted.EndDate)
	}
}

func TestExportICS(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	owner := authHeader(t, "owner@example.com", "")
	plan := createPlan(t, srv, owner)

	if res, data := doJSON(t, srv.Client(), http.MethodPost, planURL(srv, plan)+"/schedules", map[string]any{
		"date":  "2026-04-02",
		"time":  "09:00",
		"title": "Nijo Castle",
	}, owner); res.StatusCode != http.StatusCreated {
		t.Fatalf("schedule create status %d: %s", res.StatusCode, data)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, planURL(srv, plan)+"/export.ics", nil, owner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("export status %d: %s", res.StatusCode, data)
	}
	if ct := res.Header.Get("Content-Type"); ct != "text/calendar; charset=utf-8" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.Contains(data, []byte("BEGIN:VCALENDAR")) || !bytes.Contains(data, []byte("Nijo Castle")) {
		t.Fatalf("ics body = %s", data)
	}
}
