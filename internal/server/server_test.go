package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"mottoparty/internal/config"
	"mottoparty/internal/db"
	"mottoparty/internal/domain"
	"mottoparty/internal/engine"
	"mottoparty/internal/migrate"
	"mottoparty/internal/repo"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Repo   repo.Repo
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	r := repo.Repo{DB: conn}
	e := engine.New(r, cfg)
	handler, err := New(Config{
		Engine:   e,
		Repo:     r,
		Party:    cfg.Party.Name,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testJWTSecret},
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
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Repo:   r,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.close)
	return testSrv
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

type authBody struct {
	Token       string              `json:"token"`
	Participant ParticipantResponse `json:"participant"`
}

func registerParticipant(t *testing.T, srv *testServer, name, password string) authBody {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/register", map[string]any{
		"name":     name,
		"password": password,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register %q status %d: %s", name, res.StatusCode, string(data))
	}
	var out authBody
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal auth: %v", err)
	}
	if out.Token == "" {
		t.Fatalf("register %q returned no token", name)
	}
	return out
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return envelope.Error.Code
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestRegisterLoginAndDuplicate(t *testing.T) {
	srv := newTestServer(t)

	auth := registerParticipant(t, srv, "  Anna ", "secret")
	if auth.Participant.Name != "anna" {
		t.Fatalf("name not normalized: %q", auth.Participant.Name)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/register", map[string]any{
		"name": "ANNA", "password": "other",
	}, nil)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "name_taken" {
		t.Fatalf("duplicate register: status %d code %s", res.StatusCode, errorCode(t, data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"name": "anna", "password": "wrong",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"name": "Anna", "password": "secret",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d: %s", res.StatusCode, string(data))
	}
}

func TestMottosRequireAuth(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/mottos", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list: status %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/mottos", map[string]any{"text": "x"}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated submit: status %d", res.StatusCode)
	}
}

func TestSubmitMottoAsCaller(t *testing.T) {
	srv := newTestServer(t)
	anna := registerParticipant(t, srv, "anna", "pw")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/mottos", map[string]any{
		"text": "carpe diem",
	}, bearer(anna.Token))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit: status %d: %s", res.StatusCode, string(data))
	}
	var m MottoResponse
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal motto: %v", err)
	}
	if m.Submitter != "anna" {
		t.Fatalf("submitter %q, want the authenticated caller", m.Submitter)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/mottos", map[string]any{
		"text": "seize the day",
	}, bearer(anna.Token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("resubmit: status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/mottos", nil, bearer(anna.Token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d: %s", res.StatusCode, string(data))
	}
	var mottos []MottoResponse
	if err := json.Unmarshal(data, &mottos); err != nil {
		t.Fatalf("unmarshal mottos: %v", err)
	}
	if len(mottos) != 1 || mottos[0].Text != "seize the day" {
		t.Fatalf("resubmit did not replace: %+v", mottos)
	}
}

func TestRaffleFlow(t *testing.T) {
	srv := newTestServer(t)
	organizer := registerParticipant(t, srv, "antonia", "pw")
	ben := registerParticipant(t, srv, "ben", "pw")
	carla := registerParticipant(t, srv, "carla", "pw")

	for _, p := range []authBody{organizer, ben, carla} {
		res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/mottos", map[string]any{
			"text": "motto of " + p.Participant.Name,
		}, bearer(p.Token))
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("submit for %q: status %d: %s", p.Participant.Name, res.StatusCode, string(data))
		}
	}

	// Only the organizer may start.
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/raffle/start", nil, bearer(ben.Token))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("non-organizer start: status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/raffle/start", nil, bearer(organizer.Token))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start: status %d: %s", res.StatusCode, string(data))
	}
	var assignments []AssignmentResponse
	if err := json.Unmarshal(data, &assignments); err != nil {
		t.Fatalf("unmarshal assignments: %v", err)
	}
	if len(assignments) != 3 {
		t.Fatalf("got %d assignments, want 3", len(assignments))
	}
	for _, a := range assignments {
		if a.Text == "motto of "+a.Participant {
			t.Errorf("%q got their own motto", a.Participant)
		}
	}

	// A second start conflicts.
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/raffle/start", nil, bearer(organizer.Token))
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "raffle_already_completed" {
		t.Fatalf("second start: status %d code %s", res.StatusCode, errorCode(t, data))
	}

	// Submissions are closed now.
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/mottos", map[string]any{
		"text": "too late",
	}, bearer(ben.Token))
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "submissions_closed" {
		t.Fatalf("submit after raffle: status %d code %s", res.StatusCode, errorCode(t, data))
	}

	// Single result lookup.
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/raffle/results/ben", nil, bearer(ben.Token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("result: status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/raffle/results/stranger", nil, bearer(ben.Token))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown result: status %d", res.StatusCode)
	}

	// Status reflects the completed party.
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/status", nil, bearer(ben.Token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status: status %d: %s", res.StatusCode, string(data))
	}
	var status StatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status.RaffleState != string(domain.RaffleCompleted) || status.Assignments != 3 {
		t.Fatalf("status after raffle: %+v", status)
	}
}

func TestRaffleNotReady(t *testing.T) {
	srv := newTestServer(t)
	organizer := registerParticipant(t, srv, "antonia", "pw")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/raffle/start", nil, bearer(organizer.Token))
	if res.StatusCode != http.StatusUnprocessableEntity || errorCode(t, data) != "raffle_not_ready" {
		t.Fatalf("start with no mottos: status %d code %s", res.StatusCode, errorCode(t, data))
	}
}

func TestResultsBeforeRaffleAreEmpty(t *testing.T) {
	srv := newTestServer(t)
	anna := registerParticipant(t, srv, "anna", "pw")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/raffle/results", nil, bearer(anna.Token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("results: status %d: %s", res.StatusCode, string(data))
	}
	var items []AssignmentResponse
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("unmarshal results: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("results before raffle: %+v", items)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/raffle/results/anna", nil, bearer(anna.Token))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("single result before raffle: status %d", res.StatusCode)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t)
	registerParticipant(t, srv, "anna", "pw")

	secret := uuid.NewString()
	err := srv.Repo.InsertAPIKey(context.Background(), domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   "anna",
		Name:      "ci",
		KeyHash:   repo.HashAPIKey(secret),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("insert api key: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": secret})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me with api key: status %d: %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	if err := json.Unmarshal(data, &who); err != nil {
		t.Fatalf("unmarshal whoami: %v", err)
	}
	if who.Name != "anna" || who.Source != "api_key" {
		t.Fatalf("whoami: %+v", who)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": "bogus"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bogus api key: status %d", res.StatusCode)
	}
}

func TestEventLogOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	anna := registerParticipant(t, srv, "anna", "pw")
	doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/mottos", map[string]any{"text": "hi"}, bearer(anna.Token))

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?type=motto.submitted", nil, bearer(anna.Token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: status %d: %s", res.StatusCode, string(data))
	}
	var events []EventResponse
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(events) != 1 || events[0].EntityID != "anna" {
		t.Fatalf("motto.submitted events: %+v", events)
	}
}
