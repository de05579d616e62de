// Package mottopartysdk is a minimal client for the Motto Party HTTP API.
package mottopartysdk

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

// Client talks to a Motto Party server.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Participant is a registered party member.
type Participant struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// Auth is the register/login response. Token is a bearer JWT.
type Auth struct {
	Token       string      `json:"token"`
	Participant Participant `json:"participant"`
}

// Motto is a participant's submission.
type Motto struct {
	Submitter string `json:"submitter"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Assignment is a raffle result.
type Assignment struct {
	Participant string `json:"participant"`
	Text        string `json:"text"`
	CreatedAt   string `json:"created_at"`
}

// Status summarizes the party.
type Status struct {
	Party        string `json:"party"`
	RaffleState  string `json:"raffle_state"`
	Participants int    `json:"participants"`
	Submissions  int    `json:"submissions"`
	Assignments  int    `json:"assignments"`
}

// Event is a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Register creates a participant and stores the returned token on the
// client for subsequent calls.
func (c *Client) Register(ctx context.Context, name, password string) (Auth, error) {
	var resp Auth
	err := c.do(ctx, http.MethodPost, "v0/auth/register", map[string]any{
		"name":     name,
		"password": password,
	}, &resp)
	if err == nil {
		c.BearerToken = resp.Token
	}
	return resp, err
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, name, password string) (Auth, error) {
	var resp Auth
	err := c.do(ctx, http.MethodPost, "v0/auth/login", map[string]any{
		"name":     name,
		"password": password,
	}, &resp)
	if err == nil {
		c.BearerToken = resp.Token
	}
	return resp, err
}

// SubmitMotto submits or replaces the caller's motto.
func (c *Client) SubmitMotto(ctx context.Context, text string) (Motto, error) {
	var resp Motto
	err := c.do(ctx, http.MethodPost, "v0/mottos", map[string]any{"text": text}, &resp)
	return resp, err
}

// Mottos lists every submitted motto.
func (c *Client) Mottos(ctx context.Context) ([]Motto, error) {
	var resp []Motto
	err := c.do(ctx, http.MethodGet, "v0/mottos", nil, &resp)
	return resp, err
}

// Participants lists everyone registered.
func (c *Client) Participants(ctx context.Context) ([]Participant, error) {
	var resp []Participant
	err := c.do(ctx, http.MethodGet, "v0/participants", nil, &resp)
	return resp, err
}

// StartRaffle runs the raffle. Organizer only; fails once completed.
func (c *Client) StartRaffle(ctx context.Context) ([]Assignment, error) {
	var resp []Assignment
	err := c.do(ctx, http.MethodPost, "v0/raffle/start", nil, &resp)
	return resp, err
}

// Results returns every assignment.
func (c *Client) Results(ctx context.Context) ([]Assignment, error) {
	var resp []Assignment
	err := c.do(ctx, http.MethodGet, "v0/raffle/results", nil, &resp)
	return resp, err
}

// Result returns one participant's assignment.
func (c *Client) Result(ctx context.Context, participant string) (Assignment, error) {
	var resp Assignment
	endpoint := "v0/raffle/results/" + url.PathEscape(participant)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Status returns the party summary.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var resp Status
	err := c.do(ctx, http.MethodGet, "v0/status", nil, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint += fmt.Sprintf("?limit=%d", limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
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
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
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
