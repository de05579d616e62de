package server

import "mottoparty/internal/domain"

// Request payloads

type RegisterRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type SubmitMottoRequest struct {
	Text string `json:"text"`
}

// Response payloads

type ParticipantResponse struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type AuthResponse struct {
	Token       string              `json:"token"`
	Participant ParticipantResponse `json:"participant"`
}

type MottoResponse struct {
	Submitter string `json:"submitter"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type AssignmentResponse struct {
	Participant string `json:"participant"`
	Text        string `json:"text"`
	CreatedAt   string `json:"created_at"`
}

type StatusResponse struct {
	Party        string `json:"party"`
	RaffleState  string `json:"raffle_state"`
	Participants int    `json:"participants"`
	Submissions  int    `json:"submissions"`
	Assignments  int    `json:"assignments"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type WhoAmIResponse struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

func participantResponse(p domain.Participant) ParticipantResponse {
	return ParticipantResponse{Name: p.Name, CreatedAt: p.CreatedAt}
}

func mapParticipants(items []domain.Participant) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(items))
	for _, p := range items {
		out = append(out, participantResponse(p))
	}
	return out
}

func mottoResponse(s domain.Submission) MottoResponse {
	return MottoResponse{Submitter: s.Submitter, Text: s.Text, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

func mapMottos(items []domain.Submission) []MottoResponse {
	out := make([]MottoResponse, 0, len(items))
	for _, s := range items {
		out = append(out, mottoResponse(s))
	}
	return out
}

func assignmentResponse(a domain.Assignment) AssignmentResponse {
	return AssignmentResponse{Participant: a.Participant, Text: a.Text, CreatedAt: a.CreatedAt}
}

func mapAssignments(items []domain.Assignment) []AssignmentResponse {
	out := make([]AssignmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, assignmentResponse(a))
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    e.Payload,
	}
}
