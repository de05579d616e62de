package domain

// RaffleState is the single process-wide raffle lifecycle flag.
// It is monotonic: once completed it never reverts.
type RaffleState string

const (
	RaffleNotStarted RaffleState = "not_started"
	RaffleCompleted  RaffleState = "completed"
)

// Participant is a registered person, identified by a normalized
// (trimmed, lowercased) unique name.
type Participant struct {
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// Submission is a participant's motto. At most one per participant;
// resubmitting overwrites the previous text.
type Submission struct {
	Submitter string `json:"submitter"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// Assignment pairs a participant with the motto text the raffle drew
// for them. Assignments are created as one batch by a single raffle
// run and are immutable afterwards.
type Assignment struct {
	Participant string `json:"participant"`
	Text        string `json:"text"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
