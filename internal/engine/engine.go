// Package engine holds the party rules: registration, motto
// collection and the one-shot raffle. It talks to storage through the
// Store interface and never sees SQL or HTTP.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mottoparty/internal/config"
	"mottoparty/internal/domain"
	"mottoparty/internal/repo"
)

const bcryptCost = 10

// Store is the storage surface the engine needs. repo.Repo satisfies
// it; tests substitute fakes.
type Store interface {
	CreateParticipant(ctx context.Context, p domain.Participant) error
	GetParticipant(ctx context.Context, name string) (domain.Participant, error)
	ListParticipants(ctx context.Context) ([]domain.Participant, error)

	UpsertSubmission(ctx context.Context, s domain.Submission) (bool, error)
	GetSubmission(ctx context.Context, submitter string) (domain.Submission, error)
	ListSubmissions(ctx context.Context) ([]domain.Submission, error)

	GetRaffleState(ctx context.Context) (domain.RaffleState, error)
	TrySetRaffleCompleted(ctx context.Context) (bool, error)
	SaveAssignments(ctx context.Context, assignments []domain.Assignment, actorID string) error
	GetAssignment(ctx context.Context, participant string) (domain.Assignment, error)
	ListAssignments(ctx context.Context) ([]domain.Assignment, error)
}

// Engine coordinates party operations against a Store.
type Engine struct {
	Store     Store
	Organizer string
	Shuffle   ShuffleFunc
	Now       func() time.Time
}

// New builds an Engine with the production shuffle and clock.
func New(store Store, cfg *config.Config) Engine {
	return Engine{
		Store:     store,
		Organizer: cfg.NormalizedOrganizer(),
		Shuffle:   NewShuffle(systemRand{}),
		Now:       time.Now,
	}
}

func (e Engine) timestamp() string {
	return e.Now().UTC().Format(time.RFC3339)
}

// NormalizeName canonicalizes a participant name. Every boundary
// applies it, so "  Antonia " and "antonia" are the same person.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register creates a participant with a bcrypt-hashed password.
func (e Engine) Register(ctx context.Context, name, password string) (domain.Participant, error) {
	n := NormalizeName(name)
	if n == "" {
		return domain.Participant{}, errors.New("name is required")
	}
	if password == "" {
		return domain.Participant{}, errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("hash password: %w", err)
	}
	p := domain.Participant{
		Name:         n,
		PasswordHash: string(hash),
		CreatedAt:    e.timestamp(),
	}
	if err := e.Store.CreateParticipant(ctx, p); err != nil {
		if errors.Is(err, repo.ErrExists) {
			return domain.Participant{}, ErrNameTaken
		}
		return domain.Participant{}, err
	}
	return p, nil
}

// Login checks a name/password pair and returns the participant.
func (e Engine) Login(ctx context.Context, name, password string) (domain.Participant, error) {
	p, err := e.Store.GetParticipant(ctx, NormalizeName(name))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Participant{}, ErrInvalidCredentials
		}
		return domain.Participant{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return domain.Participant{}, ErrInvalidCredentials
	}
	return p, nil
}

// SubmitMotto stores or overwrites the submitter's motto. Each
// participant holds at most one; a resubmission replaces the old
// text. Writes are refused once the raffle has run.
func (e Engine) SubmitMotto(ctx context.Context, submitter, text string) (domain.Submission, bool, error) {
	n := NormalizeName(submitter)
	text = strings.TrimSpace(text)
	if n == "" {
		return domain.Submission{}, false, errors.New("submitter is required")
	}
	if text == "" {
		return domain.Submission{}, false, errors.New("motto text is required")
	}
	state, err := e.Store.GetRaffleState(ctx)
	if err != nil {
		return domain.Submission{}, false, err
	}
	if state == domain.RaffleCompleted {
		return domain.Submission{}, false, ErrSubmissionsClosed
	}
	if _, err := e.Store.GetParticipant(ctx, n); err != nil {
		return domain.Submission{}, false, err
	}
	now := e.timestamp()
	s := domain.Submission{Submitter: n, Text: text, CreatedAt: now, UpdatedAt: now}
	created, err := e.Store.UpsertSubmission(ctx, s)
	if err != nil {
		return domain.Submission{}, false, err
	}
	return s, created, nil
}

// Mottos lists every submission in submission order.
func (e Engine) Mottos(ctx context.Context) ([]domain.Submission, error) {
	return e.Store.ListSubmissions(ctx)
}

// Participants lists everyone registered, in registration order.
func (e Engine) Participants(ctx context.Context) ([]domain.Participant, error) {
	return e.Store.ListParticipants(ctx)
}

// State reports whether the raffle has run.
func (e Engine) State(ctx context.Context) (domain.RaffleState, error) {
	return e.Store.GetRaffleState(ctx)
}

// RunRaffle performs the one-shot assignment. Only the organizer may
// call it, and only once: a compare-and-set on the raffle state
// guarantees a single winner under concurrent starts. The winning
// call computes the assignments and saves them as one batch; if that
// save fails the raffle stays claimed and ErrResultsMissing is
// surfaced rather than silently rolling back to not_started.
func (e Engine) RunRaffle(ctx context.Context, initiator string) ([]domain.Assignment, error) {
	initiator = NormalizeName(initiator)
	if initiator != e.Organizer {
		return nil, ErrUnauthorized
	}

	state, err := e.Store.GetRaffleState(ctx)
	if err != nil {
		return nil, err
	}
	if state == domain.RaffleCompleted {
		return nil, ErrAlreadyCompleted
	}

	participants, err := e.Store.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}
	mottos, err := e.Store.ListSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	if len(mottos) == 0 {
		return nil, ErrNoSubmissions
	}

	claimed, err := e.Store.TrySetRaffleCompleted(ctx)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAlreadyCompleted
	}

	names := make([]string, len(participants))
	for i, p := range participants {
		names[i] = p.Name
	}
	mapping := Assign(names, mottos, e.Shuffle)

	now := e.timestamp()
	assignments := make([]domain.Assignment, len(names))
	for i, name := range names {
		assignments[i] = domain.Assignment{
			Participant: name,
			Text:        mapping[name],
			CreatedAt:   now,
		}
	}
	if err := e.Store.SaveAssignments(ctx, assignments, initiator); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrResultsMissing, err)
	}
	return assignments, nil
}

// Result returns one participant's assigned motto. Before the raffle
// has run there is nothing to see and lookups report not found.
func (e Engine) Result(ctx context.Context, participant string) (domain.Assignment, error) {
	state, err := e.Store.GetRaffleState(ctx)
	if err != nil {
		return domain.Assignment{}, err
	}
	if state != domain.RaffleCompleted {
		return domain.Assignment{}, repo.ErrNotFound
	}
	return e.Store.GetAssignment(ctx, NormalizeName(participant))
}

// Results returns every assignment. Before the raffle it is an empty
// list; after the raffle an empty list means the completed run lost
// its results, which is reported as such.
func (e Engine) Results(ctx context.Context) ([]domain.Assignment, error) {
	state, err := e.Store.GetRaffleState(ctx)
	if err != nil {
		return nil, err
	}
	if state != domain.RaffleCompleted {
		return []domain.Assignment{}, nil
	}
	assignments, err := e.Store.ListAssignments(ctx)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, ErrResultsMissing
	}
	return assignments, nil
}
