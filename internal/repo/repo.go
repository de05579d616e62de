package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"mottoparty/internal/domain"
	"mottoparty/internal/events"
)

// Repo is the durable owner of participants, submissions, the raffle
// state flag and the assignment batch.
type Repo struct {
	DB     *sql.DB
	Events events.Writer
}

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

func (r Repo) CreateParticipant(ctx context.Context, p domain.Participant) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO participants(name,password_hash,created_at) VALUES (?,?,?)`,
		p.Name, p.PasswordHash, p.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return err
	}
	if err := r.Events.Append(ctx, tx, "participant.registered", "participant", p.Name, p.Name, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) GetParticipant(ctx context.Context, name string) (domain.Participant, error) {
	var p domain.Participant
	err := r.DB.QueryRowContext(ctx, `SELECT name,password_hash,created_at FROM participants WHERE name=?`, name).
		Scan(&p.Name, &p.PasswordHash, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// ListParticipants returns all participants in registration order.
func (r Repo) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT name,password_hash,created_at FROM participants ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.Name, &p.PasswordHash, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpsertSubmission stores a participant's motto, overwriting any
// previous one. It reports whether a new row was created.
func (r Repo) UpsertSubmission(ctx context.Context, s domain.Submission) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT text FROM submissions WHERE submitter=?`, s.Submitter).Scan(&existing)
	created := err == sql.ErrNoRows
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	if created {
		if _, err := tx.ExecContext(ctx, `INSERT INTO submissions(submitter,text,created_at,updated_at) VALUES (?,?,?,?)`,
			s.Submitter, s.Text, s.CreatedAt, s.UpdatedAt); err != nil {
			return false, err
		}
		if err := r.Events.Append(ctx, tx, "motto.submitted", "submission", s.Submitter, s.Submitter, nil); err != nil {
			return false, err
		}
	} else {
		if _, err := tx.ExecContext(ctx, `UPDATE submissions SET text=?, updated_at=? WHERE submitter=?`,
			s.Text, s.UpdatedAt, s.Submitter); err != nil {
			return false, err
		}
		if err := r.Events.Append(ctx, tx, "motto.updated", "submission", s.Submitter, s.Submitter, nil); err != nil {
			return false, err
		}
	}
	return created, tx.Commit()
}

func (r Repo) GetSubmission(ctx context.Context, submitter string) (domain.Submission, error) {
	var s domain.Submission
	err := r.DB.QueryRowContext(ctx, `SELECT submitter,text,created_at,updated_at FROM submissions WHERE submitter=?`, submitter).
		Scan(&s.Submitter, &s.Text, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

// ListSubmissions returns all (submitter, text) pairs in submission order.
func (r Repo) ListSubmissions(ctx context.Context) ([]domain.Submission, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT submitter,text,created_at,updated_at FROM submissions ORDER BY created_at ASC, submitter ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Submission
	for rows.Next() {
		var s domain.Submission
		if err := rows.Scan(&s.Submitter, &s.Text, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) GetRaffleState(ctx context.Context) (domain.RaffleState, error) {
	var state string
	err := r.DB.QueryRowContext(ctx, `SELECT state FROM raffle_state WHERE id=1`).Scan(&state)
	if err != nil {
		return "", err
	}
	return domain.RaffleState(state), nil
}

// TrySetRaffleCompleted atomically claims the raffle: the guarded
// UPDATE succeeds for exactly one caller ever. Returns false when the
// raffle was already completed.
func (r Repo) TrySetRaffleCompleted(ctx context.Context) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := r.DB.ExecContext(ctx,
		`UPDATE raffle_state SET state=?, completed_at=? WHERE id=1 AND state=?`,
		string(domain.RaffleCompleted), now, string(domain.RaffleNotStarted))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// SaveAssignments writes the raffle result batch all-or-nothing and
// records the completion event in the same transaction.
func (r Repo) SaveAssignments(ctx context.Context, assignments []domain.Assignment, actorID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, a := range assignments {
		if _, err := tx.ExecContext(ctx, `INSERT INTO assignments(participant,motto_text,created_at) VALUES (?,?,?)`,
			a.Participant, a.Text, a.CreatedAt); err != nil {
			return err
		}
	}
	if err := r.Events.Append(ctx, tx, "raffle.completed", "raffle", "", actorID, events.EventPayload{
		"assignments": len(assignments),
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) GetAssignment(ctx context.Context, participant string) (domain.Assignment, error) {
	var a domain.Assignment
	err := r.DB.QueryRowContext(ctx, `SELECT participant,motto_text,created_at FROM assignments WHERE participant=?`, participant).
		Scan(&a.Participant, &a.Text, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) ListAssignments(ctx context.Context) ([]domain.Assignment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT participant,motto_text,created_at FROM assignments ORDER BY participant ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.Participant, &a.Text, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// PartyCounts summarizes the party for the status surfaces.
type PartyCounts struct {
	Participants int `json:"participants"`
	Submissions  int `json:"submissions"`
	Assignments  int `json:"assignments"`
}

func (r Repo) CountParty(ctx context.Context) (PartyCounts, error) {
	var c PartyCounts
	row := r.DB.QueryRowContext(ctx, `SELECT
		(SELECT count(*) FROM participants),
		(SELECT count(*) FROM submissions),
		(SELECT count(*) FROM assignments)`)
	if err := row.Scan(&c.Participants, &c.Submissions, &c.Assignments); err != nil {
		return c, err
	}
	return c, nil
}

// LatestEvents returns the most recent events, newest first.
func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events ` + where + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryEvents(ctx,
		`SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`,
		cursor, limit)
}

// LatestEventID returns the most recent event ID.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
