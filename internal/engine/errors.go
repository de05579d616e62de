package engine

import "errors"

var (
	// ErrUnauthorized rejects a raffle start by anyone but the organizer.
	ErrUnauthorized = errors.New("only the organizer can start the raffle")

	// ErrAlreadyCompleted rejects a second raffle run.
	ErrAlreadyCompleted = errors.New("raffle already completed")

	// ErrNoParticipants rejects a raffle with nobody registered.
	ErrNoParticipants = errors.New("no participants registered")

	// ErrNoSubmissions rejects a raffle with no mottos to hand out.
	ErrNoSubmissions = errors.New("no mottos submitted")

	// ErrSubmissionsClosed rejects motto writes after the raffle ran.
	ErrSubmissionsClosed = errors.New("submissions are closed")

	// ErrNameTaken signals a registration under an existing name.
	ErrNameTaken = errors.New("name already taken")

	// ErrInvalidCredentials signals a failed login. Unknown name and
	// wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrResultsMissing signals a raffle marked completed whose
	// assignments never made it to storage.
	ErrResultsMissing = errors.New("raffle completed but results are missing")
)
