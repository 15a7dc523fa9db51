package domain

import "errors"

var (
	// ErrUnauthenticated means no usable credential is available or the
	// server rejected it. Fatal to the current attempt; never retried.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrSessionNotFound means no session matches the given code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadyStarted means the session is already running and cannot be joined.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrAlreadyJoined means this identity is already in the session roster,
	// typically from another tab or device.
	ErrAlreadyJoined = errors.New("already joined from another session")
	// ErrNotConnected is returned for sends on a closed channel.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned when a second channel open is attempted
	// for the same session instance.
	ErrAlreadyConnected = errors.New("channel already open")

	// ErrNotHost means a non-host identity tried to start the session.
	ErrNotHost = errors.New("only the session host may start it")
	// ErrNotIdle means start was requested after the session left the lobby.
	ErrNotIdle = errors.New("session is not idle")
	// ErrNotRunning means a submission was attempted outside the running phase.
	ErrNotRunning = errors.New("session is not running")
	// ErrWrongQuestion means the submission does not target the current question.
	ErrWrongQuestion = errors.New("not the current question")
	// ErrAlreadyAnswered means the current question was already answered.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrInvalidOption means the answer index is out of range for the question.
	ErrInvalidOption = errors.New("invalid answer option")
)
