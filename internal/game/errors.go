package game

import "errors"

// Kind is the stable machine-readable error category returned to callers.
type Kind string

const (
	KindBadRequest       Kind = "bad_request"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindInvalidPhase     Kind = "invalid_phase"
	KindAlreadyCommitted Kind = "already_committed"
	KindAlreadyRevealed  Kind = "already_revealed"
	KindCommitMismatch   Kind = "commit_mismatch"
	KindDeadlinePassed   Kind = "deadline_passed"
	KindNotReady         Kind = "not_ready"
	KindInvalidSignature Kind = "invalid_signature"
	KindInternal         Kind = "internal"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrForbidden        = errors.New("not a participant of this match")
	ErrNotFound         = errors.New("match not found")
	ErrInvalidPhase     = errors.New("action not allowed in current phase")
	ErrAlreadyCommitted = errors.New("already committed")
	ErrAlreadyRevealed  = errors.New("already revealed")
	ErrCommitMismatch   = errors.New("reveal does not match commitment")
	ErrDeadlinePassed   = errors.New("deadline passed")
	ErrNotReady         = errors.New("not ready")
	ErrInvalidSignature = errors.New("invalid signature")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrBadRequest, KindBadRequest},
	{ErrForbidden, KindForbidden},
	{ErrNotFound, KindNotFound},
	{ErrInvalidPhase, KindInvalidPhase},
	{ErrAlreadyCommitted, KindAlreadyCommitted},
	{ErrAlreadyRevealed, KindAlreadyRevealed},
	{ErrCommitMismatch, KindCommitMismatch},
	{ErrDeadlinePassed, KindDeadlinePassed},
	{ErrNotReady, KindNotReady},
	{ErrInvalidSignature, KindInvalidSignature},
}

// KindOf classifies err. Anything not wrapping a sentinel above is internal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
