package session

import "wagerhouse/internal/fault"

var (
	ErrSessionNotFound    = fault.Wrap(fault.ErrValidation, "session_not_found")
	ErrStakeOutOfBounds   = fault.Wrap(fault.ErrValidation, "stake_out_of_bounds")
	ErrInvalidCommitment  = fault.Wrap(fault.ErrValidation, "malformed_commitment")
	ErrInvalidOpponent    = fault.Wrap(fault.ErrValidation, "invalid_opponent")
	ErrActiveSession      = fault.Wrap(fault.ErrState, "active_session_exists")
	ErrNotJoinable        = fault.Wrap(fault.ErrState, "session_not_joinable")
	ErrNotRevealable      = fault.Wrap(fault.ErrState, "session_not_revealable")
	ErrNotCancellable     = fault.Wrap(fault.ErrState, "session_not_cancellable")
	ErrSelfJoin           = fault.Wrap(fault.ErrValidation, "cannot_join_own_session")
	ErrNotYourSession     = fault.Wrap(fault.ErrAuthorization, "not_your_session")
	ErrNotTheOpponent     = fault.Wrap(fault.ErrAuthorization, "not_the_named_opponent")
	ErrChallengeExpired   = fault.Wrap(fault.ErrTimeout, "challenge_expired")
	ErrChallengeStillOpen = fault.Wrap(fault.ErrTimeout, "challenge_still_open")
	ErrJoinWindowClosed   = fault.Wrap(fault.ErrTimeout, "join_window_closed")
	ErrJoinWindowOpen     = fault.Wrap(fault.ErrTimeout, "join_window_open")
	ErrRevealWindowClosed = fault.Wrap(fault.ErrTimeout, "reveal_window_closed")
	ErrRevealWindowOpen   = fault.Wrap(fault.ErrTimeout, "reveal_window_open")
)
