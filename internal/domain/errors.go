package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrAlreadyResolved       = errors.New("market already resolved on-chain")
	ErrMissingFeedID         = errors.New("oracle feed id missing")
	ErrOracleUnavailable     = errors.New("oracle has no parsed price for feed")
	ErrTxReverted            = errors.New("transaction landed but reverted")
	ErrAmbiguousConfirmation = errors.New("transaction confirmation timed out")
	ErrWSDisconnect          = errors.New("websocket disconnected")
	ErrLockHeld              = errors.New("lock already held")
	ErrUnauthorized          = errors.New("unauthorized")
)
