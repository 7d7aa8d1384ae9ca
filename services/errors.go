package services

import "errors"

// Precondition errors are expected and user-facing: the caller's request is
// simply invalid at this time, no retry needed. Handlers map each one to a
// specific 4xx reason so users understand why an action was rejected.
var (
	ErrNotYourTurn            = errors.New("it is not your turn to send a letter")
	ErrMissionNotActive       = errors.New("mission is not active")
	ErrDuplicateStep          = errors.New("this step already has a letter in flight")
	ErrNotYourProof           = errors.New("this letter was not addressed to you")
	ErrAlreadyResolved        = errors.New("this step has already been resolved")
	ErrOutOfOrderConfirmation = errors.New("previous steps must be confirmed first")
	ErrDisputeWindowClosed    = errors.New("the dispute window for this step has closed")
	ErrNotDisputed            = errors.New("this step is not under dispute")
	ErrDuplicateRequest       = errors.New("a cancellation request is already pending for this match")
	ErrNotAParty              = errors.New("user is not a party of this match")
	ErrMatchNotFound          = errors.New("match not found")
	ErrProofNotFound          = errors.New("no letter recorded for this step")
	ErrRequestNotFound        = errors.New("cancellation request not found")
)
