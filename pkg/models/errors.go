package models

import "errors"

// Domain errors shared by the engine, allocator, generator and store.
// Handlers map these to HTTP statuses with errors.Is.
var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalidStateTransition    = errors.New("invalid state transition")
	ErrInvalidAmount             = errors.New("invalid amount")
	ErrOverpayment               = errors.New("payment exceeds total outstanding")
	ErrUnsupportedFrequency      = errors.New("unsupported repayment frequency")
	ErrUnsupportedInterestMethod = errors.New("unsupported interest method")
	ErrVersionConflict           = errors.New("loan was modified concurrently")
)
