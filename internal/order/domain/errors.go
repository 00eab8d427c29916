package domain

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrNoMatchingRecord  = errors.New("no record found for this customer and fee type")
	ErrVersionConflict   = errors.New("order was modified concurrently")
	ErrUnknownFeeType    = errors.New("unknown fee type")
	ErrInvalidInput      = errors.New("invalid input")
	ErrProvider          = errors.New("payment provider unavailable")
	ErrSessionNotIssued  = errors.New("provider did not issue a payment session")
	ErrStatusUnavailable = errors.New("payment status unavailable")
)
