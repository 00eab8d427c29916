package domain

import "strings"

// Provider status vocabulary. Statuses are opaque strings; only these
// sentinels carry meaning inside the service.
const (
	StatusPending      = "PENDING"
	StatusSuccess      = "SUCCESS"
	StatusNotAttempted = "NOT_ATTEMPTED"
)

func IsSuccess(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), StatusSuccess)
}

func IsPending(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), StatusPending)
}

func IsNotAttempted(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), StatusNotAttempted)
}

// SameStatus compares two provider statuses case-insensitively.
func SameStatus(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
