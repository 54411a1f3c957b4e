package db

import "strings"

// IsUniqueViolation reports whether err is a unique constraint
// violation. With a constraintName the check narrows to that specific
// constraint. Matches both Postgres and the sqlite driver used in
// tests.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
