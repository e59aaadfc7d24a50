// Package postgres contains the PostgreSQL implementations of the repository
// interfaces.
package postgres

import "strings"

// isUniqueViolation reports whether err is a unique-constraint violation
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
