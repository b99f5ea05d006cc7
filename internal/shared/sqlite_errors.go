// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import "strings"

var sqliteConflictMarkers = []string{
	"SQLITE_BUSY",
	"database is locked",
	"database table is locked",
}

// IsSQLiteConflictError reports whether err is a SQLite concurrency error
// (busy or locked) that warrants a retry.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range sqliteConflictMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
