package db

import (
	"strings"

	"github.com/teranos/jitter/errors"
)

// ErrDatabaseClosed is returned for operations on a closed cache database
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed matches ErrDatabaseClosed and the driver's own message,
// which arrives unwrapped from database/sql
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
