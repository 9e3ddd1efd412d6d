package store

import (
	"database/sql"
	"time"
)

// toUnixNano converts a time to the INTEGER column representation.
func toUnixNano(t time.Time) int64 {
	return t.UnixNano()
}

// fromUnixNano converts an INTEGER column back to a UTC time.
func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// fromNullUnixNano converts a nullable INTEGER column.
func fromNullUnixNano(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnixNano(n.Int64)
	return &t
}
