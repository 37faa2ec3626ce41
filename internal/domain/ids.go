package domain

import (
	"strings"

	"github.com/google/uuid"
)

// TempIDPrefix marks client-generated identifiers for records the server has
// not confirmed yet. The prefix survives process restarts inside the durable
// queue, so "is this record new" stays answerable after a crash.
const TempIDPrefix = "tmp-"

// NewTempID generates a temporary client-side identifier for a new record.
// It is replaced by the server-assigned permanent id on a successful submit.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id is a client-generated temporary identifier.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}
