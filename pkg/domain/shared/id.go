package shared

import (
	"fmt"
	"regexp"
	"strconv"
)

// ID is the database-generated identifier of a catalog entity.
type ID int64

// ParseID parses a decimal path parameter into an ID.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, NewValidationError("id", fmt.Sprintf("invalid id %q", s))
	}
	return ID(v), nil
}

// Int64 returns the raw value for database parameters.
func (id ID) Int64() int64 {
	return int64(id)
}

// String returns the decimal representation of the ID.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IsZero returns true if the ID has not been assigned.
func (id ID) IsZero() bool {
	return id == 0
}

// SlugPattern is the accepted form of tool and tag slugs.
var SlugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
