package core

import (
	"fmt"
	"strconv"

	"github.com/segmentio/ksuid"
)

// ID is an opaque, comparable identifier. Backend ids arrive as numbers or
// strings and are kept in their decimal/string form.
type ID string

func (id ID) String() string {
	return string(id)
}

func (id ID) IsZero() bool {
	return id == ""
}

// NewID generates a locally unique, time-sortable id.
func NewID() (ID, error) {
	k, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return ID(k.String()), nil
}

func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

// ParseID validates that value is a KSUID generated by NewID.
func ParseID(value string) (ID, error) {
	k, err := ksuid.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid id %q: %w", value, err)
	}
	return ID(k.String()), nil
}

// IDFromInt converts a numeric backend id.
func IDFromInt(v int64) ID {
	return ID(strconv.FormatInt(v, 10))
}

// Ptr returns a pointer to id, or nil when id is zero.
func (id ID) Ptr() *ID {
	if id.IsZero() {
		return nil
	}
	return &id
}
