package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an item does not exist
var ErrNotFound = errors.New("not found")

// SchemaError reports a required table or column that is missing
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema error: missing required column '%s.%s'", e.Table, e.Column)
	}
	return fmt.Sprintf("schema error: missing required table '%s'", e.Table)
}
