package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a unique constraint.
var ErrConflict = errors.New("conflict")

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translate maps constraint violations to store sentinels and wraps
// everything else with op.
func translate(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// assignments accumulates "column = $n" pairs for an UPDATE statement.
type assignments struct {
	cols []string
	args []any
}

func (a *assignments) add(col string, value any) {
	a.args = append(a.args, value)
	a.cols = append(a.cols, fmt.Sprintf("%s = $%d", col, len(a.args)))
}

func (a *assignments) empty() bool {
	return len(a.cols) == 0
}

// set renders the SET list.
func (a *assignments) set() string {
	return strings.Join(a.cols, ", ")
}

// next returns the placeholder index for the first argument after the SET list.
func (a *assignments) next() int {
	return len(a.args) + 1
}
