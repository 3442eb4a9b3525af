package store

import (
	"context"
	"errors"

	"github.com/kekahyde/inferd/internal/model"
)

// ErrNotFound is returned when an execution record does not exist.
var ErrNotFound = errors.New("execution not found")

// Store defines the persistence operations for execution history. The
// in-memory registry owned by the execution manager remains the source of
// truth for live state; the store is the durable audit trail behind the
// history listing endpoint.
type Store interface {
	CreateExecution(ctx context.Context, e *model.Execution) error
	GetExecution(ctx context.Context, id string) (*model.Execution, error)
	ListExecutions(ctx context.Context, limit, offset int) ([]*model.Execution, int, error)
	UpdateExecution(ctx context.Context, e *model.Execution) error
	Close() error
}
