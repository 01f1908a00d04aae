package audit

import (
	"context"

	dErrors "eduledger/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")
)

// Sink receives events one at a time. Implementations must be safe for
// concurrent use.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a queryable sink. The publisher persists through a Store and
// fans out to any additional sinks.
type Store interface {
	Sink
	ListByActor(ctx context.Context, actorDID string) ([]Event, error)
}
