package txn

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"eduledger/internal/audit"
	"eduledger/internal/sentinel"
	"eduledger/internal/worldstate"
	dErrors "eduledger/pkg/domain-errors"
)

// DefaultMaxRetries bounds optimistic retry before a conflict surfaces.
const DefaultMaxRetries = 3

// Result is what Submit hands back: the operation's payload and, for
// mutations, the id of the transaction that committed it.
type Result struct {
	TxID    string `json:"txId,omitempty"`
	Payload any    `json:"payload"`
}

// Runtime is the ordering side of the ledger: it takes snapshots, runs
// operations through the processor, and commits their write-sets with
// optimistic retry. Transaction ids and the per-request timestamp originate
// here; operations themselves never mint either.
type Runtime struct {
	store      worldstate.Store
	processor  *Processor
	publisher  *audit.Publisher
	logger     *slog.Logger
	maxRetries int
}

// RuntimeOption configures the Runtime.
type RuntimeOption func(*Runtime)

// WithMaxRetries overrides the optimistic retry bound.
func WithMaxRetries(n int) RuntimeOption {
	return func(r *Runtime) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// NewRuntime wires the commit runtime.
func NewRuntime(store worldstate.Store, processor *Processor, publisher *audit.Publisher, logger *slog.Logger, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		store:      store,
		processor:  processor,
		publisher:  publisher,
		logger:     logger,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit executes one operation at the given timestamp. Reads return
// directly from the snapshot. Mutations commit their write-set against the
// versions the operation observed; a stale observation triggers a re-execute
// on a fresh snapshot, up to the retry bound, after which the caller sees a
// Conflict error. Audit events are emitted only once the outcome is final.
func (r *Runtime) Submit(ctx context.Context, op Operation, now time.Time) (*Result, error) {
	txID := uuid.NewString()

	for attempt := 0; ; attempt++ {
		snap, err := r.store.Snapshot(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open snapshot")
		}
		track := worldstate.Track(snap)

		outcome, err := r.processor.Process(ctx, track, op, now)
		if err != nil {
			// Denials carry an audit event alongside the error.
			if outcome != nil {
				r.emit(ctx, outcome.Event, txID, now)
			}
			return nil, err
		}

		if len(outcome.Writes) == 0 {
			r.emit(ctx, outcome.Event, txID, now)
			return &Result{Payload: outcome.Result}, nil
		}

		err = r.store.Commit(ctx, worldstate.Proposal{
			Reads:  track.Reads(),
			Writes: outcome.Writes,
		}, worldstate.CommitMeta{TxID: txID, Time: now})
		if err == nil {
			r.emit(ctx, outcome.Event, txID, now)
			return &Result{TxID: txID, Payload: outcome.Result}, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "commit failed")
		}
		if attempt >= r.maxRetries {
			return nil, dErrors.New(dErrors.CodeConflict, "transaction conflicted with concurrent commits")
		}
		r.logger.DebugContext(ctx, "optimistic conflict, re-executing",
			"operation", op.Name(),
			"tx_id", txID,
			"attempt", attempt+1,
		)
	}
}

func (r *Runtime) emit(ctx context.Context, event *audit.Event, txID string, now time.Time) {
	if event == nil || r.publisher == nil {
		return
	}
	event.TxID = txID
	event.Timestamp = now
	if err := r.publisher.Emit(ctx, *event); err != nil {
		r.logger.WarnContext(ctx, "audit emit failed", "error", err, "action", event.Action)
	}
}
