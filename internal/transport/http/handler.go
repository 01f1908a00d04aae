// Package httptransport is the thin HTTP layer over the transaction runtime.
// Handlers translate wire requests into typed operations and domain errors
// into status codes; no ledger logic lives here.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	platformmetrics "eduledger/internal/platform/metrics"
	"eduledger/internal/platform/middleware"
	"eduledger/internal/transport/http/shared"
	sharedjson "eduledger/internal/transport/http/shared/json"
	"eduledger/internal/txn"
	"eduledger/pkg/contenthash"
	dErrors "eduledger/pkg/domain-errors"
)

// Handler exposes the ledger over HTTP.
type Handler struct {
	runtime *txn.Runtime
	cache   *VerifyCache
	logger  *slog.Logger
	metrics *platformmetrics.Metrics
	clock   func() time.Time
}

// HandlerOption configures the Handler.
type HandlerOption func(*Handler)

// WithVerifyCache attaches the QuickVerify read cache.
func WithVerifyCache(cache *VerifyCache) HandlerOption {
	return func(h *Handler) { h.cache = cache }
}

// WithMetrics attaches gateway metrics.
func WithMetrics(m *platformmetrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithClock overrides the request timestamp source; tests pin it.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) { h.clock = clock }
}

func NewHandler(runtime *txn.Runtime, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		runtime: runtime,
		logger:  logger,
		clock:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// submitRequest is the generic transaction envelope: a stable operation name
// plus its JSON arguments.
type submitRequest struct {
	Function string          `json:"function"`
	Args     json.RawMessage `json:"args"`
}

// handleSubmit decodes, authorizes, and executes one ledger operation. The
// request timestamp is assigned once here, so every read and expiry check in
// the operation sees the same instant.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.observe("transactions", "invalid_input", start)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed request body"))
		return
	}

	op, err := txn.Decode(req.Function, req.Args)
	if err != nil {
		h.observe("transactions", string(dErrors.CodeOf(err)), start)
		shared.WriteError(w, err)
		return
	}

	if err := h.authorizeCaller(ctx, op); err != nil {
		h.observe("transactions", string(dErrors.CodeOf(err)), start)
		shared.WriteError(w, err)
		return
	}

	result, err := h.runtime.Submit(ctx, op, h.clock())
	if err != nil {
		code := dErrors.CodeOf(err)
		if h.metrics != nil {
			h.metrics.IncrementTxSubmitted(op.Name(), string(code))
			if code == dErrors.CodeConflict {
				h.metrics.IncrementTxConflicts()
			}
		}
		h.observe("transactions", string(code), start)
		shared.WriteError(w, err)
		return
	}

	if revoke, ok := op.(txn.RevokeCertificate); ok {
		h.cache.Invalidate(ctx, revoke.ID)
	}

	if h.metrics != nil {
		h.metrics.IncrementTxSubmitted(op.Name(), "ok")
	}
	h.observe("transactions", "ok", start)
	sharedjson.WriteJSON(w, http.StatusOK, result)
}

// authorizeCaller rejects operations whose claimed actor differs from the
// authenticated caller. Requests without an authenticated caller (auth
// disabled, e.g. in tests) pass through; record ownership is still enforced
// by the ledgers.
func (h *Handler) authorizeCaller(ctx context.Context, op txn.Operation) error {
	caller := middleware.GetCallerDID(ctx)
	if caller == "" {
		return nil
	}
	actor := claimedActor(op)
	if actor != "" && actor != caller {
		return dErrors.New(dErrors.CodeUnauthorized, "operation actor does not match authenticated caller")
	}
	return nil
}

// claimedActor returns the DID an operation claims to act as. Reads and
// verifier-side checks carry no actor; the caller's own DID arrives in the
// operation arguments there.
func claimedActor(op txn.Operation) string {
	switch op := op.(type) {
	case txn.IssueCertificate:
		return op.IssuerDID
	case txn.RevokeCertificate:
		return op.CallerDID
	case txn.GrantConsent:
		return op.StudentDID
	case txn.RevokeConsent:
		return op.CallerDID
	default:
		return ""
	}
}

// quickVerifyRequest accepts either a precomputed digest or the raw document,
// which the gateway hashes before it touches the ledger.
type quickVerifyRequest struct {
	CertificateID string `json:"certificateId"`
	ExpectedHash  string `json:"expectedHash"`
	Document      string `json:"document"`
}

// handleQuickVerify is the public tamper-evidence endpoint. Successful
// responses are served from the read cache when one is configured.
func (h *Handler) handleQuickVerify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req quickVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.observe("verify_quick", "invalid_input", start)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	if req.Document != "" {
		req.ExpectedHash = contenthash.Digest([]byte(req.Document))
	}

	if body, ok := h.cache.Get(ctx, req.CertificateID, req.ExpectedHash); ok {
		if h.metrics != nil {
			h.metrics.IncrementVerifyCache("hit")
		}
		h.observe("verify_quick", "ok", start)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
		return
	}
	if h.metrics != nil {
		h.metrics.IncrementVerifyCache("miss")
	}

	op, err := txn.Decode(txn.OpQuickVerify, mustMarshal(txn.QuickVerify{
		CertificateID: req.CertificateID,
		ExpectedHash:  req.ExpectedHash,
	}))
	if err != nil {
		h.observe("verify_quick", string(dErrors.CodeOf(err)), start)
		shared.WriteError(w, err)
		return
	}

	result, err := h.runtime.Submit(ctx, op, h.clock())
	if err != nil {
		h.observe("verify_quick", string(dErrors.CodeOf(err)), start)
		shared.WriteError(w, err)
		return
	}

	body, err := json.Marshal(result.Payload)
	if err != nil {
		h.observe("verify_quick", string(dErrors.CodeInternal), start)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode response"))
		return
	}
	h.cache.Set(ctx, req.CertificateID, req.ExpectedHash, body)

	h.observe("verify_quick", "ok", start)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// handleOperations lists the canonical operation names the node accepts.
func (h *Handler) handleOperations(w http.ResponseWriter, _ *http.Request) {
	sharedjson.WriteJSON(w, http.StatusOK, map[string][]string{
		"operations": txn.OperationNames(),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sharedjson.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) observe(endpoint, status string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.IncrementRequests(endpoint, status)
	h.metrics.ObserveEndpointLatency(endpoint, time.Since(start).Seconds())
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
