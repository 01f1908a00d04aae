package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublisherSyncAppendsToStoreAndSinks(t *testing.T) {
	store := NewInMemoryStore()
	extra := NewInMemoryStore()
	p := NewPublisher(store, WithSink(extra))

	err := p.Emit(context.Background(), Event{
		TxID:     "tx-1",
		Action:   ActionCertificateIssued,
		ActorDID: "did:edu:inst:u1",
		Decision: DecisionCommitted,
	})
	require.NoError(t, err)

	events, err := store.ListByActor(context.Background(), "did:edu:inst:u1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, ActionCertificateIssued, events[0].Action)
	require.False(t, events[0].Timestamp.IsZero())

	fanned, err := extra.ListByActor(context.Background(), "did:edu:inst:u1")
	require.NoError(t, err)
	require.Len(t, fanned, 1)
}

func TestPublisherAsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(16))

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Emit(context.Background(), Event{
			TxID:      "tx-async",
			Action:    ActionConsentGranted,
			ActorDID:  "did:edu:student:s1",
			Decision:  DecisionCommitted,
			Timestamp: time.Now(),
		}))
	}
	p.Close()

	events, err := store.ListByActor(context.Background(), "did:edu:student:s1")
	require.NoError(t, err)
	require.Len(t, events, 5)
}
