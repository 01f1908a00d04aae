package httptransport

import (
	"context"
	"strings"
	"time"

	platformredis "eduledger/internal/platform/redis"
)

// VerifyCache is a short-lived read cache for QuickVerify responses. The
// result of a hash check only changes on revocation, so a small TTL trades
// bounded staleness for taking repeat lookups off the ledger path. A nil
// cache is valid and disables caching.
type VerifyCache struct {
	client *platformredis.Client
	ttl    time.Duration
}

func NewVerifyCache(client *platformredis.Client, ttl time.Duration) *VerifyCache {
	if client == nil {
		return nil
	}
	return &VerifyCache{client: client, ttl: ttl}
}

func (c *VerifyCache) key(certificateID, hash string) string {
	return "verify:" + certificateID + ":" + hash
}

// Get returns the cached response body, if any. Cache failures degrade to a
// miss; the ledger remains the source of truth.
func (c *VerifyCache) Get(ctx context.Context, certificateID, hash string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	body, err := c.client.Get(ctx, c.key(certificateID, hash)).Bytes()
	if err != nil {
		return nil, false
	}
	return body, true
}

// Set stores a response body; errors are ignored. The TTL bounds staleness
// for writes the gateway does not see, such as a revocation committed by
// another node.
func (c *VerifyCache) Set(ctx context.Context, certificateID, hash string, body []byte) {
	if c == nil {
		return
	}
	c.client.Set(ctx, c.key(certificateID, hash), body, c.ttl)
}

// Invalidate drops every cached response for a certificate. Called on the
// revocation success path so this gateway never serves a pre-revocation
// "active" verdict from cache.
func (c *VerifyCache) Invalidate(ctx context.Context, certificateID string) {
	if c == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, c.pattern(certificateID), 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}

// pattern builds the SCAN glob covering all hashes presented for one
// certificate. Glob metacharacters in the id are escaped so the scan cannot
// reach past its own certificate.
func (c *VerifyCache) pattern(certificateID string) string {
	escaped := strings.NewReplacer(
		`\`, `\\`,
		"*", `\*`,
		"?", `\?`,
		"[", `\[`,
		"]", `\]`,
	).Replace(certificateID)
	return "verify:" + escaped + ":*"
}
