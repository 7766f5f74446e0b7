package provider

import (
	"context"
	"sync"
	"time"
)

// Token is an OAuth access token and the instant it stops being valid.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ValidAt reports whether the token can still be used at now, keeping skew in reserve.
func (t Token) ValidAt(now time.Time, skew time.Duration) bool {
	return t.AccessToken != "" && now.Add(skew).Before(t.ExpiresAt)
}

// TokenCache stores one token per provider name.
type TokenCache interface {
	GetToken(ctx context.Context, provider string) (Token, bool, error)
	SetToken(ctx context.Context, provider string, token Token) error
	DeleteToken(ctx context.Context, provider string) error
}

// MemoryTokenCache is a process-local TokenCache.
type MemoryTokenCache struct {
	mu     sync.Mutex
	tokens map[string]Token
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{tokens: make(map[string]Token)}
}

func (c *MemoryTokenCache) GetToken(_ context.Context, provider string) (Token, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tokens[provider]
	return t, ok, nil
}

func (c *MemoryTokenCache) SetToken(_ context.Context, provider string, token Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[provider] = token
	return nil
}

func (c *MemoryTokenCache) DeleteToken(_ context.Context, provider string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, provider)
	return nil
}

var _ TokenCache = (*MemoryTokenCache)(nil)
