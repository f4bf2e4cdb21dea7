package dashscope

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Credentials resolves the bearer credential for task sessions. A static key
// is used as-is; a refresher is consulted lazily once the cached token
// expires, with at most one refresh in flight at a time.
type Credentials struct {
	staticKey string

	refresh func(ctx context.Context) (token string, expiresAt time.Time, err error)

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// StaticCredentials wraps a fixed api key.
func StaticCredentials(apiKey string) *Credentials {
	return &Credentials{staticKey: apiKey}
}

// CredentialsFromEnv reads the api key from DASHSCOPE_API_KEY.
func CredentialsFromEnv() (*Credentials, error) {
	apiKey, ok := os.LookupEnv("DASHSCOPE_API_KEY")
	if !ok || apiKey == "" {
		return nil, fmt.Errorf("dashscope api key not found")
	}
	return StaticCredentials(apiKey), nil
}

// RefreshingCredentials caches tokens produced by refresh until they expire.
func RefreshingCredentials(refresh func(ctx context.Context) (string, time.Time, error)) *Credentials {
	return &Credentials{refresh: refresh}
}

func (c *Credentials) APIKey(ctx context.Context) (string, error) {
	if c == nil {
		return "", fmt.Errorf("no credentials configured")
	}
	if c.staticKey != "" {
		return c.staticKey, nil
	}
	if c.refresh == nil {
		return "", fmt.Errorf("no credentials configured")
	}

	c.mu.Lock()
	token, expiresAt := c.token, c.expiresAt
	c.mu.Unlock()
	if token != "" && time.Now().Before(expiresAt) {
		return token, nil
	}

	refreshed, err, _ := c.group.Do("token", func() (any, error) {
		token, expiresAt, err := c.refresh(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to refresh token: %w", err)
		}
		c.mu.Lock()
		c.token, c.expiresAt = token, expiresAt
		c.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}

	return refreshed.(string), nil
}

// Invalidate drops the cached token so the next call refreshes.
func (c *Credentials) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.token, c.expiresAt = "", time.Time{}
	c.mu.Unlock()
}
