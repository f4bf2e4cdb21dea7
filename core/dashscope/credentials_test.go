package dashscope

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStaticCredentialsReturnKeyAsIs(t *testing.T) {
	credentials := StaticCredentials("sk-test")
	key, err := credentials.APIKey(context.Background())
	if err != nil {
		t.Fatalf("expected static key to resolve, got %v", err)
	}
	if key != "sk-test" {
		t.Fatalf("expected sk-test, got %q", key)
	}
}

func TestNilCredentialsFail(t *testing.T) {
	var credentials *Credentials
	if _, err := credentials.APIKey(context.Background()); err == nil {
		t.Fatalf("expected nil credentials to fail")
	}
}

func TestRefreshingCredentialsCacheUntilExpiry(t *testing.T) {
	var refreshes atomic.Int32
	credentials := RefreshingCredentials(func(ctx context.Context) (string, time.Time, error) {
		n := refreshes.Add(1)
		return fmt.Sprintf("token-%d", n), time.Now().Add(time.Hour), nil
	})

	for i := 0; i < 3; i++ {
		token, err := credentials.APIKey(context.Background())
		if err != nil {
			t.Fatalf("expected refresh to succeed, got %v", err)
		}
		if token != "token-1" {
			t.Fatalf("expected the cached token, got %q", token)
		}
	}
	if got := refreshes.Load(); got != 1 {
		t.Fatalf("expected a single refresh, got %d", got)
	}

	credentials.Invalidate()
	token, err := credentials.APIKey(context.Background())
	if err != nil {
		t.Fatalf("expected refresh after invalidation to succeed, got %v", err)
	}
	if token != "token-2" {
		t.Fatalf("expected a fresh token after invalidation, got %q", token)
	}
}

func TestRefreshingCredentialsCollapseConcurrentRefreshes(t *testing.T) {
	var refreshes atomic.Int32
	release := make(chan struct{})
	credentials := RefreshingCredentials(func(ctx context.Context) (string, time.Time, error) {
		refreshes.Add(1)
		<-release
		return "token", time.Now().Add(time.Hour), nil
	})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := credentials.APIKey(context.Background())
			if err != nil {
				errs <- err
				return
			}
			if token != "token" {
				errs <- fmt.Errorf("unexpected token %q", token)
			}
		}()
	}

	// Give the goroutines time to pile up on the in-flight refresh.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("expected all callers to share one result, got %v", err)
	}

	if got := refreshes.Load(); got != 1 {
		t.Fatalf("expected concurrent callers to share one refresh, got %d", got)
	}
}

func TestRefreshingCredentialsSurfaceErrors(t *testing.T) {
	credentials := RefreshingCredentials(func(ctx context.Context) (string, time.Time, error) {
		return "", time.Time{}, fmt.Errorf("sts unavailable")
	})
	if _, err := credentials.APIKey(context.Background()); err == nil {
		t.Fatalf("expected the refresh error to surface")
	}
}
