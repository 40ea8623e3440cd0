//go:build integration

package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/trustid/trustid/internal/testutil/containers"
)

func TestPostgresLedger(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	l := NewPostgresLedger(pg.Pool)
	ctx := context.Background()

	t.Run("redeem once", func(t *testing.T) {
		pg.Truncate(t, "authorization_tokens")
		now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		if _, err := l.Provision(ctx, "MGRA1234", now); err != nil {
			t.Fatalf("provision: %v", err)
		}
		tok, err := l.Redeem(ctx, " MGRA1234 ", now.Add(time.Minute))
		if err != nil {
			t.Fatalf("redeem: %v", err)
		}
		if !tok.Used || tok.ConsumedAt == nil || !tok.ConsumedAt.Equal(now.Add(time.Minute)) {
			t.Fatalf("expected consumed token, got %+v", tok)
		}
		again, err := l.Redeem(ctx, "MGRA1234", now.Add(2*time.Minute))
		if !errors.Is(err, ErrAlreadyUsed) {
			t.Fatalf("expected already used, got %v", err)
		}
		if !again.ConsumedAt.Equal(now.Add(time.Minute)) {
			t.Fatalf("consumed_at must be stamped exactly once, got %v", again.ConsumedAt)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		pg.Truncate(t, "authorization_tokens")
		if _, err := l.Redeem(ctx, "nope", time.Now()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if _, err := l.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("duplicate provision", func(t *testing.T) {
		pg.Truncate(t, "authorization_tokens")
		if _, err := l.Provision(ctx, "code-1", time.Now()); err != nil {
			t.Fatalf("provision: %v", err)
		}
		if _, err := l.Provision(ctx, "code-1", time.Now()); !errors.Is(err, ErrDuplicateCode) {
			t.Fatalf("expected duplicate code, got %v", err)
		}
	})

	t.Run("concurrent redeem", func(t *testing.T) {
		pg.Truncate(t, "authorization_tokens")
		if _, err := l.Provision(ctx, "race", time.Now()); err != nil {
			t.Fatalf("provision: %v", err)
		}

		const workers = 32
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ok      int
			used    int
			unknown int
		)
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := l.Redeem(ctx, "race", time.Now())
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, ErrAlreadyUsed):
					used++
				default:
					unknown++
				}
			}()
		}
		close(start)
		wg.Wait()

		if ok != 1 || used != workers-1 || unknown != 0 {
			t.Fatalf("expected 1 ok and %d already used, got ok=%d used=%d other=%d", workers-1, ok, used, unknown)
		}
	})

	t.Run("release", func(t *testing.T) {
		pg.Truncate(t, "authorization_tokens")
		if _, err := l.Provision(ctx, "rel", time.Now()); err != nil {
			t.Fatalf("provision: %v", err)
		}
		if err := l.Release(ctx, "rel"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("releasing an unused token must fail, got %v", err)
		}
		if _, err := l.Redeem(ctx, "rel", time.Now()); err != nil {
			t.Fatalf("redeem: %v", err)
		}
		if err := l.Release(ctx, "rel"); err != nil {
			t.Fatalf("release: %v", err)
		}
		tok, err := l.Get(ctx, "rel")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if tok.Used || tok.ConsumedAt != nil {
			t.Fatalf("expected fresh token after release, got %+v", tok)
		}
	})
}
