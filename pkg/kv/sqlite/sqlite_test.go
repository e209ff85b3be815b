package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/clock"
)

var epoch = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(epoch)
	s, err := New(filepath.Join(t.TempDir(), "kv_test.db"), WithClock(clk))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, clk
}

func TestIncrWindow(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, ttl, err := s.IncrWindow(ctx, "k", time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if n != i {
			t.Errorf("expected count %d, got %d", i, n)
		}
		if ttl != time.Minute {
			t.Errorf("expected 1m ttl, got %v", ttl)
		}
	}

	clk.Advance(45 * time.Second)
	n, ttl, err := s.IncrWindow(ctx, "k", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 || ttl != 15*time.Second {
		t.Errorf("expected 4 with 15s left, got %d/%v", n, ttl)
	}

	clk.Advance(15 * time.Second)
	n, ttl, _ = s.IncrWindow(ctx, "k", time.Minute)
	if n != 1 || ttl != time.Minute {
		t.Errorf("expected new window, got %d/%v", n, ttl)
	}
}

func TestIncrWindowConcurrent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.IncrWindow(ctx, "k", time.Minute); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	n, _, err := s.Counter(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if n != 40 {
		t.Errorf("expected 40, got %d", n)
	}
}

func TestGetSetAndSweep(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "cache:a", []byte("hello"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "cache:b", []byte("world"), 0); err != nil {
		t.Fatal(err)
	}

	v, ok, err := s.Get(ctx, "cache:a")
	if err != nil || !ok || string(v) != "hello" {
		t.Fatalf("expected hit, got %q %v %v", v, ok, err)
	}
	if n, _ := s.CountPrefix(ctx, "cache:"); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}

	clk.Advance(time.Minute)
	if _, ok, _ := s.Get(ctx, "cache:a"); ok {
		t.Error("expected miss after expiry")
	}

	n, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 swept, got %d", n)
	}

	if n, _ := s.DeletePrefix(ctx, "cache:"); n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}
}
