package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{
			name:     "burst allows initial requests",
			rps:      1,
			burst:    3,
			calls:    3,
			wantPass: 3,
		},
		{
			name:     "exceeding burst blocks",
			rps:      1,
			burst:    2,
			calls:    5,
			wantPass: 2,
		},
		{
			name:     "single call within burst",
			rps:      1,
			burst:    1,
			calls:    1,
			wantPass: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)
			defer rl.Stop()

			passed := 0
			for range tt.calls {
				if rl.Allow("10.0.0.7") {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestWaitRefills(t *testing.T) {
	rl := New(10, 1)
	defer rl.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := rl.Wait(ctx, "10.0.0.7"); err != nil {
		t.Errorf("first Wait() failed: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("first Wait() should be immediate")
	}

	// At 10 rps the second token arrives after about 100ms.
	start = time.Now()
	if err := rl.Wait(ctx, "10.0.0.7"); err != nil {
		t.Errorf("second Wait() failed: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 80*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Errorf("second Wait() took %v, want ~100ms", elapsed)
	}
}

func TestWaitContextCanceled(t *testing.T) {
	rl := New(0.1, 1)
	defer rl.Stop()

	rl.Allow("10.0.0.7")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "10.0.0.7"); err == nil {
		t.Error("Wait() should fail when context is canceled")
	}
}

func TestKeysIndependent(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	rl.Allow("10.0.0.7")
	if rl.Allow("10.0.0.7") {
		t.Error("first key should be exhausted")
	}

	if !rl.Allow("10.0.0.9") {
		t.Error("second key should have its own bucket")
	}
}

func TestSweepDropsIdleKeys(t *testing.T) {
	rl := newKeyed(1, 1, time.Minute, time.Hour)
	defer rl.Stop()

	rl.Allow("10.0.0.7")
	rl.Allow("10.0.0.9")
	if got := rl.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	// Nothing is older than a cutoff in the past.
	rl.sweep(time.Now().Add(-time.Minute))
	if got := rl.Len(); got != 2 {
		t.Errorf("Len() after no-op sweep = %d, want 2", got)
	}

	// Everything is older than a cutoff in the future.
	rl.sweep(time.Now().Add(time.Minute))
	if got := rl.Len(); got != 0 {
		t.Errorf("Len() after sweep = %d, want 0", got)
	}

	// A swept key starts over with a fresh bucket.
	if !rl.Allow("10.0.0.7") {
		t.Error("swept key should get a fresh bucket")
	}
}
