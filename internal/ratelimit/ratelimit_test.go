package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestBucketAllowsBurstUpToCapacity(t *testing.T) {
	t.Parallel()

	b := New(3, 1)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := b.Wait(ctx); err != nil {
			t.Fatalf("Wait() #%d: %v", i, err)
		}
	}
}

func TestBucketBlocksUntilRefill(t *testing.T) {
	t.Parallel()

	b := New(1, 100) // 100/sec refill -> next token in ~10ms
	ctx := context.Background()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	start := time.Now()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 2*time.Millisecond {
		t.Errorf("expected second Wait to block briefly, took %v", elapsed)
	}
}

func TestBucketRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	b := New(1, 0.001) // effectively never refills within the test window
	ctx := context.Background()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := b.Wait(cancelCtx); err == nil {
		t.Error("expected Wait to return context error")
	}
}
