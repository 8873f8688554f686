package supervisor

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestCacheLockAcquireReleaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	lock := NewCacheLock(dir)

	release, err := lock.Acquire(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := os.Stat(lock.path); err != nil {
		t.Fatalf("expected lock file to exist: %v", err)
	}
	release()
	if _, err := os.Stat(lock.path); !os.IsNotExist(err) {
		t.Fatalf("expected lock file removed after release")
	}
}

func TestCacheLockBlocksSecondAcquirer(t *testing.T) {
	dir := t.TempDir()
	lock := NewCacheLock(dir)

	release, err := lock.Acquire(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	second := NewCacheLock(dir)
	if _, err := second.Acquire(ctx, 10*time.Millisecond); err == nil {
		t.Fatal("expected second Acquire to time out while first holds the lock")
	}
}

func TestCacheLockReclaimsStaleLockFile(t *testing.T) {
	dir := t.TempDir()
	lock := NewCacheLock(dir)

	if err := os.WriteFile(lock.path, []byte("999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(lock.path, stale, stale); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	release, err := lock.Acquire(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire should reclaim stale lock: %v", err)
	}
	release()
}
