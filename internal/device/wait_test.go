package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAwait_AlreadyPresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttyV0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := Await(context.Background(), path, time.Second); err != nil {
		t.Fatalf("Await() = %v, want nil", err)
	}
}

func TestAwait_AppearsLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttyV1")

	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(path, nil, 0o600)
	}()

	if err := Await(context.Background(), path, 5*time.Second); err != nil {
		t.Fatalf("Await() = %v, want nil", err)
	}
}

func TestAwait_Timeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttyV2")

	err := Await(context.Background(), path, 50*time.Millisecond)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Await() = %v, want ErrUnavailable", err)
	}
}

func TestAwait_ContextCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttyV3")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Await(ctx, path, 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Await() = %v, want context.Canceled", err)
	}
}
