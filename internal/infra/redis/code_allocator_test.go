package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestCodeAllocatorReservesWithSetNX(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	alloc := NewCodeAllocator(newClient(mr), time.Minute)
	ctx := context.Background()

	ok, err := alloc.Reserve(ctx, "QWERTY12")
	if err != nil || !ok {
		t.Fatalf("first reserve: ok=%v err=%v", ok, err)
	}
	if !mr.Exists("lobby:code:QWERTY12") {
		t.Fatalf("expected reservation key in redis")
	}

	ok, err = alloc.Reserve(ctx, "QWERTY12")
	if err != nil || ok {
		t.Fatalf("second reserve must lose: ok=%v err=%v", ok, err)
	}

	inUse, err := alloc.IsCodeInUse(ctx, "QWERTY12")
	if err != nil || !inUse {
		t.Fatalf("expected code in use: inUse=%v err=%v", inUse, err)
	}

	if err := alloc.Release(ctx, "QWERTY12"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists("lobby:code:QWERTY12") {
		t.Fatalf("expected key removed after release")
	}
}
