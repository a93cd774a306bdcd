package memory

import (
	"context"
	"testing"
)

func TestCodeAllocatorReserveIsExclusive(t *testing.T) {
	alloc := NewCodeAllocator()
	ctx := context.Background()

	ok, err := alloc.Reserve(ctx, "ABCD1234")
	if err != nil || !ok {
		t.Fatalf("first reserve: ok=%v err=%v", ok, err)
	}
	ok, err = alloc.Reserve(ctx, "ABCD1234")
	if err != nil || ok {
		t.Fatalf("second reserve must fail: ok=%v err=%v", ok, err)
	}

	inUse, err := alloc.IsCodeInUse(ctx, "ABCD1234")
	if err != nil || !inUse {
		t.Fatalf("expected code in use: inUse=%v err=%v", inUse, err)
	}

	if err := alloc.Release(ctx, "ABCD1234"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if inUse, _ := alloc.IsCodeInUse(ctx, "ABCD1234"); inUse {
		t.Fatalf("expected code free after release")
	}
}
