package app

import (
	"context"
	"fmt"
	"math/rand"
)

// CodeAllocator tracks which join codes are taken. Reserve must be atomic:
// two concurrent reservations of the same code may not both succeed.
type CodeAllocator interface {
	IsCodeInUse(ctx context.Context, code string) (bool, error)
	Reserve(ctx context.Context, code string) (bool, error)
	Release(ctx context.Context, code string) error
}

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
)

// GenerateCode produces one candidate join code: uppercase alphanumeric,
// fixed length. Uniqueness is the caller's problem.
func GenerateCode(rnd *rand.Rand) string {
	buf := make([]byte, codeLength)
	for i := range buf {
		buf[i] = codeAlphabet[rnd.Intn(len(codeAlphabet))]
	}
	return string(buf)
}

// allocateCode loops generate-and-reserve until a free code is claimed.
// The code space is 36^8 so collisions are rare; the loop retries rather
// than capping attempts, but gives up if the allocator itself keeps failing.
func allocateCode(ctx context.Context, rnd *rand.Rand, alloc CodeAllocator) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code := GenerateCode(rnd)
		inUse, err := alloc.IsCodeInUse(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check join code: %w", err)
		}
		if inUse {
			continue
		}
		ok, err := alloc.Reserve(ctx, code)
		if err != nil {
			return "", fmt.Errorf("reserve join code: %w", err)
		}
		if ok {
			return code, nil
		}
		// Lost a reservation race; generate a fresh candidate.
	}
}
