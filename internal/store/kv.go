package store

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrClosed      = errors.New("store closed")
	ErrInvalidName = errors.New("invalid bucket or key")
)

// KV is the record store the game engines persist through.
// Values are JSON documents; a record written with Put reads back unchanged with Get.
// Last write wins per key; there are no cross-key transactions.
type KV interface {
	// Get decodes the record into out. found is false when the key does not exist.
	Get(ctx context.Context, bucket, key string, out any) (found bool, err error)
	Put(ctx context.Context, bucket, key string, v any) error
	Delete(ctx context.Context, bucket, key string) error
	// Keys lists the keys of a bucket in ascending order.
	Keys(ctx context.Context, bucket string) ([]string, error)
	Close() error
}

func validName(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, "/\\:\x00")
}

func validKey(s string) bool {
	return strings.TrimSpace(s) != ""
}
