package lookup

import (
	"context"
	"strings"

	"github.com/park285/noitu-kakao-bot/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const bucketEnglish = "dict_en"

// WordChecker is the part of EnglishDictionary the cache wraps.
type WordChecker interface {
	IsWord(ctx context.Context, word string) (bool, error)
}

// CachedValidator remembers definite answers and collapses concurrent lookups of
// the same word into one request. Errors are never cached.
type CachedValidator struct {
	inner  WordChecker
	kv     store.KV
	group  singleflight.Group
	logger *zap.Logger
}

func NewCachedValidator(inner WordChecker, kv store.KV, logger *zap.Logger) *CachedValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedValidator{inner: inner, kv: kv, logger: logger}
}

func (c *CachedValidator) IsWord(ctx context.Context, word string) (bool, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false, nil
	}
	var known bool
	found, err := c.kv.Get(ctx, bucketEnglish, word, &known)
	if err != nil {
		c.logger.Warn("dict_cache_read_failed", zap.String("word", word), zap.Error(err))
	} else if found {
		return known, nil
	}

	v, err, _ := c.group.Do(word, func() (any, error) {
		ok, err := c.inner.IsWord(ctx, word)
		if err != nil {
			return false, err
		}
		if perr := c.kv.Put(ctx, bucketEnglish, word, ok); perr != nil {
			c.logger.Warn("dict_cache_write_failed", zap.String("word", word), zap.Error(perr))
		}
		return ok, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}
