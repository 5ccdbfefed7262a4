package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const DefaultFlushInterval = 5 * time.Second

// FileKV is a write-behind cache over one JSON file per bucket (<dir>/<bucket>.json).
// Reads and writes hit memory; dirty buckets are written to disk every flush interval
// and on FlushAll/Close. A crash loses at most one interval of writes.
type FileKV struct {
	dir      string
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	buckets map[string]map[string]json.RawMessage
	dirty   map[string]struct{}
	closed  bool

	// serializes disk writes so a tick flush and FlushAll never interleave on one file
	flushMu sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type FileOption func(*FileKV)

func WithFlushInterval(d time.Duration) FileOption {
	return func(f *FileKV) {
		if d > 0 {
			f.interval = d
		}
	}
}

func WithLogger(l *zap.Logger) FileOption {
	return func(f *FileKV) {
		if l != nil {
			f.logger = l
		}
	}
}

// OpenFileKV creates dir if needed and starts the background flusher.
func OpenFileKV(dir string, opts ...FileOption) (*FileKV, error) {
	if dir == "" {
		return nil, errors.New("data dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f := &FileKV{
		dir:      dir,
		interval: DefaultFlushInterval,
		logger:   zap.NewNop(),
		buckets:  make(map[string]map[string]json.RawMessage),
		dirty:    make(map[string]struct{}),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.wg.Add(1)
	go f.flushLoop()
	return f, nil
}

func (f *FileKV) path(bucket string) string { return filepath.Join(f.dir, bucket+".json") }

// bucketLocked returns the cached bucket, loading it from disk on first use. Caller holds f.mu.
func (f *FileKV) bucketLocked(bucket string) (map[string]json.RawMessage, error) {
	if b, ok := f.buckets[bucket]; ok {
		return b, nil
	}
	b := make(map[string]json.RawMessage)
	raw, err := os.ReadFile(f.path(bucket))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read bucket %s: %w", bucket, err)
	case len(raw) > 0:
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("parse bucket %s: %w", bucket, err)
		}
	}
	f.buckets[bucket] = b
	return b, nil
}

func (f *FileKV) Get(_ context.Context, bucket, key string, out any) (bool, error) {
	if !validName(bucket) || !validKey(key) {
		return false, ErrInvalidName
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false, ErrClosed
	}
	b, err := f.bucketLocked(bucket)
	if err != nil {
		f.mu.Unlock()
		return false, err
	}
	raw, ok := b[key]
	f.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

func (f *FileKV) Put(_ context.Context, bucket, key string, v any) error {
	if !validName(bucket) || !validKey(key) {
		return ErrInvalidName
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	b, err := f.bucketLocked(bucket)
	if err != nil {
		return err
	}
	b[key] = raw
	f.dirty[bucket] = struct{}{}
	return nil
}

func (f *FileKV) Delete(_ context.Context, bucket, key string) error {
	if !validName(bucket) || !validKey(key) {
		return ErrInvalidName
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	b, err := f.bucketLocked(bucket)
	if err != nil {
		return err
	}
	if _, ok := b[key]; ok {
		delete(b, key)
		f.dirty[bucket] = struct{}{}
	}
	return nil
}

func (f *FileKV) Keys(_ context.Context, bucket string) ([]string, error) {
	if !validName(bucket) {
		return nil, ErrInvalidName
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	b, err := f.bucketLocked(bucket)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// FlushAll writes every dirty bucket to disk now.
func (f *FileKV) FlushAll() error {
	f.flushMu.Lock()
	defer f.flushMu.Unlock()

	f.mu.Lock()
	snap := make(map[string][]byte, len(f.dirty))
	for name := range f.dirty {
		raw, err := json.MarshalIndent(f.buckets[name], "", "  ")
		if err != nil {
			f.mu.Unlock()
			return fmt.Errorf("encode bucket %s: %w", name, err)
		}
		snap[name] = raw
	}
	f.dirty = make(map[string]struct{})
	f.mu.Unlock()

	var errs []error
	for name, raw := range snap {
		if err := writeFileAtomic(f.path(name), raw); err != nil {
			errs = append(errs, fmt.Errorf("flush bucket %s: %w", name, err))
			f.mu.Lock()
			f.dirty[name] = struct{}{}
			f.mu.Unlock()
		}
	}
	return errors.Join(errs...)
}

func (f *FileKV) flushLoop() {
	defer f.wg.Done()
	t := time.NewTicker(f.interval)
	defer t.Stop()
	for {
		select {
		case <-f.stopCh:
			return
		case <-t.C:
			if err := f.FlushAll(); err != nil {
				f.logger.Warn("store_flush_failed", zap.Error(err))
			}
		}
	}
}

// Close stops the flusher and writes any pending data.
func (f *FileKV) Close() error {
	f.stopOnce.Do(func() { close(f.stopCh) })
	f.wg.Wait()
	err := f.FlushAll()
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return err
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
