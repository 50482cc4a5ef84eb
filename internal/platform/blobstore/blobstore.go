// Package blobstore provides bucket-scoped object storage for clinical
// files. Objects live under bucket/path keys (paths are prefixed with the
// owning patient id), each bucket enforces its own size and content-type
// rules, and listing is prefix-based. An in-memory implementation backs
// tests; the filesystem implementation backs deployments.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrFileTooLarge       = errors.New("file exceeds bucket size limit")
	ErrInvalidContentType = errors.New("content type not allowed in bucket")
	ErrMissingPath        = errors.New("object path is required")
)

// PlaceholderName is the zero-byte marker some storage clients create to
// materialize empty folders. Listings never return it.
const PlaceholderName = ".emptyFolderPlaceholder"

// BucketRule describes the constraints a bucket enforces on uploads.
// Validation runs before any bytes are written, so a rejected upload never
// leaves a partial object behind.
type BucketRule struct {
	MaxSize      int64
	ContentTypes []string
	Public       bool
}

func (r BucketRule) allowsContentType(ct string) bool {
	for _, allowed := range r.ContentTypes {
		if strings.EqualFold(allowed, ct) {
			return true
		}
	}
	return false
}

// DefaultBuckets returns the bucket layout used by the clinic: patient
// portrait photos, X-ray imagery and general documents, each with its own
// size ceiling and permitted formats.
func DefaultBuckets() map[string]BucketRule {
	return map[string]BucketRule{
		"patient_images": {
			MaxSize:      5 * 1024 * 1024,
			ContentTypes: []string{"image/jpeg", "image/png"},
			Public:       true,
		},
		"xray_images": {
			MaxSize:      15 * 1024 * 1024,
			ContentTypes: []string{"image/jpeg", "image/png", "application/pdf"},
			Public:       true,
		},
		"documents": {
			MaxSize:      20 * 1024 * 1024,
			ContentTypes: []string{"application/pdf", "image/jpeg", "image/png"},
			Public:       true,
		},
	}
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Bucket      string    `json:"bucket"`
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProgressFunc receives upload progress as a percentage from 0 to 100.
// Implementations that buffer the whole object may report a single jump to
// 100.
type ProgressFunc func(percent int)

// Store is the contract for object storage backends.
type Store interface {
	// Upload validates the object against the bucket's rules and stores it.
	// The object is not written at all when validation fails.
	Upload(ctx context.Context, bucket, path, contentType string, size int64, content io.Reader, progress ProgressFunc) (*ObjectInfo, error)
	Download(ctx context.Context, bucket, path string) (io.ReadCloser, *ObjectInfo, error)
	Delete(ctx context.Context, bucket, path string) error
	// List returns objects under the given prefix, newest first, skipping
	// folder placeholders.
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	// PublicURL returns a URL under which the object can be fetched, or an
	// empty string for private buckets.
	PublicURL(bucket, path string) string
}

// validate checks an upload against the bucket rules before any write.
func validate(rules map[string]BucketRule, bucket, path, contentType string, size int64) (BucketRule, error) {
	rule, ok := rules[bucket]
	if !ok {
		return BucketRule{}, fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	if path == "" {
		return rule, ErrMissingPath
	}
	if !rule.allowsContentType(contentType) {
		return rule, fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}
	if size > rule.MaxSize {
		return rule, fmt.Errorf("%w: %d > %d", ErrFileTooLarge, size, rule.MaxSize)
	}
	return rule, nil
}

func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// MemoryStore is a thread-safe in-memory Store for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	rules   map[string]BucketRule
	objects map[string]map[string]*memoryObject // bucket -> path -> object
	baseURL string
}

type memoryObject struct {
	info    ObjectInfo
	content []byte
}

func NewMemoryStore(rules map[string]BucketRule, baseURL string) *MemoryStore {
	objects := make(map[string]map[string]*memoryObject, len(rules))
	for bucket := range rules {
		objects[bucket] = make(map[string]*memoryObject)
	}
	return &MemoryStore{rules: rules, objects: objects, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *MemoryStore) Upload(_ context.Context, bucket, path, contentType string, size int64, content io.Reader, progress ProgressFunc) (*ObjectInfo, error) {
	rule, err := validate(s.rules, bucket, path, contentType, size)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(content, rule.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > rule.MaxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFileTooLarge, len(data), rule.MaxSize)
	}

	info := ObjectInfo{
		Bucket:      bucket,
		Path:        path,
		Name:        baseName(path),
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.objects[bucket][path] = &memoryObject{info: info, content: data}
	s.mu.Unlock()

	if progress != nil {
		progress(100)
	}

	out := info
	return &out, nil
}

func (s *MemoryStore) Download(_ context.Context, bucket, path string) (io.ReadCloser, *ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths, ok := s.objects[bucket]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	obj, ok := paths[path]
	if !ok {
		return nil, nil, ErrObjectNotFound
	}

	info := obj.info
	return io.NopCloser(bytes.NewReader(obj.content)), &info, nil
}

func (s *MemoryStore) Delete(_ context.Context, bucket, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, ok := s.objects[bucket]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	if _, ok := paths[path]; !ok {
		return ErrObjectNotFound
	}
	delete(paths, path)
	return nil
}

func (s *MemoryStore) List(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths, ok := s.objects[bucket]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}

	items := make([]ObjectInfo, 0)
	for path, obj := range paths {
		if prefix != "" && !strings.HasPrefix(path, prefix) {
			continue
		}
		if obj.info.Name == PlaceholderName {
			continue
		}
		items = append(items, obj.info)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	return items, nil
}

func (s *MemoryStore) PublicURL(bucket, path string) string {
	rule, ok := s.rules[bucket]
	if !ok || !rule.Public {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", s.baseURL, bucket, path)
}
