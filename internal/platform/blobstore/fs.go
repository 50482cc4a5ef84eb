package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileStore persists objects under rootDir/bucket/path, with a small JSON
// sidecar per object holding the content type. Uploads stream through a
// temporary file and are renamed into place only after the full body has
// been read, so a failed or oversized upload never leaves a visible object.
type FileStore struct {
	rootDir string
	rules   map[string]BucketRule
	baseURL string
}

func NewFileStore(rootDir string, rules map[string]BucketRule, baseURL string) (*FileStore, error) {
	for bucket := range rules {
		if err := os.MkdirAll(filepath.Join(rootDir, bucket), 0o750); err != nil {
			return nil, fmt.Errorf("creating bucket dir %s: %w", bucket, err)
		}
	}
	return &FileStore{rootDir: rootDir, rules: rules, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

type sidecar struct {
	ContentType string `json:"content_type"`
}

func (s *FileStore) objectPath(bucket, path string) (string, error) {
	clean := filepath.Clean(path)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: %q", ErrMissingPath, path)
	}
	return filepath.Join(s.rootDir, bucket, clean), nil
}

func (s *FileStore) Upload(ctx context.Context, bucket, path, contentType string, size int64, content io.Reader, progress ProgressFunc) (*ObjectInfo, error) {
	rule, err := validate(s.rules, bucket, path, contentType, size)
	if err != nil {
		return nil, err
	}

	dst, err := s.objectPath(bucket, path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return nil, fmt.Errorf("creating object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := copyWithProgress(tmp, io.LimitReader(content, rule.MaxSize+1), size, progress)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("writing object: %w", err)
	}
	if written > rule.MaxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFileTooLarge, written, rule.MaxSize)
	}

	if err := writeSidecar(dst, contentType); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return nil, fmt.Errorf("moving object into place: %w", err)
	}

	if progress != nil {
		progress(100)
	}

	return &ObjectInfo{
		Bucket:      bucket,
		Path:        path,
		Name:        baseName(path),
		ContentType: contentType,
		Size:        written,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// copyWithProgress copies src to dst reporting progress against the declared
// size. An unknown size (0 or negative) reports no intermediate progress.
func copyWithProgress(dst io.Writer, src io.Reader, declaredSize int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, 64*1024)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if progress != nil && declaredSize > 0 {
				pct := int(written * 100 / declaredSize)
				if pct > 99 {
					pct = 99
				}
				progress(pct)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func writeSidecar(objectPath, contentType string) error {
	data, err := json.Marshal(sidecar{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("encoding sidecar: %w", err)
	}
	if err := os.WriteFile(objectPath+".meta.json", data, 0o640); err != nil {
		return fmt.Errorf("writing sidecar: %w", err)
	}
	return nil
}

func readSidecar(objectPath string) string {
	data, err := os.ReadFile(objectPath + ".meta.json")
	if err != nil {
		return "application/octet-stream"
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil || sc.ContentType == "" {
		return "application/octet-stream"
	}
	return sc.ContentType
}

func (s *FileStore) Download(_ context.Context, bucket, path string) (io.ReadCloser, *ObjectInfo, error) {
	if _, ok := s.rules[bucket]; !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	full, err := s.objectPath(bucket, path)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("opening object: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat object: %w", err)
	}

	info := &ObjectInfo{
		Bucket:      bucket,
		Path:        path,
		Name:        baseName(path),
		ContentType: readSidecar(full),
		Size:        stat.Size(),
		CreatedAt:   stat.ModTime().UTC(),
	}
	return f, info, nil
}

func (s *FileStore) Delete(_ context.Context, bucket, path string) error {
	if _, ok := s.rules[bucket]; !ok {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	full, err := s.objectPath(bucket, path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("removing object: %w", err)
	}
	os.Remove(full + ".meta.json")
	return nil
}

func (s *FileStore) List(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if _, ok := s.rules[bucket]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}

	bucketDir := filepath.Join(s.rootDir, bucket)
	items := make([]ObjectInfo, 0)

	err := filepath.WalkDir(bucketDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".meta.json") || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(bucketDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(rel, prefix) {
			return nil
		}
		if d.Name() == PlaceholderName {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		items = append(items, ObjectInfo{
			Bucket:      bucket,
			Path:        rel,
			Name:        d.Name(),
			ContentType: readSidecar(p),
			Size:        info.Size(),
			CreatedAt:   info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing bucket %s: %w", bucket, err)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	return items, nil
}

func (s *FileStore) PublicURL(bucket, path string) string {
	rule, ok := s.rules[bucket]
	if !ok || !rule.Public {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", s.baseURL, bucket, path)
}
