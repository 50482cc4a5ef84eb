package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func newTestStore() *MemoryStore {
	return NewMemoryStore(DefaultBuckets(), "http://localhost:8080/storage")
}

func TestUpload_RejectsDisallowedContentType(t *testing.T) {
	store := newTestStore()

	_, err := store.Upload(context.Background(), "patient_images", "p1/photo.gif",
		"image/gif", 100, strings.NewReader("gif-bytes"), nil)
	if !errors.Is(err, ErrInvalidContentType) {
		t.Fatalf("expected ErrInvalidContentType, got %v", err)
	}

	// Validation failure must not leave a partial object behind.
	items, err := store.List(context.Background(), "patient_images", "p1/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no objects after rejected upload, got %d", len(items))
	}
}

func TestUpload_RejectsOversizedDeclaredSize(t *testing.T) {
	store := newTestStore()

	_, err := store.Upload(context.Background(), "patient_images", "p1/photo.jpg",
		"image/jpeg", 6*1024*1024, strings.NewReader("x"), nil)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestUpload_RejectsUnknownBucket(t *testing.T) {
	store := newTestStore()

	_, err := store.Upload(context.Background(), "nope", "p1/x.jpg",
		"image/jpeg", 1, strings.NewReader("x"), nil)
	if !errors.Is(err, ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound, got %v", err)
	}
}

func TestUpload_ReportsProgress(t *testing.T) {
	store := newTestStore()

	var last int
	_, err := store.Upload(context.Background(), "documents", "p1/consent.pdf",
		"application/pdf", 4, strings.NewReader("data"), func(pct int) { last = pct })
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if last != 100 {
		t.Errorf("final progress = %d, want 100", last)
	}
}

func TestDownload_RoundTrip(t *testing.T) {
	store := newTestStore()

	content := []byte("jpeg-bytes")
	info, err := store.Upload(context.Background(), "xray_images", "p1/panoramic.jpg",
		"image/jpeg", int64(len(content)), bytes.NewReader(content), nil)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if info.Name != "panoramic.jpg" {
		t.Errorf("name = %q, want panoramic.jpg", info.Name)
	}

	rc, got, err := store.Download(context.Background(), "xray_images", "p1/panoramic.jpg")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading download: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("content mismatch: got %q", data)
	}
	if got.ContentType != "image/jpeg" {
		t.Errorf("content type = %q", got.ContentType)
	}
}

func TestDownload_NotFound(t *testing.T) {
	store := newTestStore()

	_, _, err := store.Download(context.Background(), "documents", "p1/missing.pdf")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestList_FiltersByPrefixAndSkipsPlaceholders(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	uploads := []struct{ path string }{
		{"p1/a.pdf"},
		{"p1/b.pdf"},
		{"p2/c.pdf"},
		{"p1/" + PlaceholderName},
	}
	for _, u := range uploads {
		if _, err := store.Upload(ctx, "documents", u.path,
			"application/pdf", 1, strings.NewReader("x"), nil); err != nil {
			t.Fatalf("Upload %s failed: %v", u.path, err)
		}
	}

	items, err := store.List(ctx, "documents", "p1/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items for p1/, got %d", len(items))
	}
	for _, it := range items {
		if it.Name == PlaceholderName {
			t.Error("placeholder should be excluded from listings")
		}
		if !strings.HasPrefix(it.Path, "p1/") {
			t.Errorf("unexpected path %q in prefix listing", it.Path)
		}
	}
}

func TestList_NewestFirst(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if _, err := store.Upload(ctx, "documents", "p1/old.pdf",
		"application/pdf", 1, strings.NewReader("x"), nil); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	// Force distinct timestamps.
	store.mu.Lock()
	store.objects["documents"]["p1/old.pdf"].info.CreatedAt = time.Now().Add(-time.Hour)
	store.mu.Unlock()

	if _, err := store.Upload(ctx, "documents", "p1/new.pdf",
		"application/pdf", 1, strings.NewReader("x"), nil); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	items, err := store.List(ctx, "documents", "p1/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 || items[0].Name != "new.pdf" {
		t.Errorf("expected new.pdf first, got %+v", items)
	}
}

func TestDelete_RemovesObject(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if _, err := store.Upload(ctx, "documents", "p1/a.pdf",
		"application/pdf", 1, strings.NewReader("x"), nil); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := store.Delete(ctx, "documents", "p1/a.pdf"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "documents", "p1/a.pdf"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound on second delete, got %v", err)
	}
}

func TestPublicURL(t *testing.T) {
	store := newTestStore()

	url := store.PublicURL("patient_images", "p1/photo.jpg")
	want := "http://localhost:8080/storage/patient_images/p1/photo.jpg"
	if url != want {
		t.Errorf("PublicURL = %q, want %q", url, want)
	}

	if got := store.PublicURL("unknown", "x"); got != "" {
		t.Errorf("unknown bucket should have empty URL, got %q", got)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, DefaultBuckets(), "http://localhost:8080/storage")
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	content := []byte("pdf-bytes")
	if _, err := store.Upload(ctx, "documents", "p1/consent.pdf",
		"application/pdf", int64(len(content)), bytes.NewReader(content), nil); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	rc, info, err := store.Download(ctx, "documents", "p1/consent.pdf")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if !bytes.Equal(data, content) {
		t.Errorf("content mismatch: got %q", data)
	}
	if info.ContentType != "application/pdf" {
		t.Errorf("content type = %q", info.ContentType)
	}

	items, err := store.List(ctx, "documents", "p1/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 || items[0].Name != "consent.pdf" {
		t.Errorf("unexpected listing: %+v", items)
	}

	if err := store.Delete(ctx, "documents", "p1/consent.pdf"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, _, err := store.Download(ctx, "documents", "p1/consent.pdf"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound after delete, got %v", err)
	}
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, DefaultBuckets(), "")
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	_, err = store.Upload(context.Background(), "documents", "../escape.pdf",
		"application/pdf", 1, strings.NewReader("x"), nil)
	if err == nil {
		t.Fatal("expected path traversal to be rejected")
	}
}
