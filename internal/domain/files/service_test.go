package files

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hubassist/clinic-api/internal/domain/patient"
	"github.com/hubassist/clinic-api/internal/platform/auth"
	"github.com/hubassist/clinic-api/internal/platform/blobstore"
)

type mockPatients struct {
	patients map[uuid.UUID]uuid.UUID // patient id -> clinic id
}

func (m *mockPatients) Create(_ context.Context, _ *patient.Patient) error { return nil }
func (m *mockPatients) Update(_ context.Context, _ *patient.Patient) error { return nil }
func (m *mockPatients) Delete(_ context.Context, _, _ uuid.UUID) error     { return nil }
func (m *mockPatients) List(_ context.Context, _ uuid.UUID, _ string, _, _ int) ([]*patient.Patient, int, error) {
	return nil, 0, nil
}

func (m *mockPatients) GetByID(_ context.Context, clinicID, id uuid.UUID) (*patient.Patient, error) {
	if owner, ok := m.patients[id]; ok && owner == clinicID {
		return &patient.Patient{ID: id, ClinicID: clinicID}, nil
	}
	return nil, patient.ErrNotFound
}

func newTestService(t *testing.T) (*Service, *blobstore.MemoryStore, context.Context, uuid.UUID) {
	t.Helper()
	clinicID := uuid.New()
	patientID := uuid.New()
	blobs := blobstore.NewMemoryStore(blobstore.DefaultBuckets(), "http://localhost:8080/storage")
	patients := &mockPatients{patients: map[uuid.UUID]uuid.UUID{patientID: clinicID}}
	svc := NewService(blobs, patients, zerolog.Nop())
	ctx := context.WithValue(context.Background(), auth.ClinicIDKey, clinicID.String())
	return svc, blobs, ctx, patientID
}

func TestUploadBatch_ContinuesPastRejectedFile(t *testing.T) {
	svc, blobs, ctx, patientID := newTestService(t)

	results, err := svc.UploadBatch(ctx, patientID, "documents", []Upload{
		{FileName: "a.pdf", ContentType: "application/pdf", Size: 4, Content: strings.NewReader("aaaa")},
		{FileName: "bad.gif", ContentType: "image/gif", Size: 4, Content: strings.NewReader("bbbb")},
		{FileName: "c.pdf", ContentType: "application/pdf", Size: 4, Content: strings.NewReader("cccc")},
	}, nil)
	if err != nil {
		t.Fatalf("UploadBatch failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Error != "" || results[2].Error != "" {
		t.Errorf("valid files should succeed: %+v", results)
	}
	if results[1].Error == "" {
		t.Error("image/gif must be rejected in the documents bucket")
	}

	// The rejected file never reached the store.
	items, _ := blobs.List(ctx, "documents", patientID.String()+"/")
	if len(items) != 2 {
		t.Errorf("expected 2 stored objects, got %d", len(items))
	}
	for _, it := range items {
		if it.Name == "bad.gif" {
			t.Error("rejected file must not be stored")
		}
	}
}

func TestUploadBatch_RejectsForeignPatient(t *testing.T) {
	svc, _, _, patientID := newTestService(t)

	foreign := context.WithValue(context.Background(), auth.ClinicIDKey, uuid.New().String())
	_, err := svc.UploadBatch(foreign, patientID, "documents", []Upload{
		{FileName: "a.pdf", ContentType: "application/pdf", Size: 1, Content: strings.NewReader("x")},
	}, nil)
	if !errors.Is(err, patient.ErrNotFound) {
		t.Fatalf("expected patient.ErrNotFound, got %v", err)
	}
}

func TestDownload_RoundTrip(t *testing.T) {
	svc, _, ctx, patientID := newTestService(t)

	if _, err := svc.UploadBatch(ctx, patientID, "xray_images", []Upload{
		{FileName: "panoramic.jpg", ContentType: "image/jpeg", Size: 4, Content: strings.NewReader("jpeg")},
	}, nil); err != nil {
		t.Fatalf("UploadBatch failed: %v", err)
	}

	rc, info, err := svc.Download(ctx, patientID, "xray_images", "panoramic.jpg")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	rc.Close()
	if info.ContentType != "image/jpeg" {
		t.Errorf("content type = %q", info.ContentType)
	}
}

func TestDelete_RemovesFile(t *testing.T) {
	svc, _, ctx, patientID := newTestService(t)

	if _, err := svc.UploadBatch(ctx, patientID, "documents", []Upload{
		{FileName: "a.pdf", ContentType: "application/pdf", Size: 1, Content: strings.NewReader("x")},
	}, nil); err != nil {
		t.Fatalf("UploadBatch failed: %v", err)
	}

	if err := svc.Delete(ctx, patientID, "documents", "a.pdf"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, _, err := svc.Download(ctx, patientID, "documents", "a.pdf"); !errors.Is(err, blobstore.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound after delete, got %v", err)
	}
}

func TestSavePhoto_UsesCanonicalViewPath(t *testing.T) {
	svc, blobs, ctx, patientID := newTestService(t)

	obj, url, err := svc.SavePhoto(ctx, patientID, "frontal_0", Upload{
		FileName:    "IMG_1234.jpeg",
		ContentType: "image/jpeg",
		Size:        4,
		Content:     strings.NewReader("jpeg"),
	})
	if err != nil {
		t.Fatalf("SavePhoto failed: %v", err)
	}

	wantPath := patientID.String() + "/frontal_0.jpg"
	if obj.Path != wantPath {
		t.Errorf("path = %q, want %q", obj.Path, wantPath)
	}
	if !strings.HasSuffix(url, "/patient_images/"+wantPath) {
		t.Errorf("unexpected url %q", url)
	}

	// Re-capturing the same view replaces the object instead of adding one.
	if _, _, err := svc.SavePhoto(ctx, patientID, "frontal_0", Upload{
		FileName:    "IMG_9999.jpeg",
		ContentType: "image/jpeg",
		Size:        5,
		Content:     strings.NewReader("jpeg2"),
	}); err != nil {
		t.Fatalf("second SavePhoto failed: %v", err)
	}
	items, _ := blobs.List(ctx, patient.ImageBucket, patientID.String()+"/")
	if len(items) != 1 {
		t.Errorf("expected 1 object after re-capture, got %d", len(items))
	}
}

func TestSavePhoto_RejectsUnknownView(t *testing.T) {
	svc, _, ctx, patientID := newTestService(t)

	_, _, err := svc.SavePhoto(ctx, patientID, "selfie", Upload{
		FileName:    "x.jpg",
		ContentType: "image/jpeg",
		Size:        1,
		Content:     strings.NewReader("x"),
	})
	if !errors.Is(err, ErrUnknownView) {
		t.Fatalf("expected ErrUnknownView, got %v", err)
	}
}

func TestPhotoStatus_TracksCapturedViews(t *testing.T) {
	svc, _, ctx, patientID := newTestService(t)

	if _, _, err := svc.SavePhoto(ctx, patientID, "principal", Upload{
		FileName:    "a.jpg",
		ContentType: "image/jpeg",
		Size:        1,
		Content:     strings.NewReader("x"),
	}); err != nil {
		t.Fatalf("SavePhoto failed: %v", err)
	}

	status, err := svc.PhotoStatus(ctx, patientID)
	if err != nil {
		t.Fatalf("PhotoStatus failed: %v", err)
	}
	if len(status) != len(PhotoViews) {
		t.Fatalf("expected %d views, got %d", len(PhotoViews), len(status))
	}
	if status["principal"] == "" {
		t.Error("captured view should have a url")
	}
	if status["lateral_90"] != "" {
		t.Error("uncaptured view should be empty")
	}
}
