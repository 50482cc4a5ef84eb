// Package files exposes patient file management over the bucket store:
// listing, uploading, downloading and deleting clinical files, plus the
// fixed set of standardized photo views used by the planning screen.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hubassist/clinic-api/internal/domain/patient"
	"github.com/hubassist/clinic-api/internal/platform/auth"
	"github.com/hubassist/clinic-api/internal/platform/blobstore"
)

// ErrUnknownView is returned for a photo view outside the fixed set.
var ErrUnknownView = errors.New("unknown photo view")

// PhotoViews are the standardized portrait angles captured for planning.
// Each view is stored as {patientID}/{view}.jpg in the patient_images
// bucket, so re-capturing a view replaces the previous shot.
var PhotoViews = []string{"principal", "frontal_0", "lateral_90", "diagonal_15"}

// Upload describes one file in an upload batch.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// UploadResult reports the outcome for one file of a batch. A failed file
// does not abort the batch.
type UploadResult struct {
	FileName string                `json:"file_name"`
	Object   *blobstore.ObjectInfo `json:"object,omitempty"`
	URL      string                `json:"url,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// Service implements patient file operations. Every operation verifies the
// patient belongs to the caller's clinic before touching storage.
type Service struct {
	blobs    blobstore.Store
	patients patient.Repository
	logger   zerolog.Logger
}

func NewService(blobs blobstore.Store, patients patient.Repository, logger zerolog.Logger) *Service {
	return &Service{
		blobs:    blobs,
		patients: patients,
		logger:   logger.With().Str("component", "files_service").Logger(),
	}
}

func (s *Service) checkPatient(ctx context.Context, patientID uuid.UUID) error {
	clinicID, err := uuid.Parse(auth.ClinicIDFromContext(ctx))
	if err != nil {
		return patient.ErrNoClinic
	}
	_, err = s.patients.GetByID(ctx, clinicID, patientID)
	return err
}

// List returns the patient's files in a bucket, newest first.
func (s *Service) List(ctx context.Context, patientID uuid.UUID, bucket string) ([]blobstore.ObjectInfo, error) {
	if err := s.checkPatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.blobs.List(ctx, bucket, patientID.String()+"/")
}

// UploadBatch stores a set of files under the patient's prefix. Validation
// failures are reported per file; one bad file does not stop the rest.
func (s *Service) UploadBatch(ctx context.Context, patientID uuid.UUID, bucket string, uploads []Upload, progress blobstore.ProgressFunc) ([]UploadResult, error) {
	if err := s.checkPatient(ctx, patientID); err != nil {
		return nil, err
	}

	results := make([]UploadResult, 0, len(uploads))
	for _, u := range uploads {
		path := patientID.String() + "/" + u.FileName
		obj, err := s.blobs.Upload(ctx, bucket, path, u.ContentType, u.Size, u.Content, progress)
		if err != nil {
			s.logger.Warn().Err(err).Str("bucket", bucket).Str("file", u.FileName).Msg("upload rejected")
			results = append(results, UploadResult{FileName: u.FileName, Error: err.Error()})
			continue
		}
		results = append(results, UploadResult{
			FileName: u.FileName,
			Object:   obj,
			URL:      s.blobs.PublicURL(bucket, path),
		})
	}
	return results, nil
}

// Download streams one of the patient's files.
func (s *Service) Download(ctx context.Context, patientID uuid.UUID, bucket, name string) (io.ReadCloser, *blobstore.ObjectInfo, error) {
	if err := s.checkPatient(ctx, patientID); err != nil {
		return nil, nil, err
	}
	return s.blobs.Download(ctx, bucket, patientID.String()+"/"+name)
}

// Delete removes one of the patient's files.
func (s *Service) Delete(ctx context.Context, patientID uuid.UUID, bucket, name string) error {
	if err := s.checkPatient(ctx, patientID); err != nil {
		return err
	}
	return s.blobs.Delete(ctx, bucket, patientID.String()+"/"+name)
}

func photoPath(patientID uuid.UUID, view string) (string, error) {
	for _, v := range PhotoViews {
		if v == view {
			return fmt.Sprintf("%s/%s.jpg", patientID, view), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownView, view)
}

// SavePhoto stores a standardized photo view, replacing any previous shot
// of the same view.
func (s *Service) SavePhoto(ctx context.Context, patientID uuid.UUID, view string, u Upload) (*blobstore.ObjectInfo, string, error) {
	if err := s.checkPatient(ctx, patientID); err != nil {
		return nil, "", err
	}
	path, err := photoPath(patientID, view)
	if err != nil {
		return nil, "", err
	}

	obj, err := s.blobs.Upload(ctx, patient.ImageBucket, path, u.ContentType, u.Size, u.Content, nil)
	if err != nil {
		return nil, "", err
	}
	return obj, s.blobs.PublicURL(patient.ImageBucket, path), nil
}

// GetPhoto streams a standardized photo view.
func (s *Service) GetPhoto(ctx context.Context, patientID uuid.UUID, view string) (io.ReadCloser, *blobstore.ObjectInfo, error) {
	if err := s.checkPatient(ctx, patientID); err != nil {
		return nil, nil, err
	}
	path, err := photoPath(patientID, view)
	if err != nil {
		return nil, nil, err
	}
	return s.blobs.Download(ctx, patient.ImageBucket, path)
}

// PhotoStatus reports which views have been captured, keyed by view name,
// with the public URL for each captured view.
func (s *Service) PhotoStatus(ctx context.Context, patientID uuid.UUID) (map[string]string, error) {
	if err := s.checkPatient(ctx, patientID); err != nil {
		return nil, err
	}

	objects, err := s.blobs.List(ctx, patient.ImageBucket, patientID.String()+"/")
	if err != nil {
		return nil, err
	}

	captured := make(map[string]bool, len(objects))
	for _, obj := range objects {
		captured[obj.Name] = true
	}

	status := make(map[string]string, len(PhotoViews))
	for _, view := range PhotoViews {
		if captured[view+".jpg"] {
			path, _ := photoPath(patientID, view)
			status[view] = s.blobs.PublicURL(patient.ImageBucket, path)
		} else {
			status[view] = ""
		}
	}
	return status, nil
}
