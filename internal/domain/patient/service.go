package patient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hubassist/clinic-api/internal/platform/auth"
	"github.com/hubassist/clinic-api/internal/platform/blobstore"
)

var (
	// ErrNoClinic is returned when the request context carries no clinic;
	// the caller is not provisioned yet.
	ErrNoClinic = errors.New("no clinic in scope")
	// ErrValidation wraps input validation failures.
	ErrValidation = errors.New("validation failed")
)

// ImageBucket is where patient portrait photos live.
const ImageBucket = "patient_images"

// ImageUpload carries an optional portrait photo attached to a create or
// update request.
type ImageUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Input is the mutable portion of a patient record.
type Input struct {
	Name      string     `json:"name"`
	CPF       *string    `json:"cpf"`
	BirthDate *time.Time `json:"birth_date"`
	Gender    *string    `json:"gender"`
	Address   Address    `json:"address"`
}

// Service implements patient operations on top of the repository and the
// blob store. All operations are scoped to the clinic in the request
// context.
type Service struct {
	repo   Repository
	blobs  blobstore.Store
	logger zerolog.Logger
}

func NewService(repo Repository, blobs blobstore.Store, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		blobs:  blobs,
		logger: logger.With().Str("component", "patient_service").Logger(),
	}
}

func scopeFromContext(ctx context.Context) (clinicID, userID uuid.UUID, err error) {
	clinicID, err = uuid.Parse(auth.ClinicIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrNoClinic
	}
	userID, err = uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrNoClinic
	}
	return clinicID, userID, nil
}

// Create inserts a new patient. When a photo is attached it is uploaded
// before the row is written: a rejected or failed upload aborts the whole
// operation and leaves no patient behind.
func (s *Service) Create(ctx context.Context, in Input, image *ImageUpload) (*Patient, error) {
	clinicID, userID, err := scopeFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	p := &Patient{
		ID:        uuid.New(),
		Name:      in.Name,
		CPF:       in.CPF,
		BirthDate: in.BirthDate,
		Gender:    in.Gender,
		ClinicID:  clinicID,
		UserID:    userID,
		Address:   in.Address,
	}

	if image != nil {
		url, err := s.uploadImage(ctx, p.ID, image)
		if err != nil {
			return nil, err
		}
		p.ImageURL = &url
	}

	if err := s.repo.Create(ctx, p); err != nil {
		// The photo went in first; drop it so a failed insert leaves no
		// orphaned object.
		if image != nil {
			if delErr := s.blobs.Delete(ctx, ImageBucket, p.ID.String()+"/"+image.FileName); delErr != nil {
				s.logger.Warn().Err(delErr).Str("patient_id", p.ID.String()).Msg("orphaned image cleanup failed")
			}
		}
		return nil, fmt.Errorf("creating patient: %w", err)
	}

	return p, nil
}

func (s *Service) uploadImage(ctx context.Context, patientID uuid.UUID, image *ImageUpload) (string, error) {
	path := patientID.String() + "/" + image.FileName
	if _, err := s.blobs.Upload(ctx, ImageBucket, path, image.ContentType, image.Size, image.Content, nil); err != nil {
		return "", fmt.Errorf("uploading patient image: %w", err)
	}
	return s.blobs.PublicURL(ImageBucket, path), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	clinicID, _, err := scopeFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, clinicID, id)
}

func (s *Service) List(ctx context.Context, nameFilter string, limit, offset int) ([]*Patient, int, error) {
	clinicID, _, err := scopeFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, clinicID, nameFilter, limit, offset)
}

// Update rewrites the mutable fields, optionally replacing the photo. Like
// Create, the new photo is stored before the row is touched.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input, image *ImageUpload) (*Patient, error) {
	clinicID, _, err := scopeFromContext(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	if image != nil {
		url, err := s.uploadImage(ctx, p.ID, image)
		if err != nil {
			return nil, err
		}
		p.ImageURL = &url
	}

	p.Name = in.Name
	p.CPF = in.CPF
	p.BirthDate = in.BirthDate
	p.Gender = in.Gender
	p.Address = in.Address

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the patient row, then makes a best-effort sweep of the
// patient's objects across all buckets. Blob cleanup failures are logged,
// not surfaced: the record is already gone.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	clinicID, _, err := scopeFromContext(ctx)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, clinicID, id); err != nil {
		return err
	}

	prefix := id.String() + "/"
	for bucket := range blobstore.DefaultBuckets() {
		objects, err := s.blobs.List(ctx, bucket, prefix)
		if err != nil {
			s.logger.Warn().Err(err).Str("bucket", bucket).Str("patient_id", id.String()).Msg("listing patient files for cleanup failed")
			continue
		}
		for _, obj := range objects {
			if err := s.blobs.Delete(ctx, bucket, obj.Path); err != nil {
				s.logger.Warn().Err(err).Str("bucket", bucket).Str("path", obj.Path).Msg("patient file cleanup failed")
			}
		}
	}

	return nil
}
