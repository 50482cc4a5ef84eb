package anamnesis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hubassist/clinic-api/internal/domain/patient"
	"github.com/hubassist/clinic-api/internal/platform/auth"
)

// Service implements the anamnesis operations. Saving is a check-then-write
// upsert: an existing record is updated in place, a missing one is inserted.
// Two saves for the same patient never produce two rows as long as they run
// one after the other, which matches the single-clinic editing workflow.
type Service struct {
	repo     Repository
	patients patient.Repository
}

func NewService(repo Repository, patients patient.Repository) *Service {
	return &Service{repo: repo, patients: patients}
}

func clinicFromContext(ctx context.Context) (uuid.UUID, error) {
	clinicID, err := uuid.Parse(auth.ClinicIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, patient.ErrNoClinic
	}
	return clinicID, nil
}

// Get returns the patient's anamnesis, or ErrNotFound when none was saved
// yet. The patient itself must exist in the caller's clinic.
func (s *Service) Get(ctx context.Context, patientID uuid.UUID) (*Record, error) {
	clinicID, err := clinicFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, clinicID, patientID); err != nil {
		return nil, err
	}
	return s.repo.GetByPatient(ctx, clinicID, patientID)
}

// Save upserts the patient's anamnesis and returns the stored record.
func (s *Service) Save(ctx context.Context, patientID uuid.UUID, in Input) (*Record, error) {
	clinicID, err := clinicFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, clinicID, patientID); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByPatient(ctx, clinicID, patientID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("loading anamnesis: %w", err)
	}

	if existing != nil {
		existing.ChiefComplaint = in.ChiefComplaint
		existing.Allergies = in.Allergies
		existing.SystemicDiseases = in.SystemicDiseases
		existing.Medications = in.Medications
		existing.Notes = in.Notes
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("updating anamnesis: %w", err)
		}
		return existing, nil
	}

	rec := &Record{
		PatientID:        patientID,
		ClinicID:         clinicID,
		ChiefComplaint:   in.ChiefComplaint,
		Allergies:        in.Allergies,
		SystemicDiseases: in.SystemicDiseases,
		Medications:      in.Medications,
		Notes:            in.Notes,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating anamnesis: %w", err)
	}
	return rec, nil
}
