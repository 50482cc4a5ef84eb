package planning

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hubassist/clinic-api/internal/domain/patient"
	"github.com/hubassist/clinic-api/internal/platform/auth"
)

// ErrValidation wraps input validation failures.
var ErrValidation = errors.New("validation failed")

// Service implements plan operations. Like the anamnesis, saving is a
// check-then-write upsert keyed by patient.
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

// Get returns the patient's plan, or a fresh default board when nothing has
// been saved yet. Opening the planning screen never 404s.
func (s *Service) Get(ctx context.Context, patientID uuid.UUID) (*Plan, error) {
	clinicID, err := clinicFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, clinicID, patientID); err != nil {
		return nil, err
	}

	plan, err := s.repo.GetByPatient(ctx, clinicID, patientID)
	if errors.Is(err, ErrNotFound) {
		return &Plan{
			PatientID:   patientID,
			ClinicID:    clinicID,
			Landmarks:   DefaultLandmarks(),
			Adjustments: DefaultAdjustments(),
		}, nil
	}
	return plan, err
}

// Save validates and upserts the patient's plan. Missing sliders are filled
// with the neutral value so a saved plan always carries the full set.
func (s *Service) Save(ctx context.Context, patientID uuid.UUID, in Input) (*Plan, error) {
	clinicID, err := clinicFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, clinicID, patientID); err != nil {
		return nil, err
	}

	landmarks, err := validateLandmarks(in.Landmarks)
	if err != nil {
		return nil, err
	}
	adjustments, err := validateAdjustments(in.Adjustments)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByPatient(ctx, clinicID, patientID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("loading plan: %w", err)
	}

	if existing != nil {
		existing.Landmarks = landmarks
		existing.Adjustments = adjustments
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("updating plan: %w", err)
		}
		return existing, nil
	}

	plan := &Plan{
		PatientID:   patientID,
		ClinicID:    clinicID,
		Landmarks:   landmarks,
		Adjustments: adjustments,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("creating plan: %w", err)
	}
	return plan, nil
}

// validateLandmarks checks that exactly the default landmark set is present
// and every point stays inside the photo.
func validateLandmarks(landmarks []Landmark) ([]Landmark, error) {
	if len(landmarks) == 0 {
		return DefaultLandmarks(), nil
	}

	known := make(map[string]bool, len(DefaultLandmarks()))
	for _, l := range DefaultLandmarks() {
		known[l.Name] = true
	}

	seen := make(map[string]bool, len(landmarks))
	for _, l := range landmarks {
		if !known[l.Name] {
			return nil, fmt.Errorf("%w: unknown landmark %q", ErrValidation, l.Name)
		}
		if seen[l.Name] {
			return nil, fmt.Errorf("%w: duplicate landmark %q", ErrValidation, l.Name)
		}
		seen[l.Name] = true
		if l.X < 0 || l.X > 1 || l.Y < 0 || l.Y > 1 {
			return nil, fmt.Errorf("%w: landmark %q out of bounds", ErrValidation, l.Name)
		}
	}
	if len(seen) != len(known) {
		return nil, fmt.Errorf("%w: expected %d landmarks, got %d", ErrValidation, len(known), len(seen))
	}
	return landmarks, nil
}

// validateAdjustments checks slider names and bounds, defaulting absent
// sliders to neutral.
func validateAdjustments(adjustments map[string]int) (map[string]int, error) {
	out := DefaultAdjustments()
	for name, value := range adjustments {
		if _, ok := out[name]; !ok {
			return nil, fmt.Errorf("%w: unknown adjustment %q", ErrValidation, name)
		}
		if value < AdjustmentMin || value > AdjustmentMax {
			return nil, fmt.Errorf("%w: adjustment %q out of range", ErrValidation, name)
		}
		out[name] = value
	}
	return out, nil
}
