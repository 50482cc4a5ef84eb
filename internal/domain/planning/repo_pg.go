package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hubassist/clinic-api/internal/platform/db"
)

// Plans are stored with landmarks and adjustments as JSONB; their shape is
// owned by this package, not the schema.
type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) GetByPatient(ctx context.Context, clinicID, patientID uuid.UUID) (*Plan, error) {
	var p Plan
	var landmarks, adjustments []byte
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, clinic_id, landmarks, adjustments, created_at, updated_at
		FROM facial_plans WHERE patient_id = $1 AND clinic_id = $2`,
		patientID, clinicID).Scan(
		&p.ID, &p.PatientID, &p.ClinicID, &landmarks, &adjustments, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(landmarks, &p.Landmarks); err != nil {
		return nil, fmt.Errorf("decoding landmarks: %w", err)
	}
	if err := json.Unmarshal(adjustments, &p.Adjustments); err != nil {
		return nil, fmt.Errorf("decoding adjustments: %w", err)
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Plan) error {
	p.ID = uuid.New()
	landmarks, adjustments, err := encode(p)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO facial_plans (id, patient_id, clinic_id, landmarks, adjustments)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.PatientID, p.ClinicID, landmarks, adjustments,
	)
	return err
}

func (r *repoPG) Update(ctx context.Context, p *Plan) error {
	landmarks, adjustments, err := encode(p)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE facial_plans SET landmarks = $3, adjustments = $4, updated_at = NOW()
		WHERE patient_id = $1 AND clinic_id = $2`,
		p.PatientID, p.ClinicID, landmarks, adjustments,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func encode(p *Plan) ([]byte, []byte, error) {
	landmarks, err := json.Marshal(p.Landmarks)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding landmarks: %w", err)
	}
	adjustments, err := json.Marshal(p.Adjustments)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding adjustments: %w", err)
	}
	return landmarks, adjustments, nil
}

// queryable abstracts pgxpool.Pool and pgx.Tx.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
