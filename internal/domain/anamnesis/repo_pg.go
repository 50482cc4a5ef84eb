package anamnesis

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hubassist/clinic-api/internal/platform/db"
)

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

const recordColumns = `id, patient_id, clinic_id, queixa_principal, alergias,
	doencas_sistemicas, medicacoes, observacoes, created_at, updated_at`

func (r *repoPG) GetByPatient(ctx context.Context, clinicID, patientID uuid.UUID) (*Record, error) {
	var rec Record
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordColumns+` FROM anamneses WHERE patient_id = $1 AND clinic_id = $2`,
		patientID, clinicID).Scan(
		&rec.ID, &rec.PatientID, &rec.ClinicID, &rec.ChiefComplaint, &rec.Allergies,
		&rec.SystemicDiseases, &rec.Medications, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO anamneses (
			id, patient_id, clinic_id, queixa_principal, alergias,
			doencas_sistemicas, medicacoes, observacoes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.PatientID, rec.ClinicID, rec.ChiefComplaint, rec.Allergies,
		rec.SystemicDiseases, rec.Medications, rec.Notes,
	)
	return err
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE anamneses SET
			queixa_principal = $3, alergias = $4, doencas_sistemicas = $5,
			medicacoes = $6, observacoes = $7, updated_at = NOW()
		WHERE patient_id = $1 AND clinic_id = $2`,
		rec.PatientID, rec.ClinicID, rec.ChiefComplaint, rec.Allergies,
		rec.SystemicDiseases, rec.Medications, rec.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// queryable abstracts pgxpool.Pool and pgx.Tx.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
