package patient

import (
	"context"
	"errors"
	"fmt"

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

const patientColumns = `id, name, cpf, birth_date, gender, image_url, clinic_id, user_id,
	cep, street, number, district, city, state, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (
			id, name, cpf, birth_date, gender, image_url, clinic_id, user_id,
			cep, street, number, district, city, state
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		p.ID, p.Name, p.CPF, p.BirthDate, p.Gender, p.ImageURL, p.ClinicID, p.UserID,
		p.Address.CEP, p.Address.Street, p.Address.Number, p.Address.District,
		p.Address.City, p.Address.State,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Patient, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET
			name = $3, cpf = $4, birth_date = $5, gender = $6, image_url = $7,
			cep = $8, street = $9, number = $10, district = $11, city = $12, state = $13,
			updated_at = NOW()
		WHERE id = $1 AND clinic_id = $2`,
		p.ID, p.ClinicID, p.Name, p.CPF, p.BirthDate, p.Gender, p.ImageURL,
		p.Address.CEP, p.Address.Street, p.Address.Number, p.Address.District,
		p.Address.City, p.Address.State,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM patients WHERE id = $1 AND clinic_id = $2`, id, clinicID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, clinicID uuid.UUID, nameFilter string, limit, offset int) ([]*Patient, int, error) {
	countQuery := `SELECT COUNT(*) FROM patients WHERE clinic_id = $1`
	query := `SELECT ` + patientColumns + ` FROM patients WHERE clinic_id = $1`
	args := []interface{}{clinicID}

	if nameFilter != "" {
		countQuery += ` AND name ILIKE $2`
		query += ` AND name ILIKE $2`
		args = append(args, "%"+nameFilter+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	idx := len(args) + 1
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func (r *repoPG) scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.Name, &p.CPF, &p.BirthDate, &p.Gender, &p.ImageURL, &p.ClinicID, &p.UserID,
		&p.Address.CEP, &p.Address.Street, &p.Address.Number, &p.Address.District,
		&p.Address.City, &p.Address.State, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) scanRow(rows pgx.Rows) (*Patient, error) {
	var p Patient
	err := rows.Scan(
		&p.ID, &p.Name, &p.CPF, &p.BirthDate, &p.Gender, &p.ImageURL, &p.ClinicID, &p.UserID,
		&p.Address.CEP, &p.Address.Street, &p.Address.Number, &p.Address.District,
		&p.Address.City, &p.Address.State, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// queryable abstracts pgxpool.Pool and pgx.Tx.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
