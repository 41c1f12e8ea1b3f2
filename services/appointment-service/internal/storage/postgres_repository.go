package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/paventhan183/dr-appointment/libs/db"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS appointments (
	id                uuid PRIMARY KEY,
	name              text NOT NULL,
	phone             text NOT NULL DEFAULT '',
	appt_date         text NOT NULL,
	appt_time         text NOT NULL,
	services          jsonb NOT NULL DEFAULT '[]'::jsonb,
	confirmation_sent boolean NOT NULL DEFAULT false,
	review_sent       boolean NOT NULL DEFAULT false,
	bill_update_flag  boolean NOT NULL DEFAULT false,
	created_at        timestamptz NOT NULL DEFAULT now(),
	updated_at        timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS appointments_date_time_idx ON appointments (appt_date DESC, appt_time DESC);
CREATE INDEX IF NOT EXISTS appointments_phone_idx ON appointments (phone);
`

const appointmentColumns = `id::text, name, phone, appt_date, appt_time, services,
	confirmation_sent, review_sent, bill_update_flag, created_at, updated_at`

type PostgresRepository struct {
	pool *db.Pool
}

func NewPostgresRepository(pool *db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, postgresSchema)
	return err
}

func (r *PostgresRepository) List(ctx context.Context) ([]model.Appointment, error) {
	return r.query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY appt_date DESC, appt_time DESC
	`)
}

func (r *PostgresRepository) ListByDate(ctx context.Context, date string) ([]model.Appointment, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	return r.query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appt_date = $1
		ORDER BY appt_time ASC
	`, date)
}

func (r *PostgresRepository) FindByPhone(ctx context.Context, phone, date string) (model.Appointment, error) {
	phone, date, err := phoneQuery(phone, date)
	if err != nil {
		return model.Appointment{}, err
	}
	return r.queryOne(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE phone = $1 AND ($2 = '' OR appt_date = $2)
		ORDER BY appt_date DESC, appt_time DESC
		LIMIT 1
	`, phone, date)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return model.Appointment{}, err
	}
	return r.queryOne(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, uid)
}

func (r *PostgresRepository) Sample(ctx context.Context) (model.Appointment, error) {
	return r.queryOne(ctx, `SELECT `+appointmentColumns+` FROM appointments LIMIT 1`)
}

func (r *PostgresRepository) Create(ctx context.Context, draft model.Draft) (model.Appointment, error) {
	appt, err := draft.Build()
	if err != nil {
		return model.Appointment{}, err
	}
	services, err := json.Marshal(appt.Services)
	if err != nil {
		return model.Appointment{}, err
	}
	return r.queryOne(ctx, `
		INSERT INTO appointments
			(id, name, phone, appt_date, appt_time, services, confirmation_sent, review_sent, bill_update_flag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+appointmentColumns,
		uuid.New(), appt.Name, appt.Phone, appt.Date, appt.Time, string(services),
		appt.ConfirmationSent, appt.ReviewSent, appt.BillUpdateFlag)
}

// Update locks the row, merges the patch in Go and writes the full row back
// inside one transaction.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch model.Patch) (model.Appointment, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return model.Appointment{}, err
	}
	changes, err := patch.Validate()
	if err != nil {
		return model.Appointment{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, uid))
	if err != nil {
		return model.Appointment{}, notFoundOr(err)
	}

	changes.ApplyTo(&current)
	if err := current.Validate(); err != nil {
		return model.Appointment{}, err
	}
	services, err := json.Marshal(current.Services)
	if err != nil {
		return model.Appointment{}, err
	}

	updated, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET name = $2,
			phone = $3,
			appt_date = $4,
			appt_time = $5,
			services = $6,
			confirmation_sent = $7,
			review_sent = $8,
			bill_update_flag = $9,
			updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		uid, current.Name, current.Phone, current.Date, current.Time, string(services),
		current.ConfirmationSent, current.ReviewSent, current.BillUpdateFlag))
	if err != nil {
		return model.Appointment{}, notFoundOr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return updated, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	uid, err := parseUUID(id)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM appointments`)
	return err
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close(_ context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) query(ctx context.Context, sql string, args ...any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appts := make([]model.Appointment, 0)
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, sql string, args ...any) (model.Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		return model.Appointment{}, notFoundOr(err)
	}
	return appt, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		appt      model.Appointment
		services  []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(
		&appt.ID,
		&appt.Name,
		&appt.Phone,
		&appt.Date,
		&appt.Time,
		&services,
		&appt.ConfirmationSent,
		&appt.ReviewSent,
		&appt.BillUpdateFlag,
		&createdAt,
		&updatedAt,
	); err != nil {
		return model.Appointment{}, err
	}
	appt.Services = []model.Service{}
	if len(services) > 0 {
		if err := json.Unmarshal(services, &appt.Services); err != nil {
			return model.Appointment{}, fmt.Errorf("decode services: %w", err)
		}
	}
	createdAt, updatedAt = createdAt.UTC(), updatedAt.UTC()
	appt.CreatedAt = &createdAt
	appt.UpdatedAt = &updatedAt
	return appt, nil
}

func parseUUID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, model.InvalidArgument("malformed appointment id %q", id)
	}
	return uid, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}
