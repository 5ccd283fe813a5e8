package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the appointments table. The
// date_time column is a TIMESTAMP holding server-local wall clock time.
type PostgresRepository struct {
	pool querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q querier) *PostgresRepository {
	if q == nil {
		panic("appointments: querier required")
	}
	return &PostgresRepository{pool: q}
}

const selectColumns = `id, client_id, date_time, COALESCE(purpose, ''), status, created_at, updated_at`

// Create inserts a confirmed appointment.
func (r *PostgresRepository) Create(ctx context.Context, clientID string, at time.Time, purpose string) (*Appointment, error) {
	if err := validateCreate(clientID, at); err != nil {
		return nil, err
	}
	at = Slot(at)
	purpose = NormalizePurpose(purpose)

	id := uuid.New()
	query := `
		INSERT INTO appointments (id, client_id, date_time, purpose, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		id,
		clientID,
		at,
		nullable(purpose),
		string(StatusConfirmed),
	).Scan(&createdAt, &updatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("appointments: insert failed: %w", err)
	}

	return &Appointment{
		ID:        id.String(),
		ClientID:  clientID,
		DateTime:  at,
		Purpose:   purpose,
		Status:    StatusConfirmed,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// FindConflicting returns the appointment at the client's slot, or nil.
func (r *PostgresRepository) FindConflicting(ctx context.Context, clientID string, at time.Time) (*Appointment, error) {
	query := `SELECT ` + selectColumns + ` FROM appointments WHERE client_id = $1 AND date_time = $2`
	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, clientID, Slot(at)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("appointments: find conflicting: %w", err)
	}
	return appt, nil
}

// List returns appointments ordered by date, for one client or all.
func (r *PostgresRepository) List(ctx context.Context, clientID string) ([]*Appointment, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if clientID == "" {
		rows, err = r.pool.Query(ctx, `SELECT `+selectColumns+` FROM appointments ORDER BY date_time ASC, client_id ASC`)
	} else {
		rows, err = r.pool.Query(ctx, `SELECT `+selectColumns+` FROM appointments WHERE client_id = $1 ORDER BY date_time ASC`, clientID)
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	out := []*Appointment{}
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}

// Get fetches one appointment by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + selectColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return appt, nil
}

// Update applies req to the stored row.
func (r *PostgresRepository) Update(ctx context.Context, id string, req UpdateRequest) (*Appointment, error) {
	appt, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.apply(appt); err != nil {
		return nil, err
	}

	query := `
		UPDATE appointments
		SET date_time = $2, purpose = $3, status = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		id,
		appt.DateTime,
		nullable(appt.Purpose),
		string(appt.Status),
	).Scan(&appt.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("appointments: update: %w", err)
	}
	return appt, nil
}

// Delete removes an appointment.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("appointments: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear deletes one client's appointments, or every row when clientID is empty.
func (r *PostgresRepository) Clear(ctx context.Context, clientID string) (int64, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if clientID == "" {
		tag, err = r.pool.Exec(ctx, `DELETE FROM appointments`)
	} else {
		tag, err = r.pool.Exec(ctx, `DELETE FROM appointments WHERE client_id = $1`, clientID)
	}
	if err != nil {
		return 0, fmt.Errorf("appointments: clear: %w", err)
	}
	return tag.RowsAffected(), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row scanner) (*Appointment, error) {
	var (
		appt   Appointment
		at     time.Time
		status string
	)
	if err := row.Scan(
		&appt.ID,
		&appt.ClientID,
		&at,
		&appt.Purpose,
		&status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	appt.DateTime = localWallClock(at)
	appt.Status = Status(status)
	return &appt, nil
}

// localWallClock reinterprets a TIMESTAMP value, which pgx returns as UTC,
// as server-local wall clock time.
func localWallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
