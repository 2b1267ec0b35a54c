package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/medislot/internal/events"
	"github.com/wolfman30/medislot/internal/triage"
)

// PgxPool is the subset of pgxpool.Pool used by PostgresStore.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const pgLockNotAvailable = "55P03"

const slotColumns = `id, doctor_id, start_time, end_time, status, created_at`

const appointmentColumns = `id, patient_id, doctor_id, slot_id, symptoms, triage_level, status, created_at`

// PostgresStore implements Store and Reader on Postgres row locks.
type PostgresStore struct {
	pool        PgxPool
	lockTimeout time.Duration
}

// NewPostgresStore returns a store whose transactions wait at most lockTimeout
// for a row lock. Zero leaves the server default in place.
func NewPostgresStore(pool PgxPool, lockTimeout time.Duration) *PostgresStore {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PostgresStore{pool: pool, lockTimeout: lockTimeout}
}

func (s *PostgresStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: begin tx: %w", err)
	}
	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("booking: set lock timeout: %w", err)
		}
	}
	return &pgUnit{tx: tx}, nil
}

func (s *PostgresStore) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, after time.Time, limit int) ([]Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE doctor_id = $1 AND status = 'AVAILABLE' AND start_time > $2
		ORDER BY start_time ASC
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, doctorID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("booking: list available slots: %w", err)
	}
	defer rows.Close()

	slots := make([]Slot, 0, limit)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan slot: %w", err)
		}
		slots = append(slots, *slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: list available slots: %w", err)
	}
	return slots, nil
}

const viewQuery = `
	SELECT a.id, a.patient_id, a.doctor_id, a.slot_id, a.symptoms, a.triage_level, a.status, a.created_at,
	       p.name, d.name, c.name, s.start_time, s.end_time
	FROM appointments a
	JOIN patients p ON a.patient_id = p.id
	JOIN doctors d ON a.doctor_id = d.id
	JOIN clinics c ON d.clinic_id = c.id
	JOIN slots s ON a.slot_id = s.id
`

func (s *PostgresStore) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentView, error) {
	view, err := scanView(s.pool.QueryRow(ctx, viewQuery+` WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: get appointment: %w", err)
	}
	return view, nil
}

func (s *PostgresStore) ListAppointmentsByEmail(ctx context.Context, email string) ([]AppointmentView, error) {
	rows, err := s.pool.Query(ctx, viewQuery+` WHERE p.email = $1 ORDER BY s.start_time DESC`, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("booking: list appointments: %w", err)
	}
	defer rows.Close()

	var out []AppointmentView
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan appointment: %w", err)
		}
		out = append(out, *view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: list appointments: %w", err)
	}
	return out, nil
}

type pgUnit struct {
	tx   pgx.Tx
	done bool
}

func (u *pgUnit) LockSlot(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1 FOR UPDATE`
	slot, err := scanSlot(u.tx.QueryRow(ctx, query, slotID))
	if err != nil {
		return nil, classifyLockErr(err, ErrSlotNotFound, "lock slot")
	}
	return slot, nil
}

func (u *pgUnit) UpsertPatient(ctx context.Context, in PatientInput) (*Patient, error) {
	query := `
		INSERT INTO patients (name, email, phone)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, email, phone, created_at
	`
	var phone *string
	if in.Phone != "" {
		phone = &in.Phone
	}
	var p Patient
	var storedPhone *string
	err := u.tx.QueryRow(ctx, query, in.Name, NormalizeEmail(in.Email), phone).
		Scan(&p.ID, &p.Name, &p.Email, &storedPhone, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("booking: upsert patient: %w", err)
	}
	if storedPhone != nil {
		p.Phone = *storedPhone
	}
	return &p, nil
}

func (u *pgUnit) InsertAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	query := `
		INSERT INTO appointments (patient_id, doctor_id, slot_id, symptoms, triage_level, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := u.tx.QueryRow(ctx, query,
		appt.PatientID, appt.DoctorID, appt.SlotID, appt.Symptoms, string(appt.TriageLevel), string(appt.Status),
	).Scan(&appt.ID, &appt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("booking: insert appointment: %w", err)
	}
	return &appt, nil
}

func (u *pgUnit) SetSlotStatus(ctx context.Context, slotID uuid.UUID, status SlotStatus) error {
	ct, err := u.tx.Exec(ctx, `UPDATE slots SET status = $2 WHERE id = $1`, slotID, string(status))
	if err != nil {
		return fmt.Errorf("booking: update slot status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (u *pgUnit) LockAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 FOR UPDATE`
	appt, err := scanAppointment(u.tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classifyLockErr(err, ErrAppointmentNotFound, "lock appointment")
	}
	return appt, nil
}

func (u *pgUnit) SetAppointmentStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus) error {
	ct, err := u.tx.Exec(ctx, `UPDATE appointments SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("booking: update appointment status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (u *pgUnit) AppendEvent(ctx context.Context, aggregate string, evt events.Event) error {
	_, err := events.Append(ctx, u.tx, aggregate, evt)
	return err
}

func (u *pgUnit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("booking: commit: %w", err)
	}
	return nil
}

func (u *pgUnit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("booking: rollback: %w", err)
	}
	return nil
}

func classifyLockErr(err, notFound error, step string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return ErrLockTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrLockTimeout
	}
	return fmt.Errorf("booking: %s: %w", step, err)
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var status string
	if err := row.Scan(&s.ID, &s.DoctorID, &s.StartTime, &s.EndTime, &status, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Status = SlotStatus(status)
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var level, status string
	if err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.SlotID, &a.Symptoms, &level, &status, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.TriageLevel = triage.Level(level)
	a.Status = AppointmentStatus(status)
	return &a, nil
}

func scanView(row pgx.Row) (*AppointmentView, error) {
	var v AppointmentView
	var level, status string
	err := row.Scan(
		&v.ID, &v.PatientID, &v.DoctorID, &v.SlotID, &v.Symptoms, &level, &status, &v.CreatedAt,
		&v.PatientName, &v.DoctorName, &v.ClinicName, &v.StartTime, &v.EndTime,
	)
	if err != nil {
		return nil, err
	}
	v.TriageLevel = triage.Level(level)
	v.Status = AppointmentStatus(status)
	return &v, nil
}
