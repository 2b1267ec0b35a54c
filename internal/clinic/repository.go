package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/medislot/internal/booking"
)

// DB is satisfied by *pgxpool.Pool and pgxmock pools.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const pgForeignKeyViolation = "23503"

const clinicColumns = `id, name, address, phone, created_at`

const doctorColumns = `d.id, d.clinic_id, d.name, d.specialization, d.email, d.phone, d.created_at`

const slotColumns = `id, doctor_id, start_time, end_time, status, created_at`

// Repository persists the clinic directory: clinics, doctors and their slots.
type Repository struct {
	db  DB
	now func() time.Time
}

func NewRepository(db DB) *Repository {
	if db == nil {
		panic("clinic: pgx pool required")
	}
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) ListClinics(ctx context.Context) ([]Clinic, error) {
	rows, err := r.db.Query(ctx, `SELECT `+clinicColumns+` FROM clinics ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("clinic: list clinics: %w", err)
	}
	defer rows.Close()

	out := []Clinic{}
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, fmt.Errorf("clinic: scan clinic: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *Repository) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	c, err := scanClinic(r.db.QueryRow(ctx, `SELECT `+clinicColumns+` FROM clinics WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClinicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: get clinic: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateClinic(ctx context.Context, in ClinicInput) (*Clinic, error) {
	query := `INSERT INTO clinics (name, address, phone) VALUES ($1, $2, $3) RETURNING ` + clinicColumns
	c, err := scanClinic(r.db.QueryRow(ctx, query, in.Name, in.Address, in.Phone))
	if err != nil {
		return nil, fmt.Errorf("clinic: create clinic: %w", err)
	}
	return c, nil
}

func (r *Repository) UpdateClinic(ctx context.Context, id uuid.UUID, in ClinicInput) (*Clinic, error) {
	query := `UPDATE clinics SET name = $2, address = $3, phone = $4 WHERE id = $1 RETURNING ` + clinicColumns
	c, err := scanClinic(r.db.QueryRow(ctx, query, id, in.Name, in.Address, in.Phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClinicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: update clinic: %w", err)
	}
	return c, nil
}

// DeleteClinic removes the clinic; doctors, slots and appointments cascade.
func (r *Repository) DeleteClinic(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM clinics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clinic: delete clinic: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrClinicNotFound
	}
	return nil
}

func (r *Repository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	query := `
		SELECT ` + doctorColumns + `, c.name
		FROM doctors d
		JOIN clinics c ON d.clinic_id = c.id
		ORDER BY d.name
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("clinic: list doctors: %w", err)
	}
	defer rows.Close()

	out := []Doctor{}
	for rows.Next() {
		var d Doctor
		var phone *string
		if err := rows.Scan(&d.ID, &d.ClinicID, &d.Name, &d.Specialization, &d.Email, &phone, &d.CreatedAt, &d.ClinicName); err != nil {
			return nil, fmt.Errorf("clinic: scan doctor: %w", err)
		}
		d.Phone = deref(phone)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	query := `
		SELECT ` + doctorColumns + `, c.name, c.address, c.phone
		FROM doctors d
		JOIN clinics c ON d.clinic_id = c.id
		WHERE d.id = $1
	`
	var d Doctor
	var phone *string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.ClinicID, &d.Name, &d.Specialization, &d.Email, &phone, &d.CreatedAt,
		&d.ClinicName, &d.ClinicAddress, &d.ClinicPhone,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: get doctor: %w", err)
	}
	d.Phone = deref(phone)
	return &d, nil
}

func (r *Repository) CreateDoctor(ctx context.Context, in DoctorInput) (*Doctor, error) {
	query := `
		INSERT INTO doctors AS d (clinic_id, name, specialization, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + doctorColumns
	d, err := scanDoctor(r.db.QueryRow(ctx, query, in.ClinicID, in.Name, in.Specialization, in.Email, nullable(in.Phone)))
	if isForeignKeyViolation(err) {
		return nil, ErrClinicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: create doctor: %w", err)
	}
	return d, nil
}

func (r *Repository) UpdateDoctor(ctx context.Context, id uuid.UUID, in DoctorInput) (*Doctor, error) {
	query := `
		UPDATE doctors AS d
		SET clinic_id = $2, name = $3, specialization = $4, email = $5, phone = $6
		WHERE d.id = $1
		RETURNING ` + doctorColumns
	d, err := scanDoctor(r.db.QueryRow(ctx, query, id, in.ClinicID, in.Name, in.Specialization, in.Email, nullable(in.Phone)))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrDoctorNotFound
	case isForeignKeyViolation(err):
		return nil, ErrClinicNotFound
	case err != nil:
		return nil, fmt.Errorf("clinic: update doctor: %w", err)
	}
	return d, nil
}

func (r *Repository) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clinic: delete doctor: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

// ListAvailableSlots returns the doctor's future AVAILABLE slots, earliest first.
func (r *Repository) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID) ([]booking.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE doctor_id = $1 AND status = 'AVAILABLE' AND start_time > $2
		ORDER BY start_time ASC
	`
	return r.querySlots(ctx, query, doctorID, r.now())
}

// ListSlots returns every slot of the doctor regardless of status.
func (r *Repository) ListSlots(ctx context.Context, doctorID uuid.UUID) ([]booking.Slot, error) {
	return r.querySlots(ctx, `SELECT `+slotColumns+` FROM slots WHERE doctor_id = $1 ORDER BY start_time ASC`, doctorID)
}

func (r *Repository) CreateSlot(ctx context.Context, in SlotInput) (*booking.Slot, error) {
	query := `
		INSERT INTO slots (doctor_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + slotColumns
	s, err := scanSlot(r.db.QueryRow(ctx, query, in.DoctorID, in.StartTime, in.EndTime, string(booking.SlotAvailable)))
	if isForeignKeyViolation(err) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: create slot: %w", err)
	}
	return s, nil
}

// UpdateSlot moves the slot window. Status is owned by the booking flow.
func (r *Repository) UpdateSlot(ctx context.Context, id uuid.UUID, in SlotInput) (*booking.Slot, error) {
	query := `UPDATE slots SET start_time = $2, end_time = $3 WHERE id = $1 RETURNING ` + slotColumns
	s, err := scanSlot(r.db.QueryRow(ctx, query, id, in.StartTime, in.EndTime))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: update slot: %w", err)
	}
	return s, nil
}

func (r *Repository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clinic: delete slot: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *Repository) querySlots(ctx context.Context, query string, args ...any) ([]booking.Slot, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("clinic: list slots: %w", err)
	}
	defer rows.Close()

	out := []booking.Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("clinic: scan slot: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	if err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var phone *string
	if err := row.Scan(&d.ID, &d.ClinicID, &d.Name, &d.Specialization, &d.Email, &phone, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Phone = deref(phone)
	return &d, nil
}

func scanSlot(row pgx.Row) (*booking.Slot, error) {
	var s booking.Slot
	var status string
	if err := row.Scan(&s.ID, &s.DoctorID, &s.StartTime, &s.EndTime, &status, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Status = booking.SlotStatus(status)
	return &s, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
