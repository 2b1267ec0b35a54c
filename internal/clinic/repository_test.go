package clinic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medislot/internal/booking"
)

var (
	testNow   = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	clinicRow = []string{"id", "name", "address", "phone", "created_at"}
	doctorRow = []string{"id", "clinic_id", "name", "specialization", "email", "phone", "created_at"}
	slotRow   = []string{"id", "doctor_id", "start_time", "end_time", "status", "created_at"}
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	repo := NewRepository(mock)
	repo.now = func() time.Time { return testNow }
	return mock, repo
}

func TestRepositoryClinicCRUD(t *testing.T) {
	mock, repo := newMockRepo(t)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO clinics").
		WithArgs("Downtown", "1 Main St", "555-0001").
		WillReturnRows(pgxmock.NewRows(clinicRow).AddRow(id, "Downtown", "1 Main St", "555-0001", testNow))
	created, err := repo.CreateClinic(ctx, ClinicInput{Name: "Downtown", Address: "1 Main St", Phone: "555-0001"})
	require.NoError(t, err)
	assert.Equal(t, id, created.ID)

	mock.ExpectQuery("FROM clinics ORDER BY created_at DESC").
		WillReturnRows(pgxmock.NewRows(clinicRow).AddRow(id, "Downtown", "1 Main St", "555-0001", testNow))
	clinics, err := repo.ListClinics(ctx)
	require.NoError(t, err)
	assert.Len(t, clinics, 1)

	mock.ExpectQuery("UPDATE clinics SET").
		WithArgs(id, "Uptown", "2 Main St", "555-0002").
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.UpdateClinic(ctx, id, ClinicInput{Name: "Uptown", Address: "2 Main St", Phone: "555-0002"})
	assert.ErrorIs(t, err, ErrClinicNotFound)

	mock.ExpectExec("DELETE FROM clinics").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.DeleteClinic(ctx, id), ErrClinicNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetClinicNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	mock.ExpectQuery("FROM clinics WHERE id = \\$1").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetClinic(context.Background(), id)
	assert.ErrorIs(t, err, ErrClinicNotFound)
}

func TestRepositoryDoctors(t *testing.T) {
	mock, repo := newMockRepo(t)
	ctx := context.Background()
	clinicID, doctorID := uuid.New(), uuid.New()

	mock.ExpectQuery("INSERT INTO doctors").
		WithArgs(clinicID, "Dr. Grey", "Cardiology", "grey@example.com", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	_, err := repo.CreateDoctor(ctx, DoctorInput{ClinicID: clinicID, Name: "Dr. Grey", Specialization: "Cardiology", Email: "grey@example.com"})
	assert.ErrorIs(t, err, ErrClinicNotFound)

	phone := "555-1234"
	mock.ExpectQuery("JOIN clinics c ON d.clinic_id = c.id WHERE d.id = \\$1").
		WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows(append(doctorRow, "clinic_name", "address", "clinic_phone")).
			AddRow(doctorID, clinicID, "Dr. Grey", "Cardiology", "grey@example.com", &phone, testNow, "Downtown", "1 Main St", "555-0001"))
	d, err := repo.GetDoctor(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, "Downtown", d.ClinicName)
	assert.Equal(t, "1 Main St", d.ClinicAddress)
	assert.Equal(t, "555-1234", d.Phone)

	mock.ExpectQuery("ORDER BY d.name").
		WillReturnRows(pgxmock.NewRows(append(doctorRow, "clinic_name")).
			AddRow(doctorID, clinicID, "Dr. Grey", "Cardiology", "grey@example.com", nil, testNow, "Downtown"))
	doctors, err := repo.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Empty(t, doctors[0].Phone)

	mock.ExpectExec("DELETE FROM doctors").WithArgs(doctorID).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	assert.NoError(t, repo.DeleteDoctor(ctx, doctorID))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySlots(t *testing.T) {
	mock, repo := newMockRepo(t)
	ctx := context.Background()
	doctorID, slotID := uuid.New(), uuid.New()
	start := testNow.Add(time.Hour)
	end := start.Add(30 * time.Minute)

	mock.ExpectQuery("INSERT INTO slots").
		WithArgs(doctorID, start, end, "AVAILABLE").
		WillReturnRows(pgxmock.NewRows(slotRow).AddRow(slotID, doctorID, start, end, "AVAILABLE", testNow))
	slot, err := repo.CreateSlot(ctx, SlotInput{DoctorID: doctorID, StartTime: start, EndTime: end})
	require.NoError(t, err)
	assert.Equal(t, booking.SlotAvailable, slot.Status)

	mock.ExpectQuery("status = 'AVAILABLE' AND start_time > \\$2").
		WithArgs(doctorID, testNow).
		WillReturnRows(pgxmock.NewRows(slotRow).AddRow(slotID, doctorID, start, end, "AVAILABLE", testNow))
	available, err := repo.ListAvailableSlots(ctx, doctorID)
	require.NoError(t, err)
	assert.Len(t, available, 1)

	mock.ExpectQuery("FROM slots WHERE doctor_id = \\$1 ORDER BY start_time ASC").
		WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows(slotRow).
			AddRow(slotID, doctorID, start, end, "BOOKED", testNow))
	all, err := repo.ListSlots(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, booking.SlotBooked, all[0].Status)

	mock.ExpectQuery("UPDATE slots SET start_time").
		WithArgs(slotID, start, end).
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.UpdateSlot(ctx, slotID, SlotInput{StartTime: start, EndTime: end})
	assert.ErrorIs(t, err, ErrSlotNotFound)

	mock.ExpectExec("DELETE FROM slots").WithArgs(slotID).WillReturnError(errors.New("conn closed"))
	assert.Error(t, repo.DeleteSlot(ctx, slotID))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInputValidation(t *testing.T) {
	assert.ErrorIs(t, (&ClinicInput{Name: " "}).Validate(), ErrInvalidInput)

	in := DoctorInput{ClinicID: uuid.New(), Name: " Dr. Grey ", Specialization: "ENT", Email: " Grey@Example.com "}
	require.NoError(t, in.Validate())
	assert.Equal(t, "grey@example.com", in.Email)
	assert.Equal(t, "Dr. Grey", in.Name)

	assert.ErrorIs(t, SlotInput{DoctorID: uuid.New(), StartTime: testNow, EndTime: testNow}.Validate(), ErrInvalidSlotWindow)
	assert.ErrorIs(t, SlotInput{StartTime: testNow, EndTime: testNow.Add(time.Hour)}.Validate(), ErrInvalidInput)
	assert.NoError(t, SlotInput{StartTime: testNow, EndTime: testNow.Add(time.Hour)}.ValidateWindow())
}
