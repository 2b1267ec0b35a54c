package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medislot/pkg/logging"
)

func TestAppendWritesEnvelope(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	evt := AppointmentCancelledV1{AppointmentID: "a-1", SlotID: "s-1", CancelledAt: time.Now().UTC()}
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "appointment:a-1", TypeAppointmentCancelled, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := Append(context.Background(), mock, "appointment:a-1", evt)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = Append(context.Background(), mock, "  ", AppointmentCancelledV1{})
	assert.ErrorIs(t, err, errMissingAggregate)

	_, err = Append(context.Background(), mock, "appointment:x", nil)
	assert.Error(t, err)
}

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewOutboxStore(mock)

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "aggregate", "type", "payload", "created_at"}).
		AddRow(id, "appointment:a-1", TypeAppointmentConfirmed, []byte(`{"appointment_id":"a-1"}`), now)
	mock.ExpectQuery("SELECT id, aggregate").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.JSONEq(t, `{"appointment_id":"a-1"}`, string(entries[0].Payload))

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakePending struct {
	entries   []OutboxEntry
	delivered []uuid.UUID
}

func (f *fakePending) FetchPending(context.Context, int32) ([]OutboxEntry, error) {
	return f.entries, nil
}

func (f *fakePending) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	f.delivered = append(f.delivered, id)
	return true, nil
}

type flakyHandler struct {
	fail map[uuid.UUID]bool
}

func (h flakyHandler) Handle(_ context.Context, entry OutboxEntry) error {
	if h.fail[entry.ID] {
		return errors.New("transport down")
	}
	return nil
}

func TestDelivererSkipsFailedEntries(t *testing.T) {
	good, bad := uuid.New(), uuid.New()
	store := &fakePending{entries: []OutboxEntry{{ID: bad, Type: "x"}, {ID: good, Type: "y"}}}
	d := &Deliverer{store: store, handler: flakyHandler{fail: map[uuid.UUID]bool{bad: true}}, logger: logging.Default(), batchSize: 5}

	assert.Equal(t, 1, d.drain(context.Background()))
	assert.Equal(t, []uuid.UUID{good}, store.delivered)
}

func TestDelivererStartWithoutStoreReturns(t *testing.T) {
	d := NewDeliverer(nil, nil, nil).WithInterval(time.Millisecond).WithBatchSize(-1)
	done := make(chan struct{})
	go func() {
		d.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return immediately without a store")
	}
	assert.Equal(t, int32(25), d.batchSize)
}
