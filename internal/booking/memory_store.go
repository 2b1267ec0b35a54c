package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medislot/internal/events"
)

// Operation names accepted by MemoryStore.FailOn.
const (
	OpBegin             = "Begin"
	OpUpsertPatient     = "UpsertPatient"
	OpInsertAppointment = "InsertAppointment"
	OpSetSlotStatus     = "SetSlotStatus"
	OpAppendEvent       = "AppendEvent"
	OpCommit            = "Commit"
)

// MemoryStore is an in-process Store with per-row locks and staged writes
// that become visible only on Commit.
type MemoryStore struct {
	mu              sync.Mutex
	slots           map[uuid.UUID]Slot
	patients        map[uuid.UUID]Patient
	patientsByEmail map[string]uuid.UUID
	appointments    map[uuid.UUID]Appointment
	events          []events.Event
	faults          map[string]error

	locks       *lockTable
	lockTimeout time.Duration
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots:           make(map[uuid.UUID]Slot),
		patients:        make(map[uuid.UUID]Patient),
		patientsByEmail: make(map[string]uuid.UUID),
		appointments:    make(map[uuid.UUID]Appointment),
		faults:          make(map[string]error),
		locks:           newLockTable(),
		now:             time.Now,
	}
}

// WithLockTimeout bounds how long a unit of work waits for a held row lock.
func (s *MemoryStore) WithLockTimeout(d time.Duration) *MemoryStore {
	s.lockTimeout = d
	return s
}

// WithClock overrides the clock used for created_at stamps.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	if now != nil {
		s.now = now
	}
	return s
}

// FailOn makes every later call of op return err. A nil err clears the fault.
func (s *MemoryStore) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *MemoryStore) fault(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults[op]
}

// AddSlot seeds a slot. A nil ID is replaced and an empty status defaults to AVAILABLE.
func (s *MemoryStore) AddSlot(slot Slot) Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	if slot.Status == "" {
		slot.Status = SlotAvailable
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = s.now()
	}
	s.slots[slot.ID] = slot
	return slot
}

func (s *MemoryStore) Slot(id uuid.UUID) (Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	return slot, ok
}

func (s *MemoryStore) Appointment(id uuid.UUID) (Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appointments[id]
	return appt, ok
}

// Appointments returns every stored appointment ordered by creation.
func (s *MemoryStore) Appointments() []Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) PatientByEmail(email string) (Patient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.patientsByEmail[NormalizeEmail(email)]
	if !ok {
		return Patient{}, false
	}
	return s.patients[id], true
}

func (s *MemoryStore) PatientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patients)
}

// Events returns the committed outbox events.
func (s *MemoryStore) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

func (s *MemoryStore) Begin(context.Context) (UnitOfWork, error) {
	if err := s.fault(OpBegin); err != nil {
		return nil, err
	}
	return &memUnit{
		store:      s,
		slotWrites: make(map[uuid.UUID]SlotStatus),
		apptWrites: make(map[uuid.UUID]AppointmentStatus),
	}, nil
}

func (s *MemoryStore) ListAvailableSlots(_ context.Context, doctorID uuid.UUID, after time.Time, limit int) ([]Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Slot
	for _, slot := range s.slots {
		if slot.DoctorID == doctorID && slot.Status == SlotAvailable && slot.StartTime.After(after) {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memUnit struct {
	store        *MemoryStore
	held         []string
	slotWrites   map[uuid.UUID]SlotStatus
	apptWrites   map[uuid.UUID]AppointmentStatus
	patients     []Patient
	appointments []Appointment
	events       []events.Event
	done         bool
}

func (u *memUnit) lock(ctx context.Context, key string) error {
	if err := u.store.locks.acquire(ctx, key, u.store.lockTimeout); err != nil {
		return err
	}
	u.held = append(u.held, key)
	return nil
}

func (u *memUnit) LockSlot(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	if err := u.lock(ctx, "slot:"+slotID.String()); err != nil {
		return nil, err
	}
	slot, ok := u.store.Slot(slotID)
	if !ok {
		return nil, ErrSlotNotFound
	}
	if status, staged := u.slotWrites[slotID]; staged {
		slot.Status = status
	}
	return &slot, nil
}

func (u *memUnit) UpsertPatient(_ context.Context, in PatientInput) (*Patient, error) {
	if err := u.store.fault(OpUpsertPatient); err != nil {
		return nil, err
	}
	email := NormalizeEmail(in.Email)
	for i := range u.patients {
		if u.patients[i].Email == email {
			u.patients[i].Name = in.Name
			p := u.patients[i]
			return &p, nil
		}
	}
	p := Patient{ID: uuid.New(), Name: in.Name, Email: email, Phone: in.Phone, CreatedAt: u.store.now()}
	if existing, ok := u.store.PatientByEmail(email); ok {
		p.ID, p.Phone, p.CreatedAt = existing.ID, existing.Phone, existing.CreatedAt
	}
	u.patients = append(u.patients, p)
	return &p, nil
}

func (u *memUnit) InsertAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	if err := u.store.fault(OpInsertAppointment); err != nil {
		return nil, err
	}
	appt.ID = uuid.New()
	appt.CreatedAt = u.store.now()
	u.appointments = append(u.appointments, appt)
	return &appt, nil
}

func (u *memUnit) SetSlotStatus(_ context.Context, slotID uuid.UUID, status SlotStatus) error {
	if err := u.store.fault(OpSetSlotStatus); err != nil {
		return err
	}
	if _, ok := u.store.Slot(slotID); !ok {
		return ErrSlotNotFound
	}
	u.slotWrites[slotID] = status
	return nil
}

func (u *memUnit) LockAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if err := u.lock(ctx, "appointment:"+id.String()); err != nil {
		return nil, err
	}
	appt, ok := u.store.Appointment(id)
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if status, staged := u.apptWrites[id]; staged {
		appt.Status = status
	}
	return &appt, nil
}

func (u *memUnit) SetAppointmentStatus(_ context.Context, id uuid.UUID, status AppointmentStatus) error {
	if _, ok := u.store.Appointment(id); !ok {
		return ErrAppointmentNotFound
	}
	u.apptWrites[id] = status
	return nil
}

func (u *memUnit) AppendEvent(_ context.Context, aggregate string, evt events.Event) error {
	if err := u.store.fault(OpAppendEvent); err != nil {
		return err
	}
	if aggregate == "" || evt == nil {
		return fmt.Errorf("booking: event and aggregate required")
	}
	u.events = append(u.events, evt)
	return nil
}

func (u *memUnit) Commit(context.Context) error {
	if u.done {
		return nil
	}
	if err := u.store.fault(OpCommit); err != nil {
		return err
	}
	s := u.store
	s.mu.Lock()
	// A concurrent first booking may have created the email since the upsert ran.
	remap := make(map[uuid.UUID]uuid.UUID)
	for _, p := range u.patients {
		if existingID, ok := s.patientsByEmail[p.Email]; ok && existingID != p.ID {
			remap[p.ID] = existingID
			existing := s.patients[existingID]
			existing.Name = p.Name
			s.patients[existingID] = existing
			continue
		}
		s.patients[p.ID] = p
		s.patientsByEmail[p.Email] = p.ID
	}
	for _, a := range u.appointments {
		if id, ok := remap[a.PatientID]; ok {
			a.PatientID = id
		}
		s.appointments[a.ID] = a
	}
	for id, status := range u.slotWrites {
		slot := s.slots[id]
		slot.Status = status
		s.slots[id] = slot
	}
	for id, status := range u.apptWrites {
		appt := s.appointments[id]
		appt.Status = status
		s.appointments[id] = appt
	}
	s.events = append(s.events, u.events...)
	s.mu.Unlock()

	u.release()
	return nil
}

func (u *memUnit) Rollback(context.Context) error {
	if u.done {
		return nil
	}
	u.release()
	return nil
}

func (u *memUnit) release() {
	u.done = true
	for i := len(u.held) - 1; i >= 0; i-- {
		u.store.locks.release(u.held[i])
	}
	u.held = nil
}

// lockTable hands out one exclusive lock per key.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]chan struct{})}
}

func (t *lockTable) get(key string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		t.locks[key] = ch
	}
	return ch
}

func (t *lockTable) acquire(ctx context.Context, key string, timeout time.Duration) error {
	ch := t.get(key)
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case ch <- struct{}{}:
		return nil
	case <-expired:
		return ErrLockTimeout
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

func (t *lockTable) release(key string) {
	select {
	case <-t.get(key):
	default:
	}
}
