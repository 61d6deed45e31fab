package adt

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/adt/internal/platform/adterr"
)

// -- Mock Repository --

type mockRepo struct {
	mu         sync.Mutex
	admissions map[uuid.UUID]*Admission
	discharges map[uuid.UUID]*Discharge
	transfers  map[uuid.UUID]*Transfer
	patients   map[uuid.UUID]bool
	wards      map[uuid.UUID]bool
	beds       map[uuid.UUID]*BedState
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		admissions: make(map[uuid.UUID]*Admission),
		discharges: make(map[uuid.UUID]*Discharge),
		transfers:  make(map[uuid.UUID]*Transfer),
		patients:   make(map[uuid.UUID]bool),
		wards:      make(map[uuid.UUID]bool),
		beds:       make(map[uuid.UUID]*BedState),
	}
}

func (m *mockRepo) addPatient() uuid.UUID {
	id := uuid.New()
	m.patients[id] = true
	return id
}

func (m *mockRepo) addWard() uuid.UUID {
	id := uuid.New()
	m.wards[id] = true
	return id
}

func (m *mockRepo) addBed(wardID uuid.UUID, number string) uuid.UUID {
	id := uuid.New()
	m.beds[id] = &BedState{ID: id, WardID: wardID, Number: number}
	return id
}

func (m *mockRepo) CreateAdmission(_ context.Context, a *Admission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.admissions[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetAdmission(_ context.Context, id uuid.UUID) (*Admission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admissions[id]
	if !ok {
		return nil, adterr.NotFoundf("admission %s", id)
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) GetAdmissionView(ctx context.Context, id uuid.UUID) (*AdmissionView, error) {
	a, err := m.GetAdmission(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &AdmissionView{Admission: *a, Active: !m.hasDischargeLocked(id)}, nil
}

func (m *mockRepo) UpdateAdmission(_ context.Context, a *Admission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.admissions[a.ID]; !ok {
		return adterr.NotFoundf("admission %s", a.ID)
	}
	cp := *a
	m.admissions[a.ID] = &cp
	return nil
}

func (m *mockRepo) MoveAdmission(_ context.Context, id uuid.UUID, wardID uuid.UUID, bedID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admissions[id]
	if !ok {
		return adterr.NotFoundf("admission %s", id)
	}
	a.WardID = wardID
	a.BedID = bedID
	return nil
}

func (m *mockRepo) ListAdmissions(_ context.Context, f AdmissionFilter) ([]*AdmissionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var views []*AdmissionView
	for id, a := range m.admissions {
		if f.WardID != uuid.Nil && a.WardID != f.WardID {
			continue
		}
		if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
			continue
		}
		if f.DateFrom != nil && a.AdmissionDate.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && a.AdmissionDate.After(*f.DateTo) {
			continue
		}
		active := !m.hasDischargeLocked(id)
		if f.ActiveOnly && !active {
			continue
		}
		views = append(views, &AdmissionView{Admission: *a, Active: active})
	}
	return views, nil
}

func (m *mockRepo) CreateDischarge(_ context.Context, d *Discharge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	cp := *d
	m.discharges[d.ID] = &cp
	return nil
}

func (m *mockRepo) hasDischargeLocked(admissionID uuid.UUID) bool {
	for _, d := range m.discharges {
		if d.AdmissionID == admissionID {
			return true
		}
	}
	return false
}

func (m *mockRepo) HasDischarge(_ context.Context, admissionID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasDischargeLocked(admissionID), nil
}

func (m *mockRepo) ListDischarges(_ context.Context) ([]*DischargeView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var views []*DischargeView
	for _, d := range m.discharges {
		views = append(views, &DischargeView{Discharge: *d})
	}
	return views, nil
}

func (m *mockRepo) CreateTransfer(_ context.Context, t *Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	cp := *t
	m.transfers[t.ID] = &cp
	return nil
}

func (m *mockRepo) ListTransfers(_ context.Context) ([]*TransferView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var views []*TransferView
	for _, t := range m.transfers {
		views = append(views, &TransferView{Transfer: *t})
	}
	return views, nil
}

func (m *mockRepo) PatientExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patients[id], nil
}

func (m *mockRepo) WardExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wards[id], nil
}

func (m *mockRepo) GetBedForUpdate(_ context.Context, id uuid.UUID) (*BedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beds[id]
	if !ok {
		return nil, adterr.NotFoundf("bed %s", id)
	}
	cp := *b
	return &cp, nil
}

func (m *mockRepo) SetBedOccupied(_ context.Context, id uuid.UUID, occupied bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beds[id]
	if !ok {
		return adterr.NotFoundf("bed %s", id)
	}
	b.IsOccupied = occupied
	return nil
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) InvalidateBedBoard(context.Context) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func newTestService(repo *mockRepo) (*Service, *countingInvalidator) {
	inv := &countingInvalidator{}
	return NewService(repo, nil, inv, zerolog.Nop()), inv
}

// serializeTx makes the service's transaction runner mutually exclusive,
// standing in for the row lock the real runner takes on the bed.
func serializeTx(s *Service) {
	var mu sync.Mutex
	inner := s.runTx
	s.runTx = func(ctx context.Context, fn func(context.Context) error) error {
		mu.Lock()
		defer mu.Unlock()
		return inner(ctx, fn)
	}
}

// -- Tests --

func TestAdmitWithBed(t *testing.T) {
	repo := newMockRepo()
	svc, inv := newTestService(repo)
	patientID := repo.addPatient()
	wardID := repo.addWard()
	bedID := repo.addBed(wardID, "12A")

	adm, err := svc.Admit(context.Background(), AdmitParams{
		PatientID: patientID, WardID: wardID, BedID: &bedID,
	})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if adm.ID == uuid.Nil {
		t.Fatal("expected admission id to be set")
	}
	if adm.AdmissionDate.IsZero() {
		t.Fatal("expected admission date to default to now")
	}
	if !repo.beds[bedID].IsOccupied {
		t.Fatal("expected bed to be occupied after admit")
	}
	if inv.calls != 1 {
		t.Fatalf("expected 1 board invalidation, got %d", inv.calls)
	}
}

func TestAdmitWithoutBed(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	patientID := repo.addPatient()
	wardID := repo.addWard()

	adm, err := svc.Admit(context.Background(), AdmitParams{PatientID: patientID, WardID: wardID})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if adm.BedID != nil {
		t.Fatal("expected no bed assignment")
	}
}

func TestAdmitValidation(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	wardID := repo.addWard()

	_, err := svc.Admit(context.Background(), AdmitParams{WardID: wardID})
	if !errors.Is(err, adterr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.Admit(context.Background(), AdmitParams{PatientID: uuid.New()})
	if !errors.Is(err, adterr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdmitUnknownPatient(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	wardID := repo.addWard()

	_, err := svc.Admit(context.Background(), AdmitParams{PatientID: uuid.New(), WardID: wardID})
	if !errors.Is(err, adterr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdmitUnknownWard(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	patientID := repo.addPatient()
	repo.addWard()

	_, err := svc.Admit(context.Background(), AdmitParams{PatientID: patientID, WardID: uuid.New()})
	if !errors.Is(err, adterr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdmitOccupiedBed(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	wardID := repo.addWard()
	bedID := repo.addBed(wardID, "3B")

	first := AdmitParams{PatientID: repo.addPatient(), WardID: wardID, BedID: &bedID}
	if _, err := svc.Admit(context.Background(), first); err != nil {
		t.Fatalf("first admit: %v", err)
	}

	second := AdmitParams{PatientID: repo.addPatient(), WardID: wardID, BedID: &bedID}
	_, err := svc.Admit(context.Background(), second)
	if !errors.Is(err, adterr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAdmitBedWrongWard(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	wardA := repo.addWard()
	wardB := repo.addWard()
	bedID := repo.addBed(wardA, "1")

	_, err := svc.Admit(context.Background(), AdmitParams{
		PatientID: repo.addPatient(), WardID: wardB, BedID: &bedID,
	})
	if !errors.Is(err, adterr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// One bed, many simultaneous admits: exactly one may win, the rest must see
// a conflict, and no admission other than the winner's may hold the bed.
func TestConcurrentAdmitsSingleBed(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	serializeTx(svc)
	wardID := repo.addWard()
	bedID := repo.addBed(wardID, "ICU-1")

	const n = 16
	patients := make([]uuid.UUID, n)
	for i := range patients {
		patients[i] = repo.addPatient()
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Admit(context.Background(), AdmitParams{
				PatientID: patients[i], WardID: wardID, BedID: &bedID,
			})
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, adterr.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winning admit, got %d", wins)
	}
	if conflicts != n-1 {
		t.Fatalf("expected %d conflicts, got %d", n-1, conflicts)
	}

	occupied := 0
	for _, a := range repo.admissions {
		if a.BedID != nil {
			occupied++
		}
	}
	if occupied != 1 {
		t.Fatalf("expected 1 admission holding the bed, got %d", occupied)
	}
}

// Regression for the admit/discharge bed number mixup: admit into a bed,
// verify the same bed shows occupied, discharge, verify it shows free.
func TestAdmitDischargeBedRoundTrip(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	wardID := repo.addWard()
	bedID := repo.addBed(wardID, "7C")

	adm, err := svc.Admit(context.Background(), AdmitParams{
		PatientID: repo.addPatient(), WardID: wardID, BedID: &bedID,
	})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if got := repo.beds[bedID]; !got.IsOccupied {
		t.Fatalf("bed %s should be occupied after admit", got.Number)
	}

	if _, err := svc.Discharge(context.Background(), DischargeParams{AdmissionID: adm.ID}); err != nil {
		t.Fatalf("Discharge: %v", err)
	}
	if got := repo.beds[bedID]; got.IsOccupied {
		t.Fatalf("bed %s should be free after discharge", got.Number)
	}
}

func TestDischargeTwiceConflicts(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	wardID := repo.addWard()

	adm, err := svc.Admit(context.Background(), AdmitParams{PatientID: repo.addPatient(), WardID: wardID})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if _, err := svc.Discharge(context.Background(), DischargeParams{AdmissionID: adm.ID}); err != nil {
		t.Fatalf("first discharge: %v", err)
	}
	_, err = svc.Discharge(context.Background(), DischargeParams{AdmissionID: adm.ID})
	if !errors.Is(err, adterr.ErrConflict) {
		t.Fatalf("expected conflict on second discharge, got %v", err)
	}
}

func TestDischargeUnknownAdmission(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)

	_, err := svc.Discharge(context.Background(), DischargeParams{AdmissionID: uuid.New()})
	if !errors.Is(err, adterr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransferMovesBeds(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	wardA := repo.addWard()
	wardB := repo.addWard()
	bedA := repo.addBed(wardA, "A1")
	bedB := repo.addBed(wardB, "B1")

	adm, err := svc.Admit(context.Background(), AdmitParams{
		PatientID: repo.addPatient(), WardID: wardA, BedID: &bedA,
	})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	tr, err := svc.Transfer(context.Background(), TransferParams{
		AdmissionID: adm.ID, ToWardID: wardB, ToBedID: &bedB,
	})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if tr.FromWardID != wardA || tr.ToWardID != wardB {
		t.Fatalf("transfer wards wrong: from %s to %s", tr.FromWardID, tr.ToWardID)
	}
	if tr.FromBedID == nil || *tr.FromBedID != bedA {
		t.Fatal("expected from_bed_id to record the old bed")
	}

	if repo.beds[bedA].IsOccupied {
		t.Fatal("old bed should be free after transfer")
	}
	if !repo.beds[bedB].IsOccupied {
		t.Fatal("new bed should be occupied after transfer")
	}

	moved, err := svc.GetAdmission(context.Background(), adm.ID)
	if err != nil {
		t.Fatalf("GetAdmission: %v", err)
	}
	if moved.WardID != wardB || moved.BedID == nil || *moved.BedID != bedB {
		t.Fatal("admission should point at the new ward and bed")
	}
}

func TestTransferToOccupiedBed(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	wardA := repo.addWard()
	wardB := repo.addWard()
	bedB := repo.addBed(wardB, "B1")

	if _, err := svc.Admit(context.Background(), AdmitParams{
		PatientID: repo.addPatient(), WardID: wardB, BedID: &bedB,
	}); err != nil {
		t.Fatalf("blocker admit: %v", err)
	}

	adm, err := svc.Admit(context.Background(), AdmitParams{PatientID: repo.addPatient(), WardID: wardA})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	_, err = svc.Transfer(context.Background(), TransferParams{
		AdmissionID: adm.ID, ToWardID: wardB, ToBedID: &bedB,
	})
	if !errors.Is(err, adterr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

// lockOrderRepo records the order in which bed rows get locked.
type lockOrderRepo struct {
	*mockRepo
	lockMu sync.Mutex
	locked []uuid.UUID
}

func (r *lockOrderRepo) GetBedForUpdate(ctx context.Context, id uuid.UUID) (*BedState, error) {
	r.lockMu.Lock()
	r.locked = append(r.locked, id)
	r.lockMu.Unlock()
	return r.mockRepo.GetBedForUpdate(ctx, id)
}

// Transfers must lock the source and destination beds in id order, whichever
// direction the move goes, so opposite-direction transfers cannot deadlock.
func TestTransferLocksBedsInIDOrder(t *testing.T) {
	for _, fromLow := range []bool{true, false} {
		base := newMockRepo()
		repo := &lockOrderRepo{mockRepo: base}
		inv := &countingInvalidator{}
		svc := NewService(repo, nil, inv, zerolog.Nop())
		wardA := base.addWard()
		wardB := base.addWard()
		bedA := base.addBed(wardA, "A1")
		bedB := base.addBed(wardB, "B1")

		from, to := bedA, bedB
		fromWard, toWard := wardA, wardB
		if fromLow == (bytes.Compare(bedA[:], bedB[:]) > 0) {
			from, to = bedB, bedA
			fromWard, toWard = wardB, wardA
		}

		adm, err := svc.Admit(context.Background(), AdmitParams{
			PatientID: base.addPatient(), WardID: fromWard, BedID: &from,
		})
		if err != nil {
			t.Fatalf("Admit: %v", err)
		}
		repo.locked = nil

		if _, err := svc.Transfer(context.Background(), TransferParams{
			AdmissionID: adm.ID, ToWardID: toWard, ToBedID: &to,
		}); err != nil {
			t.Fatalf("Transfer: %v", err)
		}

		if len(repo.locked) != 2 {
			t.Fatalf("expected 2 bed locks, got %d", len(repo.locked))
		}
		if bytes.Compare(repo.locked[0][:], repo.locked[1][:]) > 0 {
			t.Fatalf("beds locked out of id order: %s before %s", repo.locked[0], repo.locked[1])
		}
	}
}

func TestTransferDischargedAdmission(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	wardA := repo.addWard()
	wardB := repo.addWard()

	adm, err := svc.Admit(context.Background(), AdmitParams{PatientID: repo.addPatient(), WardID: wardA})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if _, err := svc.Discharge(context.Background(), DischargeParams{AdmissionID: adm.ID}); err != nil {
		t.Fatalf("Discharge: %v", err)
	}
	_, err = svc.Transfer(context.Background(), TransferParams{AdmissionID: adm.ID, ToWardID: wardB})
	if !errors.Is(err, adterr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateAdmission(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	wardID := repo.addWard()

	adm, err := svc.Admit(context.Background(), AdmitParams{PatientID: repo.addPatient(), WardID: wardID})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	reason := "observation"
	when := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateAdmission(context.Background(), adm.ID, AdmissionPatch{
		AdmissionDate: &when, Reason: &reason,
	})
	if err != nil {
		t.Fatalf("UpdateAdmission: %v", err)
	}
	if !updated.AdmissionDate.Equal(when) {
		t.Fatalf("admission date not updated: %v", updated.AdmissionDate)
	}
	if updated.Reason == nil || *updated.Reason != reason {
		t.Fatal("reason not updated")
	}
}

func TestListAdmissionsActiveOnly(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	wardID := repo.addWard()

	first, err := svc.Admit(context.Background(), AdmitParams{PatientID: repo.addPatient(), WardID: wardID})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if _, err := svc.Admit(context.Background(), AdmitParams{PatientID: repo.addPatient(), WardID: wardID}); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if _, err := svc.Discharge(context.Background(), DischargeParams{AdmissionID: first.ID}); err != nil {
		t.Fatalf("Discharge: %v", err)
	}

	active, err := svc.ListAdmissions(context.Background(), AdmissionFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListAdmissions: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active admission, got %d", len(active))
	}
	all, err := svc.ListAdmissions(context.Background(), AdmissionFilter{})
	if err != nil {
		t.Fatalf("ListAdmissions: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 admissions, got %d", len(all))
	}
}
