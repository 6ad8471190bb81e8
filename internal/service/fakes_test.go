package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tagdesk/tagdesk/internal/activity"
	"github.com/tagdesk/tagdesk/internal/cache"
	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/repository"
)

// memStore is an in-memory stand-in for the repository.
type memStore struct {
	mu          sync.Mutex
	users       map[string]*model.User
	allocations map[string]*model.AllocationRecord // by serial
	txns        []model.Transaction
	passwords   []model.AccessPassword

	listCalls   map[string]int
	failCreate  map[string]error // serial -> error
	failDelete  map[string]error
	deleteCalls int
}

func newMemStore(users ...*model.User) *memStore {
	s := &memStore{
		users:       make(map[string]*model.User),
		allocations: make(map[string]*model.AllocationRecord),
		listCalls:   make(map[string]int),
		failCreate:  make(map[string]error),
		failDelete:  make(map[string]error),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memStore) ListUsers(context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls[model.EntityUsers]++
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) ListAllocations(context.Context) ([]model.AllocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls[model.EntityAllocations]++
	out := make([]model.AllocationRecord, 0, len(s.allocations))
	for _, a := range s.allocations {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out, nil
}

func (s *memStore) ListTransactions(context.Context) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls[model.EntityTransactions]++
	return append([]model.Transaction(nil), s.txns...), nil
}

func (s *memStore) ListAccessPasswords(context.Context) ([]model.AccessPassword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls[model.EntityAccessPasswords]++
	return append([]model.AccessPassword(nil), s.passwords...), nil
}

func (s *memStore) GetUsersByBCIDs(_ context.Context, bcIDs []string) (map[string]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*model.User)
	for _, u := range s.users {
		for _, id := range bcIDs {
			if u.BCID == id {
				out[id] = u
			}
		}
	}
	return out, nil
}

func (s *memStore) CreateAllocation(_ context.Context, rec *model.AllocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCreate[rec.SerialNumber]; err != nil {
		return err
	}
	if _, ok := s.allocations[rec.SerialNumber]; ok {
		return repository.ErrSerialExists
	}
	if _, ok := s.users[rec.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *rec
	s.allocations[rec.SerialNumber] = &cp
	return nil
}

func (s *memStore) GetAllocationsBySerials(_ context.Context, serials []string) (map[string]*model.AllocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*model.AllocationRecord)
	for _, serial := range serials {
		if rec, ok := s.allocations[serial]; ok {
			cp := *rec
			out[serial] = &cp
		}
	}
	return out, nil
}

func (s *memStore) DeleteAllocationBySerial(_ context.Context, serial string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	if err := s.failDelete[serial]; err != nil {
		return err
	}
	if _, ok := s.allocations[serial]; !ok {
		return repository.ErrAllocationNotFound
	}
	delete(s.allocations, serial)
	return nil
}

func (s *memStore) UpdateAllocationStatus(_ context.Context, serial string, status model.AllocationStatus) (*model.AllocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.allocations[serial]
	if !ok {
		return nil, repository.ErrAllocationNotFound
	}
	rec.Status = status
	cp := *rec
	return &cp, nil
}

func (s *memStore) TopUp(_ context.Context, txn *model.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[txn.UserID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	u.WalletBalance += txn.Amount
	s.txns = append(s.txns, *txn)
	return u.WalletBalance, nil
}

func (s *memStore) CreateAccessPassword(_ context.Context, p *model.AccessPassword) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords = append(s.passwords, *p)
	return nil
}

func (s *memStore) DeactivateAccessPassword(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.passwords {
		if s.passwords[i].ID == id && s.passwords[i].IsActive {
			s.passwords[i].IsActive = false
			return nil
		}
	}
	return repository.ErrAccessPasswordNotFound
}

func (s *memStore) lists(entity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls[entity]
}

var errBoom = errors.New("boom")

// eventLog captures recorded activity.
type eventLog struct {
	mu     sync.Mutex
	events []activity.Event
}

func (l *eventLog) Record(_ context.Context, e activity.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Action)
	}
	return out
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newTestCollections(store *memStore, clock *fixedClock) *Collections {
	return NewCollections(store, cache.Options{
		TTL:    cache.DefaultRecordTTL,
		Mirror: cache.NewMemoryMirror(),
		Clock:  clock.Now,
	})
}

func testUsers() (*model.User, *model.User) {
	return &model.User{ID: "u1", Name: "Asha Rao", Email: "asha@example.com", Phone: "9800000001", BCID: "BC001", Role: model.RoleAgent},
		&model.User{ID: "u2", Name: "Ravi Kumar", Email: "ravi@example.com", Phone: "9800000002", BCID: "BC002", Role: model.RoleAdmin}
}
