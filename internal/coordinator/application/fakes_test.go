package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/domain"
)

// The fakes mirror the store's atomicity guarantees: every conditional
// transition and every first-writer insert runs under one lock, so the
// concurrency scenarios exercise the same races the real store resolves.

type outboxEntry struct {
	orderID   uuid.UUID
	eventType string
	payload   []byte
}

type memStore struct {
	mu         sync.Mutex
	orders     map[uuid.UUID]domain.PurchaseOrder
	components map[string]domain.ComponentRecord
	outbox     []outboxEntry

	completeCalls int
	cancelCalls   int
	injectErr     []error
}

func newMemStore() *memStore {
	return &memStore{
		orders:     make(map[uuid.UUID]domain.PurchaseOrder),
		components: make(map[string]domain.ComponentRecord),
	}
}

func key(orderID uuid.UUID, c domain.Component) string {
	return orderID.String() + "/" + string(c)
}

func (s *memStore) nextInjected() error {
	if len(s.injectErr) == 0 {
		return nil
	}
	err := s.injectErr[0]
	s.injectErr = s.injectErr[1:]
	return err
}

func (s *memStore) CreateWithOutbox(_ context.Context, o domain.PurchaseOrder, eventType string, payload []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	s.outbox = append(s.outbox, outboxEntry{orderID: o.ID, eventType: eventType, payload: payload})
	return nil
}

func (s *memStore) CompleteWhenComponentsSucceeded(_ context.Context, orderID uuid.UUID, eventType string, payload []byte, _ string) (domain.PurchaseOrder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeCalls++
	if err := s.nextInjected(); err != nil {
		return domain.PurchaseOrder{}, false, err
	}
	o, found := s.orders[orderID]
	if !found || o.Status != domain.StatusPending {
		return domain.PurchaseOrder{}, false, nil
	}
	pay, payOK := s.components[key(orderID, domain.ComponentPayment)]
	inv, invOK := s.components[key(orderID, domain.ComponentInventory)]
	if !payOK || !invOK || pay.Outcome != domain.OutcomeSuccess || inv.Outcome != domain.OutcomeSuccess {
		return domain.PurchaseOrder{}, false, nil
	}
	o.Status = domain.StatusCompleted
	o.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = o
	s.outbox = append(s.outbox, outboxEntry{orderID: orderID, eventType: eventType, payload: payload})
	return o, true, nil
}

func (s *memStore) CancelWhenPending(_ context.Context, orderID uuid.UUID, eventType string, payload []byte, _ string) (domain.PurchaseOrder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelCalls++
	if err := s.nextInjected(); err != nil {
		return domain.PurchaseOrder{}, false, err
	}
	o, found := s.orders[orderID]
	if !found || o.Status != domain.StatusPending {
		return domain.PurchaseOrder{}, false, nil
	}
	o.Status = domain.StatusCancelled
	o.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = o
	s.outbox = append(s.outbox, outboxEntry{orderID: orderID, eventType: eventType, payload: payload})
	return o, true, nil
}

func (s *memStore) SetDeliveryDate(_ context.Context, orderID uuid.UUID, deliveryDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, found := s.orders[orderID]
	if !found || o.Status != domain.StatusCompleted {
		return nil
	}
	o.DeliveryDate = &deliveryDate
	s.orders[orderID] = o
	return nil
}

func (s *memStore) Get(_ context.Context, orderID uuid.UUID) (domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, found := s.orders[orderID]
	if !found {
		return domain.PurchaseOrder{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *memStore) List(_ context.Context) ([]domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PurchaseOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out, nil
}

func (s *memStore) Insert(_ context.Context, rec domain.ComponentRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(rec.OrderID, rec.Component)
	if _, exists := s.components[k]; exists {
		return false, nil
	}
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = rec.CreatedAt
	s.components[k] = rec
	return true, nil
}

func (s *memStore) Exists(_ context.Context, orderID uuid.UUID, c domain.Component) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.components[key(orderID, c)]
	return exists, nil
}

func (s *memStore) SetRollback(_ context.Context, orderID uuid.UUID, c domain.Component, state domain.RollbackState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(orderID, c)
	rec, exists := s.components[k]
	if !exists {
		return nil
	}
	rec.Rollback = state
	rec.UpdatedAt = time.Now().UTC()
	s.components[k] = rec
	return nil
}

func (s *memStore) Find(_ context.Context, orderID uuid.UUID, c domain.Component) (domain.ComponentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, exists := s.components[key(orderID, c)]
	if !exists {
		return domain.ComponentRecord{OrderID: orderID, Component: c}, nil
	}
	return rec, nil
}

func (s *memStore) eventsOfType(eventType string) []outboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outboxEntry
	for _, e := range s.outbox {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) status(orderID uuid.UUID) domain.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[orderID].Status
}
