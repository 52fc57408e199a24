// Package memory keeps every repository in process memory. It backs the
// service tests and the STORAGE_DRIVER=memory mode.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"detention-service/internal/model"
)

type txKey struct{}

type state struct {
	events      map[uuid.UUID]model.DetentionEvent
	eventLogs   []model.EventStatusLog
	invoices    map[uuid.UUID]model.Invoice
	invoiceLogs []model.InvoiceStatusLog
	deliveries  []model.InvoiceDelivery
	invitations map[uuid.UUID]model.FleetInvitation
	fleets      map[uuid.UUID]model.Fleet
	members     map[uuid.UUID]model.FleetMember
	contacts    map[uuid.UUID]model.SavedContact
}

func newState() state {
	return state{
		events:      make(map[uuid.UUID]model.DetentionEvent),
		invoices:    make(map[uuid.UUID]model.Invoice),
		invitations: make(map[uuid.UUID]model.FleetInvitation),
		fleets:      make(map[uuid.UUID]model.Fleet),
		members:     make(map[uuid.UUID]model.FleetMember),
		contacts:    make(map[uuid.UUID]model.SavedContact),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = copyInvoice(v)
	}
	for k, v := range s.invitations {
		c.invitations[k] = v
	}
	for k, v := range s.fleets {
		c.fleets[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.contacts {
		c.contacts[k] = v
	}
	c.eventLogs = append([]model.EventStatusLog(nil), s.eventLogs...)
	c.invoiceLogs = append([]model.InvoiceStatusLog(nil), s.invoiceLogs...)
	c.deliveries = append([]model.InvoiceDelivery(nil), s.deliveries...)
	return c
}

// Store serialises all access behind one mutex. WithinTx holds the mutex for
// the whole callback and restores a snapshot when the callback fails.
type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) Events() *EventRepository {
	return &EventRepository{s: s}
}

func (s *Store) Invoices() *InvoiceRepository {
	return &InvoiceRepository{s: s}
}

func (s *Store) Invitations() *InvitationRepository {
	return &InvitationRepository{s: s}
}

func (s *Store) Fleets() *FleetRepository {
	return &FleetRepository{s: s}
}

func (s *Store) Members() *MemberRepository {
	return &MemberRepository{s: s}
}

func (s *Store) Contacts() *ContactRepository {
	return &ContactRepository{s: s}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// lock acquires the store mutex unless ctx already runs inside this store's
// transaction.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func copyInvoice(inv model.Invoice) model.Invoice {
	inv.LineItems = append([]model.InvoiceLineItem(nil), inv.LineItems...)
	return inv
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit <= 0 {
		limit = 200
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
