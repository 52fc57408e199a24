package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"detention-service/internal/billing"
	"detention-service/internal/model"
	"detention-service/internal/repository"
)

type InvoiceSettings struct {
	NumberPrefix   string
	NumberAttempts int
}

type InvoiceService struct {
	events   EventStore
	invoices InvoiceStore
	contacts ContactStore
	renderer DocumentRenderer
	mailer   Mailer

	gen      *billing.Generator
	settings InvoiceSettings
	runner   atomicRunner
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

// NewInvoiceService wires the invoice engine. tx may be nil, in which case
// multi-record writes are compensated step by step. renderer and mailer may be
// nil when delivery is not configured.
func NewInvoiceService(
	events EventStore,
	invoices InvoiceStore,
	contacts ContactStore,
	tx Transactor,
	renderer DocumentRenderer,
	mailer Mailer,
	settings InvoiceSettings,
	log zerolog.Logger,
) *InvoiceService {
	if settings.NumberAttempts <= 0 {
		settings.NumberAttempts = 1
	}
	log = log.With().Str("component", "invoice_service").Logger()
	return &InvoiceService{
		events:   events,
		invoices: invoices,
		contacts: contacts,
		renderer: renderer,
		mailer:   mailer,
		gen:      billing.NewGenerator(),
		settings: settings,
		runner:   atomicRunner{tx: tx, log: log},
		validate: validator.New(),
		log:      log,
		now:      time.Now,
	}
}

type Recipient struct {
	Email   string
	Name    string
	Company string
}

type CreateInvoiceInput struct {
	EventIDs  []uuid.UUID
	Recipient Recipient
	Notes     string
}

// Create aggregates completed events of the caller into a draft invoice and
// moves those events to invoiced in the same unit of work.
func (s *InvoiceService) Create(ctx context.Context, principal model.Principal, input CreateInvoiceInput) (*model.Invoice, error) {
	ids := uniqueIDs(input.EventIDs)
	if len(ids) == 0 {
		return nil, ErrNoEventsSelected
	}

	recipient, err := s.normalizeRecipient(input.Recipient)
	if err != nil {
		return nil, err
	}

	events, err := s.events.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]model.DetentionEvent, len(events))
	for _, e := range events {
		byID[e.ID] = e
	}

	selected := make([]model.DetentionEvent, 0, len(ids))
	for _, id := range ids {
		event, ok := byID[id]
		if !ok {
			return nil, &IneligibleEventError{EventID: id, Reason: "event not found"}
		}
		if !event.BelongsTo(principal.UserID) {
			return nil, &IneligibleEventError{EventID: id, Reason: "event belongs to another user"}
		}
		if event.Status != model.EventStatusCompleted {
			return nil, &IneligibleEventError{EventID: id, Reason: "event is " + string(event.Status)}
		}
		if event.InvoiceID != nil {
			return nil, &IneligibleEventError{EventID: id, Reason: "event is already on invoice " + event.InvoiceID.String()}
		}
		selected = append(selected, event)
	}

	now := s.now().UTC()
	invoice := &model.Invoice{
		ID:               uuid.New(),
		OwnerID:          principal.UserID,
		FleetID:          sharedFleet(selected),
		RecipientEmail:   recipient.Email,
		RecipientName:    recipient.Name,
		RecipientCompany: recipient.Company,
		Status:           model.InvoiceStatusDraft,
		Notes:            strings.TrimSpace(input.Notes),
	}
	amounts := make([]decimal.Decimal, 0, len(selected))
	for i, event := range selected {
		amounts = append(amounts, event.TotalAmount)
		invoice.LineItems = append(invoice.LineItems, model.InvoiceLineItem{
			InvoiceID:        invoice.ID,
			EventID:          event.ID,
			Position:         i,
			FacilityID:       event.FacilityID,
			ArrivalTime:      event.ArrivalTime,
			DepartureTime:    *event.DepartureTime,
			DetentionMinutes: event.DetentionMinutes,
			HourlyRate:       event.HourlyRate,
			Amount:           event.TotalAmount,
		})
	}
	invoice.TotalAmount = billing.Sum(amounts...)

	for attempt := 1; attempt <= s.settings.NumberAttempts; attempt++ {
		number, err := s.gen.InvoiceNumber(s.settings.NumberPrefix, now)
		if err != nil {
			return nil, err
		}
		invoice.InvoiceNumber = number

		err = s.runner.run(ctx, s.createUnit(invoice, selected, principal.UserID))
		if err == nil {
			return invoice, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, err
		}
		s.log.Debug().
			Str("invoice_number", number).
			Int("attempt", attempt).
			Msg("invoice number collision, regenerating")
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrInvoiceNumberUnavailable, s.settings.NumberAttempts)
}

func (s *InvoiceService) createUnit(invoice *model.Invoice, events []model.DetentionEvent, actor uuid.UUID) *unit {
	u := &unit{name: "create invoice " + invoice.ID.String()}
	u.add("insert invoice "+invoice.InvoiceNumber,
		func(ctx context.Context) error {
			return s.invoices.Create(ctx, invoice)
		},
		func(ctx context.Context) error {
			return s.invoices.Delete(ctx, invoice.ID, model.InvoiceStatusDraft)
		},
	)
	for _, event := range events {
		u.add("event "+event.ID.String()+" completed -> invoiced",
			func(ctx context.Context) error {
				next := event
				next.Status = model.EventStatusInvoiced
				next.InvoiceID = &invoice.ID
				if err := s.events.UpdateTransition(ctx, &next, model.EventStatusCompleted); err != nil {
					if errors.Is(err, repository.ErrStaleState) {
						return &IneligibleEventError{EventID: event.ID, Reason: "event changed while the invoice was created"}
					}
					return err
				}
				return nil
			},
			func(ctx context.Context) error {
				back := event
				back.Status = model.EventStatusCompleted
				back.InvoiceID = nil
				return s.events.UpdateTransition(ctx, &back, model.EventStatusInvoiced)
			},
		)
	}

	u.record(func(ctx context.Context) error {
		return s.invoices.LogStatusChange(ctx, &model.InvoiceStatusLog{
			InvoiceID: invoice.ID,
			NewStatus: model.InvoiceStatusDraft,
			Note:      fmt.Sprintf("created from %d events", len(events)),
			ChangedBy: &actor,
		})
	})
	for _, event := range events {
		u.record(eventHistory(s.events, event.ID, model.EventStatusCompleted, model.EventStatusInvoiced, "added to invoice "+invoice.InvoiceNumber, actor))
	}
	return u
}

// Send marks a draft invoice as sent and, when a recipient and a mailer are
// configured, delivers the document. Delivery failure does not undo the send.
func (s *InvoiceService) Send(ctx context.Context, principal model.Principal, invoiceID uuid.UUID) (*model.InvoiceRecord, error) {
	invoice, err := s.getOwned(ctx, principal, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := billing.CheckInvoiceTransition(invoice.Status, model.InvoiceStatusSent); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	invoice.Status = model.InvoiceStatusSent
	invoice.SentAt = &now
	draft := model.InvoiceStatusDraft

	u := &unit{name: "send invoice " + invoice.ID.String()}
	u.add("invoice draft -> sent",
		func(ctx context.Context) error {
			err := s.invoices.UpdateTransition(ctx, invoice, draft)
			if errors.Is(err, repository.ErrStaleState) {
				return fmt.Errorf("%w: invoice %s is no longer draft", ErrConflict, invoice.ID)
			}
			return err
		},
		nil,
	)
	u.record(func(ctx context.Context) error {
		return s.invoices.LogStatusChange(ctx, &model.InvoiceStatusLog{
			InvoiceID: invoice.ID,
			OldStatus: &draft,
			NewStatus: model.InvoiceStatusSent,
			ChangedBy: &principal.UserID,
		})
	})
	if err := s.runner.run(ctx, u); err != nil {
		return nil, err
	}

	if invoice.RecipientEmail != "" && s.mailer != nil {
		_, _ = s.deliver(ctx, invoice)
	}
	return s.record(ctx, invoice)
}

// Deliver e-mails the document of a sent or paid invoice again without
// touching its status.
func (s *InvoiceService) Deliver(ctx context.Context, principal model.Principal, invoiceID uuid.UUID) (*model.InvoiceDelivery, error) {
	invoice, err := s.getOwned(ctx, principal, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == model.InvoiceStatusDraft {
		return nil, fmt.Errorf("%w: invoice %s has not been sent", ErrConflict, invoice.InvoiceNumber)
	}
	if invoice.RecipientEmail == "" {
		return nil, invalidInput("invoice has no recipient email")
	}
	if s.mailer == nil {
		return nil, ErrDeliveryUnavailable
	}
	return s.deliver(ctx, invoice)
}

func (s *InvoiceService) deliver(ctx context.Context, invoice *model.Invoice) (*model.InvoiceDelivery, error) {
	delivery := &model.InvoiceDelivery{
		InvoiceID: invoice.ID,
		Recipient: invoice.RecipientEmail,
		Status:    model.DeliveryStatusSent,
	}

	sendErr := s.sendDocument(ctx, invoice, delivery)
	if sendErr != nil {
		delivery.Status = model.DeliveryStatusFailed
		delivery.Error = sendErr.Error()
		s.log.Warn().
			Err(sendErr).
			Str("invoice_id", invoice.ID.String()).
			Str("recipient", invoice.RecipientEmail).
			Msg("invoice delivery failed")
	}

	if err := s.invoices.RecordDelivery(ctx, delivery); err != nil {
		s.log.Warn().Err(err).Str("invoice_id", invoice.ID.String()).Msg("failed to record invoice delivery")
	}
	if sendErr != nil {
		return delivery, fmt.Errorf("%w: %v", ErrDeliveryFailed, sendErr)
	}

	if s.contacts != nil {
		contact := &model.SavedContact{
			UserID:  invoice.OwnerID,
			Email:   invoice.RecipientEmail,
			Name:    invoice.RecipientName,
			Company: invoice.RecipientCompany,
		}
		if err := s.contacts.RecordUsage(ctx, contact, s.now().UTC()); err != nil {
			s.log.Warn().Err(err).Str("invoice_id", invoice.ID.String()).Msg("failed to record contact usage")
		}
	}
	return delivery, nil
}

func (s *InvoiceService) sendDocument(ctx context.Context, invoice *model.Invoice, delivery *model.InvoiceDelivery) error {
	var attachment *model.Document
	if s.renderer != nil {
		doc, err := s.renderer.Render(ctx, *invoice)
		if err != nil {
			return fmt.Errorf("render document: %w", err)
		}
		delivery.DocumentURI = doc.URI
		attachment = &doc
	}

	msg := model.EmailMessage{
		To:         invoice.RecipientEmail,
		ToName:     invoice.RecipientName,
		Subject:    "Detention invoice " + invoice.InvoiceNumber,
		Body:       fmt.Sprintf("Invoice %s for $%s covering %d detention events.", invoice.InvoiceNumber, invoice.TotalAmount.StringFixed(2), len(invoice.LineItems)),
		Attachment: attachment,
		Metadata: map[string]string{
			"invoice_id":     invoice.ID.String(),
			"invoice_number": invoice.InvoiceNumber,
		},
		RequestedAt: s.now().UTC(),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// MarkPaid moves a draft or sent invoice and its events to paid. Calling it on
// a paid invoice succeeds without side effects, and a caller that loses a race
// against another mark-paid observes the winner's result.
func (s *InvoiceService) MarkPaid(ctx context.Context, principal model.Principal, invoiceID uuid.UUID) (*model.Invoice, error) {
	invoice, err := s.getOwned(ctx, principal, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == model.InvoiceStatusPaid {
		return invoice, nil
	}
	if err := billing.CheckInvoiceTransition(invoice.Status, model.InvoiceStatusPaid); err != nil {
		return nil, err
	}

	events, err := s.events.GetByIDs(ctx, invoice.EventIDs())
	if err != nil {
		return nil, err
	}

	previous := invoice.Status
	now := s.now().UTC()
	paid := *invoice
	paid.Status = model.InvoiceStatusPaid
	paid.PaidAt = &now

	u := &unit{name: "mark invoice " + invoice.ID.String() + " paid"}
	u.add("invoice "+string(previous)+" -> paid",
		func(ctx context.Context) error {
			return s.invoices.UpdateTransition(ctx, &paid, previous)
		},
		func(ctx context.Context) error {
			back := *invoice
			return s.invoices.UpdateTransition(ctx, &back, model.InvoiceStatusPaid)
		},
	)
	for _, event := range events {
		if event.Status != model.EventStatusInvoiced {
			continue
		}
		u.add("event "+event.ID.String()+" invoiced -> paid",
			func(ctx context.Context) error {
				next := event
				next.Status = model.EventStatusPaid
				return s.events.UpdateTransition(ctx, &next, model.EventStatusInvoiced)
			},
			func(ctx context.Context) error {
				back := event
				return s.events.UpdateTransition(ctx, &back, model.EventStatusPaid)
			},
		)
		u.record(eventHistory(s.events, event.ID, model.EventStatusInvoiced, model.EventStatusPaid, "invoice "+invoice.InvoiceNumber+" paid", principal.UserID))
	}
	u.record(func(ctx context.Context) error {
		return s.invoices.LogStatusChange(ctx, &model.InvoiceStatusLog{
			InvoiceID: invoice.ID,
			OldStatus: &previous,
			NewStatus: model.InvoiceStatusPaid,
			ChangedBy: &principal.UserID,
		})
	})

	if err := s.runner.run(ctx, u); err != nil {
		if !errors.Is(err, repository.ErrStaleState) {
			return nil, err
		}
		current, getErr := s.invoices.GetByID(ctx, invoice.ID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == model.InvoiceStatusPaid {
			return current, nil
		}
		return nil, fmt.Errorf("%w: invoice %s changed while being marked paid", ErrConflict, invoice.ID)
	}
	return &paid, nil
}

// Delete removes a draft invoice and returns its events to completed. The
// invoice row is locked before any event so Delete takes locks in the same
// order as MarkPaid.
func (s *InvoiceService) Delete(ctx context.Context, principal model.Principal, invoiceID uuid.UUID) error {
	invoice, err := s.getOwned(ctx, principal, invoiceID)
	if err != nil {
		return err
	}
	if err := billing.CheckInvoiceDeletable(invoice.Status); err != nil {
		return fmt.Errorf("%w: invoice %s is %s", err, invoice.InvoiceNumber, invoice.Status)
	}

	events, err := s.events.GetByIDs(ctx, invoice.EventIDs())
	if err != nil {
		return err
	}

	u := &unit{name: "delete invoice " + invoice.ID.String()}
	u.add("lock invoice "+invoice.InvoiceNumber,
		func(ctx context.Context) error {
			return s.invoices.Lock(ctx, invoice.ID, model.InvoiceStatusDraft)
		},
		nil,
	)
	for _, event := range events {
		if event.Status != model.EventStatusInvoiced || event.InvoiceID == nil || *event.InvoiceID != invoice.ID {
			continue
		}
		u.add("event "+event.ID.String()+" invoiced -> completed",
			func(ctx context.Context) error {
				next := event
				next.Status = model.EventStatusCompleted
				next.InvoiceID = nil
				return s.events.UpdateTransition(ctx, &next, model.EventStatusInvoiced)
			},
			func(ctx context.Context) error {
				back := event
				return s.events.UpdateTransition(ctx, &back, model.EventStatusCompleted)
			},
		)
		u.record(eventHistory(s.events, event.ID, model.EventStatusInvoiced, model.EventStatusCompleted, "invoice "+invoice.InvoiceNumber+" deleted", principal.UserID))
	}
	u.add("delete invoice "+invoice.InvoiceNumber,
		func(ctx context.Context) error {
			return s.invoices.Delete(ctx, invoice.ID, model.InvoiceStatusDraft)
		},
		nil,
	)

	if err := s.runner.run(ctx, u); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return fmt.Errorf("%w: invoice %s changed while being deleted", ErrConflict, invoice.ID)
		}
		return err
	}
	return nil
}

func (s *InvoiceService) Get(ctx context.Context, principal model.Principal, invoiceID uuid.UUID) (*model.InvoiceRecord, error) {
	invoice, err := s.getOwned(ctx, principal, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, invoice)
}

type ListInvoicesOptions struct {
	Statuses []model.InvoiceStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

func (s *InvoiceService) List(ctx context.Context, principal model.Principal, opts ListInvoicesOptions) ([]model.Invoice, error) {
	return s.invoices.List(ctx, model.InvoiceFilter{
		OwnerID:  principal.UserID,
		Statuses: opts.Statuses,
		DateFrom: opts.DateFrom,
		DateTo:   opts.DateTo,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

func (s *InvoiceService) record(ctx context.Context, invoice *model.Invoice) (*model.InvoiceRecord, error) {
	deliveries, err := s.invoices.ListDeliveries(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}
	return &model.InvoiceRecord{Invoice: *invoice, Deliveries: deliveries}, nil
}

func (s *InvoiceService) getOwned(ctx context.Context, principal model.Principal, invoiceID uuid.UUID) (*model.Invoice, error) {
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if invoice.OwnerID != principal.UserID {
		return nil, ErrNotFound
	}
	return invoice, nil
}

func (s *InvoiceService) normalizeRecipient(r Recipient) (Recipient, error) {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.Company = strings.TrimSpace(r.Company)
	if r.Email != "" {
		if err := s.validate.Var(r.Email, "email"); err != nil {
			return r, invalidInput("recipient email %q is malformed", r.Email)
		}
	}
	return r, nil
}

func eventHistory(events EventStore, eventID uuid.UUID, from, to model.EventStatus, note string, actor uuid.UUID) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return events.LogStatusChange(ctx, &model.EventStatusLog{
			EventID:   eventID,
			OldStatus: &from,
			NewStatus: to,
			Note:      note,
			ChangedBy: &actor,
		})
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sharedFleet(events []model.DetentionEvent) *uuid.UUID {
	if len(events) == 0 || events[0].FleetID == nil {
		return nil
	}
	fleetID := *events[0].FleetID
	for _, e := range events[1:] {
		if e.FleetID == nil || *e.FleetID != fleetID {
			return nil
		}
	}
	return &fleetID
}
