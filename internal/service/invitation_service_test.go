package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"detention-service/internal/billing"
	"detention-service/internal/model"
	"detention-service/internal/repository/memory"
	"detention-service/internal/service/mocks"
)

type invitationFixture struct {
	store       *memory.Store
	fleets      *FleetService
	invitations *InvitationService
	owner       model.Principal
	fleet       *model.Fleet
}

func newInvitationFixture(t *testing.T, transactional bool, mailer Mailer) *invitationFixture {
	t.Helper()

	store := memory.NewStore()
	var tx Transactor
	if transactional {
		tx = store
	}
	fleets := NewFleetService(store.Fleets(), store.Members(), store, zerolog.Nop())
	fleets.now = clockAt(baseTime)
	invitations := NewInvitationService(store.Invitations(), store.Fleets(), store.Members(), tx, mailer, InvitationSettings{
		TTL:          7 * 24 * time.Hour,
		CodeLength:   8,
		CodeAttempts: 5,
	}, zerolog.Nop())
	invitations.now = clockAt(baseTime)

	owner := newPrincipal()
	fleet, err := fleets.Create(context.Background(), owner, CreateFleetInput{Name: "Blue Line Freight"})
	if err != nil {
		t.Fatalf("create fleet: %v", err)
	}
	return &invitationFixture{store: store, fleets: fleets, invitations: invitations, owner: owner, fleet: fleet}
}

func (f *invitationFixture) invite(t *testing.T, email string, role model.FleetRole) *model.FleetInvitation {
	t.Helper()
	inv, err := f.invitations.Create(context.Background(), f.owner, CreateInvitationInput{
		FleetID: f.fleet.ID,
		Email:   email,
		Role:    role,
	})
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	return inv
}

func TestInvitationService_Create(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mailer := mocks.NewMockMailer(ctrl)

	f := newInvitationFixture(t, false, mailer)
	mailer.EXPECT().Send(gomock.Any(), gomock.AssignableToTypeOf(model.EmailMessage{})).DoAndReturn(
		func(_ context.Context, msg model.EmailMessage) error {
			if msg.To != "driver@carrier.test" || !strings.Contains(msg.Body, "Blue Line Freight") {
				t.Fatalf("unexpected invitation email %+v", msg)
			}
			return nil
		},
	)

	inv := f.invite(t, " Driver@Carrier.test ", model.FleetRoleDriver)
	if len(inv.InvitationCode) != 8 {
		t.Fatalf("expected 8 character code, got %q", inv.InvitationCode)
	}
	for _, r := range inv.InvitationCode {
		if !strings.ContainsRune(billing.InvitationAlphabet, r) {
			t.Fatalf("code %q has character outside the alphabet", inv.InvitationCode)
		}
	}
	if !inv.ExpiresAt.Equal(baseTime.Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", inv.ExpiresAt)
	}
	if inv.Email != "driver@carrier.test" || inv.InvitedBy != f.owner.UserID {
		t.Fatalf("unexpected invitation %+v", inv)
	}
}

func TestInvitationService_CreateValidation(t *testing.T) {
	f := newInvitationFixture(t, false, nil)
	ctx := context.Background()

	_, err := f.invitations.Create(ctx, f.owner, CreateInvitationInput{FleetID: f.fleet.ID, Email: "nope", Role: model.FleetRoleDriver})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for email, got %v", err)
	}
	_, err = f.invitations.Create(ctx, f.owner, CreateInvitationInput{FleetID: f.fleet.ID, Email: "a@b.test", Role: "dispatcher"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for role, got %v", err)
	}
	_, err = f.invitations.Create(ctx, newPrincipal(), CreateInvitationInput{FleetID: f.fleet.ID, Email: "a@b.test", Role: model.FleetRoleDriver})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	_, err = f.invitations.Create(ctx, f.owner, CreateInvitationInput{FleetID: uuid.New(), Email: "a@b.test", Role: model.FleetRoleDriver})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown fleet, got %v", err)
	}
}

func TestInvitationService_CreateRetriesCodeCollisions(t *testing.T) {
	f := newInvitationFixture(t, false, nil)
	f.invitations.gen = billing.NewGeneratorWithSource(sequenceSource("AAAA2222", "AAAA2222", "BBBB3333"))

	first := f.invite(t, "one@carrier.test", model.FleetRoleDriver)
	second := f.invite(t, "two@carrier.test", model.FleetRoleDriver)
	if first.InvitationCode != "AAAA2222" || second.InvitationCode != "BBBB3333" {
		t.Fatalf("unexpected codes %q %q", first.InvitationCode, second.InvitationCode)
	}

	f.invitations.gen = billing.NewGeneratorWithSource(sequenceSource("AAAA2222"))
	_, err := f.invitations.Create(context.Background(), f.owner, CreateInvitationInput{FleetID: f.fleet.ID, Email: "three@carrier.test", Role: model.FleetRoleDriver})
	if !errors.Is(err, ErrInvitationCodeUnavailable) {
		t.Fatalf("expected ErrInvitationCodeUnavailable, got %v", err)
	}
}

func TestInvitationService_Accept(t *testing.T) {
	ctx := context.Background()
	f := newInvitationFixture(t, false, nil)
	inv := f.invite(t, "driver@carrier.test", model.FleetRoleDriver)
	driver := newPrincipal()

	member, err := f.invitations.Accept(ctx, driver, strings.ToLower(inv.InvitationCode))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if member.UserID != driver.UserID || member.FleetID != f.fleet.ID || member.Role != model.FleetRoleDriver || !member.IsActive() {
		t.Fatalf("unexpected member %+v", member)
	}
	if member.InvitationID == nil || *member.InvitationID != inv.ID {
		t.Fatal("member should reference the invitation")
	}

	stored, _ := f.store.Invitations().GetByID(ctx, inv.ID)
	if stored.AcceptedAt == nil || stored.AcceptedBy == nil || *stored.AcceptedBy != driver.UserID {
		t.Fatalf("invitation not marked accepted: %+v", stored)
	}

	if _, err := f.invitations.Accept(ctx, newPrincipal(), inv.InvitationCode); !errors.Is(err, ErrInvitationAlreadyAccepted) {
		t.Fatalf("expected ErrInvitationAlreadyAccepted, got %v", err)
	}

	f.invitations.now = clockAt(inv.ExpiresAt.Add(time.Hour))
	if _, err := f.invitations.Accept(ctx, newPrincipal(), inv.InvitationCode); !errors.Is(err, ErrInvitationAlreadyAccepted) {
		t.Fatalf("accepted invitation must report already accepted after expiry, got %v", err)
	}

	members, err := f.fleets.ListMembers(ctx, f.owner, f.fleet.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected owner and driver, got %d members", len(members))
	}
}

func TestInvitationService_AcceptFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown code", func(t *testing.T) {
		f := newInvitationFixture(t, false, nil)
		if _, err := f.invitations.Accept(ctx, newPrincipal(), "ZZZZ9999"); !errors.Is(err, ErrInvitationNotFound) {
			t.Fatalf("expected ErrInvitationNotFound, got %v", err)
		}
		if _, err := f.invitations.Accept(ctx, newPrincipal(), "  "); !errors.Is(err, ErrInvitationNotFound) {
			t.Fatalf("expected ErrInvitationNotFound for blank code, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		f := newInvitationFixture(t, false, nil)
		inv := f.invite(t, "late@carrier.test", model.FleetRoleDriver)
		f.invitations.now = clockAt(inv.ExpiresAt.Add(time.Second))

		if _, err := f.invitations.Accept(ctx, newPrincipal(), inv.InvitationCode); !errors.Is(err, ErrInvitationExpired) {
			t.Fatalf("expected ErrInvitationExpired, got %v", err)
		}
	})

	t.Run("at expiry instant", func(t *testing.T) {
		f := newInvitationFixture(t, false, nil)
		inv := f.invite(t, "edge@carrier.test", model.FleetRoleDriver)
		f.invitations.now = clockAt(inv.ExpiresAt)

		if _, err := f.invitations.Accept(ctx, newPrincipal(), inv.InvitationCode); err != nil {
			t.Fatalf("acceptance at expiresAt should succeed, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		f := newInvitationFixture(t, false, nil)
		inv := f.invite(t, "gone@carrier.test", model.FleetRoleDriver)
		if err := f.invitations.Cancel(ctx, f.owner, inv.ID); err != nil {
			t.Fatalf("cancel: %v", err)
		}

		if _, err := f.invitations.Accept(ctx, newPrincipal(), inv.InvitationCode); !errors.Is(err, ErrInvitationCancelled) {
			t.Fatalf("expected ErrInvitationCancelled, got %v", err)
		}
		if _, err := f.invitations.Resend(ctx, f.owner, inv.ID, false); !errors.Is(err, ErrInvitationCancelled) {
			t.Fatalf("expected ErrInvitationCancelled on resend, got %v", err)
		}
		if err := f.invitations.Cancel(ctx, f.owner, inv.ID); !errors.Is(err, ErrInvitationCancelled) {
			t.Fatalf("expected ErrInvitationCancelled on second cancel, got %v", err)
		}
	})

	t.Run("existing member", func(t *testing.T) {
		f := newInvitationFixture(t, true, nil)
		inv := f.invite(t, "owner@carrier.test", model.FleetRoleAdmin)

		if _, err := f.invitations.Accept(ctx, f.owner, inv.InvitationCode); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		stored, _ := f.store.Invitations().GetByID(ctx, inv.ID)
		if stored.AcceptedAt != nil {
			t.Fatal("failed acceptance must leave the invitation unaccepted")
		}
	})
}

func TestInvitationService_AcceptRevertsWithoutTransactions(t *testing.T) {
	ctx := context.Background()
	f := newInvitationFixture(t, false, nil)
	inv := f.invite(t, "owner@carrier.test", model.FleetRoleAdmin)

	if _, err := f.invitations.Accept(ctx, f.owner, inv.InvitationCode); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	stored, _ := f.store.Invitations().GetByID(ctx, inv.ID)
	if stored.AcceptedAt != nil || stored.AcceptedBy != nil {
		t.Fatalf("acceptance should have been reverted, got %+v", stored)
	}

	if _, err := f.invitations.Accept(ctx, newPrincipal(), inv.InvitationCode); err != nil {
		t.Fatalf("invitation should still be usable: %v", err)
	}
}

func TestInvitationService_ConcurrentAcceptHasOneWinner(t *testing.T) {
	for _, transactional := range []bool{true, false} {
		name := "compensated"
		if transactional {
			name = "transactional"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newInvitationFixture(t, transactional, nil)
			inv := f.invite(t, "race@carrier.test", model.FleetRoleDriver)

			const callers = 20
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				winners  int
				accepted int
				other    []error
			)
			start := make(chan struct{})
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := f.invitations.Accept(ctx, newPrincipal(), inv.InvitationCode)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						winners++
					case errors.Is(err, ErrInvitationAlreadyAccepted):
						accepted++
					default:
						other = append(other, err)
					}
				}()
			}
			close(start)
			wg.Wait()

			if winners != 1 {
				t.Fatalf("expected exactly one winner, got %d", winners)
			}
			if accepted != callers-1 || len(other) != 0 {
				t.Fatalf("expected %d already-accepted losers, got %d (unexpected errors: %v)", callers-1, accepted, other)
			}

			members, _ := f.store.Members().ListByFleet(ctx, f.fleet.ID)
			if len(members) != 2 {
				t.Fatalf("expected owner plus one member, got %d", len(members))
			}
		})
	}
}

func TestInvitationService_Resend(t *testing.T) {
	ctx := context.Background()
	f := newInvitationFixture(t, false, nil)
	inv := f.invite(t, "driver@carrier.test", model.FleetRoleDriver)
	originalCode := inv.InvitationCode

	later := baseTime.Add(10 * 24 * time.Hour)
	f.invitations.now = clockAt(later)

	resent, err := f.invitations.Resend(ctx, f.owner, inv.ID, false)
	if err != nil {
		t.Fatalf("resend of an expired invitation should be allowed: %v", err)
	}
	if resent.InvitationCode != originalCode {
		t.Fatal("resend without regeneration must keep the code")
	}
	if !resent.ExpiresAt.Equal(later.Add(7*24*time.Hour)) || resent.ResendCount != 1 {
		t.Fatalf("unexpected resent invitation %+v", resent)
	}

	regenerated, err := f.invitations.Resend(ctx, f.owner, inv.ID, true)
	if err != nil {
		t.Fatalf("resend with new code: %v", err)
	}
	if regenerated.InvitationCode == originalCode {
		t.Fatal("expected a new code")
	}
	if _, err := f.invitations.Accept(ctx, newPrincipal(), originalCode); !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("old code must stop working, got %v", err)
	}
	if _, err := f.invitations.Accept(ctx, newPrincipal(), regenerated.InvitationCode); err != nil {
		t.Fatalf("new code should work: %v", err)
	}
	if _, err := f.invitations.Resend(ctx, f.owner, inv.ID, false); !errors.Is(err, ErrInvitationAlreadyAccepted) {
		t.Fatalf("expected ErrInvitationAlreadyAccepted, got %v", err)
	}
}

func TestInvitationService_AdminRules(t *testing.T) {
	ctx := context.Background()
	f := newInvitationFixture(t, false, nil)

	adminInv := f.invite(t, "admin@carrier.test", model.FleetRoleAdmin)
	admin := newPrincipal()
	if _, err := f.invitations.Accept(ctx, admin, adminInv.InvitationCode); err != nil {
		t.Fatalf("accept admin invitation: %v", err)
	}
	driverInv := f.invite(t, "driver@carrier.test", model.FleetRoleDriver)
	driver := newPrincipal()
	if _, err := f.invitations.Accept(ctx, driver, driverInv.InvitationCode); err != nil {
		t.Fatalf("accept driver invitation: %v", err)
	}

	if _, err := f.invitations.Create(ctx, admin, CreateInvitationInput{FleetID: f.fleet.ID, Email: "next@carrier.test", Role: model.FleetRoleDriver}); err != nil {
		t.Fatalf("admin member should be able to invite: %v", err)
	}
	if _, err := f.invitations.Create(ctx, driver, CreateInvitationInput{FleetID: f.fleet.ID, Email: "next@carrier.test", Role: model.FleetRoleDriver}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("driver must not invite, got %v", err)
	}

	briefs, err := f.invitations.ListByFleet(ctx, admin, f.fleet.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(briefs) != 3 {
		t.Fatalf("expected 3 invitations, got %d", len(briefs))
	}
	states := map[string]int{}
	for _, b := range briefs {
		states[b.Status]++
	}
	if states["accepted"] != 2 || states["pending"] != 1 {
		t.Fatalf("unexpected invitation states %v", states)
	}
	if _, err := f.invitations.ListByFleet(ctx, driver, f.fleet.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("driver must not list invitations, got %v", err)
	}
}
