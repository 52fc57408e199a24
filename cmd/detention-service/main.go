package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"

	"detention-service/internal/auth"
	"detention-service/internal/config"
	"detention-service/internal/db"
	httphandler "detention-service/internal/http"
	"detention-service/internal/http/middleware"
	"detention-service/internal/logger"
	"detention-service/internal/notify"
	"detention-service/internal/repository"
	"detention-service/internal/repository/memory"
	"detention-service/internal/service"
)

type stores struct {
	events      service.EventStore
	invoices    service.InvoiceStore
	invitations service.InvitationStore
	fleets      service.FleetStore
	members     service.MemberStore
	contacts    service.ContactStore
	tx          service.Transactor
	health      httphandler.HealthFunc
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (stores, error) {
	if cfg.DB.Driver == config.StorageDriverMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return stores{
			events:      store.Events(),
			invoices:    store.Invoices(),
			invitations: store.Invitations(),
			fleets:      store.Fleets(),
			members:     store.Members(),
			contacts:    store.Contacts(),
			tx:          store,
		}, nil
	}

	database, err := db.New(ctx, cfg, log)
	if err != nil {
		return stores{}, err
	}
	return stores{
		events:      repository.NewEventRepository(database),
		invoices:    repository.NewInvoiceRepository(database),
		invitations: repository.NewInvitationRepository(database),
		fleets:      repository.NewFleetRepository(database),
		members:     repository.NewMemberRepository(database),
		contacts:    repository.NewContactRepository(database),
		tx:          repository.NewTransactor(database),
		health: func(ctx context.Context) error {
			return db.HealthCheck(ctx, database)
		},
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	st, err := openStores(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}

	var mailer service.Mailer
	if cfg.Notify.AMQPURL != "" {
		publisher, err := notify.Dial(cfg.Notify.AMQPURL, cfg.Notify.Exchange, cfg.Notify.EmailRoutingKey, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to message broker")
		}
		defer publisher.Close()
		mailer = publisher
	} else {
		log.Warn().Msg("AMQP_URL not set, e-mail delivery disabled")
	}
	renderer := notify.NewLinkRenderer(cfg.Notify.DocumentBaseURL)

	services := httphandler.Services{
		Events: service.NewEventService(st.events, st.fleets, st.members, st.tx, service.BillingDefaults{
			HourlyRate:         cfg.Billing.DefaultHourlyRate,
			GracePeriodMinutes: cfg.Billing.DefaultGraceMinutes,
		}, log),
		Invoices: service.NewInvoiceService(st.events, st.invoices, st.contacts, st.tx, renderer, mailer, service.InvoiceSettings{
			NumberPrefix:   cfg.Billing.InvoicePrefix,
			NumberAttempts: cfg.Billing.InvoiceNumberAttempts,
		}, log),
		Fleets: service.NewFleetService(st.fleets, st.members, st.tx, log),
		Invitations: service.NewInvitationService(st.invitations, st.fleets, st.members, st.tx, mailer, service.InvitationSettings{
			TTL:          cfg.Invitation.TTL,
			CodeLength:   cfg.Invitation.CodeLength,
			CodeAttempts: cfg.Invitation.CodeAttempts,
		}, log),
		Contacts: service.NewContactService(st.contacts),
	}

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(services, log)
	router := httphandler.NewRouter(handler, middleware.Auth(tokenParser), st.health, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Str("storage", cfg.DB.Driver).Msg("starting detention service")

	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
