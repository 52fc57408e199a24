package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'detention_event_status') THEN
			CREATE TYPE detention_event_status AS ENUM ('active', 'completed', 'invoiced', 'paid', 'cancelled');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'invoice_status') THEN
			CREATE TYPE invoice_status AS ENUM ('draft', 'sent', 'paid');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS fleets (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		owner_id UUID NOT NULL,
		name VARCHAR(255) NOT NULL,
		default_hourly_rate NUMERIC(10,2) CHECK (default_hourly_rate IS NULL OR default_hourly_rate > 0),
		default_grace_period_minutes INTEGER CHECK (default_grace_period_minutes IS NULL OR default_grace_period_minutes >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_fleets_owner_id ON fleets (owner_id);`,
	`CREATE TABLE IF NOT EXISTS fleet_members (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		fleet_id UUID NOT NULL REFERENCES fleets(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		email VARCHAR(255),
		role VARCHAR(16) NOT NULL CHECK (role IN ('admin', 'driver')),
		status VARCHAR(16) NOT NULL CHECK (status IN ('pending', 'active', 'suspended', 'removed')),
		invitation_id UUID,
		hourly_rate_override NUMERIC(10,2),
		grace_period_override INTEGER,
		joined_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_fleet_members_fleet_user ON fleet_members (fleet_id, user_id);`,
	`CREATE TABLE IF NOT EXISTS fleet_invitations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		fleet_id UUID NOT NULL REFERENCES fleets(id) ON DELETE CASCADE,
		email VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL CHECK (role IN ('admin', 'driver')),
		invited_by UUID NOT NULL,
		invitation_code VARCHAR(32) NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		accepted_at TIMESTAMPTZ,
		accepted_by UUID,
		cancelled_at TIMESTAMPTZ,
		resend_count INTEGER NOT NULL DEFAULT 0,
		last_sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_fleet_invitations_code ON fleet_invitations (invitation_code);`,
	`CREATE INDEX IF NOT EXISTS idx_fleet_invitations_fleet_id ON fleet_invitations (fleet_id);`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		owner_id UUID NOT NULL,
		fleet_id UUID REFERENCES fleets(id) ON DELETE SET NULL,
		invoice_number VARCHAR(32) NOT NULL,
		recipient_email VARCHAR(255),
		recipient_name VARCHAR(255),
		recipient_company VARCHAR(255),
		total_amount NUMERIC(12,2) NOT NULL CHECK (total_amount >= 0),
		status invoice_status NOT NULL DEFAULT 'draft',
		notes TEXT,
		sent_at TIMESTAMPTZ,
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_invoices_number ON invoices (invoice_number);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_owner_id ON invoices (owner_id);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices (status);`,
	`CREATE TABLE IF NOT EXISTS detention_events (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL,
		fleet_id UUID REFERENCES fleets(id) ON DELETE SET NULL,
		facility_id UUID NOT NULL,
		invoice_id UUID REFERENCES invoices(id) ON DELETE SET NULL,
		arrival_time TIMESTAMPTZ NOT NULL,
		departure_time TIMESTAMPTZ,
		grace_period_minutes INTEGER NOT NULL CHECK (grace_period_minutes >= 0),
		hourly_rate NUMERIC(10,2) NOT NULL CHECK (hourly_rate > 0),
		total_elapsed_minutes INTEGER NOT NULL DEFAULT 0,
		detention_minutes INTEGER NOT NULL DEFAULT 0,
		total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		status detention_event_status NOT NULL DEFAULT 'active',
		notes TEXT,
		cancel_reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT chk_detention_events_departure CHECK ((status = 'active') = (departure_time IS NULL))
	);`,
	`CREATE INDEX IF NOT EXISTS idx_detention_events_user_id ON detention_events (user_id);`,
	`CREATE INDEX IF NOT EXISTS idx_detention_events_status ON detention_events (status);`,
	`CREATE INDEX IF NOT EXISTS idx_detention_events_invoice_id ON detention_events (invoice_id);`,
	`CREATE INDEX IF NOT EXISTS idx_detention_events_arrival_time ON detention_events (arrival_time);`,
	`CREATE TABLE IF NOT EXISTS invoice_line_items (
		invoice_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		event_id UUID NOT NULL REFERENCES detention_events(id) ON DELETE RESTRICT,
		position INTEGER NOT NULL,
		facility_id UUID NOT NULL,
		arrival_time TIMESTAMPTZ NOT NULL,
		departure_time TIMESTAMPTZ NOT NULL,
		detention_minutes INTEGER NOT NULL,
		hourly_rate NUMERIC(10,2) NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		PRIMARY KEY (invoice_id, event_id)
	);`,
	`CREATE TABLE IF NOT EXISTS invoice_deliveries (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		invoice_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		recipient VARCHAR(255) NOT NULL,
		document_uri TEXT,
		status VARCHAR(16) NOT NULL,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_deliveries_invoice_id ON invoice_deliveries (invoice_id);`,
	`CREATE TABLE IF NOT EXISTS saved_contacts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL,
		email VARCHAR(255) NOT NULL,
		name VARCHAR(255),
		company VARCHAR(255),
		use_count INTEGER NOT NULL DEFAULT 0,
		last_used_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_saved_contacts_user_email ON saved_contacts (user_id, email);`,
	`CREATE TABLE IF NOT EXISTS detention_event_status_log (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		event_id UUID NOT NULL REFERENCES detention_events(id) ON DELETE CASCADE,
		old_status detention_event_status,
		new_status detention_event_status NOT NULL,
		note TEXT,
		changed_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_detention_event_status_log_event_id ON detention_event_status_log (event_id);`,
	`CREATE TABLE IF NOT EXISTS invoice_status_log (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		invoice_id UUID NOT NULL,
		old_status invoice_status,
		new_status invoice_status NOT NULL,
		note TEXT,
		changed_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_status_log_invoice_id ON invoice_status_log (invoice_id);`,
	`CREATE OR REPLACE FUNCTION set_row_updated_at()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`,
	`DO $$
	DECLARE
		tbl TEXT;
	BEGIN
		FOREACH tbl IN ARRAY ARRAY['fleets', 'fleet_members', 'fleet_invitations', 'invoices', 'detention_events', 'saved_contacts'] LOOP
			IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_' || tbl || '_updated_at') THEN
				EXECUTE format('CREATE TRIGGER %I BEFORE UPDATE ON %I FOR EACH ROW EXECUTE PROCEDURE set_row_updated_at()', 'trg_' || tbl || '_updated_at', tbl);
			END IF;
		END LOOP;
	END
	$$;`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
