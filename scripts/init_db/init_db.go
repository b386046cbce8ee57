package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "fleet_user"),
		dbGetEnv("DB_PASSWORD", "fleet_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "fleet_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure TimescaleDB is running:\n  docker-compose up -d timescaledb", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1_extensions(ctx, conn)
	step2_reference_tables(ctx, conn)
	step3_positions_table(ctx, conn)
	step4_events_table(ctx, conn)
	step5_indexes(ctx, conn)
	step6_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run ./scripts/seed_redis")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — Extensions
// ─────────────────────────────────────────────────────────────
func step1_extensions(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Extensions ──────────────────────────")

	execOrFatal(ctx, conn,
		"CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;",
		"timescaledb extension",
	)
}

// ─────────────────────────────────────────────────────────────
// Step 2 — devices, calendars, geofences
// ─────────────────────────────────────────────────────────────
func step2_reference_tables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: Reference tables ────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS devices (
			id               BIGSERIAL        PRIMARY KEY,
			name             TEXT             NOT NULL,
			unique_id        TEXT             NOT NULL UNIQUE,

			-- speedLimit, slopeLimit, minimalTripDuration, ... overrides
			attributes       JSONB            NOT NULL DEFAULT '{}'::jsonb,

			-- Confirmed motion state, written only on a moving/stopped transition
			motion_streak    INTEGER          NOT NULL DEFAULT 0,
			motion_state     TEXT             NOT NULL DEFAULT 'stopped',
			motion_time      TIMESTAMPTZ,
			motion_distance  DOUBLE PRECISION NOT NULL DEFAULT 0,

			CONSTRAINT chk_motion_state CHECK (
				motion_state IN ('stopped', 'moving')
			)
		);
	`, "devices table created")

	// schedule is a five-field cron expression evaluated in time_zone
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS calendars (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT      NOT NULL,
			schedule   TEXT      NOT NULL,
			time_zone  TEXT      NOT NULL DEFAULT 'UTC'
		);
	`, "calendars table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS geofences (
			id           BIGSERIAL PRIMARY KEY,
			name         TEXT      NOT NULL,
			calendar_id  BIGINT    REFERENCES calendars (id) ON DELETE SET NULL
		);
	`, "geofences table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — positions hypertable
// ─────────────────────────────────────────────────────────────
func step3_positions_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: positions table ─────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS positions (
			id            BIGINT           NOT NULL,
			device_id     BIGINT           NOT NULL,

			-- Device fix time; reports are ordered and partitioned by it
			fix_time      TIMESTAMPTZ      NOT NULL,
			received_at   TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			latitude      DOUBLE PRECISION NOT NULL,
			longitude     DOUBLE PRECISION NOT NULL,

			-- Knots, as reported
			speed         DOUBLE PRECISION NOT NULL DEFAULT 0,
			motion        BOOLEAN          NOT NULL DEFAULT false,
			geofence_ids  BIGINT[]         NOT NULL DEFAULT '{}',

			-- io keys, ignition, battery, totalDistance, ...
			attributes    JSONB            NOT NULL DEFAULT '{}'::jsonb
		);
	`, "positions table created")

	execOrFatal(ctx, conn, `
		SELECT create_hypertable(
			'positions',
			'fix_time',
			if_not_exists => TRUE
		);
	`, "positions converted to hypertable")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — events table
// ─────────────────────────────────────────────────────────────
func step4_events_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: events table ────────────────────────")

	// id is assigned by the detector so re-delivered batches are no-ops
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS events (
			id           UUID        PRIMARY KEY,
			type         TEXT        NOT NULL,
			device_id    BIGINT      NOT NULL,
			event_time   TIMESTAMPTZ NOT NULL,
			position_id  BIGINT,
			geofence_id  BIGINT,
			attributes   JSONB       NOT NULL DEFAULT '{}'::jsonb,

			CONSTRAINT chk_event_type CHECK (
				type IN (
					'alarm', 'geofenceEnter', 'geofenceExit', 'deviceOverspeed',
					'digitalInput', 'digitalOutput', 'slopeAlarm',
					'deviceMoving', 'deviceStopped'
				)
			)
		);
	`, "events table created")
}

// ─────────────────────────────────────────────────────────────
// Step 5 — Indexes
// ─────────────────────────────────────────────────────────────
func step5_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_positions_device_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_positions_device_time
				  ON positions (device_id, fix_time DESC);`,
			why: "query: ignition reports for one device",
		},
		{
			name: "idx_events_device_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_events_device_time
				  ON events (device_id, event_time DESC);`,
			why: "query: event history for one device",
		},
		{
			name: "idx_events_alarms",
			sql: `CREATE INDEX IF NOT EXISTS idx_events_alarms
				  ON events (device_id, event_time DESC)
				  WHERE type = 'alarm';`,
			why: "query: alarms only (partial index)",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 6 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step6_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 6: Verification ────────────────────────")

	tables := []string{"devices", "calendars", "geofences", "positions", "events"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var hypertableName string
	err := conn.QueryRow(ctx, `
		SELECT hypertable_name
		FROM timescaledb_information.hypertables
		WHERE hypertable_name = 'positions'
	`).Scan(&hypertableName)
	if err != nil {
		log.Fatalf("positions is not a hypertable: %v", err)
	}
	fmt.Printf("  ✓ hypertable: %s (time partitioned)\n", hypertableName)

	var indexCount int
	err = conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename IN ('positions', 'events')
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED: %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
