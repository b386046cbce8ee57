package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-monitor/detector/internal/calendar"
	"fleet-monitor/detector/internal/domain"
)

type TimescaleStore struct {
	pool *pgxpool.Pool
}

func NewTimescaleStore(ctx context.Context, connStr string) (*TimescaleStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &TimescaleStore{pool: pool}, nil
}

func (s *TimescaleStore) Close() {
	s.pool.Close()
}

func (s *TimescaleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetDevice returns found=false when no device has the given id.
func (s *TimescaleStore) GetDevice(ctx context.Context, id int64) (domain.Device, bool, error) {
	query := `
		SELECT id, name, unique_id, attributes,
		       motion_streak, motion_state, motion_time, motion_distance
		FROM devices
		WHERE id = $1
	`
	var (
		d          domain.Device
		attrs      map[string]any
		state      string
		motionTime *time.Time
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.Name,
		&d.UniqueID,
		&attrs,
		&d.MotionStreak,
		&state,
		&motionTime,
		&d.MotionDistance,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Device{}, false, nil
	}
	if err != nil {
		return domain.Device{}, false, fmt.Errorf("select device %d: %w", id, err)
	}
	d.Attributes = domain.Attributes(attrs)
	d.MotionState = domain.MotionTag(state)
	if motionTime != nil {
		d.MotionTime = *motionTime
	}
	return d, true, nil
}

var updatableDeviceFields = map[string]bool{
	domain.FieldMotionStreak:   true,
	domain.FieldMotionState:    true,
	domain.FieldMotionTime:     true,
	domain.FieldMotionDistance: true,
}

// UpdateDeviceFields writes only the listed columns of one device.
func (s *TimescaleStore) UpdateDeviceFields(ctx context.Context, u *domain.DeviceUpdate) error {
	if len(u.Fields) == 0 {
		return nil
	}
	sets := make([]string, 0, len(u.Fields))
	args := make([]any, 0, len(u.Fields)+1)
	for _, f := range u.Fields {
		if !updatableDeviceFields[f] {
			return fmt.Errorf("device field %q is not updatable", f)
		}
		args = append(args, u.Values[f])
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{f}.Sanitize(), len(args)))
	}
	args = append(args, u.DeviceID)
	query := fmt.Sprintf("UPDATE devices SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update device %d: %w", u.DeviceID, err)
	}
	return nil
}

func (s *TimescaleStore) ListGeofences(ctx context.Context) ([]domain.Geofence, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, COALESCE(calendar_id, 0) FROM geofences`)
	if err != nil {
		return nil, fmt.Errorf("select geofences: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Geofence, error) {
		var g domain.Geofence
		err := row.Scan(&g.ID, &g.Name, &g.CalendarID)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan geofences: %w", err)
	}
	return out, nil
}

// ListCalendars parses every stored calendar. Calendars that fail to parse
// are left out and reported in the returned error alongside the valid ones.
func (s *TimescaleStore) ListCalendars(ctx context.Context) (map[int64]calendar.Schedule, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, schedule, time_zone FROM calendars`)
	if err != nil {
		return nil, fmt.Errorf("select calendars: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]calendar.Schedule)
	var errs []error
	for rows.Next() {
		var (
			id       int64
			schedule string
			zone     string
		)
		if err := rows.Scan(&id, &schedule, &zone); err != nil {
			return nil, fmt.Errorf("scan calendar: %w", err)
		}
		loc, err := time.LoadLocation(zone)
		if err != nil {
			errs = append(errs, fmt.Errorf("calendar %d: %w", id, err))
			continue
		}
		parsed, err := calendar.ParseIn(schedule, loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("calendar %d: %w", id, err))
			continue
		}
		out[id] = parsed
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read calendars: %w", err)
	}
	return out, errors.Join(errs...)
}

var positionColumns = []string{
	"id",
	"device_id",
	"fix_time",
	"latitude",
	"longitude",
	"speed",
	"motion",
	"geofence_ids",
	"attributes",
}

func (s *TimescaleStore) BatchInsertPositions(ctx context.Context, positions []*domain.Position) error {
	if len(positions) == 0 {
		return nil
	}

	// COPY does not apply column defaults.
	rows := make([][]any, len(positions))
	for i, p := range positions {
		geofences := p.GeofenceIDs
		if geofences == nil {
			geofences = []int64{}
		}
		attrs := map[string]any(p.Attributes)
		if attrs == nil {
			attrs = map[string]any{}
		}
		rows[i] = []any{
			p.ID,
			p.DeviceID,
			p.FixTime,
			p.Latitude,
			p.Longitude,
			p.Speed,
			p.Motion,
			geofences,
			attrs,
		}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"positions"},
		positionColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("CopyFrom failed for batch of %d: %w", len(positions), err)
	}

	return nil
}

// BatchInsertEvents is idempotent on event id, so a batch may be retried or
// re-delivered without duplicating rows.
func (s *TimescaleStore) BatchInsertEvents(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO events
			(id, type, device_id, event_time, position_id, geofence_id, attributes)
		VALUES
			($1, $2, $3, $4, NULLIF($5::bigint, 0), NULLIF($6::bigint, 0), $7)
		ON CONFLICT (id) DO NOTHING
	`
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(query,
			e.ID,
			string(e.Type),
			e.DeviceID,
			e.EventTime,
			e.PositionID,
			e.GeofenceID,
			map[string]any(e.Attributes),
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert batch of %d events: %w", len(events), err)
	}
	return nil
}

func (s *TimescaleStore) FetchPositions(ctx context.Context, deviceID int64, from, to time.Time) ([]domain.Position, error) {
	query := `
		SELECT id, device_id, fix_time, latitude, longitude, speed, motion,
		       COALESCE(geofence_ids, '{}'), COALESCE(attributes, '{}')
		FROM positions
		WHERE device_id = $1 AND fix_time >= $2 AND fix_time < $3
		ORDER BY fix_time
	`
	rows, err := s.pool.Query(ctx, query, deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("select positions for device %d: %w", deviceID, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Position, error) {
		var (
			p     domain.Position
			attrs map[string]any
		)
		err := row.Scan(&p.ID, &p.DeviceID, &p.FixTime, &p.Latitude, &p.Longitude,
			&p.Speed, &p.Motion, &p.GeofenceIDs, &attrs)
		p.Attributes = domain.Attributes(attrs)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan positions for device %d: %w", deviceID, err)
	}
	return out, nil
}
