package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// ErrTrackNotFound is returned when no state vector is stored for an aircraft.
var ErrTrackNotFound = errors.New("track not found")

// StoredStateVector is a state vector with the time it was received.
type StoredStateVector struct {
	opensky.StateVector
	ReceivedAt time.Time `json:"received_at"`
}

// StateVectorRepository persists state vectors: the latest per aircraft plus
// a history of distinct reports.
type StateVectorRepository struct {
	db *DB
}

// NewStateVectorRepository creates a new repository.
func NewStateVectorRepository(db *DB) *StateVectorRepository {
	return &StateVectorRepository{db: db}
}

// stateVectorColumns is the column order shared by both tables.
var stateVectorColumns = []string{
	"icao24", "callsign", "origin_country", "time_position", "last_contact",
	"longitude", "latitude", "baro_altitude", "on_ground", "velocity",
	"true_track", "vertical_rate", "sensors", "geo_altitude", "squawk",
	"spi", "position_source", "category", "received_at",
}

// placeholders returns "$1, $2, ... $n".
func placeholders(n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(p, ", ")
}

// upsertLatestSQL replaces the latest row unless it is newer than the incoming one.
var upsertLatestSQL = func() string {
	updates := make([]string, 0, len(stateVectorColumns)-1)
	for _, c := range stateVectorColumns[1:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	return fmt.Sprintf(
		`INSERT INTO state_vectors (%s) VALUES (%s)
		ON CONFLICT (icao24) DO UPDATE SET %s
		WHERE state_vectors.last_contact IS NULL
			OR EXCLUDED.last_contact IS NULL
			OR EXCLUDED.last_contact >= state_vectors.last_contact`,
		strings.Join(stateVectorColumns, ", "),
		placeholders(len(stateVectorColumns)),
		strings.Join(updates, ", "),
	)
}()

var insertHistorySQL = fmt.Sprintf(
	`INSERT INTO state_vector_history (%s) VALUES (%s)
	ON CONFLICT (icao24, last_contact) DO NOTHING`,
	strings.Join(stateVectorColumns, ", "),
	placeholders(len(stateVectorColumns)),
)

var selectColumns = strings.Join(stateVectorColumns, ", ")

// stateVectorArgs returns the values for stateVectorColumns. Nil pointers
// become NULL.
func stateVectorArgs(sv opensky.StateVector, receivedAt time.Time) []interface{} {
	var sensors interface{}
	if sv.Sensors != nil {
		sensors = pq.Array(sv.Sensors)
	}
	return []interface{}{
		strings.ToLower(sv.ICAO24), sv.Callsign, sv.OriginCountry, sv.TimePosition, sv.LastContact,
		sv.Longitude, sv.Latitude, sv.BaroAltitude, sv.OnGround, sv.Velocity,
		sv.TrueTrack, sv.VerticalRate, sensors, sv.GeoAltitude, sv.Squawk,
		sv.SPI, int(sv.PositionSource), sv.Category, receivedAt.UTC(),
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStateVector(row rowScanner) (StoredStateVector, error) {
	var s StoredStateVector
	var sensors []int64
	var source int

	err := row.Scan(
		&s.ICAO24, &s.Callsign, &s.OriginCountry, &s.TimePosition, &s.LastContact,
		&s.Longitude, &s.Latitude, &s.BaroAltitude, &s.OnGround, &s.Velocity,
		&s.TrueTrack, &s.VerticalRate, pq.Array(&sensors), &s.GeoAltitude, &s.Squawk,
		&s.SPI, &source, &s.Category, &s.ReceivedAt,
	)
	if err != nil {
		return StoredStateVector{}, err
	}

	s.PositionSource = opensky.PositionSource(source)
	if sensors != nil {
		s.Sensors = make([]int, len(sensors))
		for i, v := range sensors {
			s.Sensors[i] = int(v)
		}
	}
	return s, nil
}

// Upsert stores one state vector.
func (r *StateVectorRepository) Upsert(ctx context.Context, sv opensky.StateVector, receivedAt time.Time) error {
	return r.UpsertBatch(ctx, []opensky.StateVector{sv}, receivedAt)
}

// UpsertBatch stores a feed batch in one transaction.
func (r *StateVectorRepository) UpsertBatch(ctx context.Context, states []opensky.StateVector, receivedAt time.Time) error {
	if len(states) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	latest, err := tx.PrepareContext(ctx, upsertLatestSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer latest.Close()

	history, err := tx.PrepareContext(ctx, insertHistorySQL)
	if err != nil {
		return fmt.Errorf("failed to prepare history insert: %w", err)
	}
	defer history.Close()

	for _, sv := range states {
		args := stateVectorArgs(sv, receivedAt)
		if _, err := latest.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", sv.ICAO24, err)
		}
		if _, err := history.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to record history for %s: %w", sv.ICAO24, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state vectors: %w", err)
	}
	return nil
}

// Apply stores a feed batch. It satisfies feed.Sink.
func (r *StateVectorRepository) Apply(ctx context.Context, states []opensky.StateVector, _ int64) error {
	return r.UpsertBatch(ctx, states, time.Now())
}

// Get returns the latest stored state vector for icao24.
func (r *StateVectorRepository) Get(ctx context.Context, icao24 string) (*StoredStateVector, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM state_vectors WHERE icao24 = $1`,
		strings.ToLower(icao24),
	)
	s, err := scanStateVector(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", icao24, ErrTrackNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state vector: %w", err)
	}
	return &s, nil
}

// ListSince returns the latest state vector of every aircraft received at or
// after since, newest first.
func (r *StateVectorRepository) ListSince(ctx context.Context, since time.Time) ([]StoredStateVector, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM state_vectors
		WHERE received_at >= $1
		ORDER BY received_at DESC, icao24`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list state vectors: %w", err)
	}
	return collect(rows)
}

// History returns up to limit past reports for icao24, newest first.
func (r *StateVectorRepository) History(ctx context.Context, icao24 string, limit int) ([]StoredStateVector, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM state_vector_history
		WHERE icao24 = $1
		ORDER BY received_at DESC
		LIMIT $2`,
		strings.ToLower(icao24), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]StoredStateVector, error) {
	defer rows.Close()

	var out []StoredStateVector
	for rows.Next() {
		s, err := scanStateVector(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state vector: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate state vectors: %w", err)
	}
	return out, nil
}
