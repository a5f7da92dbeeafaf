// README: Completed trip session archive backed by PostgreSQL.
package history

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgconn"

    "drivesafe/internal/modules/session"
    "drivesafe/internal/types"
)

const (
    DefaultListLimit = 20
    MaxListLimit     = 100
)

var (
    ErrNotFound     = errors.New("archived session not found")
    ErrNotCompleted = errors.New("only completed sessions are archived")
)

// Querier is satisfied by *pgxpool.Pool and pgxmock pools.
type Querier interface {
    Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
    Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
    QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
    db Querier
}

func NewStore(db Querier) *Store {
    return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS live_trip_sessions (
    id            TEXT PRIMARY KEY,
    vehicle_id    TEXT NOT NULL DEFAULT '',
    reason        TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    last_activity TIMESTAMPTZ NOT NULL,
    completed_at  TIMESTAMPTZ NOT NULL,
    samples       INTEGER NOT NULL DEFAULT 0,
    distance_km   DOUBLE PRECISION NOT NULL DEFAULT 0
)`

func (s *Store) EnsureSchema(ctx context.Context) error {
    if _, err := s.db.Exec(ctx, schema); err != nil {
        return fmt.Errorf("create live_trip_sessions: %w", err)
    }
    return nil
}

// Record archives a completed session. Re-recording the same id is a no-op.
func (s *Store) Record(ctx context.Context, sess session.Session) error {
    if sess.Status != session.StatusCompleted || sess.CompletedAt == nil {
        return ErrNotCompleted
    }
    _, err := s.db.Exec(ctx, `
        INSERT INTO live_trip_sessions (
            id, vehicle_id, reason, created_at, last_activity, completed_at, samples, distance_km
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO NOTHING`,
        string(sess.ID),
        string(sess.VehicleID),
        string(sess.Reason),
        sess.CreatedAt,
        sess.LastActivity,
        *sess.CompletedAt,
        sess.Samples,
        sess.DistanceKm,
    )
    if err != nil {
        return fmt.Errorf("archive session %s: %w", sess.ID, err)
    }
    return nil
}

const selectColumns = `SELECT id, vehicle_id, reason, created_at, last_activity, completed_at, samples, distance_km
        FROM live_trip_sessions`

// List returns the most recently completed sessions first.
func (s *Store) List(ctx context.Context, limit int) ([]session.Session, error) {
    if limit <= 0 {
        limit = DefaultListLimit
    }
    if limit > MaxListLimit {
        limit = MaxListLimit
    }
    rows, err := s.db.Query(ctx, selectColumns+`
        ORDER BY completed_at DESC
        LIMIT $1`, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := []session.Session{}
    for rows.Next() {
        sess, err := scanSession(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, sess)
    }
    return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id types.ID) (session.Session, error) {
    row := s.db.QueryRow(ctx, selectColumns+`
        WHERE id = $1`, string(id))
    sess, err := scanSession(row)
    if errors.Is(err, pgx.ErrNoRows) {
        return session.Session{}, ErrNotFound
    }
    return sess, err
}

func scanSession(row pgx.Row) (session.Session, error) {
    var id, vehicleID, reason string
    var createdAt, lastActivity, completedAt time.Time
    var samples int
    var distance float64
    if err := row.Scan(&id, &vehicleID, &reason, &createdAt, &lastActivity, &completedAt, &samples, &distance); err != nil {
        return session.Session{}, err
    }
    return session.Session{
        ID:           types.ID(id),
        Status:       session.StatusCompleted,
        CreatedAt:    createdAt,
        LastActivity: lastActivity,
        CompletedAt:  &completedAt,
        Reason:       session.Reason(reason),
        VehicleID:    types.ID(vehicleID),
        Samples:      samples,
        DistanceKm:   distance,
    }, nil
}
