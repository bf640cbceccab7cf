package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Placement is one published anchor or, with Lost set, a lost marker.
type Placement struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"sessionId"`
	Tick       uint64    `json:"tick"`
	Kind       string    `json:"kind"`
	Lost       bool      `json:"lost"`
	Finger     string    `json:"finger,omitempty"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Z          float64   `json:"z"`
	Width      float64   `json:"width"`
	Length     float64   `json:"length"`
	Angle      float64   `json:"angle"`
	RecordedAt time.Time `json:"recordedAt"`
}

// PlacementRepository provides access to the placement journal.
type PlacementRepository struct {
	db *sql.DB
}

// Placements returns the placement repository for this store.
func (s *Store) Placements() *PlacementRepository {
	return &PlacementRepository{db: s.db}
}

// Insert appends p to its session and bumps the session counters.
func (r *PlacementRepository) Insert(p *Placement) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO placements (session_id, tick, kind, lost, finger, x, y, z, width, length, angle, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SessionID, int64(p.Tick), p.Kind, p.Lost, p.Finger,
		p.X, p.Y, p.Z, p.Width, p.Length, p.Angle, p.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert placement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	counter := "placements"
	if p.Lost {
		counter = "lost_events"
	}
	res, err := tx.Exec(
		fmt.Sprintf(`UPDATE sessions SET %s = %s + 1 WHERE id = ?`, counter, counter),
		p.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	p.ID = id
	return nil
}

// ListBySession returns a session's placements in tick order, starting
// after tick since. limit <= 0 returns all.
func (r *PlacementRepository) ListBySession(sessionID string, since uint64, limit int) ([]*Placement, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, session_id, tick, kind, lost, finger, x, y, z, width, length, angle, recorded_at
		 FROM placements WHERE session_id = ? AND tick > ? ORDER BY tick, id LIMIT ?`,
		sessionID, int64(since), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var placements []*Placement
	for rows.Next() {
		p := &Placement{}
		var tick int64
		err := rows.Scan(&p.ID, &p.SessionID, &tick, &p.Kind, &p.Lost, &p.Finger,
			&p.X, &p.Y, &p.Z, &p.Width, &p.Length, &p.Angle, &p.RecordedAt)
		if err != nil {
			return nil, err
		}
		p.Tick = uint64(tick)
		placements = append(placements, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return placements, nil
}
