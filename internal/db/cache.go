package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/livinlefevreloca/lectio/internal/liturgy"
)

// =============================================================================
// Liturgical Day Operations
// =============================================================================

// GetDay retrieves the cached day for a date key
func (db *DB) GetDay(ctx context.Context, date string) (*liturgy.Day, error) {
	day := &liturgy.Day{}

	query := `
		SELECT id, date, season, week, title, color, rank, cache_timestamp
		FROM liturgical_days
		WHERE date = ?
	`

	err := db.QueryRowContext(ctx, query, date).Scan(
		&day.ID,
		&day.Date,
		&day.Season,
		&day.Week,
		&day.Title,
		&day.Color,
		&day.Rank,
		&day.CacheTimestamp,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("get day", err)
	}

	return day, nil
}

// UpsertDay inserts or refreshes a cached day. Identical content is a no-op.
func (db *DB) UpsertDay(ctx context.Context, day *liturgy.Day) error {
	return wrap("upsert day", db.WithTransaction(ctx, func(tx *Tx) error {
		return tx.UpsertDay(ctx, day)
	}))
}

// UpsertDay inserts or refreshes a cached day within a transaction
func (tx *Tx) UpsertDay(ctx context.Context, day *liturgy.Day) error {
	// A date maps to one day; a re-keyed remote day replaces the old row
	if _, err := tx.ExecContext(ctx, `DELETE FROM liturgical_days WHERE date = ? AND id != ?`, day.Date, day.ID); err != nil {
		return err
	}

	if day.CacheTimestamp.IsZero() {
		day.CacheTimestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO liturgical_days (id, date, season, week, title, color, rank, content_hash, cache_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			date = excluded.date,
			season = excluded.season,
			week = excluded.week,
			title = excluded.title,
			color = excluded.color,
			rank = excluded.rank,
			content_hash = excluded.content_hash,
			cache_timestamp = excluded.cache_timestamp
		WHERE liturgical_days.content_hash != excluded.content_hash
	`

	_, err := tx.ExecContext(ctx, query,
		day.ID,
		day.Date,
		day.Season,
		day.Week,
		day.Title,
		day.Color,
		day.Rank,
		day.ContentHash(),
		day.CacheTimestamp.UTC(),
	)
	return err
}

// =============================================================================
// Reading Operations
// =============================================================================

// GetReadings retrieves the cached readings for a date ordered by reading order.
// Returns an empty slice when nothing is cached.
func (db *DB) GetReadings(ctx context.Context, date string) ([]liturgy.Reading, error) {
	query := `
		SELECT id, day_date, reading_order, kind, citation, title, body, cache_timestamp
		FROM readings
		WHERE day_date = ?
		ORDER BY reading_order, id
	`

	rows, err := db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, wrap("get readings", err)
	}
	defer rows.Close()

	readings := []liturgy.Reading{}
	for rows.Next() {
		var r liturgy.Reading
		err := rows.Scan(
			&r.ID,
			&r.DayDate,
			&r.Order,
			&r.Kind,
			&r.Citation,
			&r.Title,
			&r.Body,
			&r.CacheTimestamp,
		)
		if err != nil {
			return nil, wrap("get readings", err)
		}
		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap("get readings", err)
	}

	return readings, nil
}

// ReadingHashes returns id -> content hash for the readings cached under date
func (db *DB) ReadingHashes(ctx context.Context, date string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, content_hash FROM readings WHERE day_date = ?`, date)
	if err != nil {
		return nil, wrap("reading hashes", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, wrap("reading hashes", err)
		}
		hashes[id] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("reading hashes", err)
	}
	return hashes, nil
}

// UpsertReadings inserts or refreshes readings in one transaction.
// Readings whose content is unchanged are left untouched.
func (db *DB) UpsertReadings(ctx context.Context, readings []liturgy.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	return wrap("upsert readings", db.WithTransaction(ctx, func(tx *Tx) error {
		return tx.UpsertReadings(ctx, readings)
	}))
}

// UpsertReadings inserts or refreshes readings within a transaction
func (tx *Tx) UpsertReadings(ctx context.Context, readings []liturgy.Reading) error {
	query := `
		INSERT INTO readings (id, day_date, reading_order, kind, citation, title, body, content_hash, cache_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			day_date = excluded.day_date,
			reading_order = excluded.reading_order,
			kind = excluded.kind,
			citation = excluded.citation,
			title = excluded.title,
			body = excluded.body,
			content_hash = excluded.content_hash,
			cache_timestamp = excluded.cache_timestamp
		WHERE readings.content_hash != excluded.content_hash
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range readings {
		r := &readings[i]
		if r.CacheTimestamp.IsZero() {
			r.CacheTimestamp = now
		}
		_, err := stmt.ExecContext(ctx,
			r.ID,
			r.DayDate,
			r.Order,
			r.Kind,
			r.Citation,
			r.Title,
			r.Body,
			r.ContentHash(),
			r.CacheTimestamp.UTC(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteReadings removes readings by id within a transaction
func (tx *Tx) DeleteReadings(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := tx.ExecContext(ctx, "DELETE FROM readings WHERE id IN ("+placeholders+")", args...)
	return err
}

// ApplySnapshot writes one reconciled date atomically: the day, the readings
// that changed, and removal of readings the remote no longer lists.
func (db *DB) ApplySnapshot(ctx context.Context, day *liturgy.Day, changed []liturgy.Reading, removed []string) error {
	return wrap("apply snapshot", db.WithTransaction(ctx, func(tx *Tx) error {
		if err := tx.UpsertDay(ctx, day); err != nil {
			return err
		}
		if err := tx.DeleteReadings(ctx, removed); err != nil {
			return err
		}
		if len(changed) == 0 {
			return nil
		}
		return tx.UpsertReadings(ctx, changed)
	}))
}

// =============================================================================
// Window Maintenance
// =============================================================================

// TrimOutsideWindow deletes every cached day and reading dated outside
// [center-before, center+after] in a single transaction.
func (db *DB) TrimOutsideWindow(ctx context.Context, center time.Time, before, after int) (TrimResult, error) {
	lo := liturgy.DateKey(liturgy.AddDays(center, -before))
	hi := liturgy.DateKey(liturgy.AddDays(center, after))

	var result TrimResult
	err := db.WithTransaction(ctx, func(tx *Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM readings WHERE day_date < ? OR day_date > ?`, lo, hi)
		if err != nil {
			return err
		}
		if result.ReadingsRemoved, err = res.RowsAffected(); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `DELETE FROM liturgical_days WHERE date < ? OR date > ?`, lo, hi)
		if err != nil {
			return err
		}
		result.DaysRemoved, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return TrimResult{}, wrap("trim window", err)
	}

	return result, nil
}
