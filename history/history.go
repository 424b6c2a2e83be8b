/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package history records probe outcomes in a SQLite database and summarizes them per target.
*/
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	// sqlite driver
	_ "modernc.org/sqlite"

	"github.com/aguacero7/rkik/probe"
)

const schema = `
CREATE TABLE IF NOT EXISTS probes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_ns INTEGER NOT NULL,
	target TEXT NOT NULL,
	ip TEXT,
	success BOOLEAN NOT NULL,
	offset_ms REAL,
	rtt_ms REAL,
	stratum INTEGER,
	error_kind TEXT,
	error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_probes_target_ts ON probes(target, ts_ns);
`

// DB stores outcomes
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("database open failed: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between our own connections
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL"} {
		if _, err := db.Exec(pragma); err != nil {
			log.Warningf("history: %s: %v", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema creation failed: %w", err)
	}
	return &DB{db: db, now: time.Now}, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Save records one cycle of outcomes in a single transaction
func (d *DB) Save(ctx context.Context, outcomes []probe.Outcome) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO probes (ts_ns, target, ip, success, offset_ms, rtt_ms, stratum, error_kind, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := d.now()
	for _, o := range outcomes {
		if o.Err != nil {
			_, err = stmt.ExecContext(ctx, now.UnixNano(), o.Spec, nil, false, nil, nil, nil,
				probe.KindOf(o.Err).String(), o.Err.Error())
		} else {
			r := o.Result
			_, err = stmt.ExecContext(ctx, now.UnixNano(), o.Spec, r.Target.IP.String(), true,
				r.OffsetMs, r.RTTMs, int64(r.Stratum), nil, nil)
		}
		if err != nil {
			return fmt.Errorf("saving %s: %w", o.Spec, err)
		}
	}
	return tx.Commit()
}

// Summary of one target's recorded probes
type Summary struct {
	Target   string
	Samples  int64
	Failures int64
	// offset and rtt fields are zero when every probe failed
	MinOffsetMs float64
	MaxOffsetMs float64
	AvgOffsetMs float64
	AvgRTTMs    float64
	LastSeen    time.Time
}

// Summaries returns per target summaries of probes recorded at or after since, sorted by target
func (d *DB) Summaries(ctx context.Context, since time.Time) ([]Summary, error) {
	var sinceNs int64
	if !since.IsZero() {
		sinceNs = since.UnixNano()
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT
			target,
			COUNT(*),
			SUM(CASE WHEN success THEN 0 ELSE 1 END),
			MIN(offset_ms),
			MAX(offset_ms),
			AVG(offset_ms),
			AVG(rtt_ms),
			MAX(ts_ns)
		FROM probes
		WHERE ts_ns >= ?
		GROUP BY target
		ORDER BY target`, sinceNs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var minOff, maxOff, avgOff, avgRTT sql.NullFloat64
		var last int64
		if err := rows.Scan(&s.Target, &s.Samples, &s.Failures, &minOff, &maxOff, &avgOff, &avgRTT, &last); err != nil {
			return nil, err
		}
		s.MinOffsetMs = minOff.Float64
		s.MaxOffsetMs = maxOff.Float64
		s.AvgOffsetMs = avgOff.Float64
		s.AvgRTTMs = avgRTT.Float64
		s.LastSeen = time.Unix(0, last)
		out = append(out, s)
	}
	return out, rows.Err()
}
