package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/forgemap/forgemap/internal/types"
)

// Archive persists completed runs. A run is archived only after the whole
// pipeline succeeded, so rows never reflect partial output.
type Archive struct {
	db      *sqlx.DB
	queries *Queries
}

// OpenArchive opens the database, ensures the schema, and loads queries.
func OpenArchive(dbURL string) (*Archive, error) {
	db, err := Open(dbURL)
	if err != nil {
		return nil, err
	}

	queries, err := LoadQueries(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	archive := &Archive{db: db, queries: queries}
	if err := archive.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return archive, nil
}

// Close releases the underlying connection pool.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) ensureSchema() error {
	for _, name := range []string{"create-runs-table", "create-actions-table", "create-activities-table"} {
		if _, err := a.queries.Exec(name); err != nil {
			return fmt.Errorf("ensuring schema (%s): %w", name, err)
		}
	}
	return nil
}

// RecordRun archives one run with its actions and activities.
func (a *Archive) RecordRun(runID types.RunID, platform string, eventCount int, actions, activities []types.Record) error {
	_, err := a.queries.Exec("insert-run",
		string(runID), platform, eventCount, len(actions), len(activities),
		types.FormatTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	if err := a.insertRecords("insert-action", "action", runID, actions); err != nil {
		return err
	}
	return a.insertRecords("insert-activity", "activity", runID, activities)
}

func (a *Archive) insertRecords(query, categoryKey string, runID types.RunID, records []types.Record) error {
	for i, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling record %d: %w", i, err)
		}
		category, _ := record[categoryKey].(string)
		if _, err := a.queries.Exec(query, string(runID), i, category, string(payload)); err != nil {
			return fmt.Errorf("inserting record %d: %w", i, err)
		}
	}
	return nil
}
