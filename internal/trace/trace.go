package trace

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskweave/taskweave/pkg/models"
)

// RunStatus describes how a run ended.
type RunStatus string

const (
	// RunStatusCompleted means the root task was composed successfully.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed means the run ended with a permanent failure.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCancelled means the run was interrupted before the queue drained.
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is a persisted workforce run.
type Run struct {
	ID          string     `yaml:"id"`
	RootContent string     `yaml:"root_content"`
	RootResult  string     `yaml:"root_result,omitempty"`
	Status      RunStatus  `yaml:"status"`
	Error       string     `yaml:"error,omitempty"`
	StartedAt   time.Time  `yaml:"started_at"`
	FinishedAt  *time.Time `yaml:"finished_at,omitempty"`
	Packets     []Record   `yaml:"packets,omitempty"`
}

// Record is one packet of a persisted run: a task, who published and
// worked it, what it depended on, and how it ended.
type Record struct {
	TaskID       string   `yaml:"task_id"`
	Content      string   `yaml:"content"`
	Result       string   `yaml:"result,omitempty"`
	TaskState    string   `yaml:"task_state"`
	PublisherID  string   `yaml:"publisher_id"`
	AssigneeID   string   `yaml:"assignee_id"`
	Dependencies []string `yaml:"dependencies,omitempty"`
	Status       string   `yaml:"status"`
	Attempt      int      `yaml:"attempt,omitempty"`
}

// SaveRun persists a run and its packet map in one transaction.
func (db *DB) SaveRun(run Run, packets map[string]*models.Packet) error {
	return db.Transaction(func(tx *sql.Tx) error {
		var finished sql.NullString
		if run.FinishedAt != nil {
			finished = sql.NullString{String: formatTime(*run.FinishedAt), Valid: true}
		}

		_, err := tx.Exec(`
			INSERT INTO runs (id, root_content, root_result, status, error, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.ID, run.RootContent, run.RootResult, string(run.Status), run.Error, formatTime(run.StartedAt), finished)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", run.ID, err)
		}

		for _, record := range recordsFromPackets(packets) {
			_, err := tx.Exec(`
				INSERT INTO packets (run_id, task_id, content, result, task_state, publisher_id, assignee_id, dependencies, status, attempt)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, run.ID, record.TaskID, record.Content, record.Result, record.TaskState,
				record.PublisherID, record.AssigneeID, strings.Join(record.Dependencies, ","),
				record.Status, record.Attempt)
			if err != nil {
				return fmt.Errorf("insert packet %s: %w", record.TaskID, err)
			}
		}

		return nil
	})
}

// LoadRun returns a run with its packets, or an error if no run has the id.
func (db *DB) LoadRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, root_content, root_result, status, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT task_id, content, result, task_state, publisher_id, assignee_id, dependencies, status, attempt
		FROM packets WHERE run_id = ? ORDER BY task_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query packets for run %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var record Record
		var result, deps sql.NullString
		if err := rows.Scan(&record.TaskID, &record.Content, &result, &record.TaskState,
			&record.PublisherID, &record.AssigneeID, &deps, &record.Status, &record.Attempt); err != nil {
			return nil, fmt.Errorf("scan packet: %w", err)
		}
		record.Result = result.String
		if deps.Valid && deps.String != "" {
			record.Dependencies = strings.Split(deps.String, ",")
		}
		run.Packets = append(run.Packets, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packets: %w", err)
	}

	return run, nil
}

// Runs lists persisted runs, most recent first, without their packets.
func (db *DB) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(`
		SELECT id, root_content, root_result, status, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// PurgeOldRuns deletes runs that started before the cutoff and returns the
// number of runs removed. Packets cascade.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	var count int64
	err := db.Transaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM runs WHERE started_at < ?`, formatTime(time.Now().Add(-olderThan)))
		if err != nil {
			return fmt.Errorf("purge old runs: %w", err)
		}
		count, err = result.RowsAffected()
		return err
	})
	return count, err
}

// ExportYAML renders a run as YAML for offline inspection.
func ExportYAML(run *Run) ([]byte, error) {
	out, err := yaml.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("marshal run %s: %w", run.ID, err)
	}
	return out, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var rootResult, errMsg sql.NullString
	var started string
	var finished sql.NullString

	if err := s.Scan(&run.ID, &run.RootContent, &rootResult, (*string)(&run.Status), &errMsg, &started, &finished); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.RootResult = rootResult.String
	run.Error = errMsg.String

	startedAt, err := parseTime(started)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	run.StartedAt = startedAt
	run.FinishedAt = parseNullableTime(finished)

	return &run, nil
}

// recordsFromPackets flattens a packet map into records ordered by task id.
func recordsFromPackets(packets map[string]*models.Packet) []Record {
	ids := make([]string, 0, len(packets))
	for id := range packets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		packet := packets[id]
		records = append(records, Record{
			TaskID:       packet.Task.ID,
			Content:      packet.Task.Content,
			Result:       packet.Task.Result,
			TaskState:    string(packet.Task.State),
			PublisherID:  packet.PublisherID,
			AssigneeID:   packet.AssigneeID,
			Dependencies: packet.Dependencies,
			Status:       string(packet.Status),
			Attempt:      packet.Attempt,
		})
	}
	return records
}
