// Package storage provides a modernc.org/sqlite-backed implementation of
// storage.Driver: pure Go, no cgo, matching the database driver already used
// throughout this codebase's reference lineage.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jtarchie/discovery/storage"
	_ "modernc.org/sqlite"
)

type Sqlite struct {
	writer *sql.DB
	reader *sql.DB
}

func NewSqlite(dsn string, _ string, _ *slog.Logger) (storage.Driver, error) {
	dsn = strings.TrimPrefix(dsn, "sqlite://")

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	//nolint: noctx
	_, err = writer.Exec(`
		CREATE TABLE IF NOT EXISTS registry (
			id TEXT NOT NULL PRIMARY KEY,
			type TEXT NOT NULL,
			name TEXT,
			description TEXT,
			schema BLOB NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
		CREATE INDEX IF NOT EXISTS idx_registry_type ON registry(type);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry table: %w", err)
	}

	//nolint: noctx
	_, err = writer.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			parent_id TEXT,
			parameters BLOB,
			status TEXT NOT NULL,
			started_at TEXT,
			completed_at TEXT,
			failed_at TEXT,
			result BLOB,
			files BLOB,
			errors BLOB,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create runs table: %w", err)
	}

	writer.SetMaxIdleConns(1)
	writer.SetMaxOpenConns(1)

	reader, err := sql.Open("sqlite", dsn+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Sqlite{writer: writer, reader: reader}, nil
}

func (s *Sqlite) Close() error {
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	if err := s.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}

	return nil
}

func (s *Sqlite) SaveEntry(ctx context.Context, entry storage.Entry) (*storage.Entry, error) {
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	schemaBytes, err := json.Marshal(entry.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	_, err = s.writer.ExecContext(ctx, `
		INSERT INTO registry (id, type, name, description, schema, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Type, entry.Name, entry.Description, schemaBytes,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraint(err) {
			return nil, storage.ErrDuplicate
		}

		return nil, fmt.Errorf("failed to save registry entry: %w", err)
	}

	return &entry, nil
}

func (s *Sqlite) GetEntry(ctx context.Context, id string) (*storage.Entry, error) {
	var entry storage.Entry
	var entryType, createdAt, updatedAt string
	var name, description sql.NullString
	var schemaBytes []byte

	err := s.reader.QueryRowContext(ctx, `
		SELECT id, type, name, description, schema, created_at, updated_at
		FROM registry WHERE id = ?
	`, id).Scan(&entry.ID, &entryType, &name, &description, &schemaBytes, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to get registry entry: %w", err)
	}

	entry.Type = storage.EntryType(entryType)
	entry.Name = name.String
	entry.Description = description.String
	entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	entry.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	if err := json.Unmarshal(schemaBytes, &entry.Schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}

	return &entry, nil
}

func (s *Sqlite) ListEntries(
	ctx context.Context,
	entryType storage.EntryType,
	page, perPage int,
) (*storage.PaginationResult[storage.Entry], error) {
	if page < 1 {
		page = 1
	}

	if perPage < 1 {
		perPage = 20
	}

	var total int

	err := s.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM registry WHERE type = ?`, entryType).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count registry entries: %w", err)
	}

	rows, err := s.reader.QueryContext(ctx, `
		SELECT id, type, name, description, schema, created_at, updated_at
		FROM registry WHERE type = ?
		ORDER BY created_at ASC
		LIMIT ? OFFSET ?
	`, entryType, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list registry entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []storage.Entry{}

	for rows.Next() {
		var entry storage.Entry
		var rowType, createdAt, updatedAt string
		var name, description sql.NullString
		var schemaBytes []byte

		err := rows.Scan(&entry.ID, &rowType, &name, &description, &schemaBytes, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registry entry: %w", err)
		}

		entry.Type = storage.EntryType(rowType)
		entry.Name = name.String
		entry.Description = description.String
		entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entry.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

		if err := json.Unmarshal(schemaBytes, &entry.Schema); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
		}

		items = append(items, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registry entries: %w", err)
	}

	totalPages := (total + perPage - 1) / perPage

	return &storage.PaginationResult[storage.Entry]{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}, nil
}

func (s *Sqlite) BeforeStart(
	ctx context.Context,
	runID, name, ownerID, parentID string,
	parameters storage.Payload,
) (*storage.Run, error) {
	now := time.Now().UTC()

	parametersBytes, err := json.Marshal(parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}

	_, err = s.writer.ExecContext(ctx, `
		INSERT INTO runs (id, name, owner_id, parent_id, parameters, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, name, ownerID, nullable(parentID), parametersBytes, storage.RunStatusPending,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraint(err) {
			return nil, storage.ErrDuplicate
		}

		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return &storage.Run{
		ID:         runID,
		Name:       name,
		OwnerID:    ownerID,
		ParentID:   parentID,
		Parameters: parameters,
		Status:     storage.RunStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *Sqlite) OnStart(ctx context.Context, runID string) (*storage.Run, error) {
	now := time.Now().UTC()

	result, err := s.writer.ExecContext(ctx, `
		UPDATE runs SET status = ?, started_at = ?, updated_at = ? WHERE id = ?
	`, storage.RunStatusRunning, now.Format(time.RFC3339), now.Format(time.RFC3339), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark run running: %w", err)
	}

	if err := requireRowsAffected(result); err != nil {
		return nil, err
	}

	return s.GetRun(ctx, runID)
}

func (s *Sqlite) OnComplete(
	ctx context.Context,
	runID string,
	resultPayload storage.Payload,
	files []storage.RunFile,
) (*storage.Run, error) {
	now := time.Now().UTC()

	resultBytes, err := json.Marshal(resultPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	filesBytes, err := json.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal files: %w", err)
	}

	execResult, err := s.writer.ExecContext(ctx, `
		UPDATE runs SET status = ?, completed_at = ?, result = ?, files = ?, updated_at = ? WHERE id = ?
	`, storage.RunStatusSuccess, now.Format(time.RFC3339), resultBytes, filesBytes, now.Format(time.RFC3339), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark run complete: %w", err)
	}

	if err := requireRowsAffected(execResult); err != nil {
		return nil, err
	}

	return s.GetRun(ctx, runID)
}

func (s *Sqlite) OnError(ctx context.Context, runID, reason, message string) (*storage.Run, storage.RunStatus, error) {
	now := time.Now().UTC()

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, "", err
	}

	previousStatus := run.Status

	errorsList := append(run.Errors, storage.RunError{Reason: reason, Message: message})

	errorsBytes, err := json.Marshal(errorsList)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal errors: %w", err)
	}

	execResult, err := s.writer.ExecContext(ctx, `
		UPDATE runs SET status = ?, failed_at = ?, errors = ?, updated_at = ? WHERE id = ?
	`, storage.RunStatusFailed, now.Format(time.RFC3339), errorsBytes, now.Format(time.RFC3339), runID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to mark run failed: %w", err)
	}

	if err := requireRowsAffected(execResult); err != nil {
		return nil, "", err
	}

	updated, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, "", err
	}

	return updated, previousStatus, nil
}

func (s *Sqlite) GetRun(ctx context.Context, runID string) (*storage.Run, error) {
	var run storage.Run
	var status, createdAt, updatedAt string
	var parentID, startedAt, completedAt, failedAt sql.NullString
	var parametersBytes, resultBytes, filesBytes, errorsBytes []byte

	err := s.writer.QueryRowContext(ctx, `
		SELECT id, name, owner_id, parent_id, parameters, status,
			started_at, completed_at, failed_at, result, files, errors,
			created_at, updated_at
		FROM runs WHERE id = ?
	`, runID).Scan(
		&run.ID, &run.Name, &run.OwnerID, &parentID, &parametersBytes, &status,
		&startedAt, &completedAt, &failedAt, &resultBytes, &filesBytes, &errorsBytes,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.ParentID = parentID.String
	run.Status = storage.RunStatus(status)
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	if startedAt.Valid {
		t, _ := time.Parse(time.RFC3339, startedAt.String)
		run.StartedAt = &t
	}

	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		run.CompletedAt = &t
	}

	if failedAt.Valid {
		t, _ := time.Parse(time.RFC3339, failedAt.String)
		run.FailedAt = &t
	}

	if len(parametersBytes) > 0 {
		if err := json.Unmarshal(parametersBytes, &run.Parameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
		}
	}

	if len(resultBytes) > 0 {
		if err := json.Unmarshal(resultBytes, &run.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}

	if len(filesBytes) > 0 {
		if err := json.Unmarshal(filesBytes, &run.Files); err != nil {
			return nil, fmt.Errorf("failed to unmarshal files: %w", err)
		}
	}

	if len(errorsBytes) > 0 {
		if err := json.Unmarshal(errorsBytes, &run.Errors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal errors: %w", err)
		}
	}

	return &run, nil
}

func requireRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}

	return value
}

func isUniqueConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

func init() {
	storage.Add("sqlite", NewSqlite)
}
