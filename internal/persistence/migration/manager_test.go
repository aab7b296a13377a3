package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type stubScanner struct {
	migrations []Migration
	err        error
}

func (s *stubScanner) ScanMigrations(string) ([]Migration, error) {
	return s.migrations, s.err
}

func (s *stubScanner) ValidateFileName(string) error { return nil }

func (s *stubScanner) ParseMigrationFile(string) (*Migration, error) { return nil, nil }

type stubExecutor struct {
	applied  []AppliedMigration
	execErr  error
	initErr  error
	executed []string
	recorded []string
}

func (e *stubExecutor) ExecuteMigration(_ context.Context, migration Migration) error {
	if e.execErr != nil {
		return e.execErr
	}
	e.executed = append(e.executed, migration.Version)
	return nil
}

func (e *stubExecutor) InitializeVersionTable(context.Context) error { return e.initErr }

func (e *stubExecutor) RecordMigration(_ context.Context, migration Migration, d time.Duration) error {
	e.recorded = append(e.recorded, migration.Version)
	e.applied = append(e.applied, AppliedMigration{Version: migration.Version, Checksum: migration.Checksum, ExecutionTime: d})
	return nil
}

func (e *stubExecutor) GetAppliedVersions(context.Context) ([]AppliedMigration, error) {
	return e.applied, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_RunMigrations(t *testing.T) {
	available := []Migration{
		{Version: "001", Description: "initial", Checksum: "a"},
		{Version: "002", Description: "indexes", Checksum: "b"},
	}

	t.Run("applies only pending migrations", func(t *testing.T) {
		executor := &stubExecutor{applied: []AppliedMigration{{Version: "001", Checksum: "a"}}}
		manager := NewManager(&stubScanner{migrations: available}, executor, "migrations", discardLogger())

		if err := manager.RunMigrations(context.Background()); err != nil {
			t.Fatalf("RunMigrations returned error: %v", err)
		}
		if len(executor.executed) != 1 || executor.executed[0] != "002" {
			t.Fatalf("expected only 002 to run, got %v", executor.executed)
		}
		if len(executor.recorded) != 1 {
			t.Fatalf("expected one recorded migration, got %v", executor.recorded)
		}

		status, err := manager.Status(context.Background())
		if err != nil {
			t.Fatalf("Status returned error: %v", err)
		}
		if status.CurrentVersion != "002" || status.PendingCount != 0 {
			t.Fatalf("unexpected status: %+v", status)
		}
	})

	t.Run("wraps execution failures", func(t *testing.T) {
		executor := &stubExecutor{execErr: errors.New("syntax error")}
		manager := NewManager(&stubScanner{migrations: available}, executor, "migrations", discardLogger())

		err := manager.RunMigrations(context.Background())
		if !errors.Is(err, ErrMigrationFailed) {
			t.Fatalf("expected ErrMigrationFailed, got %v", err)
		}
		if len(executor.recorded) != 0 {
			t.Fatalf("expected no recorded migrations, got %v", executor.recorded)
		}
	})

	t.Run("detects edited migrations", func(t *testing.T) {
		executor := &stubExecutor{applied: []AppliedMigration{{Version: "001", Checksum: "changed"}}}
		manager := NewManager(&stubScanner{migrations: available}, executor, "migrations", discardLogger())

		if err := manager.RunMigrations(context.Background()); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})

	t.Run("detects sequence gaps", func(t *testing.T) {
		gapped := []Migration{{Version: "001"}, {Version: "003"}}
		manager := NewManager(&stubScanner{migrations: gapped}, &stubExecutor{}, "migrations", discardLogger())

		if err := manager.RunMigrations(context.Background()); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("detects applied versions without files", func(t *testing.T) {
		executor := &stubExecutor{applied: []AppliedMigration{{Version: "007"}}}
		manager := NewManager(&stubScanner{migrations: available}, executor, "migrations", discardLogger())

		if err := manager.RunMigrations(context.Background()); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("propagates init failures", func(t *testing.T) {
		executor := &stubExecutor{initErr: errors.New("disk full")}
		manager := NewManager(&stubScanner{migrations: available}, executor, "migrations", discardLogger())

		if err := manager.RunMigrations(context.Background()); err == nil {
			t.Fatalf("expected error")
		}
	})
}
