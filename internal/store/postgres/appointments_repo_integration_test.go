package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"swasthiq/backend/internal/domain"
	"swasthiq/backend/internal/store"
)

// The repository opens its own transactions, so the throwaway schema is
// selected with a session-level search_path on a single-connection pool
// instead of SET LOCAL.
func openTestRepo(t *testing.T) *AppointmentRepo {
	t.Helper()

	databaseURL := strings.TrimSpace(os.Getenv("SWASTHIQ_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("SWASTHIQ_TEST_DATABASE_URL not set")
	}

	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	schema := "swasthiq_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := db.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
		t.Fatalf("create schema error: %v", err)
	}
	if _, err := db.NewRaw("SET search_path TO " + schema + ", public").Exec(ctx); err != nil {
		t.Fatalf("set search_path error: %v", err)
	}

	dir, err := migrationsDir()
	if err != nil {
		t.Fatalf("migrationsDir error: %v", err)
	}
	if err := ApplyMigrations(ctx, db, dir); err != nil {
		t.Fatalf("ApplyMigrations error: %v", err)
	}

	return NewAppointmentRepo(db, 0)
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	base := filepath.Dir(file)
	return filepath.Clean(filepath.Join(base, "..", "..", "..", "migrations")), nil
}

func mustTime(t *testing.T, s string) domain.TimeOfDay {
	t.Helper()
	tod, err := domain.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q) error: %v", s, err)
	}
	return tod
}

func TestPostgresIntegration_MigrationsRerun(t *testing.T) {
	repo := openTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dir, err := migrationsDir()
	if err != nil {
		t.Fatalf("migrationsDir error: %v", err)
	}

	// openTestRepo already applied the migrations once; replaying against the
	// migrated schema must be a clean no-op, not a duplicate-object failure.
	if err := ApplyMigrations(ctx, repo.db, dir); err != nil {
		t.Fatalf("second ApplyMigrations error: %v", err)
	}
	if err := ApplyMigrations(ctx, repo.db, dir); err != nil {
		t.Fatalf("third ApplyMigrations error: %v", err)
	}

	// The store still works afterwards.
	if _, err := repo.Create(ctx, domain.Appointment{
		PatientName: "Alice",
		DoctorName:  "Dr. Smith",
		Date:        time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC),
		Time:        mustTime(t, "09:00"),
		Duration:    30,
		Status:      domain.StatusScheduled,
		Mode:        "In-Person",
	}); err != nil {
		t.Fatalf("Create after rerun error: %v", err)
	}
}

func TestPostgresIntegration_CreateConflictAndRelease(t *testing.T) {
	repo := openTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	date := time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)

	alice, err := repo.Create(ctx, domain.Appointment{
		PatientName: "Alice",
		DoctorName:  "Dr. Smith",
		Date:        date,
		Time:        mustTime(t, "09:00"),
		Duration:    30,
		Status:      domain.StatusScheduled,
		Mode:        "In-Person",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if alice.ID == uuid.Nil {
		t.Fatalf("created appointment has nil id")
	}
	if alice.CreatedAt.IsZero() {
		t.Fatalf("created appointment has zero created_at")
	}

	// Overlapping slot for the same doctor and day names the blocking booking.
	_, err = repo.Create(ctx, domain.Appointment{
		PatientName: "Bob",
		DoctorName:  "Dr. Smith",
		Date:        date,
		Time:        mustTime(t, "09:15"),
		Duration:    30,
		Status:      domain.StatusScheduled,
		Mode:        "In-Person",
	})
	var cErr *store.ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("overlap error = %v, want *ConflictError", err)
	}
	if cErr.Conflict.PatientName != "Alice" {
		t.Fatalf("conflict patient = %q, want Alice", cErr.Conflict.PatientName)
	}
	if cErr.Conflict.Start.String() != "09:00" || cErr.Conflict.End.String() != "09:30" {
		t.Fatalf("conflict window = %s-%s", cErr.Conflict.Start, cErr.Conflict.End)
	}

	// Back-to-back slot is free.
	bob, err := repo.Create(ctx, domain.Appointment{
		PatientName: "Bob",
		DoctorName:  "Dr. Smith",
		Date:        date,
		Time:        mustTime(t, "09:30"),
		Duration:    15,
		Status:      domain.StatusScheduled,
		Mode:        "In-Person",
	})
	if err != nil {
		t.Fatalf("back-to-back Create error: %v", err)
	}

	// Same slot for a different doctor never conflicts.
	if _, err := repo.Create(ctx, domain.Appointment{
		PatientName: "Carol",
		DoctorName:  "Dr. Jones",
		Date:        date,
		Time:        mustTime(t, "09:00"),
		Duration:    30,
		Status:      domain.StatusScheduled,
		Mode:        "Video",
	}); err != nil {
		t.Fatalf("other-doctor Create error: %v", err)
	}

	// Cancelling releases the slot.
	if _, err := repo.UpdateStatus(ctx, alice.ID, domain.StatusCancelled); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	reclaimed, err := repo.Create(ctx, domain.Appointment{
		PatientName: "Dave",
		DoctorName:  "Dr. Smith",
		Date:        date,
		Time:        mustTime(t, "09:05"),
		Duration:    20,
		Status:      domain.StatusScheduled,
		Mode:        "In-Person",
	})
	if err != nil {
		t.Fatalf("Create into cancelled slot error: %v", err)
	}
	if reclaimed.ID == alice.ID || reclaimed.ID == bob.ID {
		t.Fatalf("reclaimed booking reused an existing id")
	}
}

func TestPostgresIntegration_ListFiltersAndRange(t *testing.T) {
	repo := openTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dec15 := time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)
	dec16 := time.Date(2025, 12, 16, 0, 0, 0, 0, time.UTC)

	seed := []domain.Appointment{
		{PatientName: "Alice", DoctorName: "Dr. Smith", Date: dec15, Time: mustTime(t, "10:00"), Duration: 30, Status: domain.StatusConfirmed, Mode: "In-Person"},
		{PatientName: "Bob", DoctorName: "Dr. Smith", Date: dec15, Time: mustTime(t, "09:00"), Duration: 30, Status: domain.StatusScheduled, Mode: "In-Person"},
		{PatientName: "Carol", DoctorName: "Dr. Jones", Date: dec16, Time: mustTime(t, "08:30"), Duration: 45, Status: domain.StatusScheduled, Mode: "Video"},
	}
	for _, appt := range seed {
		if _, err := repo.Create(ctx, appt); err != nil {
			t.Fatalf("seed Create(%s) error: %v", appt.PatientName, err)
		}
	}

	all, err := repo.List(ctx, store.ListFilter{})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	// Ordered by date then time.
	if all[0].PatientName != "Bob" || all[1].PatientName != "Alice" || all[2].PatientName != "Carol" {
		t.Fatalf("order = %s, %s, %s", all[0].PatientName, all[1].PatientName, all[2].PatientName)
	}

	status := domain.StatusConfirmed
	confirmed, err := repo.List(ctx, store.ListFilter{Status: &status})
	if err != nil {
		t.Fatalf("List(status) error: %v", err)
	}
	if len(confirmed) != 1 || confirmed[0].PatientName != "Alice" {
		t.Fatalf("confirmed = %+v", confirmed)
	}

	day := dec16
	byDate, err := repo.List(ctx, store.ListFilter{Date: &day})
	if err != nil {
		t.Fatalf("List(date) error: %v", err)
	}
	if len(byDate) != 1 || byDate[0].PatientName != "Carol" {
		t.Fatalf("byDate = %+v", byDate)
	}

	ranged, err := repo.ListRange(ctx, dec15, dec15)
	if err != nil {
		t.Fatalf("ListRange error: %v", err)
	}
	if len(ranged) != 2 {
		t.Fatalf("len(ranged) = %d, want 2", len(ranged))
	}
}

func TestPostgresIntegration_UpdateAndLifecycle(t *testing.T) {
	repo := openTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	date := time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)

	alice, err := repo.Create(ctx, domain.Appointment{
		PatientName: "Alice",
		DoctorName:  "Dr. Smith",
		Date:        date,
		Time:        mustTime(t, "09:00"),
		Duration:    30,
		Status:      domain.StatusScheduled,
		Mode:        "In-Person",
		Notes:       "first visit",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	bob, err := repo.Create(ctx, domain.Appointment{
		PatientName: "Bob",
		DoctorName:  "Dr. Smith",
		Date:        date,
		Time:        mustTime(t, "10:00"),
		Duration:    30,
		Status:      domain.StatusScheduled,
		Mode:        "In-Person",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// Round-trip check.
	got, err := repo.Get(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.PatientName != "Alice" || got.Time.String() != "09:00" || got.Duration != 30 || got.Notes != "first visit" {
		t.Fatalf("Get = %+v", got)
	}
	if !got.Date.Equal(date) {
		t.Fatalf("Get date = %v, want %v", got.Date, date)
	}

	// Moving Bob onto Alice's slot is rejected; the row stays unchanged.
	newTime := mustTime(t, "09:15")
	_, err = repo.Update(ctx, bob.ID, store.AppointmentPatch{Time: &newTime})
	var cErr *store.ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("conflicting Update error = %v, want *ConflictError", err)
	}
	unchanged, err := repo.Get(ctx, bob.ID)
	if err != nil {
		t.Fatalf("Get after failed Update error: %v", err)
	}
	if unchanged.Time.String() != "10:00" {
		t.Fatalf("failed Update mutated time to %s", unchanged.Time)
	}

	// Rescheduling its own slot must not self-conflict.
	extended := 45
	updated, err := repo.Update(ctx, alice.ID, store.AppointmentPatch{Duration: &extended})
	if err != nil {
		t.Fatalf("self Update error: %v", err)
	}
	if updated.Duration != 45 {
		t.Fatalf("updated duration = %d, want 45", updated.Duration)
	}
	if !updated.UpdatedAt.After(alice.UpdatedAt) {
		t.Fatalf("updated_at not advanced: %v <= %v", updated.UpdatedAt, alice.UpdatedAt)
	}

	snap, err := repo.Delete(ctx, bob.ID)
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if snap.ID != bob.ID || snap.PatientName != "Bob" {
		t.Fatalf("delete snapshot = %+v", snap)
	}

	// Every operation on the deleted row reports not found.
	if _, err := repo.Get(ctx, bob.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
	if _, err := repo.Update(ctx, bob.ID, store.AppointmentPatch{Duration: &extended}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Update after delete = %v, want ErrNotFound", err)
	}
	if _, err := repo.UpdateStatus(ctx, bob.ID, domain.StatusConfirmed); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("UpdateStatus after delete = %v, want ErrNotFound", err)
	}
	if _, err := repo.Delete(ctx, bob.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Delete after delete = %v, want ErrNotFound", err)
	}
}
