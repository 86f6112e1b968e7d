package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"swasthiq/backend/internal/domain"
	"swasthiq/backend/internal/store"
)

// noOverlapConstraint is the exclusion constraint guarding doctor calendars.
// The application-level conflict check runs first to produce a friendly error;
// the constraint is the authoritative guard under concurrency.
const noOverlapConstraint = "appointments_no_overlap"

type AppointmentRepo struct {
	db *bun.DB

	// statementTimeout bounds every store call; zero disables the bound.
	statementTimeout time.Duration
}

func NewAppointmentRepo(db *bun.DB, statementTimeout time.Duration) *AppointmentRepo {
	return &AppointmentRepo{db: db, statementTimeout: statementTimeout}
}

func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var out domain.Appointment
	err := r.inDoctorDayTx(ctx, appt.DoctorName, appt.Date, func(ctx context.Context, tx bun.Tx) error {
		booked, err := listDoctorDay(ctx, tx, appt.DoctorName, appt.Date)
		if err != nil {
			return err
		}
		if c := domain.FindConflict(booked, appt.Time, appt.Duration, uuid.Nil); c != nil {
			return &store.ConflictError{Conflict: *c}
		}

		m := appt
		res, err := tx.NewInsert().Model(&m).Exec(ctx)
		if err != nil {
			return mapPgError(err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("%w: insert affected no rows", store.ErrPersistence)
		}

		// The caller contract re-reads the row by its natural key, newest
		// first, and treats an unreadable row as a store failure.
		var created domain.Appointment
		err = tx.NewSelect().
			Model(&created).
			Where("patient_name = ?", m.PatientName).
			Where("date = ?", m.Date).
			Where(`"time" = ?`, m.Time).
			OrderExpr("created_at DESC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: created appointment not readable", store.ErrPersistence)
			}
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Appointment{}, asStoreErr(err)
	}
	return out, nil
}

func (r *AppointmentRepo) List(ctx context.Context, filter store.ListFilter) ([]domain.Appointment, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var rows []domain.Appointment
	err := r.runWithRetry(ctx, func(ctx context.Context) error {
		rows = nil
		q := r.db.NewSelect().Model(&rows)
		if filter.Date != nil {
			q = q.Where("date = ?", *filter.Date)
		}
		if filter.Status != nil {
			q = q.Where("status = ?", *filter.Status)
		}
		return q.OrderExpr(`date ASC, "time" ASC`).Scan(ctx)
	})
	if err != nil {
		return nil, asStoreErr(err)
	}
	return rows, nil
}

func (r *AppointmentRepo) ListRange(ctx context.Context, startDate, endDate time.Time) ([]domain.Appointment, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var rows []domain.Appointment
	err := r.runWithRetry(ctx, func(ctx context.Context) error {
		rows = nil
		return r.db.NewSelect().
			Model(&rows).
			Where("date BETWEEN ? AND ?", startDate, endDate).
			OrderExpr(`date ASC, "time" ASC`).
			Scan(ctx)
	})
	if err != nil {
		return nil, asStoreErr(err)
	}
	return rows, nil
}

func (r *AppointmentRepo) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var out domain.Appointment
	err := r.runWithRetry(ctx, func(ctx context.Context) error {
		out = domain.Appointment{}
		return r.db.NewSelect().Model(&out).Where("id = ?", id).Scan(ctx)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, asStoreErr(err)
	}
	return out, nil
}

func (r *AppointmentRepo) Update(ctx context.Context, id uuid.UUID, patch store.AppointmentPatch) (domain.Appointment, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var out domain.Appointment
	err := r.runWithRetry(ctx, func(ctx context.Context) error {
		return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			var existing domain.Appointment
			err := tx.NewSelect().Model(&existing).Where("id = ?", id).Scan(ctx)
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			if err != nil {
				return err
			}

			merged := patch.Apply(existing)

			// Lock the target doctor's day before deciding; conflict checking
			// always runs against the merged view.
			if err := lockDoctorDay(ctx, tx, merged.DoctorName, merged.Date); err != nil {
				return err
			}
			if patch.TouchesSchedule() {
				booked, err := listDoctorDay(ctx, tx, merged.DoctorName, merged.Date)
				if err != nil {
					return err
				}
				if c := domain.FindConflict(booked, merged.Time, merged.Duration, id); c != nil {
					return &store.ConflictError{Conflict: *c}
				}
			}

			q := tx.NewUpdate().Model((*domain.Appointment)(nil)).Where("id = ?", id)
			if patch.PatientName != nil {
				q = q.Set("patient_name = ?", *patch.PatientName)
			}
			if patch.DoctorName != nil {
				q = q.Set("doctor_name = ?", *patch.DoctorName)
			}
			if patch.Date != nil {
				q = q.Set("date = ?", *patch.Date)
			}
			if patch.Time != nil {
				q = q.Set(`"time" = ?`, *patch.Time)
			}
			if patch.Duration != nil {
				q = q.Set("duration = ?", *patch.Duration)
			}
			if patch.Status != nil {
				q = q.Set("status = ?", *patch.Status)
			}
			if patch.Mode != nil {
				q = q.Set("mode = ?", *patch.Mode)
			}
			if patch.Notes != nil {
				q = q.Set("notes = ?", *patch.Notes)
			}
			q = q.Set("updated_at = ?", time.Now().UTC())

			res, err := q.Exec(ctx)
			if err != nil {
				return mapPgError(err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return store.ErrNotFound
			}

			var updated domain.Appointment
			if err := tx.NewSelect().Model(&updated).Where("id = ?", id).Scan(ctx); err != nil {
				return err
			}
			out = updated
			return nil
		})
	})
	if err != nil {
		return domain.Appointment{}, asStoreErr(err)
	}
	return out, nil
}

func (r *AppointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (domain.Appointment, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var out domain.Appointment
	err := r.runWithRetry(ctx, func(ctx context.Context) error {
		return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			res, err := tx.NewUpdate().
				Model((*domain.Appointment)(nil)).
				Set("status = ?", status).
				Set("updated_at = ?", time.Now().UTC()).
				Where("id = ?", id).
				Exec(ctx)
			if err != nil {
				return mapPgError(err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return store.ErrNotFound
			}

			var updated domain.Appointment
			if err := tx.NewSelect().Model(&updated).Where("id = ?", id).Scan(ctx); err != nil {
				return err
			}
			out = updated
			return nil
		})
	})
	if err != nil {
		return domain.Appointment{}, asStoreErr(err)
	}
	return out, nil
}

func (r *AppointmentRepo) Delete(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var out domain.Appointment
	err := r.runWithRetry(ctx, func(ctx context.Context) error {
		return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			var existing domain.Appointment
			err := tx.NewSelect().Model(&existing).Where("id = ?", id).Scan(ctx)
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			if err != nil {
				return err
			}

			res, err := tx.NewDelete().
				Model((*domain.Appointment)(nil)).
				Where("id = ?", id).
				Exec(ctx)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("%w: delete affected no rows", store.ErrPersistence)
			}

			out = existing
			return nil
		})
	})
	if err != nil {
		return domain.Appointment{}, asStoreErr(err)
	}
	return out, nil
}

func (r *AppointmentRepo) Ping(ctx context.Context) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *AppointmentRepo) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.statementTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.statementTimeout)
}

// inDoctorDayTx runs fn in a transaction holding an advisory lock on the
// doctor's day, serializing the check-then-write sequence for that calendar.
func (r *AppointmentRepo) inDoctorDayTx(ctx context.Context, doctor string, date time.Time, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.runWithRetry(ctx, func(ctx context.Context) error {
		return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := lockDoctorDay(ctx, tx, doctor, date); err != nil {
				return err
			}
			return fn(ctx, tx)
		})
	})
}

func lockDoctorDay(ctx context.Context, tx bun.Tx, doctor string, date time.Time) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", doctorDayKey(doctor, date)).Exec(ctx)
	return err
}

func doctorDayKey(doctor string, date time.Time) string {
	return doctor + ":" + date.Format("2006-01-02")
}

// listDoctorDay fetches the doctor's non-cancelled bookings for a date in
// ascending time order, the candidate set for conflict detection.
func listDoctorDay(ctx context.Context, db bun.IDB, doctor string, date time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		Where("doctor_name = ?", doctor).
		Where("date = ?", date).
		Where("status != ?", domain.StatusCancelled).
		OrderExpr(`"time" ASC`).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// runWithRetry retries fn exactly once after a connection-class failure,
// pinging first so the pool discards dead connections. Application errors are
// returned as-is.
func (r *AppointmentRepo) runWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !isRetryable(err) {
		return err
	}
	if pingErr := r.db.PingContext(ctx); pingErr != nil {
		return fmt.Errorf("%w: reconnect failed: %v", store.ErrPersistence, pingErr)
	}
	return fn(ctx)
}

func isRetryable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions.
		return len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08"
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == noOverlapConstraint {
		return store.ErrConflict
	}
	return err
}

func asStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: statement timeout: %v", store.ErrPersistence, err)
	}
	return err
}
