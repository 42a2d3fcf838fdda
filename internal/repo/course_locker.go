package repo

import (
	"context"
	"database/sql"
)

// CourseLocker serializes imports into one course with a postgres advisory
// lock. The lock lives on a dedicated connection and is held for the span of
// one orchestrator invocation.
type CourseLocker struct {
	db *sql.DB
}

func NewCourseLocker(db *sql.DB) *CourseLocker {
	return &CourseLocker{db: db}
}

// Acquire tries to take the per-course lock. Returns ok=false when another
// import currently holds it; the caller is expected to retry the whole
// invocation later.
func (l *CourseLocker) Acquire(ctx context.Context, courseID string) (release func(), ok bool, err error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}
	var locked bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, courseID).Scan(&locked); err != nil {
		_ = conn.Close()
		return nil, false, err
	}
	if !locked {
		_ = conn.Close()
		return nil, false, nil
	}
	release = func() {
		// unlock must run even when the invocation context is cancelled
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, courseID)
		_ = conn.Close()
	}
	return release, true, nil
}
