package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dhima/followup-engine/pkg/clock"
	"github.com/go-sql-driver/mysql"
)

var (
	// ErrFollowUpNotFound is returned when a follow-up does not exist for the organization.
	ErrFollowUpNotFound = errors.New("follow-up not found")
	// ErrSequenceNotFound is returned when a sequence does not exist for the organization.
	ErrSequenceNotFound = errors.New("sequence not found")
	// ErrStepNotFound is returned when a sequence step does not exist.
	ErrStepNotFound = errors.New("step not found")
	// ErrContactNotFound is returned when a contact does not exist for the organization.
	ErrContactNotFound = errors.New("contact not found")
)

// MySQLClient wraps direct SQL access for follow-ups, sequences, contacts,
// signals and activity logs. Queries stick to portable SQL so the same client
// runs against SQLite in tests.
type MySQLClient struct {
	db    *sql.DB
	clock clock.Clock
}

// NewMySQLClient wires a sql.DB; pass a configured instance from main.
func NewMySQLClient(db *sql.DB) *MySQLClient {
	return NewMySQLClientWithClock(db, clock.RealClock{})
}

// NewMySQLClientWithClock wires a sql.DB with a custom time source.
func NewMySQLClientWithClock(db *sql.DB, clk clock.Clock) *MySQLClient {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &MySQLClient{db: db, clock: clk}
}

// Open connects to the database named by url. A "sqlite:" prefix selects an
// embedded SQLite file; anything else is treated as a MySQL DSN.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	if path, ok := strings.CutPrefix(url, sqlitePrefix); ok {
		return OpenSQLite(ctx, path)
	}
	return OpenMySQL(ctx, url)
}

// OpenMySQL opens and pings a MySQL connection pool. The DSN must enable parseTime.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(60 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// Ping reports whether the database is reachable.
func (c *MySQLClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *MySQLClient) now() time.Time {
	return c.clock.Now().UTC()
}

const (
	pendingSlotIndex     = "idx_followups_pending_slot"
	mysqlDuplicateEntry  = 1062
	sqlitePendingSlotKey = "followups.pending_slot"
)

// isPendingSlotConflict reports whether err is the unique violation raised when
// a second pending follow-up is inserted for the same step and contact.
func isPendingSlotConflict(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry && strings.Contains(myErr.Message, pendingSlotIndex)
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, sqlitePendingSlotKey)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func expectRows(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
