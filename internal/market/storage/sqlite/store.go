// Package sqlite provides a SQLite-backed marketplace storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ydacademy/courseledger/internal/id"
	"github.com/ydacademy/courseledger/internal/market/storage"
	"github.com/ydacademy/courseledger/internal/platform/storage/sqlitedb"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists marketplace state in the shared ledger database.
type Store struct {
	db *sqlitedb.DB
}

// New creates a marketplace store over the shared ledger database.
func New(db *sqlitedb.DB) *Store {
	return &Store{db: db}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// CreateCourse inserts one course and returns its allocated sequential id.
func (s *Store) CreateCourse(ctx context.Context, course storage.Course) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	title := strings.TrimSpace(course.Title)
	if title == "" {
		return 0, fmt.Errorf("course title is required")
	}

	createdAt := course.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := s.db.Querier(ctx).ExecContext(
		ctx,
		`INSERT INTO courses (title, description, content_hash, price, instructor, is_active, created_at, total_sales)
		 VALUES (?, ?, ?, ?, ?, 1, ?, 0)`,
		title,
		course.Description,
		course.ContentHash,
		int64(course.Price),
		course.Instructor.String(),
		toMillis(createdAt),
	)
	if err != nil {
		return 0, fmt.Errorf("create course: %w", err)
	}
	courseID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create course: %w", err)
	}
	return courseID, nil
}

// GetCourse returns one course by id.
func (s *Store) GetCourse(ctx context.Context, courseID int64) (storage.Course, error) {
	if err := ctx.Err(); err != nil {
		return storage.Course{}, err
	}
	if s == nil || s.db == nil {
		return storage.Course{}, fmt.Errorf("storage is not configured")
	}

	row := s.db.Querier(ctx).QueryRowContext(
		ctx,
		`SELECT id, title, description, content_hash, price, instructor, is_active, created_at, total_sales
		   FROM courses
		  WHERE id = ?`,
		courseID,
	)
	return scanCourse(row.Scan)
}

// UpdateCourse overwrites the three mutable course fields.
func (s *Store) UpdateCourse(ctx context.Context, courseID int64, update storage.CourseUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	res, err := s.db.Querier(ctx).ExecContext(
		ctx,
		`UPDATE courses SET title = ?, description = ?, price = ? WHERE id = ?`,
		update.Title,
		update.Description,
		int64(update.Price),
		courseID,
	)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return requireRow(res)
}

// SetCourseActive toggles the is_active flag.
func (s *Store) SetCourseActive(ctx context.Context, courseID int64, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	res, err := s.db.Querier(ctx).ExecContext(
		ctx,
		`UPDATE courses SET is_active = ? WHERE id = ?`,
		boolToInt(active),
		courseID,
	)
	if err != nil {
		return fmt.Errorf("set course active: %w", err)
	}
	return requireRow(res)
}

// ListActiveCourses returns every active course ordered by id ascending.
func (s *Store) ListActiveCourses(ctx context.Context) ([]storage.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.db.Querier(ctx).QueryContext(
		ctx,
		`SELECT id, title, description, content_hash, price, instructor, is_active, created_at, total_sales
		   FROM courses
		  WHERE is_active = 1
		  ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active courses: %w", err)
	}
	defer rows.Close()

	courses := []storage.Course{}
	for rows.Next() {
		course, err := scanCourse(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list active courses: %w", err)
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active courses: %w", err)
	}
	return courses, nil
}

// IncrementSales bumps the course sales counter by one.
func (s *Store) IncrementSales(ctx context.Context, courseID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	res, err := s.db.Querier(ctx).ExecContext(
		ctx,
		`UPDATE courses SET total_sales = total_sales + 1 WHERE id = ?`,
		courseID,
	)
	if err != nil {
		return fmt.Errorf("increment sales: %w", err)
	}
	return requireRow(res)
}

// HasPurchase reports whether a purchase record exists for (buyer, course).
func (s *Store) HasPurchase(ctx context.Context, buyer id.Address, courseID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.db == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	var found int
	row := s.db.Querier(ctx).QueryRowContext(
		ctx,
		`SELECT 1 FROM course_purchases WHERE buyer = ? AND course_id = ?`,
		buyer.String(),
		courseID,
	)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("get purchase record: %w", err)
	}
	return true, nil
}

// RecordPurchase sets the (buyer, course) purchase fact. The unique constraint
// makes the fact settable at most once; seq fixes the purchase order.
func (s *Store) RecordPurchase(ctx context.Context, buyer id.Address, courseID int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.db.Querier(ctx).ExecContext(
		ctx,
		`INSERT INTO course_purchases (buyer, course_id, purchased_at) VALUES (?, ?, ?)`,
		buyer.String(),
		courseID,
		toMillis(at),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("record purchase: %w", err)
	}
	return nil
}

// ListPurchases returns the course ids a buyer purchased, in purchase order.
func (s *Store) ListPurchases(ctx context.Context, buyer id.Address) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.db.Querier(ctx).QueryContext(
		ctx,
		`SELECT course_id FROM course_purchases WHERE buyer = ? ORDER BY seq ASC`,
		buyer.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	courseIDs := []int64{}
	for rows.Next() {
		var courseID int64
		if err := rows.Scan(&courseID); err != nil {
			return nil, fmt.Errorf("list purchases: %w", err)
		}
		courseIDs = append(courseIDs, courseID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return courseIDs, nil
}

// Stats aggregates the catalog at call time, never from a cache.
func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return storage.Stats{}, err
	}
	if s == nil || s.db == nil {
		return storage.Stats{}, fmt.Errorf("storage is not configured")
	}

	var total, active, sales int64
	row := s.db.Querier(ctx).QueryRowContext(
		ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(is_active), 0),
		        COALESCE(SUM(total_sales), 0)
		   FROM courses`,
	)
	if err := row.Scan(&total, &active, &sales); err != nil {
		return storage.Stats{}, fmt.Errorf("load stats: %w", err)
	}
	return storage.Stats{
		TotalCourses:  uint64(total),
		ActiveCourses: uint64(active),
		TotalSales:    uint64(sales),
	}, nil
}

// Settings returns the platform fee configuration.
func (s *Store) Settings(ctx context.Context) (storage.Settings, error) {
	if err := ctx.Err(); err != nil {
		return storage.Settings{}, err
	}
	if s == nil || s.db == nil {
		return storage.Settings{}, fmt.Errorf("storage is not configured")
	}

	var settings storage.Settings
	var feePct int64
	var recipient, marketplace string
	row := s.db.Querier(ctx).QueryRowContext(
		ctx,
		`SELECT fee_percentage, fee_recipient, marketplace_address FROM platform_settings WHERE id = 1`,
	)
	if err := row.Scan(&feePct, &recipient, &marketplace); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Settings{}, storage.ErrNotFound
		}
		return storage.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings.FeePercentage = uint64(feePct)
	settings.FeeRecipient = id.Address(recipient)
	settings.MarketplaceAddress = id.Address(marketplace)
	return settings, nil
}

// PutSettings overwrites the platform fee configuration.
func (s *Store) PutSettings(ctx context.Context, settings storage.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.db.Querier(ctx).ExecContext(
		ctx,
		`INSERT INTO platform_settings (id, fee_percentage, fee_recipient, marketplace_address)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   fee_percentage = excluded.fee_percentage,
		   fee_recipient = excluded.fee_recipient,
		   marketplace_address = excluded.marketplace_address`,
		int64(settings.FeePercentage),
		settings.FeeRecipient.String(),
		settings.MarketplaceAddress.String(),
	)
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}

type scanFunc func(dest ...any) error

func scanCourse(scan scanFunc) (storage.Course, error) {
	var course storage.Course
	var price, sales, createdAt int64
	var instructor string
	var isActive int
	err := scan(
		&course.ID,
		&course.Title,
		&course.Description,
		&course.ContentHash,
		&price,
		&instructor,
		&isActive,
		&createdAt,
		&sales,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Course{}, storage.ErrNotFound
		}
		return storage.Course{}, err
	}
	course.Price = uint64(price)
	course.Instructor = id.Address(instructor)
	course.IsActive = isActive != 0
	course.CreatedAt = fromMillis(createdAt)
	course.TotalSales = uint64(sales)
	return course, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
