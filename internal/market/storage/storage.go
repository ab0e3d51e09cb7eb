// Package storage defines persistence contracts for marketplace state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ydacademy/courseledger/internal/id"
)

var (
	// ErrNotFound indicates a requested marketplace record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// Course stores one catalog entry. ID and Instructor are immutable once
// created; deactivation is the only removal.
type Course struct {
	ID          int64
	Title       string
	Description string
	ContentHash string
	Price       uint64
	Instructor  id.Address
	IsActive    bool
	CreatedAt   time.Time
	TotalSales  uint64
}

// CourseUpdate carries the three mutable course fields.
type CourseUpdate struct {
	Title       string
	Description string
	Price       uint64
}

// Settings stores the platform fee configuration fixed at bootstrap and
// mutated only by privileged operations.
type Settings struct {
	FeePercentage      uint64
	FeeRecipient       id.Address
	MarketplaceAddress id.Address
}

// Stats aggregates the catalog at call time.
type Stats struct {
	TotalCourses  uint64
	ActiveCourses uint64
	TotalSales    uint64
}

// Store persists courses, purchase records, and platform settings.
type Store interface {
	CreateCourse(ctx context.Context, course Course) (int64, error)
	GetCourse(ctx context.Context, courseID int64) (Course, error)
	UpdateCourse(ctx context.Context, courseID int64, update CourseUpdate) error
	SetCourseActive(ctx context.Context, courseID int64, active bool) error
	ListActiveCourses(ctx context.Context) ([]Course, error)
	IncrementSales(ctx context.Context, courseID int64) error

	HasPurchase(ctx context.Context, buyer id.Address, courseID int64) (bool, error)
	RecordPurchase(ctx context.Context, buyer id.Address, courseID int64, at time.Time) error
	ListPurchases(ctx context.Context, buyer id.Address) ([]int64, error)

	Stats(ctx context.Context) (Stats, error)

	Settings(ctx context.Context) (Settings, error)
	PutSettings(ctx context.Context, settings Settings) error
}
