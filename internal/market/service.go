// Package market implements the course marketplace ledger: catalog
// management and atomic purchase settlement. Value only moves through the
// token ledger's own operations; the marketplace never touches token state
// directly.
package market

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ydacademy/courseledger/internal/access"
	"github.com/ydacademy/courseledger/internal/id"
	"github.com/ydacademy/courseledger/internal/market/storage"
	"github.com/ydacademy/courseledger/internal/platform/errors"
	"github.com/ydacademy/courseledger/internal/platform/storage/sqlitedb"
	"github.com/ydacademy/courseledger/internal/telemetry"
	"github.com/ydacademy/courseledger/internal/token"
)

// MaxFeePercentage caps the platform fee.
const MaxFeePercentage = 50

// Service exposes the marketplace ledger operations.
type Service struct {
	db        *sqlitedb.DB
	store     storage.Store
	tokens    *token.Service
	authority *access.Authority
	emitter   *telemetry.Emitter
	clock     func() time.Time
	tracer    trace.Tracer
}

// NewService creates a marketplace service.
func NewService(db *sqlitedb.DB, store storage.Store, tokens *token.Service, authority *access.Authority, emitter *telemetry.Emitter) *Service {
	return &Service{
		db:        db,
		store:     store,
		tokens:    tokens,
		authority: authority,
		emitter:   emitter,
		clock:     time.Now,
		tracer:    otel.Tracer("courseledger/market"),
	}
}

// CreateCourseInput describes a new catalog entry.
type CreateCourseInput struct {
	Title       string
	Description string
	ContentHash string
	Price       uint64
	Instructor  id.Address
}

// CreateCourse allocates the next sequential course id and stores the course
// active with zero sales. Administrator only.
func (s *Service) CreateCourse(ctx context.Context, caller id.Address, input CreateCourseInput) (storage.Course, error) {
	if s == nil || s.store == nil {
		return storage.Course{}, errors.New(errors.CodeUnknown, "market store is not configured")
	}
	ctx, span := s.tracer.Start(ctx, "market.create_course")
	defer span.End()

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return storage.Course{}, errors.New(errors.CodeEmptyTitle, "course title cannot be empty")
	}

	var course storage.Course
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.authority.Require(ctx, caller); err != nil {
			return err
		}
		course = storage.Course{
			Title:       title,
			Description: input.Description,
			ContentHash: input.ContentHash,
			Price:       input.Price,
			Instructor:  id.Normalize(input.Instructor),
			IsActive:    true,
			CreatedAt:   s.clock().UTC(),
		}
		courseID, err := s.store.CreateCourse(ctx, course)
		if err != nil {
			return errors.Wrap(errors.CodeUnknown, "persist course", err)
		}
		course.ID = courseID
		return s.emit(ctx, telemetry.Event{
			Kind:     telemetry.KindCourseCreated,
			CourseID: courseID,
			To:       course.Instructor,
			Amount:   course.Price,
			Detail:   course.Title,
		})
	})
	if err != nil {
		return storage.Course{}, err
	}
	return course, nil
}

// UpdateCourse overwrites a course's title, description, and price. Activity,
// sales counter, and instructor are untouched. Administrator only.
func (s *Service) UpdateCourse(ctx context.Context, caller id.Address, courseID int64, update storage.CourseUpdate) error {
	if s == nil || s.store == nil {
		return errors.New(errors.CodeUnknown, "market store is not configured")
	}
	ctx, span := s.tracer.Start(ctx, "market.update_course")
	defer span.End()

	return s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.authority.Require(ctx, caller); err != nil {
			return err
		}
		if err := s.store.UpdateCourse(ctx, courseID, update); err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return s.courseNotFound(courseID)
			}
			return errors.Wrap(errors.CodeUnknown, "update course", err)
		}
		return nil
	})
}

// DeactivateCourse marks a course inactive. Administrator only.
func (s *Service) DeactivateCourse(ctx context.Context, caller id.Address, courseID int64) error {
	return s.setCourseActive(ctx, caller, courseID, false)
}

// ReactivateCourse marks a course active again. Administrator only.
func (s *Service) ReactivateCourse(ctx context.Context, caller id.Address, courseID int64) error {
	return s.setCourseActive(ctx, caller, courseID, true)
}

func (s *Service) setCourseActive(ctx context.Context, caller id.Address, courseID int64, active bool) error {
	if s == nil || s.store == nil {
		return errors.New(errors.CodeUnknown, "market store is not configured")
	}
	ctx, span := s.tracer.Start(ctx, "market.set_course_active")
	defer span.End()

	return s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.authority.Require(ctx, caller); err != nil {
			return err
		}
		if err := s.store.SetCourseActive(ctx, courseID, active); err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return s.courseNotFound(courseID)
			}
			return errors.Wrap(errors.CodeUnknown, "toggle course", err)
		}
		return nil
	})
}

// GetCourse returns one course. Inactive courses are visible only to the
// administrator.
func (s *Service) GetCourse(ctx context.Context, caller id.Address, courseID int64) (storage.Course, error) {
	if s == nil || s.store == nil {
		return storage.Course{}, errors.New(errors.CodeUnknown, "market store is not configured")
	}
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return storage.Course{}, s.courseNotFound(courseID)
		}
		return storage.Course{}, errors.Wrap(errors.CodeUnknown, "load course", err)
	}
	if !course.IsActive {
		isAdmin, err := s.authority.IsAdministrator(ctx, caller)
		if err != nil {
			return storage.Course{}, err
		}
		if !isAdmin {
			return storage.Course{}, errors.New(errors.CodeCourseInactive, "course is not active")
		}
	}
	return course, nil
}

// PurchaseCourse settles a course purchase as one atomic step: the buyer pays
// the full price, the instructor receives the price minus the platform fee,
// and the fee recipient receives the fee. On any failure nothing is retained:
// no record, no transfer, no sales increment.
func (s *Service) PurchaseCourse(ctx context.Context, buyer id.Address, courseID int64) error {
	if s == nil || s.store == nil {
		return errors.New(errors.CodeUnknown, "market store is not configured")
	}
	ctx, span := s.tracer.Start(ctx, "market.purchase_course")
	defer span.End()

	buyer = id.Normalize(buyer)
	return s.db.InTx(ctx, func(ctx context.Context) error {
		course, err := s.store.GetCourse(ctx, courseID)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return s.courseNotFound(courseID)
			}
			return errors.Wrap(errors.CodeUnknown, "load course", err)
		}
		if !course.IsActive {
			return errors.New(errors.CodeCourseInactive, "course is not active")
		}

		purchased, err := s.store.HasPurchase(ctx, buyer, courseID)
		if err != nil {
			return errors.Wrap(errors.CodeUnknown, "load purchase record", err)
		}
		if purchased {
			return errors.New(errors.CodeAlreadyPurchased, "buyer already owns this course")
		}

		// Pre-check for a clearer failure; the transfers below enforce the
		// same rule.
		balance, err := s.tokens.BalanceOf(ctx, buyer)
		if err != nil {
			return err
		}
		if balance < course.Price {
			return errors.WithMetadata(errors.CodeInsufficientBalance, "buyer balance is smaller than the course price", map[string]string{
				"account": buyer.String(),
			})
		}

		settings, err := s.settings(ctx)
		if err != nil {
			return err
		}
		// Integer division truncates; the remainder stays in the instructor
		// share rather than being lost.
		platformFee := course.Price * settings.FeePercentage / 100
		instructorShare := course.Price - platformFee

		if err := s.tokens.Transfer(ctx, buyer, course.Instructor, instructorShare); err != nil {
			return err
		}
		if err := s.tokens.Transfer(ctx, buyer, settings.FeeRecipient, platformFee); err != nil {
			return err
		}

		now := s.clock().UTC()
		if err := s.store.RecordPurchase(ctx, buyer, courseID, now); err != nil {
			if stderrors.Is(err, storage.ErrAlreadyExists) {
				return errors.New(errors.CodeAlreadyPurchased, "buyer already owns this course")
			}
			return errors.Wrap(errors.CodeUnknown, "record purchase", err)
		}
		if err := s.store.IncrementSales(ctx, courseID); err != nil {
			return errors.Wrap(errors.CodeUnknown, "increment sales", err)
		}
		return s.emit(ctx, telemetry.Event{
			Kind:       telemetry.KindCoursePurchased,
			CourseID:   courseID,
			From:       buyer,
			Amount:     course.Price,
			OccurredAt: now,
		})
	})
}

// GetCourseContent returns the content reference of a course. Callers must be
// the administrator or hold a purchase record.
func (s *Service) GetCourseContent(ctx context.Context, caller id.Address, courseID int64) (string, error) {
	course, err := s.GetCourse(ctx, caller, courseID)
	if err != nil {
		return "", err
	}
	isAdmin, err := s.authority.IsAdministrator(ctx, caller)
	if err != nil {
		return "", err
	}
	if !isAdmin {
		purchased, err := s.store.HasPurchase(ctx, id.Normalize(caller), courseID)
		if err != nil {
			return "", errors.Wrap(errors.CodeUnknown, "load purchase record", err)
		}
		if !purchased {
			return "", errors.New(errors.CodeAccessDenied, "course content requires a purchase")
		}
	}
	return course.ContentHash, nil
}

// GetAllActiveCourses returns active courses in insertion order by id.
func (s *Service) GetAllActiveCourses(ctx context.Context) ([]storage.Course, error) {
	if s == nil || s.store == nil {
		return nil, errors.New(errors.CodeUnknown, "market store is not configured")
	}
	courses, err := s.store.ListActiveCourses(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnknown, "list active courses", err)
	}
	return courses, nil
}

// GetUserCourses returns the course ids an account purchased, in purchase
// order.
func (s *Service) GetUserCourses(ctx context.Context, account id.Address) ([]int64, error) {
	if s == nil || s.store == nil {
		return nil, errors.New(errors.CodeUnknown, "market store is not configured")
	}
	courseIDs, err := s.store.ListPurchases(ctx, id.Normalize(account))
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnknown, "list purchases", err)
	}
	return courseIDs, nil
}

// GetPlatformStats aggregates the catalog at call time.
func (s *Service) GetPlatformStats(ctx context.Context) (storage.Stats, error) {
	if s == nil || s.store == nil {
		return storage.Stats{}, errors.New(errors.CodeUnknown, "market store is not configured")
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return storage.Stats{}, errors.Wrap(errors.CodeUnknown, "load stats", err)
	}
	return stats, nil
}

// SetPlatformFeePercentage sets the purchase fee percentage. Administrator
// only; capped at MaxFeePercentage.
func (s *Service) SetPlatformFeePercentage(ctx context.Context, caller id.Address, percentage uint64) error {
	if s == nil || s.store == nil {
		return errors.New(errors.CodeUnknown, "market store is not configured")
	}
	if percentage > MaxFeePercentage {
		return errors.New(errors.CodeFeeTooHigh, "platform fee cannot exceed 50 percent")
	}
	return s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.authority.Require(ctx, caller); err != nil {
			return err
		}
		settings, err := s.settings(ctx)
		if err != nil {
			return err
		}
		settings.FeePercentage = percentage
		if err := s.store.PutSettings(ctx, settings); err != nil {
			return errors.Wrap(errors.CodeUnknown, "persist settings", err)
		}
		return nil
	})
}

// SetPlatformFeeRecipient overwrites the fee recipient unconditionally; the
// reference behavior carries no zero-address guard here. Administrator only.
func (s *Service) SetPlatformFeeRecipient(ctx context.Context, caller, recipient id.Address) error {
	if s == nil || s.store == nil {
		return errors.New(errors.CodeUnknown, "market store is not configured")
	}
	return s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.authority.Require(ctx, caller); err != nil {
			return err
		}
		settings, err := s.settings(ctx)
		if err != nil {
			return err
		}
		settings.FeeRecipient = id.Normalize(recipient)
		if err := s.store.PutSettings(ctx, settings); err != nil {
			return errors.Wrap(errors.CodeUnknown, "persist settings", err)
		}
		return nil
	})
}

// EmergencyWithdrawTokens moves any balance accrued to the marketplace's own
// account to the administrator. Operational recovery, not normal flow.
// Administrator only.
func (s *Service) EmergencyWithdrawTokens(ctx context.Context, caller id.Address) (uint64, error) {
	if s == nil || s.store == nil {
		return 0, errors.New(errors.CodeUnknown, "market store is not configured")
	}
	var withdrawn uint64
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.authority.Require(ctx, caller); err != nil {
			return err
		}
		settings, err := s.settings(ctx)
		if err != nil {
			return err
		}
		balance, err := s.tokens.BalanceOf(ctx, settings.MarketplaceAddress)
		if err != nil {
			return err
		}
		if balance == 0 {
			return nil
		}
		admin, err := s.authority.Administrator(ctx)
		if err != nil {
			return err
		}
		if err := s.tokens.Transfer(ctx, settings.MarketplaceAddress, admin, balance); err != nil {
			return err
		}
		withdrawn = balance
		return nil
	})
	if err != nil {
		return 0, err
	}
	return withdrawn, nil
}

func (s *Service) settings(ctx context.Context) (storage.Settings, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return storage.Settings{}, errors.New(errors.CodeNotInitialized, "ledger has not been initialized")
		}
		return storage.Settings{}, errors.Wrap(errors.CodeUnknown, "load settings", err)
	}
	return settings, nil
}

func (s *Service) emit(ctx context.Context, evt telemetry.Event) error {
	if err := s.emitter.Emit(ctx, evt); err != nil {
		return errors.Wrap(errors.CodeUnknown, "record market event", err)
	}
	return nil
}

func (s *Service) courseNotFound(courseID int64) error {
	return errors.WithMetadata(errors.CodeCourseNotFound, "course does not exist", map[string]string{
		"course_id": strconv.FormatInt(courseID, 10),
	})
}
