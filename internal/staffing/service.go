package staffing

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/execution"
	"github.com/terra-clan/staffing-engine/internal/matching"
	"github.com/terra-clan/staffing-engine/internal/services"
	"github.com/terra-clan/staffing-engine/internal/storage"
)

var (
	// ErrValidation marks bad input
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing entity
	ErrNotFound = errors.New("not found")
	// ErrDuplicate marks an entity that already exists
	ErrDuplicate = errors.New("already exists")
	// ErrConflict marks an entity in the wrong state for the operation
	ErrConflict = errors.New("conflict")
	// ErrLocked marks an operation already running elsewhere
	ErrLocked = errors.New("operation already in progress")
)

const (
	// DefaultLockTTL bounds how long an auto-assign run may hold its project lock
	DefaultLockTTL = 30 * time.Second

	notificationLimit = 50
	memberRole        = "メンバー"
	managerRole       = "PM"
	defaultNoticeType = "info"
)

// Service implements the staffing operations on top of a repository
type Service struct {
	repo         storage.Repository
	matcher      *matching.Matcher
	locker       services.Locker
	runner       *execution.Runner
	logger       *zap.Logger
	now          func() time.Time
	lockTTL      time.Duration
	historyLimit int

	runnerConfig *execution.Config
}

// Option configures a Service
type Option func(*Service)

// WithMatcher sets the matcher used for scoring
func WithMatcher(m *matching.Matcher) Option {
	return func(s *Service) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithLocker sets the locker guarding auto-assignment
func WithLocker(l services.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithLockTTL sets the auto-assign lock lifetime
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithHistoryLimit sets how many recent performance records feed matching
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithExecution enables task execution with the given runner settings.
// The runner persists through the service repository and reports
// completions back to the service.
func WithExecution(cfg execution.Config) Option {
	return func(s *Service) {
		s.runnerConfig = &cfg
	}
}

// New creates a staffing service
func New(repo storage.Repository, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		matcher:      matching.NewMatcher(),
		locker:       services.NewLocalLocker(),
		logger:       logger.Named("staffing"),
		now:          time.Now,
		lockTTL:      DefaultLockTTL,
		historyLimit: matching.DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.runnerConfig != nil {
		cfg := *s.runnerConfig
		cfg.OnComplete = s.onTaskCompleted
		if cfg.Logger == nil {
			cfg.Logger = logger
		}
		if cfg.Now == nil {
			cfg.Now = s.now
		}
		s.runner = execution.NewRunner(repo, cfg)
	}
	return s
}

// Runner returns the task runner, nil when execution is disabled
func (s *Service) Runner() *execution.Runner {
	return s.runner
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// translate maps repository errors onto service errors
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, storage.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case errors.Is(err, storage.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
