package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"futureintern/internship-app/internal/curriculum"
	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/notify"
	"futureintern/internship-app/internal/repository"
)

// --- Error Definitions ---
var (
	ErrStudentNotFound      = errors.New("student not found")
	ErrInternshipNotFound   = errors.New("internship not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrTaskAccessDenied     = errors.New("access denied")
	ErrTaskAlreadyCompleted = errors.New("task is already completed")
	ErrInvalidTaskNumber    = errors.New("task number must be between 1 and 5")
	ErrInvalidURL           = errors.New("valid submission URL is required")
	ErrInvalidDomain        = errors.New("valid domain required")
	ErrInvalidStatus        = errors.New("valid status required")
	ErrInvalidID            = errors.New("invalid identifier")
	ErrNotEligible          = errors.New("not eligible for certificate yet. Complete 3 tasks or wait 15 days")
	ErrCertificateNotFound  = errors.New("certificate not found")
)

// Repositories groups the persistence dependencies of the services.
type Repositories struct {
	Students    repository.StudentRepository
	Internships repository.InternshipRepository
	Tasks       repository.TaskRepository
	Submissions repository.SubmissionRepository
}

// Option customizes a service.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NormalizeEmail lowercases and trims an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

func validSubmissionURL(raw string) bool {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func publish(ctx context.Context, p notify.Publisher, log zerolog.Logger, event notify.Event) {
	if err := p.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event", event.Type).Msg("Failed to publish event")
	}
}

// ownedInternship loads an internship scoped to its owner. Foreign and
// missing internships both map to ErrInternshipNotFound.
func ownedInternship(ctx context.Context, repo repository.InternshipRepository, studentEmail, internshipID string) (*domain.Internship, error) {
	oid, err := parseID(internshipID)
	if err != nil {
		return nil, ErrInternshipNotFound
	}
	internship, err := repo.GetByIDForStudent(ctx, oid, NormalizeEmail(studentEmail))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInternshipNotFound
		}
		return nil, fmt.Errorf("load internship: %w", err)
	}
	return internship, nil
}

// --- Progress ---

// progressTracker keeps an internship's derived counters in line with the
// submission log.
type progressTracker struct {
	internships repository.InternshipRepository
	submissions repository.SubmissionRepository
	now         func() time.Time
}

// record recounts completed slots after a submission and saves the result.
func (p *progressTracker) record(ctx context.Context, internship *domain.Internship) error {
	count, err := p.submissions.CountCompleted(ctx, internship.ID)
	if err != nil {
		return fmt.Errorf("count submissions: %w", err)
	}
	internship.ApplyProgress(count, p.now())
	if err := p.internships.SaveProgress(ctx, internship); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// reconcile repairs a stale count and re-evaluates eligibility, writing only
// when something changed.
func (p *progressTracker) reconcile(ctx context.Context, internship *domain.Internship) error {
	count, err := p.submissions.CountCompleted(ctx, internship.ID)
	if err != nil {
		return fmt.Errorf("count submissions: %w", err)
	}
	if count != internship.TaskCompletedCount {
		return p.record(ctx, internship)
	}

	wasEligible, wasReason := internship.IsEligibleForCertificate, internship.CertificateUnlockedReason
	internship.RefreshEligibility(p.now())
	if internship.IsEligibleForCertificate == wasEligible && internship.CertificateUnlockedReason == wasReason {
		return nil
	}
	if err := p.internships.SaveProgress(ctx, internship); err != nil {
		return fmt.Errorf("save eligibility: %w", err)
	}
	return nil
}

// --- Enrollment ---

// enrollment creates internships with their seeded curriculum.
type enrollment struct {
	internships repository.InternshipRepository
	tasks       repository.TaskRepository
	catalog     curriculum.Catalog
	publisher   notify.Publisher
	log         zerolog.Logger
	now         func() time.Time
}

// enroll returns the student's internship for domainName, creating it and
// its five tasks when absent. created is false when it already existed.
func (e *enrollment) enroll(ctx context.Context, studentEmail, domainName string) (internship *domain.Internship, tasksCreated int, created bool, err error) {
	existing, err := e.internships.GetByStudentAndDomain(ctx, studentEmail, domainName)
	if err == nil {
		return existing, 0, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, 0, false, fmt.Errorf("lookup internship: %w", err)
	}

	now := e.now()
	internship = domain.NewInternship(studentEmail, domainName, now)
	if _, err = e.internships.Create(ctx, internship); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent enrollment for the same pair.
			existing, getErr := e.internships.GetByStudentAndDomain(ctx, studentEmail, domainName)
			if getErr != nil {
				return nil, 0, false, fmt.Errorf("reload internship: %w", getErr)
			}
			return existing, 0, false, nil
		}
		return nil, 0, false, fmt.Errorf("create internship: %w", err)
	}

	items := e.catalog.TasksFor(domainName)
	tasks := make([]domain.Task, len(items))
	for i, item := range items {
		tasks[i] = domain.Task{
			InternshipID: internship.ID,
			TaskNumber:   i + 1,
			Title:        item.Title,
			Description:  item.Description,
			Status:       domain.TaskPending,
			DueDate:      now.Add(domain.TaskDueAfter),
		}
	}
	ids, err := e.tasks.CreateMany(ctx, tasks)
	if err != nil {
		// The internship stays; tasks can be reseeded later.
		e.log.Error().Err(err).Str("internship_id", internship.ID.Hex()).Msg("Failed to seed tasks")
		return internship, 0, true, nil
	}

	e.log.Info().
		Str("student", studentEmail).
		Str("domain", domainName).
		Int("tasks", len(ids)).
		Msg("Internship created")
	publish(ctx, e.publisher, e.log, notify.NewEvent(notify.InternshipEnrolled, studentEmail, internship.ID, domainName, e.now()))
	return internship, len(ids), true, nil
}
