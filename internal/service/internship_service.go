package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"futureintern/internship-app/internal/config"
	"futureintern/internship-app/internal/curriculum"
	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/notify"
	"futureintern/internship-app/internal/repository"
)

// InternshipOverview is an internship with its task counters.
type InternshipOverview struct {
	Internship     domain.Internship
	TotalTasks     int
	CompletedTasks int
	PendingTasks   int
	DaysSinceStart int
}

// EnrollResult is returned by RegisterDomain.
type EnrollResult struct {
	Internship   *domain.Internship
	TasksCreated int
	Created      bool // false when the student already had the domain
}

// ProgressReport is the computed progress block of one internship.
type ProgressReport struct {
	Internship         *domain.Internship
	TotalTasks         int
	CompletedTasks     int
	PendingTasks       int
	ProgressPercentage int
	DaysSinceStart     int
}

// OfferLetter holds everything needed to render an internship offer.
type OfferLetter struct {
	OfferNumber string
	IssuedAt    time.Time

	StudentName  string
	StudentEmail string
	College      string
	Domain       string

	StartDate time.Time
	EndDate   time.Time
	Duration  string
	Location  string
	Stipend   string

	CompanyName    string
	CompanyAddress string
	CompanyEmail   string
	CompanyPhone   string
}

// InternshipService manages a student's enrollments.
type InternshipService interface {
	List(ctx context.Context, studentEmail string) ([]InternshipOverview, error)
	Get(ctx context.Context, studentEmail, internshipID string) (*domain.Internship, []domain.Task, error)
	RegisterDomain(ctx context.Context, studentEmail, domainName string) (*EnrollResult, error)
	AvailableDomains(ctx context.Context, studentEmail string) (available, registered []string, err error)
	UpdateStatus(ctx context.Context, studentEmail, internshipID, status string) (*domain.Internship, error)
	Progress(ctx context.Context, studentEmail, internshipID string) (*ProgressReport, error)
	OfferLetter(ctx context.Context, studentEmail, internshipID string) (*OfferLetter, error)
}

type internshipService struct {
	internships  repository.InternshipRepository
	tasks        repository.TaskRepository
	students     repository.StudentRepository
	enrollment   *enrollment
	progress     *progressTracker
	issuer       *CertificateIssuer
	offer        config.OfferLetterConfig
	autoGenerate bool
	log          zerolog.Logger
	now          func() time.Time
}

// NewInternshipService creates a new InternshipService. With autoGenerate
// set, List issues pending certificates of paid, eligible internships.
func NewInternshipService(
	repos Repositories,
	catalog curriculum.Catalog,
	issuer *CertificateIssuer,
	offer config.OfferLetterConfig,
	autoGenerate bool,
	publisher notify.Publisher,
	log zerolog.Logger,
	opts ...Option,
) InternshipService {
	o := buildOptions(opts)
	log = log.With().Str("component", "internship_service").Logger()
	return &internshipService{
		internships: repos.Internships,
		tasks:       repos.Tasks,
		students:    repos.Students,
		enrollment: &enrollment{
			internships: repos.Internships,
			tasks:       repos.Tasks,
			catalog:     catalog,
			publisher:   publisher,
			log:         log,
			now:         o.now,
		},
		progress: &progressTracker{
			internships: repos.Internships,
			submissions: repos.Submissions,
			now:         o.now,
		},
		issuer:       issuer,
		offer:        offer,
		autoGenerate: autoGenerate,
		log:          log,
		now:          o.now,
	}
}

func (s *internshipService) List(ctx context.Context, studentEmail string) ([]InternshipOverview, error) {
	internships, err := s.internships.ListByStudent(ctx, NormalizeEmail(studentEmail))
	if err != nil {
		return nil, fmt.Errorf("list internships: %w", err)
	}

	now := s.now()
	overviews := make([]InternshipOverview, 0, len(internships))
	for i := range internships {
		internship := &internships[i]

		// Day-based eligibility can change without any write.
		if err := s.progress.reconcile(ctx, internship); err != nil {
			return nil, err
		}
		if s.autoGenerate && internship.IsEligibleForCertificate && internship.HasPaidForCertificate && !internship.IsCertificateGenerated() {
			if _, err := s.issuer.Issue(ctx, internship); err != nil {
				// Listing still succeeds; the certificate can be generated explicitly.
				s.log.Error().Err(err).Str("internship_id", internship.ID.Hex()).Msg("Auto-generation of certificate failed")
			}
		}

		total, err := s.totalTasks(ctx, internship)
		if err != nil {
			return nil, err
		}
		completed := internship.TaskCompletedCount
		overviews = append(overviews, InternshipOverview{
			Internship:     *internship,
			TotalTasks:     total,
			CompletedTasks: completed,
			PendingTasks:   max(total-completed, 0),
			DaysSinceStart: internship.DaysSinceStart(now),
		})
	}
	return overviews, nil
}

func (s *internshipService) Get(ctx context.Context, studentEmail, internshipID string) (*domain.Internship, []domain.Task, error) {
	internship, err := ownedInternship(ctx, s.internships, studentEmail, internshipID)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := s.tasks.ListByInternship(ctx, internship.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list tasks: %w", err)
	}
	return internship, tasks, nil
}

func (s *internshipService) RegisterDomain(ctx context.Context, studentEmail, domainName string) (*EnrollResult, error) {
	if !domain.IsValidDomain(domainName) {
		return nil, ErrInvalidDomain
	}
	internship, created, isNew, err := s.enrollment.enroll(ctx, NormalizeEmail(studentEmail), domainName)
	if err != nil {
		return nil, err
	}
	return &EnrollResult{Internship: internship, TasksCreated: created, Created: isNew}, nil
}

func (s *internshipService) AvailableDomains(ctx context.Context, studentEmail string) ([]string, []string, error) {
	internships, err := s.internships.ListByStudent(ctx, NormalizeEmail(studentEmail))
	if err != nil {
		return nil, nil, fmt.Errorf("list internships: %w", err)
	}
	registered := make([]string, 0, len(internships))
	for _, in := range internships {
		registered = append(registered, in.Domain)
	}
	return domain.AvailableDomains(registered), registered, nil
}

func (s *internshipService) UpdateStatus(ctx context.Context, studentEmail, internshipID, status string) (*domain.Internship, error) {
	st := domain.InternshipStatus(status)
	if !st.Valid() {
		return nil, ErrInvalidStatus
	}
	oid, err := parseID(internshipID)
	if err != nil {
		return nil, ErrInternshipNotFound
	}
	updated, err := s.internships.UpdateStatus(ctx, oid, NormalizeEmail(studentEmail), st)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInternshipNotFound
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	s.log.Info().Str("internship_id", internshipID).Str("status", status).Msg("Internship status updated")
	return updated, nil
}

// Progress recounts the submission log before reporting, so a stale
// counter is repaired on read.
func (s *internshipService) Progress(ctx context.Context, studentEmail, internshipID string) (*ProgressReport, error) {
	internship, err := ownedInternship(ctx, s.internships, studentEmail, internshipID)
	if err != nil {
		return nil, err
	}
	if err := s.progress.reconcile(ctx, internship); err != nil {
		return nil, err
	}
	total, err := s.totalTasks(ctx, internship)
	if err != nil {
		return nil, err
	}
	completed := internship.TaskCompletedCount
	return &ProgressReport{
		Internship:         internship,
		TotalTasks:         total,
		CompletedTasks:     completed,
		PendingTasks:       max(total-completed, 0),
		ProgressPercentage: domain.ProgressPercentage(completed),
		DaysSinceStart:     internship.DaysSinceStart(s.now()),
	}, nil
}

func (s *internshipService) OfferLetter(ctx context.Context, studentEmail, internshipID string) (*OfferLetter, error) {
	internship, err := ownedInternship(ctx, s.internships, studentEmail, internshipID)
	if err != nil {
		return nil, err
	}
	student, err := s.students.GetByEmail(ctx, internship.StudentEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("load student: %w", err)
	}

	days := s.offer.DurationDays
	if days <= 0 {
		days = 90
	}
	return &OfferLetter{
		OfferNumber:    fmt.Sprintf("OFF-%06d", internship.StartDate.UnixMilli()%1_000_000),
		IssuedAt:       internship.StartDate,
		StudentName:    student.Name,
		StudentEmail:   student.Email,
		College:        student.College,
		Domain:         internship.Domain,
		StartDate:      internship.StartDate,
		EndDate:        internship.StartDate.AddDate(0, 0, days),
		Duration:       s.offer.Duration,
		Location:       s.offer.Location,
		Stipend:        s.offer.Stipend,
		CompanyName:    s.offer.CompanyName,
		CompanyAddress: s.offer.CompanyAddress,
		CompanyEmail:   s.offer.CompanyEmail,
		CompanyPhone:   s.offer.CompanyPhone,
	}, nil
}

// totalTasks counts the seeded tasks, falling back to the curriculum size
// for internships whose seeding failed.
func (s *internshipService) totalTasks(ctx context.Context, internship *domain.Internship) (int, error) {
	tasks, err := s.tasks.ListByInternship(ctx, internship.ID)
	if err != nil {
		return 0, fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return domain.TotalTasks, nil
	}
	return len(tasks), nil
}
