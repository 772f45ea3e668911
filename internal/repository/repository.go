package repository

import (
	"context"
	"time"

	"futureintern/internship-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound  = RepositoryError("not found")
	ErrDuplicate = RepositoryError("duplicate key")
	ErrConflict  = RepositoryError("conditional update did not match")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// StudentRepository defines the interface for interacting with student data.
type StudentRepository interface {
	Create(ctx context.Context, student *domain.Student) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.Student, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Student, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update domain.ProfileUpdate) error
	TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
	// UpsertCertificateSummary replaces the summary for summary.Domain, or appends it.
	UpsertCertificateSummary(ctx context.Context, email string, summary domain.CertificateSummary) error
}

// InternshipRepository defines the interface for interacting with internship data.
// Lookups scoped to a student filter on the owner's email, so a foreign
// internship is indistinguishable from a missing one.
type InternshipRepository interface {
	Create(ctx context.Context, internship *domain.Internship) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Internship, error)
	GetByIDForStudent(ctx context.Context, id primitive.ObjectID, studentEmail string) (*domain.Internship, error)
	GetByStudentAndDomain(ctx context.Context, studentEmail, domainName string) (*domain.Internship, error)
	GetByCertificateNumber(ctx context.Context, number string) (*domain.Internship, error)
	ListByStudent(ctx context.Context, studentEmail string) ([]domain.Internship, error)
	ListEligibleByStudent(ctx context.Context, studentEmail string) ([]domain.Internship, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, studentEmail string, status domain.InternshipStatus) (*domain.Internship, error)
	// SaveProgress persists the completion count and the fields derived from it.
	SaveProgress(ctx context.Context, internship *domain.Internship) error
	SetPaid(ctx context.Context, id primitive.ObjectID) error
	// AssignCertificate stores certificate fields only if none were stored
	// before; otherwise it returns ErrConflict and leaves the document alone.
	AssignCertificate(ctx context.Context, internship *domain.Internship) error
	SetCertificateArtifact(ctx context.Context, id primitive.ObjectID, objectKey string) error
}

// TaskRepository defines the interface for interacting with curriculum tasks.
type TaskRepository interface {
	CreateMany(ctx context.Context, tasks []domain.Task) ([]primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Task, error)
	GetByInternshipAndNumber(ctx context.Context, internshipID primitive.ObjectID, taskNumber int) (*domain.Task, error)
	ListByInternship(ctx context.Context, internshipID primitive.ObjectID) ([]domain.Task, error) // Sorted by taskNumber
	MarkSubmitted(ctx context.Context, id primitive.ObjectID, submissionURL string, at time.Time, overdue bool) error
	UpdateSubmission(ctx context.Context, id primitive.ObjectID, submissionURL string, at time.Time) error
	ListOverdue(ctx context.Context, internshipID primitive.ObjectID, now time.Time) ([]domain.Task, error)
	ListDueBetween(ctx context.Context, internshipID primitive.ObjectID, from, to time.Time) ([]domain.Task, error)
}

// SubmissionRepository stores the submission log, the source of truth for
// task completion.
type SubmissionRepository interface {
	// Upsert creates or replaces the row for (InternshipID, StudentEmail, TaskNumber)
	// and returns the stored document.
	Upsert(ctx context.Context, submission *domain.TaskSubmission) (*domain.TaskSubmission, error)
	ListByInternship(ctx context.Context, internshipID primitive.ObjectID, studentEmail string) ([]domain.TaskSubmission, error)
	// CountCompleted counts rows of the internship with a non-empty URL.
	CountCompleted(ctx context.Context, internshipID primitive.ObjectID) (int, error)
}
