// Package memory provides process-local implementations of the repository
// interfaces. They follow the same contracts as the MongoDB repositories,
// including the uniqueness rules, and are used by tests and local demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds every collection behind one lock.
type Store struct {
	mu          sync.RWMutex
	students    map[primitive.ObjectID]*domain.Student
	internships map[primitive.ObjectID]*domain.Internship
	tasks       map[primitive.ObjectID]*domain.Task
	submissions map[primitive.ObjectID]*domain.TaskSubmission
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		students:    make(map[primitive.ObjectID]*domain.Student),
		internships: make(map[primitive.ObjectID]*domain.Internship),
		tasks:       make(map[primitive.ObjectID]*domain.Task),
		submissions: make(map[primitive.ObjectID]*domain.TaskSubmission),
	}
}

// Students returns a StudentRepository over the store.
func (s *Store) Students() repository.StudentRepository { return &studentRepository{s} }

// Internships returns an InternshipRepository over the store.
func (s *Store) Internships() repository.InternshipRepository { return &internshipRepository{s} }

// Tasks returns a TaskRepository over the store.
func (s *Store) Tasks() repository.TaskRepository { return &taskRepository{s} }

// Submissions returns a SubmissionRepository over the store.
func (s *Store) Submissions() repository.SubmissionRepository { return &submissionRepository{s} }

func timePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyStudent(s *domain.Student) *domain.Student {
	c := *s
	c.LastLoginAt = timePtr(s.LastLoginAt)
	if s.Certificates != nil {
		c.Certificates = make([]domain.CertificateSummary, len(s.Certificates))
		for i, cs := range s.Certificates {
			cs.CertificateGeneratedAt = timePtr(cs.CertificateGeneratedAt)
			c.Certificates[i] = cs
		}
	}
	return &c
}

func copyInternship(i *domain.Internship) *domain.Internship {
	c := *i
	c.CertificateGeneratedAt = timePtr(i.CertificateGeneratedAt)
	return &c
}

func copyTask(t *domain.Task) *domain.Task {
	c := *t
	c.SubmittedAt = timePtr(t.SubmittedAt)
	c.ReviewedAt = timePtr(t.ReviewedAt)
	return &c
}

func copySubmission(s *domain.TaskSubmission) *domain.TaskSubmission {
	c := *s
	if s.Revisions != nil {
		c.Revisions = append([]domain.SubmissionRevision(nil), s.Revisions...)
	}
	return &c
}

// --- Students ---

type studentRepository struct{ s *Store }

func (r *studentRepository) Create(_ context.Context, student *domain.Student) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.students {
		if existing.Email == student.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	student.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	if student.RegisteredAt.IsZero() {
		student.RegisteredAt = now
	}
	r.s.students[student.ID] = copyStudent(student)
	return student.ID, nil
}

func (r *studentRepository) GetByEmail(_ context.Context, email string) (*domain.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, st := range r.s.students {
		if st.Email == email {
			return copyStudent(st), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *studentRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.students[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyStudent(st), nil
}

func (r *studentRepository) UpdateProfile(_ context.Context, id primitive.ObjectID, update domain.ProfileUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.students[id]
	if !ok {
		return repository.ErrNotFound
	}
	st.Name = update.Name
	st.Contact = update.Contact
	st.Qualification = update.Qualification
	st.College = update.College
	st.Year = update.Year
	st.CurrentCity = update.CurrentCity
	st.LinkedIn = update.LinkedIn
	st.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *studentRepository) TouchLastLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.students[id]
	if !ok {
		return repository.ErrNotFound
	}
	st.LastLoginAt = &at
	st.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *studentRepository) UpsertCertificateSummary(_ context.Context, email string, summary domain.CertificateSummary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.students {
		if st.Email != email {
			continue
		}
		summary.CertificateGeneratedAt = timePtr(summary.CertificateGeneratedAt)
		st.UpdatedAt = time.Now().UTC()
		for i := range st.Certificates {
			if st.Certificates[i].Domain == summary.Domain {
				st.Certificates[i] = summary
				return nil
			}
		}
		st.Certificates = append(st.Certificates, summary)
		return nil
	}
	return repository.ErrNotFound
}

// --- Internships ---

type internshipRepository struct{ s *Store }

func (r *internshipRepository) Create(_ context.Context, internship *domain.Internship) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.internships {
		if existing.StudentEmail == internship.StudentEmail && existing.Domain == internship.Domain {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	internship.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	internship.CreatedAt = now
	internship.UpdatedAt = now
	if internship.StartDate.IsZero() {
		internship.StartDate = now
	}
	if internship.Status == "" {
		internship.Status = domain.InternshipActive
	}
	if internship.TotalTasks == 0 {
		internship.TotalTasks = domain.TotalTasks
	}
	r.s.internships[internship.ID] = copyInternship(internship)
	return internship.ID, nil
}

func (r *internshipRepository) findOne(match func(*domain.Internship) bool) (*domain.Internship, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, in := range r.s.internships {
		if match(in) {
			return copyInternship(in), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *internshipRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Internship, error) {
	return r.findOne(func(in *domain.Internship) bool { return in.ID == id })
}

func (r *internshipRepository) GetByIDForStudent(_ context.Context, id primitive.ObjectID, studentEmail string) (*domain.Internship, error) {
	return r.findOne(func(in *domain.Internship) bool { return in.ID == id && in.StudentEmail == studentEmail })
}

func (r *internshipRepository) GetByStudentAndDomain(_ context.Context, studentEmail, domainName string) (*domain.Internship, error) {
	return r.findOne(func(in *domain.Internship) bool {
		return in.StudentEmail == studentEmail && in.Domain == domainName
	})
}

func (r *internshipRepository) GetByCertificateNumber(_ context.Context, number string) (*domain.Internship, error) {
	if number == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(func(in *domain.Internship) bool { return in.CertificateNumber == number })
}

func (r *internshipRepository) ListByStudent(_ context.Context, studentEmail string) ([]domain.Internship, error) {
	list := r.list(func(in *domain.Internship) bool { return in.StudentEmail == studentEmail })
	sort.SliceStable(list, func(a, b int) bool { return list[a].CreatedAt.After(list[b].CreatedAt) })
	return list, nil
}

func (r *internshipRepository) ListEligibleByStudent(_ context.Context, studentEmail string) ([]domain.Internship, error) {
	list := r.list(func(in *domain.Internship) bool {
		return in.StudentEmail == studentEmail && in.IsEligibleForCertificate
	})
	// Descending by generation time; ungenerated entries sort last.
	sort.SliceStable(list, func(a, b int) bool {
		ga, gb := list[a].CertificateGeneratedAt, list[b].CertificateGeneratedAt
		switch {
		case ga == nil:
			return false
		case gb == nil:
			return true
		}
		return ga.After(*gb)
	})
	return list, nil
}

func (r *internshipRepository) list(match func(*domain.Internship) bool) []domain.Internship {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Internship{}
	for _, in := range r.s.internships {
		if match(in) {
			out = append(out, *copyInternship(in))
		}
	}
	// Map order is random; keep ties stable by id.
	sort.SliceStable(out, func(a, b int) bool { return out[a].ID.Hex() < out[b].ID.Hex() })
	return out
}

func (r *internshipRepository) UpdateStatus(_ context.Context, id primitive.ObjectID, studentEmail string, status domain.InternshipStatus) (*domain.Internship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	in, ok := r.s.internships[id]
	if !ok || in.StudentEmail != studentEmail {
		return nil, repository.ErrNotFound
	}
	in.Status = status
	in.UpdatedAt = time.Now().UTC()
	return copyInternship(in), nil
}

func (r *internshipRepository) SaveProgress(_ context.Context, internship *domain.Internship) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	in, ok := r.s.internships[internship.ID]
	if !ok {
		return repository.ErrNotFound
	}
	in.TaskCompletedCount = internship.TaskCompletedCount
	in.Progress = internship.Progress
	in.LastActivityAt = internship.LastActivityAt
	if internship.IsEligibleForCertificate {
		in.IsEligibleForCertificate = true
		in.CertificateUnlockedReason = internship.CertificateUnlockedReason
	}
	in.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *internshipRepository) SetPaid(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	in, ok := r.s.internships[id]
	if !ok {
		return repository.ErrNotFound
	}
	in.HasPaidForCertificate = true
	in.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *internshipRepository) AssignCertificate(_ context.Context, internship *domain.Internship) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	in, ok := r.s.internships[internship.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if in.CertificateGeneratedAt != nil {
		return repository.ErrConflict
	}
	for _, other := range r.s.internships {
		if other.ID != in.ID && other.CertificateNumber != "" && other.CertificateNumber == internship.CertificateNumber {
			return repository.ErrDuplicate
		}
	}
	in.IsEligibleForCertificate = true
	in.CertificateUnlockedReason = internship.CertificateUnlockedReason
	in.CertificateNumber = internship.CertificateNumber
	in.CertificateGeneratedAt = timePtr(internship.CertificateGeneratedAt)
	in.CertificateURL = internship.CertificateURL
	in.CanDownload = internship.CanDownload
	in.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *internshipRepository) SetCertificateArtifact(_ context.Context, id primitive.ObjectID, objectKey string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	in, ok := r.s.internships[id]
	if !ok {
		return repository.ErrNotFound
	}
	in.CertificateObjectKey = objectKey
	in.UpdatedAt = time.Now().UTC()
	return nil
}

// --- Tasks ---

type taskRepository struct{ s *Store }

func (r *taskRepository) CreateMany(_ context.Context, tasks []domain.Task) ([]primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	seen := make(map[slot]bool)
	for _, t := range r.s.tasks {
		seen[slot{t.InternshipID, t.TaskNumber}] = true
	}
	for _, t := range tasks {
		key := slot{t.InternshipID, t.TaskNumber}
		if seen[key] {
			return nil, repository.ErrDuplicate
		}
		seen[key] = true
	}

	now := time.Now().UTC()
	ids := make([]primitive.ObjectID, 0, len(tasks))
	for i := range tasks {
		tasks[i].ID = primitive.NewObjectID()
		tasks[i].CreatedAt = now
		tasks[i].UpdatedAt = now
		if tasks[i].Status == "" {
			tasks[i].Status = domain.TaskPending
		}
		r.s.tasks[tasks[i].ID] = copyTask(&tasks[i])
		ids = append(ids, tasks[i].ID)
	}
	return ids, nil
}

type slot struct {
	internshipID primitive.ObjectID
	taskNumber   int
}

func (r *taskRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyTask(t), nil
}

func (r *taskRepository) GetByInternshipAndNumber(_ context.Context, internshipID primitive.ObjectID, taskNumber int) (*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.tasks {
		if t.InternshipID == internshipID && t.TaskNumber == taskNumber {
			return copyTask(t), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *taskRepository) ListByInternship(_ context.Context, internshipID primitive.ObjectID) ([]domain.Task, error) {
	return r.list(func(t *domain.Task) bool { return t.InternshipID == internshipID }), nil
}

func (r *taskRepository) ListOverdue(_ context.Context, internshipID primitive.ObjectID, now time.Time) ([]domain.Task, error) {
	return r.list(func(t *domain.Task) bool {
		return t.InternshipID == internshipID && t.Status != domain.TaskCompleted && t.DueDate.Before(now)
	}), nil
}

func (r *taskRepository) ListDueBetween(_ context.Context, internshipID primitive.ObjectID, from, to time.Time) ([]domain.Task, error) {
	return r.list(func(t *domain.Task) bool {
		return t.InternshipID == internshipID && t.Status != domain.TaskCompleted &&
			!t.DueDate.Before(from) && !t.DueDate.After(to)
	}), nil
}

func (r *taskRepository) list(match func(*domain.Task) bool) []domain.Task {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Task{}
	for _, t := range r.s.tasks {
		if match(t) {
			out = append(out, *copyTask(t))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].TaskNumber < out[b].TaskNumber })
	return out
}

func (r *taskRepository) MarkSubmitted(_ context.Context, id primitive.ObjectID, submissionURL string, at time.Time, overdue bool) error {
	return r.update(id, func(t *domain.Task) {
		t.Status = domain.TaskCompleted
		t.SubmissionURL = submissionURL
		t.SubmittedAt = &at
		t.IsOverdue = overdue
	})
}

func (r *taskRepository) UpdateSubmission(_ context.Context, id primitive.ObjectID, submissionURL string, at time.Time) error {
	return r.update(id, func(t *domain.Task) {
		t.SubmissionURL = submissionURL
		t.SubmittedAt = &at
	})
}

func (r *taskRepository) update(id primitive.ObjectID, apply func(*domain.Task)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return repository.ErrNotFound
	}
	apply(t)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// --- Submissions ---

type submissionRepository struct{ s *Store }

func (r *submissionRepository) Upsert(_ context.Context, submission *domain.TaskSubmission) (*domain.TaskSubmission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = now
	}
	revision := domain.SubmissionRevision{
		ID:            uuid.NewString(),
		SubmissionURL: submission.SubmissionURL,
		SubmittedAt:   submission.SubmittedAt,
	}

	for _, existing := range r.s.submissions {
		if existing.InternshipID == submission.InternshipID &&
			existing.StudentEmail == submission.StudentEmail &&
			existing.TaskNumber == submission.TaskNumber {
			existing.SubmissionURL = submission.SubmissionURL
			existing.SubmittedAt = submission.SubmittedAt
			existing.UpdatedAt = now
			existing.Revisions = append(existing.Revisions, revision)
			return copySubmission(existing), nil
		}
	}

	stored := &domain.TaskSubmission{
		ID:            primitive.NewObjectID(),
		InternshipID:  submission.InternshipID,
		StudentEmail:  submission.StudentEmail,
		TaskNumber:    submission.TaskNumber,
		SubmissionURL: submission.SubmissionURL,
		SubmittedAt:   submission.SubmittedAt,
		Revisions:     []domain.SubmissionRevision{revision},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.s.submissions[stored.ID] = stored
	return copySubmission(stored), nil
}

func (r *submissionRepository) ListByInternship(_ context.Context, internshipID primitive.ObjectID, studentEmail string) ([]domain.TaskSubmission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.TaskSubmission{}
	for _, s := range r.s.submissions {
		if s.InternshipID == internshipID && s.StudentEmail == studentEmail {
			out = append(out, *copySubmission(s))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].TaskNumber < out[b].TaskNumber })
	return out, nil
}

func (r *submissionRepository) CountCompleted(_ context.Context, internshipID primitive.ObjectID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, s := range r.s.submissions {
		if s.InternshipID == internshipID && s.IsComplete() {
			n++
		}
	}
	return n, nil
}
