package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/notify"
	"futureintern/internship-app/internal/repository"
)

// UpcomingWindow is how far ahead Upcoming looks.
const UpcomingWindow = 3 * 24 * time.Hour

// SubmitResult is returned by Submit.
type SubmitResult struct {
	Task       *domain.Task
	Internship *domain.Internship
}

// SubmissionResult is returned by UpsertSubmission.
type SubmissionResult struct {
	Submission *domain.TaskSubmission
	Internship *domain.Internship
}

// TaskStats aggregates the tasks of one internship. Completion comes from
// the submission log; the other counters from the tasks' own status.
type TaskStats struct {
	TotalTasks      int
	CompletedTasks  int
	PendingTasks    int
	InProgressTasks int
	RejectedTasks   int
	Progress        int
	AverageScore    float64
	LastSubmission  *time.Time
}

// TaskService covers curriculum tasks and the submission log.
type TaskService interface {
	ListForInternship(ctx context.Context, studentEmail, internshipID string) (*domain.Internship, []domain.Task, error)
	Get(ctx context.Context, studentEmail, taskID string) (*domain.Task, error)
	Submit(ctx context.Context, studentEmail, taskID, submissionURL string) (*SubmitResult, error)
	UpdateSubmission(ctx context.Context, studentEmail, taskID, submissionURL string) (*domain.Task, error)
	Stats(ctx context.Context, studentEmail, internshipID string) (*TaskStats, error)
	Overdue(ctx context.Context, studentEmail, internshipID string) ([]domain.Task, error)
	Upcoming(ctx context.Context, studentEmail, internshipID string) ([]domain.Task, error)
	ListSubmissions(ctx context.Context, studentEmail, internshipID string) ([]domain.TaskSubmission, error)
	UpsertSubmission(ctx context.Context, studentEmail, internshipID string, taskNumber int, submissionURL string) (*SubmissionResult, error)
}

type taskService struct {
	tasks       repository.TaskRepository
	internships repository.InternshipRepository
	submissions repository.SubmissionRepository
	progress    *progressTracker
	publisher   notify.Publisher
	log         zerolog.Logger
	now         func() time.Time
}

// NewTaskService creates a new TaskService.
func NewTaskService(repos Repositories, publisher notify.Publisher, log zerolog.Logger, opts ...Option) TaskService {
	o := buildOptions(opts)
	return &taskService{
		tasks:       repos.Tasks,
		internships: repos.Internships,
		submissions: repos.Submissions,
		progress: &progressTracker{
			internships: repos.Internships,
			submissions: repos.Submissions,
			now:         o.now,
		},
		publisher: publisher,
		log:       log.With().Str("component", "task_service").Logger(),
		now:       o.now,
	}
}

// ownedTask loads a task and its internship. A task of another student's
// internship yields ErrTaskAccessDenied rather than ErrTaskNotFound.
func (s *taskService) ownedTask(ctx context.Context, studentEmail, taskID string) (*domain.Task, *domain.Internship, error) {
	oid, err := parseID(taskID)
	if err != nil {
		return nil, nil, ErrTaskNotFound
	}
	task, err := s.tasks.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrTaskNotFound
		}
		return nil, nil, fmt.Errorf("load task: %w", err)
	}
	internship, err := s.internships.GetByIDForStudent(ctx, task.InternshipID, NormalizeEmail(studentEmail))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrTaskAccessDenied
		}
		return nil, nil, fmt.Errorf("load internship: %w", err)
	}
	return task, internship, nil
}

func (s *taskService) ListForInternship(ctx context.Context, studentEmail, internshipID string) (*domain.Internship, []domain.Task, error) {
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

func (s *taskService) Get(ctx context.Context, studentEmail, taskID string) (*domain.Task, error) {
	task, _, err := s.ownedTask(ctx, studentEmail, taskID)
	return task, err
}

// Submit completes a task and records the URL in the submission log.
func (s *taskService) Submit(ctx context.Context, studentEmail, taskID, submissionURL string) (*SubmitResult, error) {
	submissionURL = strings.TrimSpace(submissionURL)
	if !validSubmissionURL(submissionURL) {
		return nil, ErrInvalidURL
	}
	task, internship, err := s.ownedTask(ctx, studentEmail, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == domain.TaskCompleted {
		return nil, ErrTaskAlreadyCompleted
	}

	// The log goes first: a failed task write leaves the task open for a retry.
	now := s.now()
	if _, err := s.logSubmission(ctx, internship, task.TaskNumber, submissionURL, now); err != nil {
		return nil, err
	}
	overdue := now.After(task.DueDate)
	if err := s.tasks.MarkSubmitted(ctx, task.ID, submissionURL, now, overdue); err != nil {
		return nil, fmt.Errorf("mark task submitted: %w", err)
	}
	task.Status = domain.TaskCompleted
	task.SubmissionURL = submissionURL
	task.SubmittedAt = &now
	task.IsOverdue = overdue

	if err := s.progress.record(ctx, internship); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("internship_id", internship.ID.Hex()).
		Int("task", task.TaskNumber).
		Int("completed", internship.TaskCompletedCount).
		Msg("Task submitted")
	s.publishSubmitted(ctx, internship, task.TaskNumber, submissionURL)
	return &SubmitResult{Task: task, Internship: internship}, nil
}

// UpdateSubmission replaces the URL of a task. For a completed task the
// submission log follows.
func (s *taskService) UpdateSubmission(ctx context.Context, studentEmail, taskID, submissionURL string) (*domain.Task, error) {
	submissionURL = strings.TrimSpace(submissionURL)
	if !validSubmissionURL(submissionURL) {
		return nil, ErrInvalidURL
	}
	task, internship, err := s.ownedTask(ctx, studentEmail, taskID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.tasks.UpdateSubmission(ctx, task.ID, submissionURL, now); err != nil {
		return nil, fmt.Errorf("update submission: %w", err)
	}
	task.SubmissionURL = submissionURL
	task.SubmittedAt = &now

	if task.Status == domain.TaskCompleted {
		if _, err := s.logSubmission(ctx, internship, task.TaskNumber, submissionURL, now); err != nil {
			return nil, err
		}
		if err := s.progress.record(ctx, internship); err != nil {
			return nil, err
		}
	}
	return task, nil
}

func (s *taskService) Stats(ctx context.Context, studentEmail, internshipID string) (*TaskStats, error) {
	internship, tasks, err := s.ListForInternship(ctx, studentEmail, internshipID)
	if err != nil {
		return nil, err
	}
	subs, err := s.submissions.ListByInternship(ctx, internship.ID, internship.StudentEmail)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	stats := &TaskStats{TotalTasks: len(tasks), Progress: internship.Progress}
	submitted := make(map[int]bool, len(subs))
	for i := range subs {
		sub := &subs[i]
		if sub.SubmissionURL == "" {
			continue
		}
		submitted[sub.TaskNumber] = true
		if stats.LastSubmission == nil || sub.SubmittedAt.After(*stats.LastSubmission) {
			last := sub.SubmittedAt
			stats.LastSubmission = &last
		}
	}
	stats.CompletedTasks = len(submitted)

	var scoreSum, scored int
	for i := range tasks {
		t := &tasks[i]
		if t.Score > 0 {
			scoreSum += t.Score
			scored++
		}
		if submitted[t.TaskNumber] {
			continue
		}
		switch t.Status {
		case domain.TaskInProgress:
			stats.InProgressTasks++
		case domain.TaskRejected:
			stats.RejectedTasks++
		default:
			stats.PendingTasks++
		}
	}
	if scored > 0 {
		stats.AverageScore = math.Round(float64(scoreSum)/float64(scored)*100) / 100
	}
	return stats, nil
}

func (s *taskService) Overdue(ctx context.Context, studentEmail, internshipID string) ([]domain.Task, error) {
	internship, err := ownedInternship(ctx, s.internships, studentEmail, internshipID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListOverdue(ctx, internship.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list overdue tasks: %w", err)
	}
	sortByDueDate(tasks)
	return tasks, nil
}

func (s *taskService) Upcoming(ctx context.Context, studentEmail, internshipID string) ([]domain.Task, error) {
	internship, err := ownedInternship(ctx, s.internships, studentEmail, internshipID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	tasks, err := s.tasks.ListDueBetween(ctx, internship.ID, now, now.Add(UpcomingWindow))
	if err != nil {
		return nil, fmt.Errorf("list upcoming tasks: %w", err)
	}
	sortByDueDate(tasks)
	return tasks, nil
}

func sortByDueDate(tasks []domain.Task) {
	sort.SliceStable(tasks, func(a, b int) bool { return tasks[a].DueDate.Before(tasks[b].DueDate) })
}

func (s *taskService) ListSubmissions(ctx context.Context, studentEmail, internshipID string) ([]domain.TaskSubmission, error) {
	internship, err := ownedInternship(ctx, s.internships, studentEmail, internshipID)
	if err != nil {
		return nil, err
	}
	list, err := s.submissions.ListByInternship(ctx, internship.ID, internship.StudentEmail)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return list, nil
}

// UpsertSubmission writes the log slot for taskNumber and marks the matching
// task completed. Resubmitting replaces the slot's URL.
func (s *taskService) UpsertSubmission(ctx context.Context, studentEmail, internshipID string, taskNumber int, submissionURL string) (*SubmissionResult, error) {
	if !domain.ValidTaskNumber(taskNumber) {
		return nil, ErrInvalidTaskNumber
	}
	submissionURL = strings.TrimSpace(submissionURL)
	if !validSubmissionURL(submissionURL) {
		return nil, ErrInvalidURL
	}
	internship, err := ownedInternship(ctx, s.internships, studentEmail, internshipID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stored, err := s.logSubmission(ctx, internship, taskNumber, submissionURL, now)
	if err != nil {
		return nil, err
	}
	s.mirrorToTask(ctx, internship, taskNumber, submissionURL, now)

	if err := s.progress.record(ctx, internship); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("internship_id", internship.ID.Hex()).
		Int("task", taskNumber).
		Int("completed", internship.TaskCompletedCount).
		Msg("Task submission saved")
	s.publishSubmitted(ctx, internship, taskNumber, submissionURL)
	return &SubmissionResult{Submission: stored, Internship: internship}, nil
}

func (s *taskService) logSubmission(ctx context.Context, internship *domain.Internship, taskNumber int, submissionURL string, at time.Time) (*domain.TaskSubmission, error) {
	stored, err := s.submissions.Upsert(ctx, &domain.TaskSubmission{
		InternshipID:  internship.ID,
		StudentEmail:  internship.StudentEmail,
		TaskNumber:    taskNumber,
		SubmissionURL: submissionURL,
		SubmittedAt:   at,
	})
	if err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}
	return stored, nil
}

// mirrorToTask keeps the curriculum task in line with a log-path submission.
// Internships whose tasks were never seeded have nothing to mirror.
func (s *taskService) mirrorToTask(ctx context.Context, internship *domain.Internship, taskNumber int, submissionURL string, at time.Time) {
	task, err := s.tasks.GetByInternshipAndNumber(ctx, internship.ID, taskNumber)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn().Err(err).Int("task", taskNumber).Msg("Failed to load task for submission")
		}
		return
	}
	if task.Status == domain.TaskCompleted {
		err = s.tasks.UpdateSubmission(ctx, task.ID, submissionURL, at)
	} else {
		err = s.tasks.MarkSubmitted(ctx, task.ID, submissionURL, at, at.After(task.DueDate))
	}
	if err != nil {
		s.log.Warn().Err(err).Int("task", taskNumber).Msg("Failed to mirror submission to task")
	}
}

func (s *taskService) publishSubmitted(ctx context.Context, internship *domain.Internship, taskNumber int, submissionURL string) {
	publish(ctx, s.publisher, s.log,
		notify.NewEvent(notify.TaskSubmitted, internship.StudentEmail, internship.ID, internship.Domain, s.now()).
			With("taskNumber", taskNumber).
			With("submissionURL", submissionURL).
			With("taskCompletedCount", internship.TaskCompletedCount))
}
