package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStatus type for task lifecycle
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskRejected   TaskStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskRejected:
		return true
	}
	return false
}

// TaskDueAfter is the time given to finish a task after it is seeded.
const TaskDueAfter = 7 * 24 * time.Hour

// Task is one curriculum item of an internship, numbered 1 to TotalTasks.
type Task struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	InternshipID primitive.ObjectID `bson:"internshipId" json:"internshipId"`
	TaskNumber   int                `bson:"taskNumber" json:"taskNumber"`
	Title        string             `bson:"title" json:"title"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Status       TaskStatus         `bson:"status" json:"status"`

	SubmissionURL string     `bson:"submissionURL,omitempty" json:"submissionURL,omitempty"`
	SubmittedAt   *time.Time `bson:"submittedAt,omitempty" json:"submittedAt"`

	// Set by reviewers outside this service
	ReviewedAt *time.Time `bson:"reviewedAt,omitempty" json:"reviewedAt"`
	ReviewedBy string     `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	Feedback   string     `bson:"feedback,omitempty" json:"feedback,omitempty"`
	Score      int        `bson:"score" json:"score"`

	DueDate   time.Time `bson:"dueDate" json:"dueDate"`
	IsOverdue bool      `bson:"isOverdue" json:"isOverdue"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsOverdueAt reports whether an unfinished task is past its due date.
func (t *Task) IsOverdueAt(now time.Time) bool {
	if t.Status == TaskCompleted {
		return false
	}
	return now.After(t.DueDate)
}

// ValidTaskNumber reports whether n addresses a curriculum slot.
func ValidTaskNumber(n int) bool {
	return n >= 1 && n <= TotalTasks
}
