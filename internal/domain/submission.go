package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskSubmission is the authoritative record of work handed in for one
// curriculum slot. There is one document per (InternshipID, TaskNumber);
// resubmitting replaces URL and timestamp and appends to Revisions.
type TaskSubmission struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	InternshipID  primitive.ObjectID   `bson:"internshipId" json:"internshipId"`
	StudentEmail  string               `bson:"studentEmail" json:"studentEmail"`
	TaskNumber    int                  `bson:"taskNumber" json:"taskNumber"`
	SubmissionURL string               `bson:"submissionURL" json:"submissionURL"`
	SubmittedAt   time.Time            `bson:"submittedAt" json:"submittedAt"`
	Revisions     []SubmissionRevision `bson:"revisions,omitempty" json:"revisions,omitempty"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// SubmissionRevision is one entry of a slot's submission history.
type SubmissionRevision struct {
	ID            string    `bson:"id" json:"id"`
	SubmissionURL string    `bson:"submissionURL" json:"submissionURL"`
	SubmittedAt   time.Time `bson:"submittedAt" json:"submittedAt"`
}

// IsComplete reports whether the slot counts toward completion.
func (s *TaskSubmission) IsComplete() bool {
	return s.SubmissionURL != ""
}
