package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InternshipStatus tracks the lifecycle of an enrollment.
type InternshipStatus string

const (
	InternshipActive    InternshipStatus = "active"
	InternshipCompleted InternshipStatus = "completed"
	InternshipPaused    InternshipStatus = "paused"
)

// Valid reports whether s is one of the known statuses.
func (s InternshipStatus) Valid() bool {
	switch s {
	case InternshipActive, InternshipCompleted, InternshipPaused:
		return true
	}
	return false
}

// Internship is a student's enrollment in one domain. There is at most one
// per (StudentEmail, Domain) pair.
type Internship struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentEmail string             `bson:"studentEmail" json:"studentEmail"` // Reference to Student.Email, not a foreign key
	Domain       string             `bson:"domain" json:"domain"`
	StartDate    time.Time          `bson:"startDate" json:"startDate"`
	Status       InternshipStatus   `bson:"status" json:"status"`

	TaskCompletedCount int `bson:"taskCompletedCount" json:"taskCompletedCount"`
	TotalTasks         int `bson:"totalTasks" json:"totalTasks"`
	Progress           int `bson:"progress" json:"progress"`

	// --- Certificate state ---
	IsEligibleForCertificate  bool         `bson:"isEligibleForCertificate" json:"isEligibleForCertificate"`
	CertificateUnlockedReason UnlockReason `bson:"certificateUnlockedReason,omitempty" json:"certificateUnlockedReason"`
	CertificateGeneratedAt    *time.Time   `bson:"certificateGeneratedAt,omitempty" json:"certificateGeneratedAt"`
	CertificateNumber         string       `bson:"certificateNumber,omitempty" json:"certificateNumber,omitempty"`
	CertificateURL            string       `bson:"certificateURL,omitempty" json:"certificateURL,omitempty"`
	CertificateObjectKey      string       `bson:"certificateObjectKey,omitempty" json:"-"` // Key of the rendered artifact in object storage
	CanDownload               bool         `bson:"canDownload" json:"canDownload"`
	HasPaidForCertificate     bool         `bson:"hasPaidForCertificate" json:"hasPaidForCertificate"`

	LastActivityAt time.Time `bson:"lastActivityAt" json:"lastActivityAt"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NewInternship returns an active enrollment starting at now.
func NewInternship(studentEmail, domainName string, now time.Time) *Internship {
	return &Internship{
		StudentEmail:   studentEmail,
		Domain:         domainName,
		StartDate:      now,
		Status:         InternshipActive,
		TotalTasks:     TotalTasks,
		LastActivityAt: now,
	}
}

// DaysSinceStart is the number of started days elapsed since StartDate.
func (i *Internship) DaysSinceStart(now time.Time) int {
	return DaysSince(i.StartDate, now)
}

// IsCertificateGenerated reports whether a certificate number has been assigned.
func (i *Internship) IsCertificateGenerated() bool {
	return i.CertificateGeneratedAt != nil
}

// ApplyProgress stores a recomputed completion count and refreshes the
// derived progress and eligibility fields.
func (i *Internship) ApplyProgress(completed int, now time.Time) {
	if completed < 0 {
		completed = 0
	}
	if completed > TotalTasks {
		completed = TotalTasks
	}
	i.TaskCompletedCount = completed
	i.Progress = ProgressPercentage(completed)
	i.LastActivityAt = now
	i.RefreshEligibility(now)
}

// RefreshEligibility re-evaluates the unlock rules. Eligibility never goes
// back to false once granted; the reason follows the current evaluation.
func (i *Internship) RefreshEligibility(now time.Time) Eligibility {
	e := EvaluateEligibility(i.TaskCompletedCount, i.DaysSinceStart(now))
	if e.Eligible {
		i.IsEligibleForCertificate = true
		i.CertificateUnlockedReason = e.Reason
	}
	return e
}

// AssignCertificate sets the certificate fields for a first generation.
// It is a no-op returning false when a certificate already exists or the
// internship is not eligible.
func (i *Internship) AssignCertificate(now time.Time, downloadURL func(number string) string) bool {
	if !i.IsEligibleForCertificate || i.IsCertificateGenerated() {
		return false
	}
	i.CertificateNumber = CertificateNumber(i.Domain, i.StudentEmail, now)
	generatedAt := now
	i.CertificateGeneratedAt = &generatedAt
	if downloadURL != nil {
		i.CertificateURL = downloadURL(i.CertificateNumber)
	}
	i.CanDownload = true
	return true
}
