// Package notify publishes domain events for out-of-process consumers such
// as the email notifier.
package notify

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event types
const (
	StudentRegistered    = "student.registered"
	InternshipEnrolled   = "internship.enrolled"
	TaskSubmitted        = "task.submitted"
	CertificateGenerated = "certificate.generated"
	CertificatePaid      = "certificate.paid"
)

// Event is the JSON body of a published message.
type Event struct {
	Type         string                 `json:"type"`
	OccurredAt   time.Time              `json:"occurredAt"`
	StudentEmail string                 `json:"studentEmail"`
	InternshipID string                 `json:"internshipId,omitempty"`
	Domain       string                 `json:"domain,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// NewEvent fills the common fields of an event that happened at at.
func NewEvent(eventType, studentEmail string, internshipID primitive.ObjectID, domainName string, at time.Time) Event {
	e := Event{
		Type:         eventType,
		OccurredAt:   at.UTC(),
		StudentEmail: studentEmail,
		Domain:       domainName,
	}
	if !internshipID.IsZero() {
		e.InternshipID = internshipID.Hex()
	}
	return e
}

// With returns a copy of e carrying an extra data field.
func (e Event) With(key string, value interface{}) Event {
	data := make(map[string]interface{}, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type nopPublisher struct{}

// NewNop returns a Publisher that drops every event.
func NewNop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                         { return nil }
