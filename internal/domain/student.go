package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Student is a registered intern. The password is stored exactly as issued
// unless the service is configured for hashed storage.
type Student struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"` // Unique, lowercased
	Password      string             `bson:"password" json:"-"`  // Never expose this via JSON
	Contact       string             `bson:"contact" json:"contact"`
	Qualification string             `bson:"qualification" json:"qualification"`
	College       string             `bson:"college" json:"college"`
	Year          int                `bson:"year" json:"year"`
	CurrentCity   string             `bson:"currentCity" json:"currentCity"`
	LinkedIn      string             `bson:"linkedin,omitempty" json:"linkedin,omitempty"`

	RegisteredAt   time.Time  `bson:"registeredAt" json:"registeredAt"`
	OfferLetterURL string     `bson:"offerLetterURL,omitempty" json:"offerLetterURL,omitempty"`
	IsActive       bool       `bson:"isActive" json:"isActive"`
	LastLoginAt    *time.Time `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`

	// Denormalized copy of certificate state, one entry per domain.
	Certificates []CertificateSummary `bson:"certificates,omitempty" json:"certificates,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// CertificateSummary mirrors the certificate fields of one internship.
type CertificateSummary struct {
	Domain                 string     `bson:"domain" json:"domain"`
	HasPaidForCertificate  bool       `bson:"hasPaidForCertificate" json:"hasPaidForCertificate"`
	CertificateGeneratedAt *time.Time `bson:"certificateGeneratedAt,omitempty" json:"certificateGeneratedAt"`
	CertificateNumber      string     `bson:"certificateNumber,omitempty" json:"certificateNumber,omitempty"`
	CertificateURL         string     `bson:"certificateURL,omitempty" json:"certificateURL,omitempty"`
}

// SummaryOf builds the student-side copy of an internship's certificate state.
func SummaryOf(i *Internship) CertificateSummary {
	return CertificateSummary{
		Domain:                 i.Domain,
		HasPaidForCertificate:  i.HasPaidForCertificate,
		CertificateGeneratedAt: i.CertificateGeneratedAt,
		CertificateNumber:      i.CertificateNumber,
		CertificateURL:         i.CertificateURL,
	}
}

// ProfileUpdate holds the student fields that may change after registration.
type ProfileUpdate struct {
	Name          string
	Contact       string
	Qualification string
	College       string
	Year          int
	CurrentCity   string
	LinkedIn      string
}
