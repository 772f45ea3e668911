package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/notify"
	"futureintern/internship-app/internal/repository"
	"futureintern/internship-app/internal/storage"
)

// Distinct certificate numbers to try before giving up on a collision.
const certificateNumberAttempts = 3

// CertificateIssuer assigns certificate numbers and keeps the student
// summary and stored artifact in line with them.
type CertificateIssuer struct {
	internships repository.InternshipRepository
	students    repository.StudentRepository
	files       storage.FileStorage // nil when artifact storage is disabled
	publisher   notify.Publisher
	log         zerolog.Logger
	baseURL     string
	now         func() time.Time
}

// NewCertificateIssuer creates a CertificateIssuer. files may be nil.
func NewCertificateIssuer(repos Repositories, files storage.FileStorage, baseURL string, publisher notify.Publisher, log zerolog.Logger, opts ...Option) *CertificateIssuer {
	o := buildOptions(opts)
	return &CertificateIssuer{
		internships: repos.Internships,
		students:    repos.Students,
		files:       files,
		publisher:   publisher,
		log:         log.With().Str("component", "certificate_issuer").Logger(),
		baseURL:     strings.TrimRight(baseURL, "/"),
		now:         o.now,
	}
}

// DownloadURL is the public download link of a certificate.
func (ci *CertificateIssuer) DownloadURL(number string) string {
	return ci.baseURL + "/api/certificates/download/" + number
}

// VerifyURL is the public verification link of a certificate.
func (ci *CertificateIssuer) VerifyURL(number string) string {
	return ci.baseURL + "/api/certificates/verify/" + number
}

// Issue assigns a certificate to an eligible internship without one. It
// reports whether this call made the assignment; either way internship is
// left holding the stored certificate state.
func (ci *CertificateIssuer) Issue(ctx context.Context, internship *domain.Internship) (bool, error) {
	if internship.IsCertificateGenerated() {
		return false, nil
	}
	if !internship.IsEligibleForCertificate {
		return false, ErrNotEligible
	}

	for attempt := 0; attempt < certificateNumberAttempts; attempt++ {
		candidate := *internship
		candidate.AssignCertificate(ci.now().Add(time.Duration(attempt)*time.Millisecond), ci.DownloadURL)

		err := ci.internships.AssignCertificate(ctx, &candidate)
		switch {
		case err == nil:
			*internship = candidate
			ci.afterIssue(ctx, internship)
			return true, nil
		case errors.Is(err, repository.ErrConflict):
			// Another request issued it first; adopt the stored certificate.
			stored, getErr := ci.internships.GetByID(ctx, internship.ID)
			if getErr != nil {
				return false, fmt.Errorf("reload internship: %w", getErr)
			}
			*internship = *stored
			return false, nil
		case errors.Is(err, repository.ErrDuplicate):
			ci.log.Warn().Str("number", candidate.CertificateNumber).Msg("Certificate number collision, retrying")
		default:
			return false, fmt.Errorf("assign certificate: %w", err)
		}
	}
	return false, errors.New("could not allocate a unique certificate number")
}

func (ci *CertificateIssuer) afterIssue(ctx context.Context, internship *domain.Internship) {
	ci.log.Info().
		Str("number", internship.CertificateNumber).
		Str("student", internship.StudentEmail).
		Str("domain", internship.Domain).
		Str("reason", string(internship.CertificateUnlockedReason)).
		Msg("Certificate generated")

	ci.syncSummary(ctx, internship)
	ci.storeArtifact(ctx, internship)

	publish(ctx, ci.publisher, ci.log,
		notify.NewEvent(notify.CertificateGenerated, internship.StudentEmail, internship.ID, internship.Domain, ci.now()).
			With("certificateNumber", internship.CertificateNumber).
			With("certificateURL", internship.CertificateURL))
}

// syncSummary mirrors the certificate fields into the student's record.
func (ci *CertificateIssuer) syncSummary(ctx context.Context, internship *domain.Internship) {
	if err := ci.students.UpsertCertificateSummary(ctx, internship.StudentEmail, domain.SummaryOf(internship)); err != nil {
		ci.log.Warn().Err(err).Str("internship_id", internship.ID.Hex()).Msg("Failed to update student certificate summary")
	}
}

func (ci *CertificateIssuer) storeArtifact(ctx context.Context, internship *domain.Internship) {
	if ci.files == nil {
		return
	}
	student, err := ci.students.GetByEmail(ctx, internship.StudentEmail)
	if err != nil {
		ci.log.Warn().Err(err).Str("student", internship.StudentEmail).Msg("Rendering certificate without student details")
		student = nil
	}
	body, err := renderCertificate(internship, student, ci.VerifyURL(internship.CertificateNumber))
	if err != nil {
		ci.log.Error().Err(err).Str("number", internship.CertificateNumber).Msg("Failed to render certificate")
		return
	}
	key := storage.CertificateKey(internship.CertificateNumber)
	if err := ci.files.PutObject(ctx, key, "text/html; charset=utf-8", body); err != nil {
		ci.log.Error().Err(err).Str("key", key).Msg("Failed to store certificate")
		return
	}
	if err := ci.internships.SetCertificateArtifact(ctx, internship.ID, key); err != nil {
		ci.log.Error().Err(err).Str("key", key).Msg("Failed to record certificate artifact")
		// An unrecorded object is never served; drop it.
		if err := ci.files.DeleteObject(ctx, key); err != nil {
			ci.log.Warn().Err(err).Str("key", key).Msg("Failed to delete unrecorded certificate")
		}
		return
	}
	internship.CertificateObjectKey = key
}

// presignedURL returns a temporary link to the stored artifact, or "".
func (ci *CertificateIssuer) presignedURL(ctx context.Context, internship *domain.Internship) string {
	if ci.files == nil || internship.CertificateObjectKey == "" {
		return ""
	}
	u, err := ci.files.GeneratePresignedDownloadURL(ctx, internship.CertificateObjectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return ""
	}
	return u
}

// --- Certificate Service ---

// GenerateResult is the outcome of an explicit generation request.
type GenerateResult struct {
	Internship       *domain.Internship
	StudentName      string
	AlreadyGenerated bool
}

// CertificateStatus describes the certificate state of one internship.
type CertificateStatus struct {
	Internship     *domain.Internship
	StudentName    string
	DaysSinceStart int
}

// CertificateRecord is the public view of an issued certificate.
type CertificateRecord struct {
	Internship *domain.Internship
	Student    *domain.Student // nil if the student record is gone
	// ArtifactURL is a presigned link to the rendered certificate, if stored.
	ArtifactURL string
	CheckedAt   time.Time
}

// EligibilityReport is the computed eligibility of one internship.
type EligibilityReport struct {
	Internship     *domain.Internship
	TotalTasks     int
	DaysSinceStart int
}

// PaymentResult is returned by Pay.
type PaymentResult struct {
	Internship           *domain.Internship
	CertificateGenerated bool
}

// CertificateService covers certificate generation, lookup and payment.
type CertificateService interface {
	Generate(ctx context.Context, studentEmail, internshipID string) (*GenerateResult, error)
	Get(ctx context.Context, studentEmail, internshipID string) (*CertificateStatus, error)
	Verify(ctx context.Context, certificateNumber string) (*CertificateRecord, error)
	Download(ctx context.Context, certificateNumber string) (*CertificateRecord, error)
	ListForStudent(ctx context.Context, studentEmail string) ([]domain.Internship, error)
	Eligibility(ctx context.Context, studentEmail, internshipID string) (*EligibilityReport, error)
	EligibilityAll(ctx context.Context, studentEmail string) ([]EligibilityReport, error)
	Pay(ctx context.Context, studentEmail, internshipID string) (*PaymentResult, error)
}

type certificateService struct {
	internships repository.InternshipRepository
	students    repository.StudentRepository
	progress    *progressTracker
	issuer      *CertificateIssuer
	publisher   notify.Publisher
	log         zerolog.Logger
	now         func() time.Time
}

// NewCertificateService creates a new CertificateService.
func NewCertificateService(repos Repositories, issuer *CertificateIssuer, publisher notify.Publisher, log zerolog.Logger, opts ...Option) CertificateService {
	o := buildOptions(opts)
	return &certificateService{
		internships: repos.Internships,
		students:    repos.Students,
		progress: &progressTracker{
			internships: repos.Internships,
			submissions: repos.Submissions,
			now:         o.now,
		},
		issuer:    issuer,
		publisher: publisher,
		log:       log.With().Str("component", "certificate_service").Logger(),
		now:       o.now,
	}
}

// Generate issues the certificate, or returns the existing one unchanged.
// State is untouched when the internship is not eligible.
func (s *certificateService) Generate(ctx context.Context, studentEmail, internshipID string) (*GenerateResult, error) {
	internship, err := ownedInternship(ctx, s.internships, studentEmail, internshipID)
	if err != nil {
		return nil, err
	}
	if err := s.progress.reconcile(ctx, internship); err != nil {
		return nil, err
	}

	result := &GenerateResult{Internship: internship, StudentName: s.studentName(ctx, internship.StudentEmail)}
	if internship.IsCertificateGenerated() {
		result.AlreadyGenerated = true
		return result, nil
	}
	if !internship.IsEligibleForCertificate {
		return nil, ErrNotEligible
	}

	issued, err := s.issuer.Issue(ctx, internship)
	if err != nil {
		return nil, err
	}
	result.AlreadyGenerated = !issued
	return result, nil
}

func (s *certificateService) Get(ctx context.Context, studentEmail, internshipID string) (*CertificateStatus, error) {
	internship, err := ownedInternship(ctx, s.internships, studentEmail, internshipID)
	if err != nil {
		return nil, err
	}
	return &CertificateStatus{
		Internship:     internship,
		StudentName:    s.studentName(ctx, internship.StudentEmail),
		DaysSinceStart: internship.DaysSinceStart(s.now()),
	}, nil
}

func (s *certificateService) Verify(ctx context.Context, certificateNumber string) (*CertificateRecord, error) {
	return s.record(ctx, certificateNumber, false)
}

// Download returns the certificate data and, when stored, a presigned link
// to the rendered document.
func (s *certificateService) Download(ctx context.Context, certificateNumber string) (*CertificateRecord, error) {
	return s.record(ctx, certificateNumber, true)
}

func (s *certificateService) record(ctx context.Context, certificateNumber string, withArtifact bool) (*CertificateRecord, error) {
	certificateNumber = strings.TrimSpace(certificateNumber)
	if certificateNumber == "" {
		return nil, ErrCertificateNotFound
	}
	internship, err := s.internships.GetByCertificateNumber(ctx, certificateNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCertificateNotFound
		}
		return nil, fmt.Errorf("lookup certificate: %w", err)
	}

	rec := &CertificateRecord{Internship: internship, CheckedAt: s.now()}
	student, err := s.students.GetByEmail(ctx, internship.StudentEmail)
	switch {
	case err == nil:
		rec.Student = student
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("load student: %w", err)
	}
	if withArtifact {
		rec.ArtifactURL = s.issuer.presignedURL(ctx, internship)
	}
	return rec, nil
}

// ListForStudent returns eligible internships, most recent certificate first.
func (s *certificateService) ListForStudent(ctx context.Context, studentEmail string) ([]domain.Internship, error) {
	list, err := s.internships.ListEligibleByStudent(ctx, NormalizeEmail(studentEmail))
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return list, nil
}

func (s *certificateService) Eligibility(ctx context.Context, studentEmail, internshipID string) (*EligibilityReport, error) {
	internship, err := ownedInternship(ctx, s.internships, studentEmail, internshipID)
	if err != nil {
		return nil, err
	}
	if err := s.progress.reconcile(ctx, internship); err != nil {
		return nil, err
	}
	return s.report(internship), nil
}

func (s *certificateService) EligibilityAll(ctx context.Context, studentEmail string) ([]EligibilityReport, error) {
	internships, err := s.internships.ListByStudent(ctx, NormalizeEmail(studentEmail))
	if err != nil {
		return nil, fmt.Errorf("list internships: %w", err)
	}
	reports := make([]EligibilityReport, 0, len(internships))
	for i := range internships {
		internship := &internships[i]
		if err := s.progress.reconcile(ctx, internship); err != nil {
			return nil, err
		}
		reports = append(reports, *s.report(internship))
	}
	return reports, nil
}

func (s *certificateService) report(internship *domain.Internship) *EligibilityReport {
	return &EligibilityReport{
		Internship:     internship,
		TotalTasks:     domain.TotalTasks,
		DaysSinceStart: internship.DaysSinceStart(s.now()),
	}
}

// Pay records the certificate payment and issues the certificate when the
// internship is already eligible.
func (s *certificateService) Pay(ctx context.Context, studentEmail, internshipID string) (*PaymentResult, error) {
	internship, err := ownedInternship(ctx, s.internships, studentEmail, internshipID)
	if err != nil {
		return nil, err
	}
	if err := s.internships.SetPaid(ctx, internship.ID); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	internship.HasPaidForCertificate = true
	s.log.Info().Str("internship_id", internship.ID.Hex()).Msg("Certificate payment recorded")

	if err := s.progress.reconcile(ctx, internship); err != nil {
		return nil, err
	}
	if internship.IsEligibleForCertificate && !internship.IsCertificateGenerated() {
		if _, err := s.issuer.Issue(ctx, internship); err != nil {
			return nil, err
		}
	}
	// Issue already synced on a fresh certificate; this covers the paid flag.
	s.issuer.syncSummary(ctx, internship)

	publish(ctx, s.publisher, s.log,
		notify.NewEvent(notify.CertificatePaid, internship.StudentEmail, internship.ID, internship.Domain, s.now()))
	return &PaymentResult{Internship: internship, CertificateGenerated: internship.IsCertificateGenerated()}, nil
}

func (s *certificateService) studentName(ctx context.Context, email string) string {
	student, err := s.students.GetByEmail(ctx, email)
	if err != nil {
		return ""
	}
	return student.Name
}
