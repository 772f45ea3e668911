package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"futureintern/internship-app/internal/config"
	"futureintern/internship-app/internal/curriculum"
	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/notify"
	"futureintern/internship-app/internal/repository"
	"futureintern/internship-app/internal/repository/memory"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type memoryFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryFiles) PutObject(_ context.Context, key, _ string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = body
	return nil
}

func (m *memoryFiles) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://files.test/" + key + "?signed=1", nil
}

func (m *memoryFiles) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type fixture struct {
	store        *memory.Store
	clock        *testClock
	publisher    *recordingPublisher
	files        *memoryFiles
	auth         AuthService
	internships  InternshipService
	tasks        TaskService
	certificates CertificateService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := curriculum.Load("")
	if err != nil {
		t.Fatalf("failed to load curriculum: %v", err)
	}
	passwords, err := NewPasswordStorage("plain")
	if err != nil {
		t.Fatalf("failed to create password storage: %v", err)
	}

	store := memory.NewStore()
	repos := Repositories{
		Students:    store.Students(),
		Internships: store.Internships(),
		Tasks:       store.Tasks(),
		Submissions: store.Submissions(),
	}
	f := &fixture{
		store:     store,
		clock:     &testClock{t: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)},
		publisher: &recordingPublisher{},
		files:     &memoryFiles{objects: map[string][]byte{}},
	}
	log := zerolog.Nop()
	clock := WithClock(f.clock.Now)

	issuer := NewCertificateIssuer(repos, f.files, "http://localhost:5000", f.publisher, log, clock)
	offer := config.OfferLetterConfig{CompanyName: "FutureIntern", DurationDays: 90, Duration: "3 Months", Location: "Remote"}

	f.auth = NewAuthService(repos, catalog, passwords, "test-secret", time.Hour, f.publisher, log, clock)
	f.internships = NewInternshipService(repos, catalog, issuer, offer, true, f.publisher, log, clock)
	f.tasks = NewTaskService(repos, f.publisher, log, clock)
	f.certificates = NewCertificateService(repos, issuer, f.publisher, log, clock)
	return f
}

func registration(email, domainName string) RegisterInput {
	return RegisterInput{
		Name:          "Asha Rao",
		Email:         email,
		Contact:       "9876543210",
		Qualification: "BTech",
		College:       "City College",
		Year:          3,
		CurrentCity:   "Pune",
		Domain:        domainName,
	}
}

// enrolled registers email in Web Development and returns the internship id.
func (f *fixture) enrolled(t *testing.T, email string) string {
	t.Helper()
	res, err := f.auth.Register(context.Background(), registration(email, "Web Development"))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return res.Internship.ID.Hex()
}

func (f *fixture) submitSlots(t *testing.T, email, internshipID string, numbers ...int) {
	t.Helper()
	for _, n := range numbers {
		if _, err := f.tasks.UpsertSubmission(context.Background(), email, internshipID, n, "https://github.com/asha/task"); err != nil {
			t.Fatalf("submission %d failed: %v", n, err)
		}
	}
}

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.auth.Register(ctx, registration("Asha@Example.com", "Web Development"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != RegisterCreated {
		t.Fatalf("expected outcome %q, got %q", RegisterCreated, res.Outcome)
	}
	if n := len(res.Password); n < 20 || n > 25 {
		t.Fatalf("expected password of 20-25 chars, got %d", n)
	}
	if res.Token == "" {
		t.Fatal("expected a token")
	}
	if res.Student.Email != "asha@example.com" {
		t.Fatalf("expected normalized email, got %q", res.Student.Email)
	}

	_, tasks, err := f.internships.Get(ctx, "asha@example.com", res.Internship.ID.Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != domain.TotalTasks {
		t.Fatalf("expected %d seeded tasks, got %d", domain.TotalTasks, len(tasks))
	}

	login, err := f.auth.Login(ctx, "asha@example.com", res.Password)
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if len(login.Internships) != 1 {
		t.Fatalf("expected 1 internship, got %d", len(login.Internships))
	}

	if _, err := f.auth.Login(ctx, "asha@example.com", res.Password+"x"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if _, err := f.auth.Login(ctx, "nobody@example.com", res.Password); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for unknown email, got %v", err)
	}
	if f.publisher.count(notify.StudentRegistered) != 1 {
		t.Fatalf("expected one %s event", notify.StudentRegistered)
	}
}

func TestRegisterIsIdempotentPerDomain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.auth.Register(ctx, registration("a@example.com", "Web Development"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := f.auth.Register(ctx, registration("a@example.com", "Web Development"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Outcome != RegisterAlreadyEnrolled {
		t.Fatalf("expected outcome %q, got %q", RegisterAlreadyEnrolled, again.Outcome)
	}
	if again.Internship.ID != first.Internship.ID {
		t.Fatalf("expected internship %s, got %s", first.Internship.ID.Hex(), again.Internship.ID.Hex())
	}
	if again.Password != "" || again.Token != "" {
		t.Fatal("expected no credentials on repeated registration")
	}

	added, err := f.auth.Register(ctx, registration("a@example.com", "Data Science"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added.Outcome != RegisterDomainAdded {
		t.Fatalf("expected outcome %q, got %q", RegisterDomainAdded, added.Outcome)
	}

	available, registered, err := f.internships.AvailableDomains(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(registered) != 2 || len(available) != len(domain.Domains)-2 {
		t.Fatalf("expected 2 registered and %d available, got %d and %d", len(domain.Domains)-2, len(registered), len(available))
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		mutate  func(*RegisterInput)
		wantErr error
	}{
		{"unknown domain", func(in *RegisterInput) { in.Domain = "Astrology" }, ErrInvalidDomain},
		{"unknown qualification", func(in *RegisterInput) { in.Qualification = "PhD" }, ErrInvalidQualification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := registration("v@example.com", "Web Development")
			tt.mutate(&in)
			if _, err := f.auth.Register(context.Background(), in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUpsertSubmissionSameSlotCountsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.enrolled(t, "a@example.com")

	f.submitSlots(t, "a@example.com", id, 2)
	res, err := f.tasks.UpsertSubmission(ctx, "a@example.com", id, 2, "https://github.com/asha/task-2-v2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Internship.TaskCompletedCount != 1 {
		t.Fatalf("expected completed count 1, got %d", res.Internship.TaskCompletedCount)
	}
	if res.Submission.SubmissionURL != "https://github.com/asha/task-2-v2" {
		t.Fatalf("expected replaced URL, got %q", res.Submission.SubmissionURL)
	}
	if len(res.Submission.Revisions) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(res.Submission.Revisions))
	}

	subs, err := f.tasks.ListSubmissions(ctx, "a@example.com", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 submission row, got %d", len(subs))
	}

	_, tasks, _ := f.internships.Get(ctx, "a@example.com", id)
	if tasks[1].Status != domain.TaskCompleted {
		t.Fatalf("expected task 2 to be completed, got %q", tasks[1].Status)
	}
}

func TestUpsertSubmissionValidation(t *testing.T) {
	f := newFixture(t)
	id := f.enrolled(t, "a@example.com")

	tests := []struct {
		name       string
		taskNumber int
		url        string
		wantErr    error
	}{
		{"task number too low", 0, "https://example.com", ErrInvalidTaskNumber},
		{"task number too high", 6, "https://example.com", ErrInvalidTaskNumber},
		{"empty url", 1, "", ErrInvalidURL},
		{"not a url", 1, "my project", ErrInvalidURL},
		{"unsupported scheme", 1, "ftp://example.com/file", ErrInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tasks.UpsertSubmission(context.Background(), "a@example.com", id, tt.taskNumber, tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	subs, _ := f.tasks.ListSubmissions(context.Background(), "a@example.com", id)
	if len(subs) != 0 {
		t.Fatalf("expected no submissions after rejected input, got %d", len(subs))
	}
}

func TestSubmitTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.enrolled(t, "a@example.com")
	_, tasks, _ := f.internships.Get(ctx, "a@example.com", id)
	taskID := tasks[0].ID.Hex()

	if _, err := f.tasks.Submit(ctx, "a@example.com", taskID, "not a url"); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	task, _ := f.tasks.Get(ctx, "a@example.com", taskID)
	if task.Status != domain.TaskPending || task.SubmissionURL != "" {
		t.Fatalf("expected untouched task, got status %q url %q", task.Status, task.SubmissionURL)
	}

	res, err := f.tasks.Submit(ctx, "a@example.com", taskID, "https://github.com/asha/one")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Task.Status != domain.TaskCompleted {
		t.Fatalf("expected completed task, got %q", res.Task.Status)
	}
	if res.Internship.TaskCompletedCount != 1 || res.Internship.Progress != 20 {
		t.Fatalf("expected count 1 and progress 20, got %d and %d", res.Internship.TaskCompletedCount, res.Internship.Progress)
	}

	subs, _ := f.tasks.ListSubmissions(ctx, "a@example.com", id)
	if len(subs) != 1 || subs[0].TaskNumber != 1 {
		t.Fatalf("expected the submission log to hold task 1, got %+v", subs)
	}

	if _, err := f.tasks.Submit(ctx, "a@example.com", taskID, "https://github.com/asha/one"); !errors.Is(err, ErrTaskAlreadyCompleted) {
		t.Fatalf("expected ErrTaskAlreadyCompleted, got %v", err)
	}
	if f.publisher.count(notify.TaskSubmitted) != 1 {
		t.Fatalf("expected one %s event", notify.TaskSubmitted)
	}
}

func TestOwnershipErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.enrolled(t, "owner@example.com")
	f.enrolled(t, "intruder@example.com")
	_, tasks, _ := f.internships.Get(ctx, "owner@example.com", id)

	if _, _, err := f.internships.Get(ctx, "intruder@example.com", id); !errors.Is(err, ErrInternshipNotFound) {
		t.Fatalf("expected ErrInternshipNotFound, got %v", err)
	}
	if _, err := f.tasks.Get(ctx, "intruder@example.com", tasks[0].ID.Hex()); !errors.Is(err, ErrTaskAccessDenied) {
		t.Fatalf("expected ErrTaskAccessDenied, got %v", err)
	}
	if _, err := f.tasks.Get(ctx, "owner@example.com", "not-an-id"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := f.tasks.UpsertSubmission(ctx, "intruder@example.com", id, 1, "https://example.com"); !errors.Is(err, ErrInternshipNotFound) {
		t.Fatalf("expected ErrInternshipNotFound, got %v", err)
	}
	if _, err := f.certificates.Generate(ctx, "intruder@example.com", id); !errors.Is(err, ErrInternshipNotFound) {
		t.Fatalf("expected ErrInternshipNotFound, got %v", err)
	}
}

func TestEligibilityReasonFollowsCurrentEvaluation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.enrolled(t, "a@example.com")

	f.submitSlots(t, "a@example.com", id, 1, 2)
	report, err := f.certificates.Eligibility(ctx, "a@example.com", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Internship.IsEligibleForCertificate {
		t.Fatal("expected not eligible after 2 tasks on day 0")
	}

	f.clock.Advance(20 * 24 * time.Hour)
	report, err = f.certificates.Eligibility(ctx, "a@example.com", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Internship.IsEligibleForCertificate || report.Internship.CertificateUnlockedReason != domain.UnlockFifteenDay {
		t.Fatalf("expected eligible by %q, got %v by %q", domain.UnlockFifteenDay,
			report.Internship.IsEligibleForCertificate, report.Internship.CertificateUnlockedReason)
	}
	if report.DaysSinceStart != 20 {
		t.Fatalf("expected 20 days since start, got %d", report.DaysSinceStart)
	}

	f.submitSlots(t, "a@example.com", id, 3)
	reports, err := f.certificates.EligibilityAll(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 1 || reports[0].Internship.CertificateUnlockedReason != domain.UnlockThreeTasks {
		t.Fatalf("expected reason %q, got %+v", domain.UnlockThreeTasks, reports)
	}
}

func TestGenerateCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.enrolled(t, "asha@example.com")

	if _, err := f.certificates.Generate(ctx, "asha@example.com", id); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
	status, _ := f.certificates.Get(ctx, "asha@example.com", id)
	if status.Internship.IsCertificateGenerated() {
		t.Fatal("expected no certificate after a rejected generation")
	}

	f.submitSlots(t, "asha@example.com", id, 1, 2, 3)
	first, err := f.certificates.Generate(ctx, "asha@example.com", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.AlreadyGenerated {
		t.Fatal("expected a fresh certificate")
	}
	number := first.Internship.CertificateNumber
	if !strings.HasPrefix(number, "CERT-WE-AS") {
		t.Fatalf("expected number to start with CERT-WE-AS, got %q", number)
	}
	if want := "http://localhost:5000/api/certificates/download/" + number; first.Internship.CertificateURL != want {
		t.Fatalf("expected URL %q, got %q", want, first.Internship.CertificateURL)
	}
	if first.StudentName != "Asha Rao" {
		t.Fatalf("expected student name, got %q", first.StudentName)
	}
	generatedAt := *first.Internship.CertificateGeneratedAt

	f.clock.Advance(time.Hour)
	second, err := f.certificates.Generate(ctx, "asha@example.com", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.AlreadyGenerated {
		t.Fatal("expected AlreadyGenerated on the second call")
	}
	if second.Internship.CertificateNumber != number {
		t.Fatalf("expected number %q, got %q", number, second.Internship.CertificateNumber)
	}
	if !second.Internship.CertificateGeneratedAt.Equal(generatedAt) {
		t.Fatalf("expected generatedAt %v, got %v", generatedAt, *second.Internship.CertificateGeneratedAt)
	}

	if f.publisher.count(notify.CertificateGenerated) != 1 {
		t.Fatalf("expected one %s event", notify.CertificateGenerated)
	}
	if _, ok := f.files.objects["certificates/"+number+".html"]; !ok {
		t.Fatal("expected the rendered certificate to be stored")
	}

	verified, err := f.certificates.Verify(ctx, number)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verified.Student == nil || verified.Student.College != "City College" {
		t.Fatalf("expected student details on verification, got %+v", verified.Student)
	}
	downloaded, err := f.certificates.Download(ctx, number)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(downloaded.ArtifactURL, "https://files.test/certificates/") {
		t.Fatalf("expected presigned artifact URL, got %q", downloaded.ArtifactURL)
	}
	if _, err := f.certificates.Verify(ctx, "CERT-XX-XX000000"); !errors.Is(err, ErrCertificateNotFound) {
		t.Fatalf("expected ErrCertificateNotFound, got %v", err)
	}

	list, err := f.certificates.ListForStudent(ctx, "asha@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].CertificateNumber != number {
		t.Fatalf("expected the certificate in the list, got %+v", list)
	}
}

// failingArtifacts refuses to record certificate artifacts.
type failingArtifacts struct {
	repository.InternshipRepository
}

func (failingArtifacts) SetCertificateArtifact(context.Context, primitive.ObjectID, string) error {
	return errors.New("write failed")
}

func TestUnrecordedArtifactIsDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.enrolled(t, "asha@example.com")
	f.submitSlots(t, "asha@example.com", id, 1, 2, 3)

	store := f.store
	repos := Repositories{
		Students:    store.Students(),
		Internships: failingArtifacts{store.Internships()},
		Tasks:       store.Tasks(),
		Submissions: store.Submissions(),
	}
	log := zerolog.Nop()
	issuer := NewCertificateIssuer(repos, f.files, "http://localhost:5000", f.publisher, log, WithClock(f.clock.Now))
	certificates := NewCertificateService(repos, issuer, f.publisher, log, WithClock(f.clock.Now))

	res, err := certificates.Generate(ctx, "asha@example.com", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Internship.CertificateObjectKey != "" {
		t.Fatalf("expected no recorded artifact, got %q", res.Internship.CertificateObjectKey)
	}
	if len(f.files.objects) != 0 {
		t.Fatalf("expected the unrecorded object to be deleted, got %d objects", len(f.files.objects))
	}
}

func TestPayIssuesCertificateWhenEligible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, err := f.auth.Register(ctx, registration("a@example.com", "Web Development"))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	id := reg.Internship.ID.Hex()

	res, err := f.certificates.Pay(ctx, "a@example.com", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Internship.HasPaidForCertificate || res.CertificateGenerated {
		t.Fatalf("expected paid without certificate, got paid=%v generated=%v", res.Internship.HasPaidForCertificate, res.CertificateGenerated)
	}

	f.clock.Advance(15 * 24 * time.Hour)
	res, err = f.certificates.Pay(ctx, "a@example.com", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.CertificateGenerated {
		t.Fatal("expected payment of an eligible internship to issue the certificate")
	}
	if res.Internship.CertificateUnlockedReason != domain.UnlockFifteenDay {
		t.Fatalf("expected reason %q, got %q", domain.UnlockFifteenDay, res.Internship.CertificateUnlockedReason)
	}

	student, _, err := f.auth.Profile(ctx, reg.Student.ID.Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(student.Certificates) != 1 || !student.Certificates[0].HasPaidForCertificate || student.Certificates[0].CertificateNumber == "" {
		t.Fatalf("expected synced certificate summary, got %+v", student.Certificates)
	}
}

func TestListAutoGeneratesPaidEligibleCertificates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.enrolled(t, "a@example.com")

	if _, err := f.certificates.Pay(ctx, "a@example.com", id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.submitSlots(t, "a@example.com", id, 1, 2, 3)

	list, err := f.internships.List(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 internship, got %d", len(list))
	}
	got := list[0]
	if !got.Internship.IsCertificateGenerated() {
		t.Fatal("expected the list to issue the pending certificate")
	}
	if got.TotalTasks != 5 || got.CompletedTasks != 3 || got.PendingTasks != 2 {
		t.Fatalf("expected 5/3/2 tasks, got %d/%d/%d", got.TotalTasks, got.CompletedTasks, got.PendingTasks)
	}
}

func TestListIssuesCertificateOnceDaysElapse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.enrolled(t, "a@example.com")

	if _, err := f.certificates.Pay(ctx, "a@example.com", id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.clock.Advance(16 * 24 * time.Hour)

	list, err := f.internships.List(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 internship, got %d", len(list))
	}
	got := list[0].Internship
	if !got.IsEligibleForCertificate || !got.IsCertificateGenerated() {
		t.Fatalf("expected eligible and generated, got eligible=%v generated=%v", got.IsEligibleForCertificate, got.IsCertificateGenerated())
	}
	if got.CertificateUnlockedReason != domain.UnlockFifteenDay {
		t.Fatalf("expected reason %q, got %q", domain.UnlockFifteenDay, got.CertificateUnlockedReason)
	}
	if f.publisher.count(notify.CertificateGenerated) != 1 {
		t.Fatalf("expected one certificate event, got %d", f.publisher.count(notify.CertificateGenerated))
	}
}

func TestProgressAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.enrolled(t, "a@example.com")
	f.submitSlots(t, "a@example.com", id, 1, 4)

	progress, err := f.internships.Progress(ctx, "a@example.com", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.CompletedTasks != 2 || progress.PendingTasks != 3 || progress.ProgressPercentage != 40 {
		t.Fatalf("expected 2 completed, 3 pending, 40%%, got %d, %d, %d%%",
			progress.CompletedTasks, progress.PendingTasks, progress.ProgressPercentage)
	}

	stats, err := f.tasks.Stats(ctx, "a@example.com", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalTasks != 5 || stats.CompletedTasks != progress.CompletedTasks || stats.PendingTasks != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.InProgressTasks != 0 || stats.AverageScore != 0 || stats.Progress != 40 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.LastSubmission == nil || !stats.LastSubmission.Equal(f.clock.Now()) {
		t.Fatalf("expected last submission at %v, got %v", f.clock.Now(), stats.LastSubmission)
	}
}

// failingTasks fails MarkSubmitted while fail is set.
type failingTasks struct {
	repository.TaskRepository
	fail bool
}

func (r *failingTasks) MarkSubmitted(ctx context.Context, id primitive.ObjectID, submissionURL string, at time.Time, overdue bool) error {
	if r.fail {
		return errors.New("write failed")
	}
	return r.TaskRepository.MarkSubmitted(ctx, id, submissionURL, at, overdue)
}

func TestSubmitCanBeRetriedAfterTaskWriteFails(t *testing.T) {
	ctx := context.Background()
	catalog, err := curriculum.Load("")
	if err != nil {
		t.Fatalf("failed to load curriculum: %v", err)
	}
	passwords, _ := NewPasswordStorage("plain")
	store := memory.NewStore()
	repos := Repositories{
		Students:    store.Students(),
		Internships: store.Internships(),
		Tasks:       store.Tasks(),
		Submissions: store.Submissions(),
	}
	auth := NewAuthService(repos, catalog, passwords, "test-secret", time.Hour, notify.NewNop(), zerolog.Nop())
	reg, err := auth.Register(ctx, registration("a@example.com", "Web Development"))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	flaky := &failingTasks{TaskRepository: store.Tasks(), fail: true}
	failing := repos
	failing.Tasks = flaky
	tasks := NewTaskService(failing, notify.NewNop(), zerolog.Nop())

	_, list, err := tasks.ListForInternship(ctx, "a@example.com", reg.Internship.ID.Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	taskID := list[0].ID.Hex()

	if _, err := tasks.Submit(ctx, "a@example.com", taskID, "https://github.com/asha/one"); err == nil {
		t.Fatal("expected the failing task write to surface")
	}

	flaky.fail = false
	res, err := tasks.Submit(ctx, "a@example.com", taskID, "https://github.com/asha/one")
	if err != nil {
		t.Fatalf("expected a retry to succeed, got %v", err)
	}
	if res.Task.Status != domain.TaskCompleted || res.Internship.TaskCompletedCount != 1 {
		t.Fatalf("expected completed task and count 1, got %s and %d", res.Task.Status, res.Internship.TaskCompletedCount)
	}
	subs, _ := tasks.ListSubmissions(ctx, "a@example.com", reg.Internship.ID.Hex())
	if len(subs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(subs))
	}
}

func TestEventsCarryServiceClock(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(42 * time.Minute)
	id := f.enrolled(t, "a@example.com")
	f.submitSlots(t, "a@example.com", id, 1)

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	if len(f.publisher.events) == 0 {
		t.Fatal("expected published events, got none")
	}
	for _, e := range f.publisher.events {
		if !e.OccurredAt.Equal(f.clock.Now()) {
			t.Fatalf("expected %s at %v, got %v", e.Type, f.clock.Now(), e.OccurredAt)
		}
	}
}

func TestOverdueAndUpcoming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.enrolled(t, "a@example.com")

	upcoming, _ := f.tasks.Upcoming(ctx, "a@example.com", id)
	if len(upcoming) != 0 {
		t.Fatalf("expected nothing due within 3 days, got %d", len(upcoming))
	}

	f.clock.Advance(5 * 24 * time.Hour)
	upcoming, _ = f.tasks.Upcoming(ctx, "a@example.com", id)
	if len(upcoming) != 5 {
		t.Fatalf("expected 5 upcoming tasks, got %d", len(upcoming))
	}

	f.submitSlots(t, "a@example.com", id, 1)
	f.clock.Advance(3 * 24 * time.Hour)
	overdue, err := f.tasks.Overdue(ctx, "a@example.com", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(overdue) != 4 {
		t.Fatalf("expected 4 overdue tasks, got %d", len(overdue))
	}
}

func TestUpdateStatusAndOfferLetter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.enrolled(t, "a@example.com")

	if _, err := f.internships.UpdateStatus(ctx, "a@example.com", id, "archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	updated, err := f.internships.UpdateStatus(ctx, "a@example.com", id, "paused")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.InternshipPaused {
		t.Fatalf("expected paused, got %q", updated.Status)
	}

	offer, err := f.internships.OfferLetter(ctx, "a@example.com", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(offer.OfferNumber, "OFF-") || len(offer.OfferNumber) != 10 {
		t.Fatalf("unexpected offer number %q", offer.OfferNumber)
	}
	if days := offer.EndDate.Sub(offer.StartDate).Hours() / 24; days != 90 {
		t.Fatalf("expected a 90 day offer, got %v", days)
	}
	if offer.StudentName != "Asha Rao" || offer.CompanyName != "FutureIntern" {
		t.Fatalf("unexpected offer letter: %+v", offer)
	}
}
