package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"futureintern/internship-app/internal/config"
	"futureintern/internship-app/internal/curriculum"
	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/notify"
	"futureintern/internship-app/internal/repository/memory"
	"futureintern/internship-app/internal/service"
)

const testSecret = "test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  []string        `json:"errors"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`

	AlreadyGenerated bool   `json:"alreadyGenerated"`
	DownloadURL      string `json:"downloadURL"`
}

func newTestRouter(t *testing.T, opts RouterOptions) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	repos := service.Repositories{
		Students:    store.Students(),
		Internships: store.Internships(),
		Tasks:       store.Tasks(),
		Submissions: store.Submissions(),
	}
	catalog, err := curriculum.Load("")
	if err != nil {
		t.Fatalf("load curriculum: %v", err)
	}
	passwords, err := service.NewPasswordStorage("plain")
	if err != nil {
		t.Fatalf("password storage: %v", err)
	}
	log := zerolog.Nop()
	publisher := notify.NewNop()

	issuer := service.NewCertificateIssuer(repos, nil, "http://localhost:5000", publisher, log)
	authService := service.NewAuthService(repos, catalog, passwords, testSecret, time.Hour, publisher, log)
	internshipService := service.NewInternshipService(repos, catalog, issuer, config.OfferLetterConfig{
		CompanyName:  "Future Intern",
		DurationDays: 90,
		Duration:     "3 Months",
	}, true, publisher, log)
	taskService := service.NewTaskService(repos, publisher, log)
	certificateService := service.NewCertificateService(repos, issuer, publisher, log)

	if opts.JWTSecret == "" {
		opts.JWTSecret = testSecret
	}
	opts.Logger = log
	router := gin.New()
	if err := SetupRoutes(router, opts, authService, internshipService, taskService, certificateService); err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return router
}

func do(t *testing.T, router http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, env
}

func registration(email, domainName string) gin.H {
	return gin.H{
		"name":          "Asha Rao",
		"email":         email,
		"contact":       "9876543210",
		"qualification": "BTech",
		"college":       "City College",
		"year":          3,
		"currentCity":   "Pune",
		"domain":        domainName,
	}
}

type registered struct {
	Token        string
	Password     string
	InternshipID string
}

func register(t *testing.T, router http.Handler, email, domainName string) registered {
	t.Helper()
	w, env := do(t, router, http.MethodPost, "/api/auth/register", "", registration(email, domainName))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var data struct {
		Password   string `json:"password"`
		Token      string `json:"token"`
		Internship struct {
			ID string `json:"id"`
		} `json:"internship"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode registration: %v", err)
	}
	if data.Token == "" || data.Internship.ID == "" {
		t.Fatalf("expected token and internship id, got %+v", data)
	}
	return registered{Token: data.Token, Password: data.Password, InternshipID: data.Internship.ID}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "OK" {
		t.Fatalf("expected status OK, got %v", body["status"])
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected %s header to be set", RequestIDHeader)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers on the response")
	}
}

func TestUnknownRoute(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	w, env := do(t, router, http.MethodGet, "/api/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if env.Success || env.Message != "Route not found" {
		t.Fatalf("unexpected body %+v", env)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	tests := []struct {
		name    string
		token   string
		message string
	}{
		{"missing token", "", "Access token required"},
		{"garbage token", "not-a-jwt", "Invalid or expired token"},
	}
	paths := []string{"/api/internships", "/api/auth/profile", "/api/certificates", "/api/tasks/stats/abc"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range paths {
				w, env := do(t, router, http.MethodGet, path, tt.token, nil)
				if w.Code != http.StatusUnauthorized {
					t.Fatalf("%s: expected 401, got %d", path, w.Code)
				}
				if env.Message != tt.message {
					t.Fatalf("%s: expected %q, got %q", path, tt.message, env.Message)
				}
			}
		})
	}
}

func TestRegisterLoginAndProfile(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	reg := register(t, router, "asha@example.com", "Web Development")

	w, env := do(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "ASHA@example.com",
		"password": reg.Password,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var login struct {
		Token       string            `json:"token"`
		Internships []json.RawMessage `json:"internships"`
	}
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" || len(login.Internships) != 1 {
		t.Fatalf("expected token and one internship, got %+v", login)
	}

	w, env = do(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "asha@example.com",
		"password": strings.Repeat("x", 20),
	})
	if w.Code != http.StatusUnauthorized || env.Message != "Invalid email or password" {
		t.Fatalf("expected 401 for a wrong password, got %d %q", w.Code, env.Message)
	}

	w, env = do(t, router, http.MethodGet, "/api/auth/profile", login.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.Contains(string(env.Data), reg.Password) {
		t.Fatalf("profile must not include the password")
	}

	w, env = do(t, router, http.MethodPost, "/api/auth/check-email", "", gin.H{"email": "asha@example.com"})
	if w.Code != http.StatusOK || env.Message != "Email already registered. Please login." {
		t.Fatalf("unexpected check-email response %d %q", w.Code, env.Message)
	}
}

func TestRegisterValidationErrors(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	body := registration("not-an-email", "Basket Weaving")
	body["contact"] = "123"

	w, env := do(t, router, http.MethodPost, "/api/auth/register", "", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if env.Message != "Validation failed" {
		t.Fatalf("expected validation message, got %q", env.Message)
	}
	want := map[string]bool{
		"Valid email required":                    false,
		"Valid domain required":                   false,
		"Valid 10-digit contact number required": false,
	}
	for _, e := range env.Errors {
		if _, ok := want[e]; ok {
			want[e] = true
		}
	}
	for msg, seen := range want {
		if !seen {
			t.Fatalf("expected error %q in %v", msg, env.Errors)
		}
	}
}

func TestRegisterFieldRules(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})

	tests := []struct {
		name  string
		field string
		value string
		want  string
	}{
		{"short contact", "contact", "98765", "Valid 10-digit contact number required"},
		{"signed contact", "contact", "-987654321", "Valid 10-digit contact number required"},
		{"letters in contact", "contact", "98765abcde", "Valid 10-digit contact number required"},
		{"linkedin not a url", "linkedin", "linkedin.com/in/asha", "Valid URL required"},
		{"linkedin wrong host", "linkedin", "https://example.com/in/asha", "Valid LinkedIn URL required"},
		{"linkedin lookalike host", "linkedin", "https://notlinkedin.com/in/asha", "Valid LinkedIn URL required"},
		{"valid", "linkedin", "https://www.linkedin.com/in/asha", ""},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := registration(fmt.Sprintf("rules%d@example.com", i), "Web Development")
			body[tt.field] = tt.value
			w, env := do(t, router, http.MethodPost, "/api/auth/register", "", body)
			if tt.want == "" {
				if w.Code != http.StatusCreated {
					t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
				}
				return
			}
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if len(env.Errors) != 1 || env.Errors[0] != tt.want {
				t.Fatalf("expected error %q, got %v", tt.want, env.Errors)
			}
		})
	}
}

func TestTaskSelfReviewRouteIsGone(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	reg := register(t, router, "asha@example.com", "Web Development")

	_, env := do(t, router, http.MethodGet, "/api/tasks/internship/"+reg.InternshipID, reg.Token, nil)
	var list struct {
		Tasks []struct {
			ID string `json:"id"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	taskID := list.Tasks[0].ID

	w, env := do(t, router, http.MethodPatch, "/api/tasks/"+taskID+"/status", reg.Token, gin.H{"status": "completed"})
	if w.Code != http.StatusNotFound || env.Message != "Route not found" {
		t.Fatalf("expected 404 route not found, got %d %q", w.Code, env.Message)
	}

	_, env = do(t, router, http.MethodGet, "/api/tasks/stats/"+reg.InternshipID, reg.Token, nil)
	var stats struct {
		CompletedTasks int `json:"completedTasks"`
	}
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.CompletedTasks != 0 {
		t.Fatalf("expected 0 completed tasks, got %d", stats.CompletedTasks)
	}
}

func TestForeignInternshipIsNotFound(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	owner := register(t, router, "owner@example.com", "Data Science")
	other := register(t, router, "other@example.com", "Data Science")

	paths := []string{
		"/api/internships/" + owner.InternshipID,
		"/api/internships/" + owner.InternshipID + "/progress",
		"/api/tasks/internship/" + owner.InternshipID,
		"/api/certificates/" + owner.InternshipID,
		"/api/internships/ffffffffffffffffffffffff",
		"/api/internships/not-an-id",
	}
	for _, path := range paths {
		w, env := do(t, router, http.MethodGet, path, other.Token, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, w.Code)
		}
		if env.Message != "Internship not found" {
			t.Fatalf("%s: expected %q, got %q", path, "Internship not found", env.Message)
		}
	}
}

func TestSubmitTaskRejectsInvalidURL(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	reg := register(t, router, "asha@example.com", "Web Development")

	_, env := do(t, router, http.MethodGet, "/api/tasks/internship/"+reg.InternshipID, reg.Token, nil)
	var list struct {
		Tasks []struct {
			ID string `json:"id"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	if len(list.Tasks) != 5 {
		t.Fatalf("expected 5 seeded tasks, got %d", len(list.Tasks))
	}
	taskID := list.Tasks[0].ID

	tests := []struct {
		name string
		url  string
		code int
	}{
		{"empty", "", http.StatusBadRequest},
		{"not a url", "my project", http.StatusBadRequest},
		{"ftp scheme", "ftp://example.com/repo", http.StatusBadRequest},
		{"valid", "https://github.com/asha/portfolio", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(t, router, http.MethodPost, "/api/tasks/"+taskID+"/submit", reg.Token, gin.H{"submissionURL": tt.url})
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
		})
	}

	w, env := do(t, router, http.MethodPost, "/api/tasks/"+taskID+"/submit", reg.Token, gin.H{"submissionURL": "https://github.com/asha/again"})
	if w.Code != http.StatusBadRequest || env.Message != "Task is already completed" {
		t.Fatalf("expected 400 already completed, got %d %q", w.Code, env.Message)
	}
}

func TestUpsertSubmissionAndCertificateFlow(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	reg := register(t, router, "asha@example.com", "Web Development")
	base := "/api/tasks/task-submissions/" + reg.InternshipID + "/"

	w, env := do(t, router, http.MethodPost, base+"1", reg.Token, gin.H{})
	if w.Code != http.StatusBadRequest || env.Message != "Submission URL is required" {
		t.Fatalf("expected missing URL error, got %d %q", w.Code, env.Message)
	}
	w, _ = do(t, router, http.MethodPost, base+"9", reg.Token, gin.H{"submissionURL": "https://example.com/x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for task number 9, got %d", w.Code)
	}

	w, env = do(t, router, http.MethodPost, "/api/certificates/generate/"+reg.InternshipID, reg.Token, nil)
	if w.Code != http.StatusBadRequest || !strings.HasPrefix(env.Message, "Not eligible for certificate yet") {
		t.Fatalf("expected not eligible, got %d %q", w.Code, env.Message)
	}

	// Resubmitting a slot must not count twice.
	for _, n := range []string{"1", "1", "2", "3"} {
		w, _ := do(t, router, http.MethodPost, base+n, reg.Token, gin.H{"submissionURL": "https://github.com/asha/task" + n})
		if w.Code != http.StatusOK {
			t.Fatalf("slot %s: expected 200, got %d: %s", n, w.Code, w.Body.String())
		}
	}
	_, env = do(t, router, http.MethodGet, "/api/tasks/task-submissions/"+reg.InternshipID, reg.Token, nil)
	var subs []json.RawMessage
	if err := json.Unmarshal(env.Data, &subs); err != nil {
		t.Fatalf("decode submissions: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(subs))
	}

	_, env = do(t, router, http.MethodGet, "/api/certificates/eligibility/"+reg.InternshipID, reg.Token, nil)
	var elig EligibilityResponse
	if err := json.Unmarshal(env.Data, &elig); err != nil {
		t.Fatalf("decode eligibility: %v", err)
	}
	if !elig.IsEligible || elig.TaskCompletedCount != 3 || elig.UnlockReason != domain.UnlockThreeTasks {
		t.Fatalf("expected eligible by tasks with 3 completed, got %+v", elig)
	}

	w, env = do(t, router, http.MethodPost, "/api/certificates/generate/"+reg.InternshipID, reg.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var first GeneratedCertificateResponse
	if err := json.Unmarshal(env.Data, &first); err != nil {
		t.Fatalf("decode certificate: %v", err)
	}
	if !strings.HasPrefix(first.CertificateNumber, "CERT-WE-AS") {
		t.Fatalf("unexpected certificate number %q", first.CertificateNumber)
	}
	if first.CertificateURL != "http://localhost:5000/api/certificates/download/"+first.CertificateNumber {
		t.Fatalf("unexpected certificate URL %q", first.CertificateURL)
	}

	w, env = do(t, router, http.MethodPost, "/api/certificates/generate/"+reg.InternshipID, reg.Token, nil)
	var second GeneratedCertificateResponse
	if err := json.Unmarshal(env.Data, &second); err != nil {
		t.Fatalf("decode certificate: %v", err)
	}
	if w.Code != http.StatusOK || !env.AlreadyGenerated || second.CertificateNumber != first.CertificateNumber {
		t.Fatalf("expected the same certificate on a second call, got %d %+v", w.Code, second)
	}

	// Public endpoints need no token.
	w, env = do(t, router, http.MethodGet, "/api/certificates/verify/"+first.CertificateNumber, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var verified VerifiedCertificateResponse
	if err := json.Unmarshal(env.Data, &verified); err != nil {
		t.Fatalf("decode verification: %v", err)
	}
	if !verified.IsValid || verified.StudentName != "Asha Rao" || verified.College != "City College" {
		t.Fatalf("unexpected verification %+v", verified)
	}

	w, env = do(t, router, http.MethodGet, "/api/certificates/download/"+first.CertificateNumber, "", nil)
	if w.Code != http.StatusOK || env.DownloadURL != first.CertificateURL {
		t.Fatalf("expected download URL %q, got %d %q", first.CertificateURL, w.Code, env.DownloadURL)
	}

	w, env = do(t, router, http.MethodGet, "/api/certificates/verify/CERT-XX-XX-0", "", nil)
	if w.Code != http.StatusNotFound || env.Message != "Certificate not found" {
		t.Fatalf("expected 404 for an unknown certificate, got %d %q", w.Code, env.Message)
	}
}

func TestRateLimiter(t *testing.T) {
	router := newTestRouter(t, RouterOptions{
		RateLimit: config.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute},
	})
	for i := 0; i < 2; i++ {
		w, _ := do(t, router, http.MethodGet, "/api/health", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	w, env := do(t, router, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if env.Message != "Too many requests from this IP, please try again later." {
		t.Fatalf("unexpected message %q", env.Message)
	}
}
