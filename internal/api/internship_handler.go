package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/service"
)

type InternshipHandler struct {
	internshipService service.InternshipService
}

func NewInternshipHandler(internshipService service.InternshipService) *InternshipHandler {
	return &InternshipHandler{internshipService: internshipService}
}

// --- DTOs ---

type RegisterDomainRequest struct {
	Domain string `json:"domain" binding:"required,internship_domain"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active completed paused"`
}

// InternshipListItem is an internship with its derived task counters. The
// outer TotalTasks shadows the stored one.
type InternshipListItem struct {
	domain.Internship
	TotalTasks     int `json:"totalTasks"`
	CompletedTasks int `json:"completedTasks"`
	PendingTasks   int `json:"pendingTasks"`
	DaysSinceStart int `json:"daysSinceStart"`
}

type ProgressResponse struct {
	TotalTasks                int                 `json:"totalTasks"`
	CompletedTasks            int                 `json:"completedTasks"`
	PendingTasks              int                 `json:"pendingTasks"`
	ProgressPercentage        int                 `json:"progressPercentage"`
	IsEligibleForCertificate  bool                `json:"isEligibleForCertificate"`
	CertificateUnlockedReason domain.UnlockReason `json:"certificateUnlockedReason"`
	DaysSinceStart            int                 `json:"daysSinceStart"`
	CanDownload               bool                `json:"canDownload"`
}

type CompanyResponse struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

type OfferLetterResponse struct {
	OfferNumber  string          `json:"offerNumber"`
	IssuedAt     time.Time       `json:"issuedAt"`
	StudentName  string          `json:"studentName"`
	StudentEmail string          `json:"studentEmail"`
	College      string          `json:"college"`
	Domain       string          `json:"domain"`
	StartDate    time.Time       `json:"startDate"`
	EndDate      time.Time       `json:"endDate"`
	Duration     string          `json:"duration"`
	Location     string          `json:"location"`
	Stipend      string          `json:"stipend"`
	Company      CompanyResponse `json:"company"`
}

// ListInternships godoc
// @Summary List the student's internships
// @Description Includes derived task counters. Paid, eligible internships get their certificate issued.
// @Tags Internships
// @Produce json
// @Security BearerAuth
// @Success 200 {array} InternshipListItem
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /internships [get]
func (h *InternshipHandler) ListInternships(c *gin.Context) {
	email, err := getStudentEmailFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	overviews, err := h.internshipService.List(c.Request.Context(), email)
	if err != nil {
		abortWithInternal(c, "Failed to fetch internships", err)
		return
	}
	items := make([]InternshipListItem, len(overviews))
	for i, o := range overviews {
		items[i] = InternshipListItem{
			Internship:     o.Internship,
			TotalTasks:     o.TotalTasks,
			CompletedTasks: o.CompletedTasks,
			PendingTasks:   o.PendingTasks,
			DaysSinceStart: o.DaysSinceStart,
		}
	}
	respond(c, http.StatusOK, "", items)
}

// GetInternship godoc
// @Summary Get one internship with its tasks
// @Tags Internships
// @Produce json
// @Security BearerAuth
// @Param id path string true "Internship ID"
// @Success 200 {object} gin.H "Internship and tasks"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Internship not found"
// @Router /internships/{id} [get]
func (h *InternshipHandler) GetInternship(c *gin.Context) {
	email, err := getStudentEmailFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	internship, tasks, err := h.internshipService.Get(c.Request.Context(), email, c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to fetch internship")
		return
	}
	respond(c, http.StatusOK, "", gin.H{"internship": internship, "tasks": nonNil(tasks)})
}

// RegisterDomain godoc
// @Summary Enroll the student in another domain
// @Tags Internships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RegisterDomainRequest true "Domain"
// @Success 201 {object} gin.H "Internship created with seeded tasks"
// @Success 200 {object} gin.H "Already registered"
// @Failure 400 {object} ErrorResponse "Validation error"
// @Router /internships/register-domain [post]
func (h *InternshipHandler) RegisterDomain(c *gin.Context) {
	email, err := getStudentEmailFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	var req RegisterDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}

	res, err := h.internshipService.RegisterDomain(c.Request.Context(), email, req.Domain)
	if err != nil {
		abortWithServiceError(c, err, "Failed to register for internship")
		return
	}
	if !res.Created {
		respond(c, http.StatusOK,
			fmt.Sprintf("You are already registered for the %s internship.", req.Domain),
			gin.H{"internship": res.Internship},
			gin.H{"alreadyRegistered": true})
		return
	}
	respond(c, http.StatusCreated,
		fmt.Sprintf("Successfully registered for %s internship!", req.Domain),
		gin.H{"internship": res.Internship, "tasksCreated": res.TasksCreated})
}

// AvailableDomains godoc
// @Summary List domains the student can still register for
// @Tags Internships
// @Produce json
// @Security BearerAuth
// @Success 200 {object} gin.H "available, registered and all domains"
// @Router /internships/available-domains [get]
func (h *InternshipHandler) AvailableDomains(c *gin.Context) {
	email, err := getStudentEmailFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	available, registered, err := h.internshipService.AvailableDomains(c.Request.Context(), email)
	if err != nil {
		abortWithInternal(c, "Failed to fetch available domains", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{
		"available":  available,
		"registered": registered,
		"all":        domain.Domains,
	})
}

// UpdateStatus godoc
// @Summary Change the status of an internship
// @Tags Internships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Internship ID"
// @Param request body UpdateStatusRequest true "New status"
// @Success 200 {object} gin.H "Updated internship"
// @Failure 400 {object} ErrorResponse "Validation error"
// @Failure 404 {object} ErrorResponse "Internship not found"
// @Router /internships/{id}/status [patch]
func (h *InternshipHandler) UpdateStatus(c *gin.Context) {
	email, err := getStudentEmailFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}

	internship, err := h.internshipService.UpdateStatus(c.Request.Context(), email, c.Param("id"), req.Status)
	if err != nil {
		abortWithServiceError(c, err, "Failed to update internship status")
		return
	}
	respond(c, http.StatusOK, fmt.Sprintf("Internship status updated to %s", req.Status), internship)
}

// Progress godoc
// @Summary Get the progress block of an internship
// @Tags Internships
// @Produce json
// @Security BearerAuth
// @Param id path string true "Internship ID"
// @Success 200 {object} ProgressResponse
// @Failure 404 {object} ErrorResponse "Internship not found"
// @Router /internships/{id}/progress [get]
func (h *InternshipHandler) Progress(c *gin.Context) {
	email, err := getStudentEmailFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	p, err := h.internshipService.Progress(c.Request.Context(), email, c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to fetch progress")
		return
	}
	respond(c, http.StatusOK, "", ProgressResponse{
		TotalTasks:                p.TotalTasks,
		CompletedTasks:            p.CompletedTasks,
		PendingTasks:              p.PendingTasks,
		ProgressPercentage:        p.ProgressPercentage,
		IsEligibleForCertificate:  p.Internship.IsEligibleForCertificate,
		CertificateUnlockedReason: p.Internship.CertificateUnlockedReason,
		DaysSinceStart:            p.DaysSinceStart,
		CanDownload:               p.Internship.CanDownload,
	})
}

// OfferLetter godoc
// @Summary Get the offer letter of an internship
// @Tags Internships
// @Produce json
// @Security BearerAuth
// @Param id path string true "Internship ID"
// @Success 200 {object} OfferLetterResponse
// @Failure 404 {object} ErrorResponse "Internship not found"
// @Router /internships/{id}/offer-letter [get]
func (h *InternshipHandler) OfferLetter(c *gin.Context) {
	email, err := getStudentEmailFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	o, err := h.internshipService.OfferLetter(c.Request.Context(), email, c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to build offer letter")
		return
	}
	respond(c, http.StatusOK, "", OfferLetterResponse{
		OfferNumber:  o.OfferNumber,
		IssuedAt:     o.IssuedAt,
		StudentName:  o.StudentName,
		StudentEmail: o.StudentEmail,
		College:      o.College,
		Domain:       o.Domain,
		StartDate:    o.StartDate,
		EndDate:      o.EndDate,
		Duration:     o.Duration,
		Location:     o.Location,
		Stipend:      o.Stipend,
		Company: CompanyResponse{
			Name:    o.CompanyName,
			Address: o.CompanyAddress,
			Email:   o.CompanyEmail,
			Phone:   o.CompanyPhone,
		},
	})
}

// abortWithServiceError maps the service sentinels shared by the handlers.
func abortWithServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrInternshipNotFound):
		abortWithError(c, http.StatusNotFound, "Internship not found")
	case errors.Is(err, service.ErrStudentNotFound):
		abortWithError(c, http.StatusNotFound, "Student not found")
	case errors.Is(err, service.ErrTaskNotFound):
		abortWithError(c, http.StatusNotFound, "Task not found")
	case errors.Is(err, service.ErrCertificateNotFound):
		abortWithError(c, http.StatusNotFound, "Certificate not found")
	case errors.Is(err, service.ErrTaskAccessDenied):
		abortWithError(c, http.StatusForbidden, "Access denied")
	case errors.Is(err, service.ErrTaskAlreadyCompleted):
		abortWithError(c, http.StatusBadRequest, "Task is already completed")
	case errors.Is(err, service.ErrNotEligible):
		abortWithError(c, http.StatusBadRequest, "Not eligible for certificate yet. Complete 3 tasks or wait 15 days.")
	case errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrInvalidTaskNumber),
		errors.Is(err, service.ErrInvalidDomain),
		errors.Is(err, service.ErrInvalidStatus):
		abortWithError(c, http.StatusBadRequest, capitalize(err.Error()))
	default:
		abortWithInternal(c, fallback, err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
