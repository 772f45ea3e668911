package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/service"
)

type CertificateHandler struct {
	certificateService service.CertificateService
}

func NewCertificateHandler(certificateService service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificateService: certificateService}
}

// --- DTOs ---

type GeneratedCertificateResponse struct {
	CertificateNumber string              `json:"certificateNumber"`
	CertificateURL    string              `json:"certificateURL"`
	GeneratedAt       *time.Time          `json:"generatedAt"`
	CanDownload       bool                `json:"canDownload"`
	Domain            string              `json:"domain"`
	StudentName       string              `json:"studentName"`
	UnlockReason      domain.UnlockReason `json:"unlockReason"`
}

type CertificateStatusResponse struct {
	IsEligible         bool                `json:"isEligible"`
	UnlockReason       domain.UnlockReason `json:"unlockReason"`
	IsGenerated        bool                `json:"isGenerated"`
	CertificateNumber  string              `json:"certificateNumber,omitempty"`
	CertificateURL     string              `json:"certificateURL,omitempty"`
	GeneratedAt        *time.Time          `json:"generatedAt"`
	CanDownload        bool                `json:"canDownload"`
	Domain             string              `json:"domain"`
	StudentName        string              `json:"studentName"`
	Progress           int                 `json:"progress"`
	TaskCompletedCount int                 `json:"taskCompletedCount"`
	DaysSinceStart     int                 `json:"daysSinceStart"`
}

type VerifiedCertificateResponse struct {
	CertificateNumber  string              `json:"certificateNumber"`
	StudentName        string              `json:"studentName"`
	Domain             string              `json:"domain"`
	College            string              `json:"college"`
	GeneratedAt        *time.Time          `json:"generatedAt"`
	UnlockReason       domain.UnlockReason `json:"unlockReason"`
	TaskCompletedCount int                 `json:"taskCompletedCount"`
	Progress           int                 `json:"progress"`
	IsValid            bool                `json:"isValid"`
	VerifiedAt         time.Time           `json:"verifiedAt"`
}

type CertificateListItem struct {
	InternshipID       string              `json:"internshipId"`
	Domain             string              `json:"domain"`
	CertificateNumber  string              `json:"certificateNumber,omitempty"`
	CertificateURL     string              `json:"certificateURL,omitempty"`
	GeneratedAt        *time.Time          `json:"generatedAt"`
	CanDownload        bool                `json:"canDownload"`
	UnlockReason       domain.UnlockReason `json:"unlockReason"`
	Progress           int                 `json:"progress"`
	TaskCompletedCount int                 `json:"taskCompletedCount"`
}

type EligibilityResponse struct {
	InternshipID       string              `json:"internshipId"`
	Domain             string              `json:"domain"`
	IsEligible         bool                `json:"isEligible"`
	UnlockReason       domain.UnlockReason `json:"unlockReason"`
	TaskCompletedCount int                 `json:"taskCompletedCount"`
	TotalTasks         int                 `json:"totalTasks"`
	Progress           int                 `json:"progress"`
	DaysSinceStart     int                 `json:"daysSinceStart"`
	IsGenerated        bool                `json:"isGenerated"`
	CertificateNumber  string              `json:"certificateNumber,omitempty"`
	CertificateURL     string              `json:"certificateURL,omitempty"`
	GeneratedAt        *time.Time          `json:"generatedAt,omitempty"`
}

// Generate godoc
// @Summary Generate the certificate of an internship
// @Description Idempotent: a second call returns the stored certificate with alreadyGenerated set.
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param internshipId path string true "Internship ID"
// @Success 200 {object} GeneratedCertificateResponse
// @Failure 400 {object} ErrorResponse "Not eligible yet"
// @Failure 404 {object} ErrorResponse "Internship not found"
// @Router /certificates/generate/{internshipId} [post]
func (h *CertificateHandler) Generate(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	res, err := h.certificateService.Generate(c.Request.Context(), email, c.Param("internshipId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to generate certificate")
		return
	}

	in := res.Internship
	data := GeneratedCertificateResponse{
		CertificateNumber: in.CertificateNumber,
		CertificateURL:    in.CertificateURL,
		GeneratedAt:       in.CertificateGeneratedAt,
		CanDownload:       in.CanDownload,
		Domain:            in.Domain,
		StudentName:       res.StudentName,
		UnlockReason:      in.CertificateUnlockedReason,
	}
	message := "Certificate generated successfully!"
	if res.AlreadyGenerated {
		message = "Certificate already generated"
	}
	respond(c, http.StatusOK, message, data, gin.H{"alreadyGenerated": res.AlreadyGenerated})
}

// GetCertificate godoc
// @Summary Certificate state of an internship
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param internshipId path string true "Internship ID"
// @Success 200 {object} CertificateStatusResponse
// @Failure 404 {object} ErrorResponse "Internship not found"
// @Router /certificates/{internshipId} [get]
func (h *CertificateHandler) GetCertificate(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	st, err := h.certificateService.Get(c.Request.Context(), email, c.Param("internshipId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to fetch certificate")
		return
	}
	in := st.Internship
	respond(c, http.StatusOK, "", CertificateStatusResponse{
		IsEligible:         in.IsEligibleForCertificate,
		UnlockReason:       in.CertificateUnlockedReason,
		IsGenerated:        in.IsCertificateGenerated(),
		CertificateNumber:  in.CertificateNumber,
		CertificateURL:     in.CertificateURL,
		GeneratedAt:        in.CertificateGeneratedAt,
		CanDownload:        in.CanDownload,
		Domain:             in.Domain,
		StudentName:        st.StudentName,
		Progress:           in.Progress,
		TaskCompletedCount: in.TaskCompletedCount,
		DaysSinceStart:     st.DaysSinceStart,
	})
}

// Verify godoc
// @Summary Verify a certificate number
// @Description Public endpoint.
// @Tags Certificates
// @Produce json
// @Param certificateNumber path string true "Certificate number"
// @Success 200 {object} VerifiedCertificateResponse
// @Failure 404 {object} ErrorResponse "Certificate not found"
// @Router /certificates/verify/{certificateNumber} [get]
func (h *CertificateHandler) Verify(c *gin.Context) {
	rec, err := h.certificateService.Verify(c.Request.Context(), c.Param("certificateNumber"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to verify certificate")
		return
	}
	respond(c, http.StatusOK, "Certificate verified successfully", mapVerified(rec))
}

// Download godoc
// @Summary Download data of a certificate
// @Description Public endpoint. downloadURL points at the stored document when one exists.
// @Tags Certificates
// @Produce json
// @Param certificateNumber path string true "Certificate number"
// @Success 200 {object} VerifiedCertificateResponse
// @Failure 404 {object} ErrorResponse "Certificate not found"
// @Router /certificates/download/{certificateNumber} [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	rec, err := h.certificateService.Download(c.Request.Context(), c.Param("certificateNumber"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to download certificate")
		return
	}
	downloadURL := rec.ArtifactURL
	if downloadURL == "" {
		downloadURL = rec.Internship.CertificateURL
	}
	respond(c, http.StatusOK, "Certificate download initiated", mapVerified(rec), gin.H{"downloadURL": downloadURL})
}

// ListCertificates godoc
// @Summary List the student's eligible internships and certificates
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Success 200 {array} CertificateListItem
// @Router /certificates [get]
func (h *CertificateHandler) ListCertificates(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	list, err := h.certificateService.ListForStudent(c.Request.Context(), email)
	if err != nil {
		abortWithServiceError(c, err, "Failed to fetch certificates")
		return
	}
	items := make([]CertificateListItem, len(list))
	for i := range list {
		in := &list[i]
		items[i] = CertificateListItem{
			InternshipID:       in.ID.Hex(),
			Domain:             in.Domain,
			CertificateNumber:  in.CertificateNumber,
			CertificateURL:     in.CertificateURL,
			GeneratedAt:        in.CertificateGeneratedAt,
			CanDownload:        in.CanDownload,
			UnlockReason:       in.CertificateUnlockedReason,
			Progress:           in.Progress,
			TaskCompletedCount: in.TaskCompletedCount,
		}
	}
	respond(c, http.StatusOK, "", items)
}

// Eligibility godoc
// @Summary Eligibility of one internship
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param internshipId path string true "Internship ID"
// @Success 200 {object} EligibilityResponse
// @Failure 404 {object} ErrorResponse "Internship not found"
// @Router /certificates/eligibility/{internshipId} [get]
func (h *CertificateHandler) Eligibility(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	report, err := h.certificateService.Eligibility(c.Request.Context(), email, c.Param("internshipId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to check eligibility")
		return
	}
	respond(c, http.StatusOK, "", mapEligibility(report, true))
}

// EligibilityCheck godoc
// @Summary Eligibility of every internship of the student
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Success 200 {array} EligibilityResponse
// @Router /certificates/eligibility/check [get]
func (h *CertificateHandler) EligibilityCheck(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	reports, err := h.certificateService.EligibilityAll(c.Request.Context(), email)
	if err != nil {
		abortWithServiceError(c, err, "Failed to check eligibility")
		return
	}
	items := make([]EligibilityResponse, len(reports))
	for i := range reports {
		items[i] = mapEligibility(&reports[i], false)
	}
	respond(c, http.StatusOK, "", items)
}

// Pay godoc
// @Summary Record the certificate payment
// @Description Issues the certificate right away when the internship is eligible.
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param internshipId path string true "Internship ID"
// @Success 200 {object} gin.H "Payment recorded"
// @Failure 404 {object} ErrorResponse "Internship not found"
// @Router /certificates/pay/{internshipId} [post]
func (h *CertificateHandler) Pay(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	res, err := h.certificateService.Pay(c.Request.Context(), email, c.Param("internshipId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to record payment")
		return
	}
	respond(c, http.StatusOK, "Payment recorded", gin.H{
		"hasPaidForCertificate": res.Internship.HasPaidForCertificate,
		"certificateGenerated":  res.CertificateGenerated,
		"certificateNumber":     res.Internship.CertificateNumber,
	})
}

func mapVerified(rec *service.CertificateRecord) VerifiedCertificateResponse {
	in := rec.Internship
	resp := VerifiedCertificateResponse{
		CertificateNumber:  in.CertificateNumber,
		Domain:             in.Domain,
		GeneratedAt:        in.CertificateGeneratedAt,
		UnlockReason:       in.CertificateUnlockedReason,
		TaskCompletedCount: in.TaskCompletedCount,
		Progress:           in.Progress,
		IsValid:            true,
		VerifiedAt:         rec.CheckedAt,
	}
	if rec.Student != nil {
		resp.StudentName = rec.Student.Name
		resp.College = rec.Student.College
	}
	return resp
}

func mapEligibility(r *service.EligibilityReport, withCertificate bool) EligibilityResponse {
	in := r.Internship
	resp := EligibilityResponse{
		InternshipID:       in.ID.Hex(),
		Domain:             in.Domain,
		IsEligible:         in.IsEligibleForCertificate,
		UnlockReason:       in.CertificateUnlockedReason,
		TaskCompletedCount: in.TaskCompletedCount,
		TotalTasks:         r.TotalTasks,
		Progress:           in.Progress,
		DaysSinceStart:     r.DaysSinceStart,
		IsGenerated:        in.IsCertificateGenerated(),
	}
	if withCertificate {
		resp.CertificateNumber = in.CertificateNumber
		resp.CertificateURL = in.CertificateURL
		resp.GeneratedAt = in.CertificateGeneratedAt
	}
	return resp
}
