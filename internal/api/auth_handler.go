package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/service"
)

// AuthHandler holds the authentication service dependency.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// --- Request/Response Structs ---

type RegisterRequest struct {
	Name          string `json:"name" binding:"required,min=2,max=100"`
	Email         string `json:"email" binding:"required,email"`
	Contact       string `json:"contact" binding:"required,len=10,number"`
	Qualification string `json:"qualification" binding:"required,qualification"`
	College       string `json:"college" binding:"required,max=200"`
	Year          int    `json:"year" binding:"required,min=1,max=6"`
	CurrentCity   string `json:"currentCity" binding:"required,max=100"`
	Domain        string `json:"domain" binding:"required,internship_domain"`
	LinkedIn      string `json:"linkedin" binding:"omitempty,http_url,linkedin"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=20"`
}

type CheckEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ProfileRequest struct {
	Name          string `json:"name" binding:"required,min=2,max=100"`
	Contact       string `json:"contact" binding:"required,len=10,number"`
	Qualification string `json:"qualification" binding:"required,qualification"`
	College       string `json:"college" binding:"required,max=200"`
	Year          int    `json:"year" binding:"required,min=1,max=6"`
	CurrentCity   string `json:"currentCity" binding:"required,max=100"`
	LinkedIn      string `json:"linkedin" binding:"omitempty,http_url,linkedin"`
}

// StudentResponse excludes the stored password.
type StudentResponse struct {
	ID             string                      `json:"id"`
	Name           string                      `json:"name"`
	Email          string                      `json:"email"`
	Contact        string                      `json:"contact"`
	Qualification  string                      `json:"qualification"`
	College        string                      `json:"college"`
	Year           int                         `json:"year"`
	CurrentCity    string                      `json:"currentCity"`
	LinkedIn       string                      `json:"linkedin,omitempty"`
	RegisteredAt   time.Time                   `json:"registeredAt"`
	OfferLetterURL string                      `json:"offerLetterURL,omitempty"`
	IsActive       bool                        `json:"isActive"`
	LastLoginAt    *time.Time                  `json:"lastLoginAt,omitempty"`
	Certificates   []domain.CertificateSummary `json:"certificates"`
}

// --- Handler Methods ---

// Register godoc
// @Summary Register a student for an internship domain
// @Description Creates the student with a one-time password on first registration; later calls add the domain.
// @Tags Auth
// @Accept json
// @Produce json
// @Param student body RegisterRequest true "Registration details"
// @Success 201 {object} gin.H "Student created, password shown once"
// @Success 200 {object} gin.H "Already registered, or domain added (login required)"
// @Failure 400 {object} ErrorResponse "Validation error"
// @Failure 500 {object} ErrorResponse "Internal Server Error"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}

	res, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Name:          req.Name,
		Email:         req.Email,
		Contact:       req.Contact,
		Qualification: req.Qualification,
		College:       req.College,
		Year:          req.Year,
		CurrentCity:   req.CurrentCity,
		Domain:        req.Domain,
		LinkedIn:      req.LinkedIn,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidDomain) || errors.Is(err, service.ErrInvalidQualification) {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		abortWithInternal(c, "Registration failed", err)
		return
	}

	switch res.Outcome {
	case service.RegisterAlreadyEnrolled:
		respond(c, http.StatusOK,
			fmt.Sprintf("You are already registered for the %s internship.", req.Domain),
			gin.H{"internship": res.Internship},
			gin.H{"alreadyRegistered": true})
	case service.RegisterDomainAdded:
		respond(c, http.StatusOK,
			fmt.Sprintf("Internship for %s added to your account. Please login to continue.", req.Domain),
			gin.H{"internship": res.Internship},
			gin.H{"login": true})
	default:
		respond(c, http.StatusCreated,
			"Registration successful! Please save your password securely.",
			gin.H{
				"student":    MapStudentToResponse(res.Student),
				"password":   res.Password,
				"token":      res.Token,
				"internship": res.Internship,
			},
			gin.H{"warning": "Save this password securely. It will not be shown again!"})
	}
}

// Login godoc
// @Summary Log in a student
// @Description Authenticates with the issued password and returns a JWT token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Login credentials"
// @Success 200 {object} gin.H "Login successful"
// @Failure 400 {object} ErrorResponse "Validation error"
// @Failure 401 {object} ErrorResponse "Invalid email or password"
// @Failure 403 {object} ErrorResponse "Account is deactivated"
// @Failure 500 {object} ErrorResponse "Internal Server Error"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAuthenticationFailed):
			abortWithError(c, http.StatusUnauthorized, "Invalid email or password")
		case errors.Is(err, service.ErrAccountInactive):
			abortWithError(c, http.StatusForbidden, "Account is deactivated. Please contact support.")
		default:
			abortWithInternal(c, "Login failed", err)
		}
		return
	}

	respond(c, http.StatusOK, "Login successful!", gin.H{
		"student":     MapStudentToResponse(res.Student),
		"token":       res.Token,
		"internships": nonNil(res.Internships),
	})
}

// CheckEmail godoc
// @Summary Check whether an email is free for registration
// @Tags Auth
// @Accept json
// @Produce json
// @Param email body CheckEmailRequest true "Email to check"
// @Success 200 {object} gin.H "Availability"
// @Failure 400 {object} ErrorResponse "Validation error"
// @Router /auth/check-email [post]
func (h *AuthHandler) CheckEmail(c *gin.Context) {
	var req CheckEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}

	available, err := h.authService.CheckEmail(c.Request.Context(), req.Email)
	if err != nil {
		abortWithInternal(c, "Failed to check email", err)
		return
	}
	message := "Email is available for registration."
	if !available {
		message = "Email already registered. Please login."
	}
	respond(c, http.StatusOK, message, nil, gin.H{"available": available})
}

// Profile godoc
// @Summary Get the authenticated student's profile
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} gin.H "Student and internships"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Student not found"
// @Router /auth/profile [get]
func (h *AuthHandler) Profile(c *gin.Context) {
	studentID, err := getStudentIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	student, internships, err := h.authService.Profile(c.Request.Context(), studentID)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			abortWithError(c, http.StatusNotFound, "Student not found")
			return
		}
		abortWithInternal(c, "Failed to fetch profile", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{
		"student":     MapStudentToResponse(student),
		"internships": nonNil(internships),
	})
}

// UpdateProfile godoc
// @Summary Update the authenticated student's profile
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body ProfileRequest true "Profile fields"
// @Success 200 {object} gin.H "Updated student"
// @Failure 400 {object} ErrorResponse "Validation error"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Student not found"
// @Router /auth/profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	studentID, err := getStudentIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}

	student, err := h.authService.UpdateProfile(c.Request.Context(), studentID, domain.ProfileUpdate{
		Name:          req.Name,
		Contact:       req.Contact,
		Qualification: req.Qualification,
		College:       req.College,
		Year:          req.Year,
		CurrentCity:   req.CurrentCity,
		LinkedIn:      req.LinkedIn,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			abortWithError(c, http.StatusNotFound, "Student not found")
		case errors.Is(err, service.ErrInvalidQualification):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithInternal(c, "Failed to update profile", err)
		}
		return
	}
	respond(c, http.StatusOK, "Profile updated successfully", gin.H{"student": MapStudentToResponse(student)})
}

// MapStudentToResponse converts a domain Student to a StudentResponse DTO.
func MapStudentToResponse(student *domain.Student) StudentResponse {
	if student == nil {
		return StudentResponse{}
	}
	resp := StudentResponse{
		ID:             student.ID.Hex(),
		Name:           student.Name,
		Email:          student.Email,
		Contact:        student.Contact,
		Qualification:  student.Qualification,
		College:        student.College,
		Year:           student.Year,
		CurrentCity:    student.CurrentCity,
		LinkedIn:       student.LinkedIn,
		RegisteredAt:   student.RegisteredAt,
		OfferLetterURL: student.OfferLetterURL,
		IsActive:       student.IsActive,
		LastLoginAt:    student.LastLoginAt,
		Certificates:   student.Certificates,
	}
	if resp.Certificates == nil {
		resp.Certificates = []domain.CertificateSummary{}
	}
	return resp
}

// nonNil turns a nil slice into an empty one so it encodes as [].
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
