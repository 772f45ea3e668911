package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/service"
)

type TaskHandler struct {
	taskService service.TaskService
}

func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// --- DTOs ---

type SubmitTaskRequest struct {
	SubmissionURL string `json:"submissionURL" binding:"required,http_url"`
}

// SubmissionRequest is validated by the service so a missing URL gets its
// own message.
type SubmissionRequest struct {
	SubmissionURL string `json:"submissionURL"`
}

// InternshipProgress is the internship summary returned after a submission.
type InternshipProgress struct {
	ID                       string              `json:"id"`
	Domain                   string              `json:"domain,omitempty"`
	Progress                 int                 `json:"progress"`
	TaskCompletedCount       int                 `json:"taskCompletedCount"`
	IsEligibleForCertificate bool                `json:"isEligibleForCertificate"`
	UnlockReason             domain.UnlockReason `json:"certificateUnlockedReason,omitempty"`
}

type TaskStatsResponse struct {
	TotalTasks      int        `json:"totalTasks"`
	CompletedTasks  int        `json:"completedTasks"`
	PendingTasks    int        `json:"pendingTasks"`
	InProgressTasks int        `json:"inProgressTasks"`
	RejectedTasks   int        `json:"rejectedTasks"`
	Progress        int        `json:"progress"`
	AverageScore    float64    `json:"averageScore"`
	LastSubmission  *time.Time `json:"lastSubmission"`
}

func mapProgress(in *domain.Internship) InternshipProgress {
	return InternshipProgress{
		ID:                       in.ID.Hex(),
		Domain:                   in.Domain,
		Progress:                 in.Progress,
		TaskCompletedCount:       in.TaskCompletedCount,
		IsEligibleForCertificate: in.IsEligibleForCertificate,
		UnlockReason:             in.CertificateUnlockedReason,
	}
}

// ListTasks godoc
// @Summary List the tasks of an internship
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param internshipId path string true "Internship ID"
// @Success 200 {object} gin.H "Internship summary and tasks"
// @Failure 404 {object} ErrorResponse "Internship not found"
// @Router /tasks/internship/{internshipId} [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	internship, tasks, err := h.taskService.ListForInternship(c.Request.Context(), email, c.Param("internshipId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to fetch tasks")
		return
	}
	respond(c, http.StatusOK, "", gin.H{
		"internship": mapProgress(internship),
		"tasks":      nonNil(tasks),
	})
}

// GetTask godoc
// @Summary Get one task
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param taskId path string true "Task ID"
// @Success 200 {object} domain.Task
// @Failure 403 {object} ErrorResponse "Access denied"
// @Failure 404 {object} ErrorResponse "Task not found"
// @Router /tasks/{taskId} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	task, err := h.taskService.Get(c.Request.Context(), email, c.Param("taskId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to fetch task")
		return
	}
	respond(c, http.StatusOK, "", task)
}

// SubmitTask godoc
// @Summary Submit a task
// @Description Completes the task and records the URL in the submission log.
// @Tags Tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param taskId path string true "Task ID"
// @Param request body SubmitTaskRequest true "Submission URL"
// @Success 200 {object} gin.H "Task and internship progress"
// @Failure 400 {object} ErrorResponse "Validation error or already completed"
// @Failure 403 {object} ErrorResponse "Access denied"
// @Failure 404 {object} ErrorResponse "Task not found"
// @Router /tasks/{taskId}/submit [post]
func (h *TaskHandler) SubmitTask(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	var req SubmitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}

	res, err := h.taskService.Submit(c.Request.Context(), email, c.Param("taskId"), req.SubmissionURL)
	if err != nil {
		abortWithServiceError(c, err, "Failed to submit task")
		return
	}
	respond(c, http.StatusOK, "Task submitted successfully!", gin.H{
		"task":       res.Task,
		"internship": mapProgress(res.Internship),
	})
}

// UpdateSubmission godoc
// @Summary Replace the submission URL of a task
// @Tags Tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param taskId path string true "Task ID"
// @Param request body SubmitTaskRequest true "Submission URL"
// @Success 200 {object} domain.Task
// @Failure 400 {object} ErrorResponse "Validation error"
// @Failure 403 {object} ErrorResponse "Access denied"
// @Router /tasks/{taskId}/submission [patch]
func (h *TaskHandler) UpdateSubmission(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	var req SubmitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}

	task, err := h.taskService.UpdateSubmission(c.Request.Context(), email, c.Param("taskId"), req.SubmissionURL)
	if err != nil {
		abortWithServiceError(c, err, "Failed to update submission")
		return
	}
	respond(c, http.StatusOK, "Task submission updated successfully!", task)
}

// Stats godoc
// @Summary Task statistics of an internship
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param internshipId path string true "Internship ID"
// @Success 200 {object} TaskStatsResponse
// @Failure 404 {object} ErrorResponse "Internship not found"
// @Router /tasks/stats/{internshipId} [get]
func (h *TaskHandler) Stats(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	s, err := h.taskService.Stats(c.Request.Context(), email, c.Param("internshipId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to fetch task statistics")
		return
	}
	respond(c, http.StatusOK, "", TaskStatsResponse{
		TotalTasks:      s.TotalTasks,
		CompletedTasks:  s.CompletedTasks,
		PendingTasks:    s.PendingTasks,
		InProgressTasks: s.InProgressTasks,
		RejectedTasks:   s.RejectedTasks,
		Progress:        s.Progress,
		AverageScore:    s.AverageScore,
		LastSubmission:  s.LastSubmission,
	})
}

// Overdue godoc
// @Summary Unfinished tasks past their due date
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param internshipId path string true "Internship ID"
// @Success 200 {array} domain.Task
// @Router /tasks/internship/{internshipId}/overdue [get]
func (h *TaskHandler) Overdue(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	tasks, err := h.taskService.Overdue(c.Request.Context(), email, c.Param("internshipId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to fetch overdue tasks")
		return
	}
	respond(c, http.StatusOK, "", nonNil(tasks))
}

// Upcoming godoc
// @Summary Unfinished tasks due within three days
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param internshipId path string true "Internship ID"
// @Success 200 {array} domain.Task
// @Router /tasks/internship/{internshipId}/upcoming [get]
func (h *TaskHandler) Upcoming(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	tasks, err := h.taskService.Upcoming(c.Request.Context(), email, c.Param("internshipId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to fetch upcoming tasks")
		return
	}
	respond(c, http.StatusOK, "", nonNil(tasks))
}

// ListSubmissions godoc
// @Summary Submission log of an internship
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param internshipId path string true "Internship ID"
// @Success 200 {array} domain.TaskSubmission
// @Failure 404 {object} ErrorResponse "Internship not found"
// @Router /tasks/task-submissions/{internshipId} [get]
func (h *TaskHandler) ListSubmissions(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	subs, err := h.taskService.ListSubmissions(c.Request.Context(), email, c.Param("internshipId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to fetch task submissions")
		return
	}
	respond(c, http.StatusOK, "", nonNil(subs))
}

// UpsertSubmission godoc
// @Summary Create or replace the submission of one task slot
// @Tags Tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param internshipId path string true "Internship ID"
// @Param taskNumber path int true "Task number (1-5)"
// @Param request body SubmissionRequest true "Submission URL"
// @Success 200 {object} gin.H "Stored submission and internship progress"
// @Failure 400 {object} ErrorResponse "Missing or invalid URL, or bad task number"
// @Failure 404 {object} ErrorResponse "Internship not found"
// @Router /tasks/task-submissions/{internshipId}/{taskNumber} [post]
func (h *TaskHandler) UpsertSubmission(c *gin.Context) {
	email, ok := studentEmail(c)
	if !ok {
		return
	}
	taskNumber, err := strconv.Atoi(c.Param("taskNumber"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Task number must be between 1 and 5")
		return
	}
	var req SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}
	if strings.TrimSpace(req.SubmissionURL) == "" {
		abortWithError(c, http.StatusBadRequest, "Submission URL is required")
		return
	}

	res, err := h.taskService.UpsertSubmission(c.Request.Context(), email, c.Param("internshipId"), taskNumber, req.SubmissionURL)
	if err != nil {
		abortWithServiceError(c, err, "Failed to submit task")
		return
	}
	respond(c, http.StatusOK, "Task submission saved successfully!", gin.H{
		"submission": res.Submission,
		"internship": mapProgress(res.Internship),
	})
}

// studentEmail reads the authenticated email, aborting when it is missing.
func studentEmail(c *gin.Context) (string, bool) {
	email, err := getStudentEmailFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
		return "", false
	}
	return email, true
}
