package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/staff-appeal-api/internal/dto"
	"github.com/noah-isme/staff-appeal-api/internal/middleware"
	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/internal/service"
	appErrors "github.com/noah-isme/staff-appeal-api/pkg/errors"
	"github.com/noah-isme/staff-appeal-api/pkg/response"
)

// DraftKeyHeader carries the caller-chosen key of a cross-system submission.
const DraftKeyHeader = "X-Draft-Key"

type submissionService interface {
	Submit(ctx context.Context, req dto.SubmitAppealRequest, actor models.Actor) (*dto.SubmitAppealResponse, error)
}

type remoteSubmissionService interface {
	Submit(ctx context.Context, draftKey string, req dto.SubmitAppealRequest, actor models.Actor) (*dto.SubmitAppealResponse, error)
	Resume(ctx context.Context, key string) (*models.SubmissionDraft, error)
}

type appealLifecycleService interface {
	Get(ctx context.Context, id string, actor models.Actor) (*models.Appeal, error)
	ListByEmployee(ctx context.Context, employeeID string, actor models.Actor) ([]*models.Appeal, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateStatusRequest, actor models.Actor) (*models.Appeal, error)
	Withdraw(ctx context.Context, req dto.WithdrawAppealRequest, actor models.Actor) (*models.Appeal, error)
	ProvideAdditionalInfo(ctx context.Context, req dto.AdditionalInfoRequest, actor models.Actor) (*models.Appeal, error)
	AddComment(ctx context.Context, id string, req dto.AddCommentRequest, actor models.Actor) (*models.Appeal, error)
}

type auditExporter interface {
	Export(ctx context.Context, appealID, format string) (*service.AuditExport, error)
}

type eligibilityService interface {
	Check(ctx context.Context, periodID string) (models.EligibilityResult, error)
}

// AppealHandler exposes the appeal workflow endpoints.
type AppealHandler struct {
	submissions submissionService
	remote      remoteSubmissionService
	appeals     appealLifecycleService
	audit       auditExporter
	eligibility eligibilityService
}

// NewAppealHandler builds a new handler. remote may be nil when cross-system
// submission is disabled.
func NewAppealHandler(submissions submissionService, remote remoteSubmissionService, appeals appealLifecycleService, audit auditExporter, eligibility eligibilityService) *AppealHandler {
	return &AppealHandler{
		submissions: submissions,
		remote:      remote,
		appeals:     appeals,
		audit:       audit,
		eligibility: eligibility,
	}
}

// Submit godoc
// @Summary File a new evaluation appeal
// @Tags Appeals
// @Accept json
// @Produce json
// @Param payload body dto.SubmitAppealRequest true "Appeal payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /appeals/submit [post]
func (h *AppealHandler) Submit(c *gin.Context) {
	var req dto.SubmitAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload"))
		return
	}
	result, err := h.submissions.Submit(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, middleware.ResponseMeta(c))
}

// SubmitRemote godoc
// @Summary File an appeal through the evaluation system with retry and local draft
// @Tags Appeals
// @Accept json
// @Produce json
// @Param X-Draft-Key header string true "Draft key"
// @Param payload body dto.SubmitAppealRequest true "Appeal payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /appeals/submit/remote [post]
func (h *AppealHandler) SubmitRemote(c *gin.Context) {
	if h.remote == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "cross-system submission is disabled"))
		return
	}
	key := strings.TrimSpace(c.GetHeader(DraftKeyHeader))
	if key == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "draft key header is required"))
		return
	}
	var req dto.SubmitAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload"))
		return
	}
	result, err := h.remote.Submit(c.Request.Context(), key, req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, middleware.ResponseMeta(c))
}

// GetDraft godoc
// @Summary Inspect a pending cross-system submission draft
// @Tags Appeals
// @Produce json
// @Param key path string true "Draft key"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /appeals/drafts/{key} [get]
func (h *AppealHandler) GetDraft(c *gin.Context) {
	if h.remote == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "cross-system submission is disabled"))
		return
	}
	draft, err := h.remote.Resume(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	actor := actorFromContext(c)
	if !actor.Role.IsPrivileged() && draft.Appeal.EmployeeID != actor.ID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	response.JSON(c, http.StatusOK, draft, middleware.ResponseMeta(c))
}

// ProvideAdditionalInfo godoc
// @Summary Add information or evidence to an open appeal
// @Tags Appeals
// @Accept json
// @Produce json
// @Param payload body dto.AdditionalInfoRequest true "Additional information"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appeals/submit [put]
func (h *AppealHandler) ProvideAdditionalInfo(c *gin.Context) {
	var req dto.AdditionalInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload"))
		return
	}
	appeal, err := h.appeals.ProvideAdditionalInfo(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appeal, middleware.ResponseMeta(c))
}

// Withdraw godoc
// @Summary Withdraw an open appeal
// @Tags Appeals
// @Accept json
// @Produce json
// @Param payload body dto.WithdrawAppealRequest true "Withdrawal"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appeals/submit [delete]
func (h *AppealHandler) Withdraw(c *gin.Context) {
	var req dto.WithdrawAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload"))
		return
	}
	appeal, err := h.appeals.Withdraw(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appeal, middleware.ResponseMeta(c))
}

// GetStatus godoc
// @Summary Get an appeal and its current status
// @Tags Appeals
// @Produce json
// @Param id path string true "Appeal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /appeals/status/{id} [get]
func (h *AppealHandler) GetStatus(c *gin.Context) {
	appeal, err := h.appeals.Get(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appeal, middleware.ResponseMeta(c))
}

// UpdateStatus godoc
// @Summary Move an appeal through the review lifecycle
// @Tags Appeals
// @Accept json
// @Produce json
// @Param id path string true "Appeal ID"
// @Param payload body dto.UpdateStatusRequest true "Status change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appeals/status/{id} [put]
func (h *AppealHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload"))
		return
	}
	appeal, err := h.appeals.UpdateStatus(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appeal, middleware.ResponseMeta(c))
}

// AddComment godoc
// @Summary Append a message to the appeal communication log
// @Tags Appeals
// @Accept json
// @Produce json
// @Param id path string true "Appeal ID"
// @Param payload body dto.AddCommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Router /appeals/status/{id} [post]
func (h *AppealHandler) AddComment(c *gin.Context) {
	var req dto.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload"))
		return
	}
	appeal, err := h.appeals.AddComment(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, appeal, middleware.ResponseMeta(c))
}

// AuditTrail godoc
// @Summary Export the audit trail of an appeal
// @Tags Appeals
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Appeal ID"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /appeals/status/{id}/audit [get]
func (h *AppealHandler) AuditTrail(c *gin.Context) {
	actor := actorFromContext(c)
	if !actor.Role.IsPrivileged() {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	id := c.Param("id")
	if _, err := h.appeals.Get(c.Request.Context(), id, actor); err != nil {
		response.Error(c, err)
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", "json"))
	export, err := h.audit.Export(c.Request.Context(), id, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	if format == service.AuditFormatJSON {
		response.JSON(c, http.StatusOK, json.RawMessage(export.Body), middleware.ResponseMeta(c))
		return
	}
	response.File(c, export.FileName, export.ContentType, export.Body)
}

// ListByEmployee godoc
// @Summary List every appeal filed by an employee
// @Tags Appeals
// @Produce json
// @Param employeeId path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Router /appeals/employees/{employeeId} [get]
func (h *AppealHandler) ListByEmployee(c *gin.Context) {
	appeals, err := h.appeals.ListByEmployee(c.Request.Context(), c.Param("employeeId"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(appeals))
	response.JSON(c, http.StatusOK, appeals, middleware.ResponseMeta(c))
}

// CheckEligibility godoc
// @Summary Check whether an evaluation period accepts appeals
// @Tags Appeals
// @Accept json
// @Produce json
// @Param payload body dto.EligibilityRequest true "Period"
// @Success 200 {object} response.Envelope
// @Router /appeals/check-eligibility [post]
func (h *AppealHandler) CheckEligibility(c *gin.Context) {
	var req dto.EligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload"))
		return
	}
	result, err := h.eligibility.Check(c.Request.Context(), req.EvaluationPeriod)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, middleware.ResponseMeta(c))
}
