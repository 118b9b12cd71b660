// Package handler exposes the opportunity pipeline over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"

	"salescrm_backend/internal/opportunities/domain"
	"salescrm_backend/internal/opportunities/transport"
	"salescrm_backend/platform/httpkit"
	"salescrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid opportunity id"
	msgInvalidAttachID  = "invalid attachment id"
)

// PipelineService is the service surface the handler drives.
type PipelineService interface {
	GetPipeline(ctx context.Context, actor domain.Actor, id uuid.UUID) (*transport.PipelineResponse, error)
	UpdatePipeline(ctx context.Context, actor domain.Actor, id uuid.UUID, req transport.UpdatePipelineRequest) (*transport.UpdatePipelineResponse, error)
	RegisterAttachment(ctx context.Context, actor domain.Actor, req transport.RegisterAttachmentRequest) (*transport.RegisterAttachmentResponse, error)
	ListAttachments(ctx context.Context, actor domain.Actor, opportunityID uuid.UUID) (*transport.ListAttachmentsResponse, error)
	DeleteAttachment(ctx context.Context, actor domain.Actor, opportunityID, attachmentID uuid.UUID) error
	PresignUpload(ctx context.Context, actor domain.Actor, opportunityID uuid.UUID, req transport.PresignAttachmentRequest) (*transport.PresignAttachmentResponse, error)
}

// Handler handles HTTP requests for the opportunity pipeline.
type Handler struct {
	svc PipelineService
	val *validator.Validator
}

// New creates a new pipeline handler.
func New(svc PipelineService, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the pipeline routes on /opportunities.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/attachments", h.RegisterAttachment)
	rg.GET("/:id/pipeline", h.GetPipeline)
	rg.PATCH("/:id/pipeline", h.UpdatePipeline)
	rg.GET("/:id/attachments", h.ListAttachments)
	rg.POST("/:id/attachments/presign", h.PresignUpload)
	rg.DELETE("/:id/attachments/:attachmentId", h.DeleteAttachment)
}

func (h *Handler) GetPipeline(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", msgInvalidID)
	if !ok {
		return
	}

	resp, err := h.svc.GetPipeline(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// UpdatePipeline applies a partial pipeline update. Absent and null fields
// are left untouched.
func (h *Handler) UpdatePipeline(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", msgInvalidID)
	if !ok {
		return
	}

	var req transport.UpdatePipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.UpdatePipeline(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) RegisterAttachment(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}

	var req transport.RegisterAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.RegisterAttachment(c.Request.Context(), actor, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, resp)
}

func (h *Handler) ListAttachments(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", msgInvalidID)
	if !ok {
		return
	}

	resp, err := h.svc.ListAttachments(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) DeleteAttachment(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", msgInvalidID)
	if !ok {
		return
	}
	attachmentID, ok := parseUUIDParam(c, "attachmentId", msgInvalidAttachID)
	if !ok {
		return
	}

	if err := h.svc.DeleteAttachment(c.Request.Context(), actor, id, attachmentID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// PresignUpload returns a direct-upload URL for an attachment file.
func (h *Handler) PresignUpload(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", msgInvalidID)
	if !ok {
		return
	}

	var req transport.PresignAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.PresignUpload(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// mustGetActor resolves the acting identity and its organization, aborting
// the request when either is missing.
func mustGetActor(c *gin.Context) (domain.Actor, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return domain.Actor{}, false
	}
	tenantID, ok := httpkit.MustGetTenantID(c, identity)
	if !ok {
		return domain.Actor{}, false
	}

	roles := make([]domain.Role, 0, len(identity.Roles()))
	for _, r := range identity.Roles() {
		roles = append(roles, domain.Role(strings.ToUpper(r)))
	}
	return domain.Actor{
		UserID:         identity.UserID(),
		OrganizationID: tenantID,
		Roles:          roles,
		Superuser:      identity.IsSuperuser(),
	}, true
}

func parseUUIDParam(c *gin.Context, name, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, message, nil)
		return uuid.UUID{}, false
	}
	return id, true
}
