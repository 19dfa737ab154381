package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classpal-api/internal/models"
	"github.com/noah-isme/classpal-api/internal/service"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
	"github.com/noah-isme/classpal-api/pkg/response"
)

type attachmentService interface {
	Upload(ctx context.Context, actor models.Actor, kind models.AttachmentKind, upload service.AttachmentUpload) (*models.Attachment, error)
	SignURL(ctx context.Context, actor models.Actor, kind models.AttachmentKind, relPath string) (string, time.Time, error)
	Download(ctx context.Context, token string) (*service.AttachmentDownload, error)
}

// AttachmentHandler manages proof photo and receipt files.
type AttachmentHandler struct {
	service attachmentService
}

// NewAttachmentHandler constructs the handler.
func NewAttachmentHandler(service attachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

// Upload godoc
// @Summary Upload a duty proof photo or an expense receipt
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param kind formData string true "proof or receipt"
// @Param file formData file true "Image or PDF"
// @Success 201 {object} response.Envelope
// @Router /classes/{classId}/attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	kind := models.AttachmentKind(strings.ToLower(strings.TrimSpace(c.PostForm("kind"))))
	attachment, err := h.service.Upload(c.Request.Context(), actor, kind, service.AttachmentUpload{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attachment)
}

// SignURL godoc
// @Summary Issue a fresh download link for a stored attachment
// @Tags Attachments
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param kind query string true "proof or receipt"
// @Param path query string true "Stored attachment path"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/attachments/url [get]
func (h *AttachmentHandler) SignURL(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	kind := models.AttachmentKind(strings.ToLower(strings.TrimSpace(c.Query("kind"))))
	url, expiresAt, err := h.service.SignURL(c.Request.Context(), actor, kind, c.Query("path"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"url": url, "expiresAt": expiresAt}, nil)
}

// Download godoc
// @Summary Download an attachment via signed token
// @Tags Attachments
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /attachments [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	result, err := h.service.Download(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", result.Filename))
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.ContentType, result.File, nil)
}
