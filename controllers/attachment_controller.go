package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mbaye/projecthub/models"
	"github.com/mbaye/projecthub/storage"
	"github.com/mbaye/projecthub/utils"
)

// AttachmentController owns the attachment lifecycle: batch upload, listing,
// access-gated retrieval in its three modes, and deletion with best-effort
// remote cleanup.
type AttachmentController struct {
	db    *gorm.DB
	store storage.BlobStore
}

// NewAttachmentController creates a new AttachmentController instance.
func NewAttachmentController(db *gorm.DB, store storage.BlobStore) *AttachmentController {
	return &AttachmentController{db: db, store: store}
}

// streamClient fetches signed URLs server-side for the stream/download modes.
var streamClient = &http.Client{Timeout: 30 * time.Second}

// Upload handles POST /attachments: a multipart batch bound to one entity.
// Returns 201 when at least one file persisted, 500 when every file failed,
// 400 before the orchestrator runs for invalid entity refs or batch rules.
func (a *AttachmentController) Upload(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	kind, ok := models.ParseEntityKind(ctx.PostForm("entity_type"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40080, "missing or invalid entity type")
		return
	}
	entityID64, err := strconv.ParseUint(ctx.PostForm("entity_id"), 10, 32)
	if err != nil || entityID64 == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40081, "missing or invalid entity id")
		return
	}
	entityID := uint(entityID64)

	ownerID, err := models.ResolveOwner(a.db, kind, entityID)
	if errors.Is(err, models.ErrEntityNotFound) {
		utils.Error(ctx, http.StatusBadRequest, 40082, fmt.Sprintf("%s %d does not exist", kind, entityID))
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to resolve entity owner")
		return
	}
	if ownerID != userID {
		utils.Error(ctx, http.StatusForbidden, 40380, "you do not own this entity")
		return
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40083, "invalid multipart payload")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40084, "no files uploaded")
		return
	}
	if msg := validateUploadBatch(files); msg != "" {
		utils.Error(ctx, http.StatusBadRequest, 40085, msg)
		return
	}

	succeeded, failed := processUploadBatch(ctx.Request.Context(), a.db, a.store, kind, entityID, files)

	if len(succeeded) == 0 {
		utils.Respond(ctx, http.StatusInternalServerError, 50081, "all uploads failed", gin.H{
			"errors": failureMessages(failed),
		})
		return
	}

	data := gin.H{"attachments": succeeded}
	if len(failed) > 0 {
		data["errors"] = failureMessages(failed)
	}
	utils.Respond(ctx, http.StatusCreated, 0, "attachments uploaded", data)
}

// ListByEntity handles GET /attachments/entity/:kind/:id (owner only).
func (a *AttachmentController) ListByEntity(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	kind, ok := models.ParseEntityKind(ctx.Param("kind"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40080, "missing or invalid entity type")
		return
	}
	entityID, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40081, "missing or invalid entity id")
		return
	}

	ownerID, err := models.ResolveOwner(a.db, kind, entityID)
	if errors.Is(err, models.ErrEntityNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40480, "entity not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to resolve entity owner")
		return
	}
	if ownerID != userID {
		utils.Error(ctx, http.StatusForbidden, 40381, "you do not own this entity")
		return
	}

	atts, err := models.AttachmentsByEntity(a.db, kind, entityID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50082, "failed to list attachments")
		return
	}
	utils.Success(ctx, gin.H{"attachments": atts})
}

// authorizedAttachment looks up the attachment row joined with its resolved
// owner and enforces the uniform access policy: 404 when the row (or its
// owning entity) is gone, 403 when it exists but belongs to another teacher.
func (a *AttachmentController) authorizedAttachment(ctx *gin.Context) (*models.Attachment, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return nil, false
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40086, "missing or invalid attachment id")
		return nil, false
	}

	att, ownerID, err := models.AttachmentWithOwner(a.db, id)
	if errors.Is(err, models.ErrEntityNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40481, "attachment not found")
		return nil, false
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50083, "failed to load attachment")
		return nil, false
	}
	if ownerID != userID {
		utils.Error(ctx, http.StatusForbidden, 40382, "you do not own this attachment")
		return nil, false
	}
	return att, true
}

func (a *AttachmentController) signedURLFor(ctx *gin.Context, att *models.Attachment) (string, bool) {
	url, err := a.store.SignedURL(
		ctx.Request.Context(),
		att.FilePublicID,
		att.FileName,
		storage.KindForMIME(att.FileType),
		storage.DefaultSignedURLTTL,
	)
	if err != nil {
		logErrorf("sign url for blob %s: %v", att.FilePublicID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50084, "failed to generate file url")
		return "", false
	}
	return url, true
}

// View handles GET /attachments/id/:id/view with a 302 to a signed URL.
func (a *AttachmentController) View(ctx *gin.Context) {
	att, ok := a.authorizedAttachment(ctx)
	if !ok {
		return
	}
	url, ok := a.signedURLFor(ctx, att)
	if !ok {
		return
	}
	ctx.Redirect(http.StatusFound, url)
}

// Signed handles GET /attachments/id/:id/signed returning the URL as JSON.
func (a *AttachmentController) Signed(ctx *gin.Context) {
	att, ok := a.authorizedAttachment(ctx)
	if !ok {
		return
	}
	url, ok := a.signedURLFor(ctx, att)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{"url": url})
}

// Stream handles GET /attachments/id/:id/stream, proxying the blob bytes with
// an inline disposition for in-browser preview.
func (a *AttachmentController) Stream(ctx *gin.Context) {
	a.relay(ctx, "inline")
}

// Download handles GET /attachments/id/:id/download, proxying the blob bytes
// with an attachment disposition to force a save dialog.
func (a *AttachmentController) Download(ctx *gin.Context) {
	a.relay(ctx, "attachment")
}

func (a *AttachmentController) relay(ctx *gin.Context, disposition string) {
	att, ok := a.authorizedAttachment(ctx)
	if !ok {
		return
	}
	url, ok := a.signedURLFor(ctx, att)
	if !ok {
		return
	}

	req, err := http.NewRequestWithContext(ctx.Request.Context(), http.MethodGet, url, nil)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50085, "failed to fetch file")
		return
	}
	resp, err := streamClient.Do(req)
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50285, "failed to fetch file from storage")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logWarnf("upstream fetch of blob %s returned %d", att.FilePublicID, resp.StatusCode)
		utils.Error(ctx, http.StatusBadGateway, 50286, "storage returned an error")
		return
	}

	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf("%s; filename=%q", disposition, att.FileName),
	}
	ctx.DataFromReader(http.StatusOK, resp.ContentLength, att.FileType, resp.Body, extraHeaders)
}

// Delete handles DELETE /attachments/:id. The remote delete is best-effort;
// the metadata row is removed unconditionally afterwards.
func (a *AttachmentController) Delete(ctx *gin.Context) {
	att, ok := a.authorizedAttachment(ctx)
	if !ok {
		return
	}

	if err := a.store.Remove(ctx.Request.Context(), att.FilePublicID); err != nil {
		logWarnf("remote delete of blob %s failed, orphaned: %v", att.FilePublicID, err)
	}
	if err := a.db.Delete(&models.Attachment{}, att.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50086, "failed to delete attachment")
		return
	}
	utils.Success(ctx, gin.H{"message": "attachment deleted"})
}

func failureMessages(failed []uploadFailure) []string {
	msgs := make([]string, 0, len(failed))
	for _, f := range failed {
		msgs = append(msgs, f.String())
	}
	return msgs
}
