package controllers

import (
	"context"
	"fmt"
	"mime/multipart"

	"gorm.io/gorm"

	"github.com/mbaye/projecthub/config"
	"github.com/mbaye/projecthub/models"
	"github.com/mbaye/projecthub/storage"
	"github.com/mbaye/projecthub/utils"
)

// uploadFailure reports one file the orchestrator could not persist.
type uploadFailure struct {
	FileName string `json:"fichier_name"`
	Error    string `json:"error"`
}

func (f uploadFailure) String() string {
	return fmt.Sprintf("%s: %s", f.FileName, f.Error)
}

// folderFor maps an entity onto its remote folder category, sub-namespaced by
// the entity id.
func folderFor(kind models.EntityKind, entityID uint) string {
	if kind == models.EntityTask {
		return storage.FolderTaskSubmissions.WithEntity(entityID)
	}
	return storage.FolderProjectFiles.WithEntity(entityID)
}

// validateUploadBatch enforces the pre-orchestrator rules: batch size, per-file
// size cap and the declared-MIME allow-list. Returns a human readable message
// when the batch must be rejected as a whole.
func validateUploadBatch(files []*multipart.FileHeader) string {
	cfg := config.Get()
	if len(files) > cfg.UploadMaxFiles {
		return fmt.Sprintf("too many files: %d exceeds the limit of %d per request", len(files), cfg.UploadMaxFiles)
	}
	maxBytes := int64(cfg.UploadMaxFileMB) << 20
	for _, fh := range files {
		if fh.Size > maxBytes {
			return fmt.Sprintf("%s exceeds the %d MiB size limit", fh.Filename, cfg.UploadMaxFileMB)
		}
		if !utils.AllowedFileType(fh.Header.Get("Content-Type")) {
			return fmt.Sprintf("%s has a disallowed file type %q", fh.Filename, fh.Header.Get("Content-Type"))
		}
	}
	return ""
}

// processUploadBatch uploads each file to the blob store and records a
// metadata row per success. Files are processed sequentially in input order
// and the batch never aborts early: each file's outcome is independent.
func processUploadBatch(ctx context.Context, db *gorm.DB, store storage.BlobStore, kind models.EntityKind, entityID uint, files []*multipart.FileHeader) ([]models.Attachment, []uploadFailure) {
	succeeded := make([]models.Attachment, 0, len(files))
	var failed []uploadFailure
	for _, fh := range files {
		att, err := uploadOne(ctx, db, store, kind, entityID, fh)
		if err != nil {
			failed = append(failed, uploadFailure{FileName: fh.Filename, Error: err.Error()})
			continue
		}
		succeeded = append(succeeded, *att)
	}
	return succeeded, failed
}

func uploadOne(ctx context.Context, db *gorm.DB, store storage.BlobStore, kind models.EntityKind, entityID uint, fh *multipart.FileHeader) (*models.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	res, err := store.Upload(ctx, f, fh.Size, folderFor(kind, entityID), fh.Filename, contentType)
	if err != nil {
		return nil, err
	}

	att := models.Attachment{
		EntityType:   kind,
		EntityID:     entityID,
		FileURL:      res.BlobURL,
		FileName:     fh.Filename,
		FilePublicID: res.BlobID,
		FileSize:     fh.Size,
		FileType:     contentType,
	}
	if err := db.Create(&att).Error; err != nil {
		// The blob already landed remotely; it is orphaned now. Accepted,
		// logged, not cleaned up on this path.
		logWarnf("attachment metadata insert failed, blob %s orphaned: %v", res.BlobID, err)
		return nil, fmt.Errorf("failed to persist attachment metadata")
	}
	return &att, nil
}

// removeEntityBlobs best-effort deletes every blob attached to the entity.
// Failures are logged and swallowed; the relational delete must proceed
// regardless.
func removeEntityBlobs(ctx context.Context, db *gorm.DB, store storage.BlobStore, kind models.EntityKind, entityID uint) {
	atts, err := models.AttachmentsByEntity(db, kind, entityID)
	if err != nil {
		logWarnf("enumerate %s %d attachments for cleanup: %v", kind, entityID, err)
		return
	}
	for _, att := range atts {
		if err := store.Remove(ctx, att.FilePublicID); err != nil {
			logWarnf("remote delete of blob %s failed, orphaned: %v", att.FilePublicID, err)
		}
	}
}
