package models

import (
	"time"

	"gorm.io/gorm"
)

// EntityKind names the table an attachment row is bound to.
type EntityKind string

const (
	EntityProject EntityKind = "project"
	EntityTask    EntityKind = "task"
)

// ParseEntityKind maps a request path/form value onto an EntityKind.
func ParseEntityKind(s string) (EntityKind, bool) {
	switch EntityKind(s) {
	case EntityProject, EntityTask:
		return EntityKind(s), true
	default:
		return "", false
	}
}

// Attachment maps one uploaded file to exactly one owning entity. Rows are
// immutable after insert; the blob itself lives in the remote object store
// under FilePublicID. Column names follow the legacy schema.
type Attachment struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EntityType   EntityKind `gorm:"size:16;not null;index:idx_attachments_entity" json:"entity_type"`
	EntityID     uint       `gorm:"not null;index:idx_attachments_entity" json:"entity_id"`
	FileURL      string     `gorm:"column:fichier_url;size:1024;not null" json:"fichier_url"`
	FileName     string     `gorm:"column:fichier_name;size:255;not null" json:"fichier_name"`
	FilePublicID string     `gorm:"column:fichier_public_id;size:512;not null" json:"fichier_public_id"`
	FileSize     int64      `gorm:"column:file_size" json:"file_size"`
	FileType     string     `gorm:"column:file_type;size:128" json:"file_type"`
	UploadedAt   time.Time  `gorm:"column:uploaded_at;index" json:"uploaded_at"`
}

func (Attachment) TableName() string { return "attachments" }

// BeforeCreate stamps the upload time when the caller did not.
func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now()
	}
	return nil
}

// AttachmentsByEntity returns the entity's attachment rows newest-first.
// Ties on uploaded_at fall back to id so reads stay deterministic.
func AttachmentsByEntity(db *gorm.DB, kind EntityKind, entityID uint) ([]Attachment, error) {
	var rows []Attachment
	err := db.Where("entity_type = ? AND entity_id = ?", kind, entityID).
		Order("uploaded_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}
