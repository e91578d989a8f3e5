package models

import (
	"time"

	"gorm.io/gorm"
)

// Project is a unit of work a teacher assigns to a class. It owns its tasks
// and its attachments (entity_type=project).
type Project struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TeacherID   uint       `gorm:"index;not null" json:"teacher_id"`
	ClassID     uint       `gorm:"index;not null" json:"class_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Deadline    *time.Time `json:"deadline"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Teacher     User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"teacher,omitempty"`
	Class       Class      `json:"class,omitempty"`
	Tasks       []Task     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"tasks,omitempty"`

	// Filled on reads; attachment rows are looked up by (entity_type, entity_id).
	Attachments []Attachment `gorm:"-" json:"attachments,omitempty"`
}

// TableName keeps the legacy table name used by the rest of the platform.
func (Project) TableName() string { return "projets" }

// BeforeDelete cascades the relational delete to child tasks and to the
// project's attachment rows. Remote blob cleanup is the caller's business and
// must happen before the row delete.
func (p *Project) BeforeDelete(tx *gorm.DB) error {
	if p.ID == 0 {
		return nil
	}
	var tasks []Task
	if err := tx.Where("project_id = ?", p.ID).Find(&tasks).Error; err != nil {
		return err
	}
	for i := range tasks {
		if err := tx.Delete(&tasks[i]).Error; err != nil {
			return err
		}
	}
	return tx.Where("entity_type = ? AND entity_id = ?", EntityProject, p.ID).
		Delete(&Attachment{}).Error
}
