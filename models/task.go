package models

import (
	"time"

	"gorm.io/gorm"
)

// Task statuses. A task starts in "todo" and is moved by the teacher or the
// assigned student.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// Task is a sub-unit of a project, optionally assigned to one student of the
// project's class. Ownership is transitive: the task belongs to the teacher
// owning its parent project.
type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ProjectID   uint       `gorm:"index;not null" json:"project_id"`
	StudentID   *uint      `gorm:"index" json:"student_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Status      string     `gorm:"size:16;not null;default:'todo'" json:"status"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Project     Project    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"project,omitempty"`

	Attachments []Attachment `gorm:"-" json:"attachments,omitempty"`
}

// TableName keeps the legacy table name used by the rest of the platform.
func (Task) TableName() string { return "taches" }

// ValidTaskStatus reports whether the status value is one of the known states.
func ValidTaskStatus(s string) bool {
	return s == TaskStatusTodo || s == TaskStatusInProgress || s == TaskStatusDone
}

// BeforeDelete cascades the relational delete to the task's attachment rows.
func (t *Task) BeforeDelete(tx *gorm.DB) error {
	if t.ID == 0 {
		return nil
	}
	return tx.Where("entity_type = ? AND entity_id = ?", EntityTask, t.ID).
		Delete(&Attachment{}).Error
}
