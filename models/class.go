package models

import "time"

// Class groups students under a level and academic year. Teachers are attached
// through the class_teachers join table and may teach several classes.
type Class struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:128;not null" json:"name"`
	Level        string    `gorm:"size:64" json:"level"`
	AcademicYear string    `gorm:"size:16" json:"academic_year"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Teachers     []User    `gorm:"many2many:class_teachers" json:"teachers,omitempty"`
	Students     []User    `gorm:"foreignKey:ClassID" json:"students,omitempty"`
}
