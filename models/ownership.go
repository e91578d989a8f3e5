package models

import (
	"errors"

	"gorm.io/gorm"
)

// ErrEntityNotFound is returned when an ownership lookup targets a row that
// does not exist (or whose owning chain is broken).
var ErrEntityNotFound = errors.New("entity not found")

// ResolveOwner returns the id of the teacher owning the given entity. For a
// project the owner is read directly; for a task it is resolved through the
// parent project. This is the single authorization predicate used by every
// attachment endpoint and by entity deletion.
func ResolveOwner(db *gorm.DB, kind EntityKind, entityID uint) (uint, error) {
	switch kind {
	case EntityProject:
		var row struct{ TeacherID uint }
		err := db.Table("projets").
			Select("teacher_id").
			Where("id = ?", entityID).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrEntityNotFound
		}
		return row.TeacherID, err
	case EntityTask:
		var row struct{ TeacherID uint }
		err := db.Table("taches").
			Select("projets.teacher_id AS teacher_id").
			Joins("JOIN projets ON projets.id = taches.project_id").
			Where("taches.id = ?", entityID).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrEntityNotFound
		}
		return row.TeacherID, err
	default:
		return 0, ErrEntityNotFound
	}
}

// AttachmentWithOwner fetches an attachment row together with its resolved
// owning-teacher id in a single query. Returns ErrEntityNotFound when either
// the row is absent or its owning entity chain no longer resolves.
func AttachmentWithOwner(db *gorm.DB, id uint) (*Attachment, uint, error) {
	var row struct {
		Attachment
		OwnerID *uint
	}
	res := db.Raw(`
		SELECT a.*, COALESCE(p.teacher_id, pp.teacher_id) AS owner_id
		FROM attachments a
		LEFT JOIN projets p ON a.entity_type = 'project' AND p.id = a.entity_id
		LEFT JOIN taches t ON a.entity_type = 'task' AND t.id = a.entity_id
		LEFT JOIN projets pp ON pp.id = t.project_id
		WHERE a.id = ?`, id).Scan(&row)
	if res.Error != nil {
		return nil, 0, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, 0, ErrEntityNotFound
	}
	if row.OwnerID == nil {
		return nil, 0, ErrEntityNotFound
	}
	return &row.Attachment, *row.OwnerID, nil
}

// TeacherAssigned reports whether the teacher is assigned to the class.
func TeacherAssigned(db *gorm.DB, teacherID, classID uint) (bool, error) {
	var n int64
	err := db.Table("class_teachers").
		Where("user_id = ? AND class_id = ?", teacherID, classID).
		Count(&n).Error
	return n > 0, err
}
