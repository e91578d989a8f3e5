package controllers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mbaye/projecthub/models"
	"github.com/mbaye/projecthub/storage"
	"github.com/mbaye/projecthub/utils"
)

// ProjectController manages teacher projects and their file batches.
type ProjectController struct {
	db    *gorm.DB
	store storage.BlobStore
}

// NewProjectController creates a new ProjectController instance.
func NewProjectController(db *gorm.DB, store storage.BlobStore) *ProjectController {
	return &ProjectController{db: db, store: store}
}

// CreateProject handles POST /projects (teacher, multipart). Files ride along
// in the same request and go through the upload orchestrator after the
// project row exists.
func (p *ProjectController) CreateProject(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(ctx.PostForm("title")))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40050, "title cannot be empty")
		return
	}
	classID64, err := strconv.ParseUint(ctx.PostForm("class_id"), 10, 32)
	if err != nil || classID64 == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40051, "missing or invalid class id")
		return
	}
	classID := uint(classID64)

	assigned, err := models.TeacherAssigned(p.db, userID, classID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to check class assignment")
		return
	}
	if !assigned {
		utils.Error(ctx, http.StatusForbidden, 40350, "you are not assigned to this class")
		return
	}

	deadline, ok := parseOptionalTime(ctx.PostForm("deadline"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40052, "invalid deadline, expected RFC3339")
		return
	}

	files := formFiles(ctx)
	if msg := validateUploadBatch(files); msg != "" {
		utils.Error(ctx, http.StatusBadRequest, 40053, msg)
		return
	}

	project := models.Project{
		TeacherID:   userID,
		ClassID:     classID,
		Title:       title,
		Description: utils.Sanitize(ctx.PostForm("description")),
		Deadline:    deadline,
	}
	if err := p.db.Create(&project).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to create project")
		return
	}

	succeeded, failed := processUploadBatch(ctx.Request.Context(), p.db, p.store, models.EntityProject, project.ID, files)
	project.Attachments = succeeded

	utils.InvalidateByPrefix("cache:projects:")

	data := gin.H{"project": project}
	if len(failed) > 0 {
		data["errors"] = failureMessages(failed)
	}
	utils.Created(ctx, "project created", data)
}

// ListProjects returns the requester's projects: own projects for a teacher,
// the class's projects for a student. Pages are cached per requester for an
// hour and invalidated whenever any project changes.
func (p *ProjectController) ListProjects(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	cacheKey := fmt.Sprintf("cache:projects:%s:%d:%d:%d", getRole(ctx), userID, page, pageSize)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	query := p.db.Model(&models.Project{})
	switch getRole(ctx) {
	case models.RoleTeacher:
		query = query.Where("teacher_id = ?", userID)
	case models.RoleStudent:
		var student models.User
		if err := p.db.First(&student, userID).Error; err != nil || student.ClassID == nil {
			utils.Error(ctx, http.StatusForbidden, 40351, "no class membership")
			return
		}
		query = query.Where("class_id = ?", *student.ClassID)
	default:
		// admins see everything
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to count projects")
		return
	}

	var projects []models.Project
	if err := query.Preload("Teacher").Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&projects).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to list projects")
		return
	}

	payload := gin.H{
		"items": projects,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	utils.Success(ctx, payload)
}

// GetProject returns one project with its tasks and attachments. Visible to
// the owning teacher and to students of the project's class.
func (p *ProjectController) GetProject(ctx *gin.Context) {
	project, ok := p.visibleProject(ctx)
	if !ok {
		return
	}

	if err := p.db.Where("project_id = ?", project.ID).Order("created_at ASC").Find(&project.Tasks).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50054, "failed to load tasks")
		return
	}
	atts, err := models.AttachmentsByEntity(p.db, models.EntityProject, project.ID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50055, "failed to load attachments")
		return
	}
	project.Attachments = atts
	for i := range project.Tasks {
		taskAtts, err := models.AttachmentsByEntity(p.db, models.EntityTask, project.Tasks[i].ID)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50055, "failed to load attachments")
			return
		}
		project.Tasks[i].Attachments = taskAtts
	}

	utils.Success(ctx, gin.H{"project": project})
}

// UpdateProject handles PUT /projects/:id (owner, multipart). New files are
// appended through the orchestrator.
func (p *ProjectController) UpdateProject(ctx *gin.Context) {
	project, ok := p.ownedProject(ctx)
	if !ok {
		return
	}

	files := formFiles(ctx)
	if msg := validateUploadBatch(files); msg != "" {
		utils.Error(ctx, http.StatusBadRequest, 40053, msg)
		return
	}

	if title := utils.Sanitize(strings.TrimSpace(ctx.PostForm("title"))); title != "" {
		project.Title = title
	}
	if desc, present := ctx.GetPostForm("description"); present {
		project.Description = utils.Sanitize(desc)
	}
	if raw, present := ctx.GetPostForm("deadline"); present {
		deadline, ok := parseOptionalTime(raw)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40052, "invalid deadline, expected RFC3339")
			return
		}
		project.Deadline = deadline
	}

	if err := p.db.Save(project).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50056, "failed to update project")
		return
	}

	succeeded, failed := processUploadBatch(ctx.Request.Context(), p.db, p.store, models.EntityProject, project.ID, files)
	project.Attachments = succeeded

	utils.InvalidateByPrefix("cache:projects:")

	data := gin.H{"project": project}
	if len(failed) > 0 {
		data["errors"] = failureMessages(failed)
	}
	utils.Success(ctx, data)
}

// DeleteProject handles DELETE /projects/:id. Every blob of the project and
// of its child tasks gets a best-effort remote delete before the relational
// cascade removes the rows.
func (p *ProjectController) DeleteProject(ctx *gin.Context) {
	project, ok := p.ownedProject(ctx)
	if !ok {
		return
	}

	reqCtx := ctx.Request.Context()
	removeEntityBlobs(reqCtx, p.db, p.store, models.EntityProject, project.ID)

	var taskIDs []uint
	if err := p.db.Model(&models.Task{}).Where("project_id = ?", project.ID).Pluck("id", &taskIDs).Error; err != nil {
		logWarnf("enumerate tasks of project %d for cleanup: %v", project.ID, err)
	}
	for _, tid := range taskIDs {
		removeEntityBlobs(reqCtx, p.db, p.store, models.EntityTask, tid)
	}

	if err := p.db.Delete(project).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50057, "failed to delete project")
		return
	}

	utils.InvalidateByPrefix("cache:projects:")
	utils.Success(ctx, gin.H{"message": "project deleted"})
}

// ownedProject loads the project and enforces teacher ownership: 404 when the
// row is absent, 403 when it belongs to another teacher.
func (p *ProjectController) ownedProject(ctx *gin.Context) (*models.Project, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return nil, false
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40054, "missing or invalid project id")
		return nil, false
	}

	var project models.Project
	err := p.db.First(&project, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40450, "project not found")
		return nil, false
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50058, "failed to load project")
		return nil, false
	}
	if project.TeacherID != userID {
		utils.Error(ctx, http.StatusForbidden, 40352, "you do not own this project")
		return nil, false
	}
	return &project, true
}

// visibleProject loads the project for reads: owner teacher, class student,
// or admin.
func (p *ProjectController) visibleProject(ctx *gin.Context) (*models.Project, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return nil, false
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40054, "missing or invalid project id")
		return nil, false
	}

	var project models.Project
	err := p.db.Preload("Teacher").First(&project, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40450, "project not found")
		return nil, false
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50058, "failed to load project")
		return nil, false
	}

	switch getRole(ctx) {
	case models.RoleAdmin:
	case models.RoleTeacher:
		if project.TeacherID != userID {
			utils.Error(ctx, http.StatusForbidden, 40352, "you do not own this project")
			return nil, false
		}
	case models.RoleStudent:
		var student models.User
		if err := p.db.First(&student, userID).Error; err != nil ||
			student.ClassID == nil || *student.ClassID != project.ClassID {
			utils.Error(ctx, http.StatusForbidden, 40353, "project is not visible to your class")
			return nil, false
		}
	default:
		utils.Error(ctx, http.StatusForbidden, 40310, "insufficient role")
		return nil, false
	}
	return &project, true
}

func formFiles(ctx *gin.Context) []*multipart.FileHeader {
	form, err := ctx.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File["files"]
}

// parseOptionalTime parses an RFC3339 value; empty means "not set".
func parseOptionalTime(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}
