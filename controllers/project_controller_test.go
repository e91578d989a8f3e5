package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mbaye/projecthub/models"
)

func projectRouter(db *gorm.DB, store *fakeBlobStore, user *models.User) *gin.Engine {
	r := gin.New()
	c := NewProjectController(db, store)
	g := r.Group("/api/v1/projects", authAs(user))
	g.POST("", c.CreateProject)
	g.GET("", c.ListProjects)
	g.GET("/:id", c.GetProject)
	g.PUT("/:id", c.UpdateProject)
	g.DELETE("/:id", c.DeleteProject)
	return r
}

func TestCreateProject_WithFiles(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	r := projectRouter(db, store, teacher)

	body, ct := multipartBody(t, map[string]string{
		"title":       "Distributed KV store",
		"class_id":    fmt.Sprint(class.ID),
		"description": "Build a replicated store",
		"deadline":    "2026-12-01T00:00:00Z",
	}, []filePart{{Name: "subject.pdf", ContentType: "application/pdf", Content: "pdf"}})
	w, env := doRequest(t, r, http.MethodPost, "/api/v1/projects", body, ct)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, string(env.Data), "Distributed KV store")

	var project models.Project
	require.NoError(t, db.Where("teacher_id = ?", teacher.ID).First(&project).Error)
	assert.NotNil(t, project.Deadline)

	require.Len(t, store.uploads, 1)
	assert.Equal(t, fmt.Sprintf("project-files/%d", project.ID), store.uploads[0].Folder)

	atts, err := models.AttachmentsByEntity(db, models.EntityProject, project.ID)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "subject.pdf", atts[0].FileName)
}

func TestCreateProject_NotAssignedToClass(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db) // teacher is not attached
	r := projectRouter(db, store, teacher)

	body, ct := multipartBody(t, map[string]string{
		"title":    "Orphan project",
		"class_id": fmt.Sprint(class.ID),
	}, nil)
	w, _ := doRequest(t, r, http.MethodPost, "/api/v1/projects", body, ct)

	assert.Equal(t, http.StatusForbidden, w.Code)
	var n int64
	require.NoError(t, db.Model(&models.Project{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateProject_InvalidBatchAbortsBeforeInsert(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	r := projectRouter(db, store, teacher)

	body, ct := multipartBody(t, map[string]string{
		"title":    "Bad batch",
		"class_id": fmt.Sprint(class.ID),
	}, []filePart{{Name: "virus.exe", ContentType: "application/octet-stream", Content: "x"}})
	w, _ := doRequest(t, r, http.MethodPost, "/api/v1/projects", body, ct)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var n int64
	require.NoError(t, db.Model(&models.Project{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Empty(t, store.uploads)
}

func TestGetProject_Visibility(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	otherClass := makeClass(t, db)
	classmate := makeUser(t, db, models.RoleStudent, &class.ID)
	outsider := makeUser(t, db, models.RoleStudent, &otherClass.ID)
	admin := makeUser(t, db, models.RoleAdmin, nil)
	project := makeProject(t, db, teacher.ID, class.ID)

	cases := []struct {
		name string
		user *models.User
		want int
	}{
		{"owner teacher", teacher, http.StatusOK},
		{"class student", classmate, http.StatusOK},
		{"other class student", outsider, http.StatusForbidden},
		{"admin", admin, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := doRequest(t, projectRouter(db, store, tc.user), http.MethodGet,
				fmt.Sprintf("/api/v1/projects/%d", project.ID), nil, "")
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestListProjects_ScopedByRole(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacherA := makeUser(t, db, models.RoleTeacher, nil)
	teacherB := makeUser(t, db, models.RoleTeacher, nil)
	classA := makeClass(t, db, teacherA)
	classB := makeClass(t, db, teacherB)
	makeProject(t, db, teacherA.ID, classA.ID)
	makeProject(t, db, teacherB.ID, classB.ID)
	student := makeUser(t, db, models.RoleStudent, &classA.ID)

	w, env := doRequest(t, projectRouter(db, store, teacherA), http.MethodGet, "/api/v1/projects", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total":1`)

	w, env = doRequest(t, projectRouter(db, store, student), http.MethodGet, "/api/v1/projects", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total":1`)

	admin := makeUser(t, db, models.RoleAdmin, nil)
	w, env = doRequest(t, projectRouter(db, store, admin), http.MethodGet, "/api/v1/projects", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total":2`)
}

func TestUpdateProject_AppendsFiles(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	makeAttachment(t, db, models.EntityProject, project.ID, "old.pdf", "old-key")
	r := projectRouter(db, store, teacher)

	body, ct := multipartBody(t, map[string]string{
		"title": "Renamed project",
	}, []filePart{{Name: "extra.pdf", ContentType: "application/pdf", Content: "x"}})
	w, _ := doRequest(t, r, http.MethodPut,
		fmt.Sprintf("/api/v1/projects/%d", project.ID), body, ct)

	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Project
	require.NoError(t, db.First(&updated, project.ID).Error)
	assert.Equal(t, "Renamed project", updated.Title)

	atts, err := models.AttachmentsByEntity(db, models.EntityProject, project.ID)
	require.NoError(t, err)
	assert.Len(t, atts, 2)
}

func TestDeleteProject_CascadesBlobsAndRows(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	task := makeTask(t, db, project.ID, nil)
	makeAttachment(t, db, models.EntityProject, project.ID, "p.pdf", "proj-key")
	makeAttachment(t, db, models.EntityTask, task.ID, "t.pdf", "task-key")
	r := projectRouter(db, store, teacher)

	w, _ := doRequest(t, r, http.MethodDelete,
		fmt.Sprintf("/api/v1/projects/%d", project.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.ElementsMatch(t, []string{"proj-key", "task-key"}, store.removed)

	var n int64
	require.NoError(t, db.Model(&models.Project{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.Task{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.Attachment{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestDeleteProject_RemoteFailureStillCascades(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{removeErr: fmt.Errorf("storage offline")}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	makeAttachment(t, db, models.EntityProject, project.ID, "p.pdf", "proj-key")
	r := projectRouter(db, store, teacher)

	w, _ := doRequest(t, r, http.MethodDelete,
		fmt.Sprintf("/api/v1/projects/%d", project.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var n int64
	require.NoError(t, db.Model(&models.Attachment{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestDeleteProject_OnlyOwner(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	owner := makeUser(t, db, models.RoleTeacher, nil)
	other := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, owner)
	project := makeProject(t, db, owner.ID, class.ID)

	w, _ := doRequest(t, projectRouter(db, store, other), http.MethodDelete,
		fmt.Sprintf("/api/v1/projects/%d", project.ID), nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = doRequest(t, projectRouter(db, store, owner), http.MethodDelete,
		"/api/v1/projects/999", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
