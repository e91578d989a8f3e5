package controllers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mbaye/projecthub/models"
	"github.com/mbaye/projecthub/storage"
)

func attachmentRouter(db *gorm.DB, store *fakeBlobStore, user *models.User) *gin.Engine {
	r := gin.New()
	c := NewAttachmentController(db, store)
	g := r.Group("/api/v1/attachments", authAs(user))
	g.POST("", c.Upload)
	g.GET("/entity/:kind/:id", c.ListByEntity)
	g.GET("/id/:id/view", c.View)
	g.GET("/id/:id/signed", c.Signed)
	g.GET("/id/:id/stream", c.Stream)
	g.GET("/id/:id/download", c.Download)
	g.DELETE("/:id", c.Delete)
	return r
}

func TestUpload_PartialFailureKeepsGoing(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{failNames: map[string]bool{"b.pdf": true}}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	task := makeTask(t, db, project.ID, nil)
	r := attachmentRouter(db, store, teacher)

	body, ct := multipartBody(t, map[string]string{
		"entity_type": "task",
		"entity_id":   fmt.Sprint(task.ID),
	}, []filePart{
		{Name: "a.pdf", ContentType: "application/pdf", Content: "aaa"},
		{Name: "b.pdf", ContentType: "application/pdf", Content: "bbb"},
		{Name: "c.png", ContentType: "image/png", Content: "ccc"},
	})
	w, env := doRequest(t, r, http.MethodPost, "/api/v1/attachments", body, ct)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, string(env.Data), `"errors"`)
	assert.Contains(t, string(env.Data), "b.pdf")

	// exactly the two survivors are persisted, in input order
	var rows []models.Attachment
	require.NoError(t, db.Where("entity_type = ? AND entity_id = ?", models.EntityTask, task.ID).
		Order("id ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "a.pdf", rows[0].FileName)
	assert.Equal(t, "c.png", rows[1].FileName)
	assert.Equal(t, "application/pdf", rows[0].FileType)
	assert.Equal(t, "image/png", rows[1].FileType)
	assert.Equal(t, int64(3), rows[0].FileSize)
	assert.NotEmpty(t, rows[0].FilePublicID)
	assert.False(t, rows[0].UploadedAt.IsZero())

	// blobs landed in the task submissions folder, namespaced by the task id
	require.Len(t, store.uploads, 2)
	wantFolder := fmt.Sprintf("task-submissions/%d", task.ID)
	for _, up := range store.uploads {
		assert.Equal(t, wantFolder, up.Folder)
	}
}

func TestUpload_ProjectFilesFolder(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	r := attachmentRouter(db, store, teacher)

	body, ct := multipartBody(t, map[string]string{
		"entity_type": "project",
		"entity_id":   fmt.Sprint(project.ID),
	}, []filePart{{Name: "notes.txt", ContentType: "text/plain", Content: "hello"}})
	w, _ := doRequest(t, r, http.MethodPost, "/api/v1/attachments", body, ct)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.uploads, 1)
	assert.Equal(t, fmt.Sprintf("project-files/%d", project.ID), store.uploads[0].Folder)
	assert.Equal(t, "hello", string(store.uploads[0].Body))
}

func TestUpload_EntityMissing(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	r := attachmentRouter(db, store, teacher)

	body, ct := multipartBody(t, map[string]string{
		"entity_type": "project",
		"entity_id":   "999",
	}, []filePart{{Name: "a.pdf", ContentType: "application/pdf", Content: "x"}})
	w, _ := doRequest(t, r, http.MethodPost, "/api/v1/attachments", body, ct)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.uploads)
}

func TestUpload_NotOwner(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	owner := makeUser(t, db, models.RoleTeacher, nil)
	other := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, owner)
	project := makeProject(t, db, owner.ID, class.ID)
	r := attachmentRouter(db, store, other)

	body, ct := multipartBody(t, map[string]string{
		"entity_type": "project",
		"entity_id":   fmt.Sprint(project.ID),
	}, []filePart{{Name: "a.pdf", ContentType: "application/pdf", Content: "x"}})
	w, _ := doRequest(t, r, http.MethodPost, "/api/v1/attachments", body, ct)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, store.uploads)
}

func TestUpload_DisallowedTypeRejectsWholeBatch(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	r := attachmentRouter(db, store, teacher)

	body, ct := multipartBody(t, map[string]string{
		"entity_type": "project",
		"entity_id":   fmt.Sprint(project.ID),
	}, []filePart{
		{Name: "ok.pdf", ContentType: "application/pdf", Content: "x"},
		{Name: "evil.exe", ContentType: "application/x-msdownload", Content: "x"},
	})
	w, _ := doRequest(t, r, http.MethodPost, "/api/v1/attachments", body, ct)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.uploads)
	var n int64
	require.NoError(t, db.Model(&models.Attachment{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestUpload_TooManyFiles(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	r := attachmentRouter(db, store, teacher)

	var files []filePart
	for i := 0; i < 11; i++ {
		files = append(files, filePart{
			Name: fmt.Sprintf("f%d.pdf", i), ContentType: "application/pdf", Content: "x",
		})
	}
	body, ct := multipartBody(t, map[string]string{
		"entity_type": "project",
		"entity_id":   fmt.Sprint(project.ID),
	}, files)
	w, _ := doRequest(t, r, http.MethodPost, "/api/v1/attachments", body, ct)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.uploads)
}

func TestUpload_InsertFailureOrphansBlob(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	r := attachmentRouter(db, store, teacher)

	// sabotage the metadata insert after the remote upload succeeds
	require.NoError(t, db.Migrator().DropTable(&models.Attachment{}))

	body, ct := multipartBody(t, map[string]string{
		"entity_type": "project",
		"entity_id":   fmt.Sprint(project.ID),
	}, []filePart{{Name: "a.pdf", ContentType: "application/pdf", Content: "x"}})
	w, env := doRequest(t, r, http.MethodPost, "/api/v1/attachments", body, ct)

	// the single file failed, so the batch maps to 500
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, string(env.Data), "a.pdf")

	// the blob reached the store and is left there, orphaned: no cleanup
	require.Len(t, store.uploads, 1)
	assert.Empty(t, store.removed)
}

func TestUpload_AllFailed(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{failNames: map[string]bool{"a.pdf": true, "b.pdf": true}}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	r := attachmentRouter(db, store, teacher)

	body, ct := multipartBody(t, map[string]string{
		"entity_type": "project",
		"entity_id":   fmt.Sprint(project.ID),
	}, []filePart{
		{Name: "a.pdf", ContentType: "application/pdf", Content: "x"},
		{Name: "b.pdf", ContentType: "application/pdf", Content: "x"},
	})
	w, env := doRequest(t, r, http.MethodPost, "/api/v1/attachments", body, ct)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, env.Message, "all uploads failed")
}

func TestListByEntity_OwnerGetsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	makeAttachment(t, db, models.EntityProject, project.ID, "first.pdf", "k1")
	makeAttachment(t, db, models.EntityProject, project.ID, "second.pdf", "k2")
	r := attachmentRouter(db, store, teacher)

	w, env := doRequest(t, r, http.MethodGet,
		fmt.Sprintf("/api/v1/attachments/entity/project/%d", project.ID), nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	// same uploaded_at second is possible; id breaks the tie newest-first
	idx1 := strings.Index(string(env.Data), "second.pdf")
	idx2 := strings.Index(string(env.Data), "first.pdf")
	require.True(t, idx1 >= 0 && idx2 >= 0)
	assert.Less(t, idx1, idx2)
}

func TestListByEntity_AccessPolicy(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	owner := makeUser(t, db, models.RoleTeacher, nil)
	other := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, owner)
	project := makeProject(t, db, owner.ID, class.ID)

	w, _ := doRequest(t, attachmentRouter(db, store, other), http.MethodGet,
		fmt.Sprintf("/api/v1/attachments/entity/project/%d", project.ID), nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = doRequest(t, attachmentRouter(db, store, owner), http.MethodGet,
		"/api/v1/attachments/entity/project/999", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doRequest(t, attachmentRouter(db, store, owner), http.MethodGet,
		"/api/v1/attachments/entity/folder/1", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetrieval_UniformAccessPolicy(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	owner := makeUser(t, db, models.RoleTeacher, nil)
	other := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, owner)
	project := makeProject(t, db, owner.ID, class.ID)
	att := makeAttachment(t, db, models.EntityProject, project.ID, "doc.pdf", "key-1")

	modes := []string{"view", "signed", "stream", "download"}
	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			// absent id -> 404
			w, _ := doRequest(t, attachmentRouter(db, store, owner), http.MethodGet,
				"/api/v1/attachments/id/999/"+mode, nil, "")
			assert.Equal(t, http.StatusNotFound, w.Code)

			// not the owner -> 403
			w, _ = doRequest(t, attachmentRouter(db, store, other), http.MethodGet,
				fmt.Sprintf("/api/v1/attachments/id/%d/%s", att.ID, mode), nil, "")
			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}

	// delete follows the same policy
	w, _ := doRequest(t, attachmentRouter(db, store, owner), http.MethodDelete,
		"/api/v1/attachments/999", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = doRequest(t, attachmentRouter(db, store, other), http.MethodDelete,
		fmt.Sprintf("/api/v1/attachments/%d", att.ID), nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRetrieval_OrphanedChainIsNotFound(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	att := makeAttachment(t, db, models.EntityProject, 4242, "ghost.pdf", "ghost-key")
	r := attachmentRouter(db, store, teacher)

	w, _ := doRequest(t, r, http.MethodGet,
		fmt.Sprintf("/api/v1/attachments/id/%d/signed", att.ID), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestView_RedirectsToSignedURL(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	att := makeAttachment(t, db, models.EntityProject, project.ID, "doc.pdf", "key-9")
	r := attachmentRouter(db, store, teacher)

	w, _ := doRequest(t, r, http.MethodGet,
		fmt.Sprintf("/api/v1/attachments/id/%d/view", att.ID), nil, "")

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://signed.test/key-9", w.Header().Get("Location"))
}

func TestSigned_ReturnsURL(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	att := makeAttachment(t, db, models.EntityProject, project.ID, "doc.pdf", "key-7")
	r := attachmentRouter(db, store, teacher)

	w, env := doRequest(t, r, http.MethodGet,
		fmt.Sprintf("/api/v1/attachments/id/%d/signed", att.ID), nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "https://signed.test/key-7")
	assert.Equal(t, storage.DefaultSignedURLTTL, store.signTTL)
}

func TestStreamAndDownload_ProxyBlobBytes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("blob-bytes"))
	}))
	defer upstream.Close()

	db := newTestDB(t)
	store := &fakeBlobStore{signBase: upstream.URL}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	att := makeAttachment(t, db, models.EntityProject, project.ID, "doc.pdf", "key-5")
	r := attachmentRouter(db, store, teacher)

	w, _ := doRequest(t, r, http.MethodGet,
		fmt.Sprintf("/api/v1/attachments/id/%d/stream", att.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "blob-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "inline")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "doc.pdf")

	w, _ = doRequest(t, r, http.MethodGet,
		fmt.Sprintf("/api/v1/attachments/id/%d/download", att.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
}

func TestStream_UpstreamErrorIsBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	db := newTestDB(t)
	store := &fakeBlobStore{signBase: upstream.URL}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	att := makeAttachment(t, db, models.EntityProject, project.ID, "doc.pdf", "key-6")
	r := attachmentRouter(db, store, teacher)

	w, _ := doRequest(t, r, http.MethodGet,
		fmt.Sprintf("/api/v1/attachments/id/%d/stream", att.ID), nil, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestDelete_RemovesBlobAndRow(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	att := makeAttachment(t, db, models.EntityProject, project.ID, "doc.pdf", "key-3")
	r := attachmentRouter(db, store, teacher)

	w, _ := doRequest(t, r, http.MethodDelete,
		fmt.Sprintf("/api/v1/attachments/%d", att.ID), nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"key-3"}, store.removed)
	var n int64
	require.NoError(t, db.Model(&models.Attachment{}).Where("id = ?", att.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestDelete_RemoteFailureStillDeletesRow(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{removeErr: fmt.Errorf("network down")}
	teacher := makeUser(t, db, models.RoleTeacher, nil)
	class := makeClass(t, db, teacher)
	project := makeProject(t, db, teacher.ID, class.ID)
	att := makeAttachment(t, db, models.EntityProject, project.ID, "doc.pdf", "key-4")
	r := attachmentRouter(db, store, teacher)

	w, _ := doRequest(t, r, http.MethodDelete,
		fmt.Sprintf("/api/v1/attachments/%d", att.ID), nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	var n int64
	require.NoError(t, db.Model(&models.Attachment{}).Where("id = ?", att.ID).Count(&n).Error)
	assert.Zero(t, n)

	// a second delete of the same id follows the uniform policy
	w, _ = doRequest(t, r, http.MethodDelete,
		fmt.Sprintf("/api/v1/attachments/%d", att.ID), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
