package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFolderWithEntity(t *testing.T) {
	assert.Equal(t, "project-files/42", FolderProjectFiles.WithEntity(42))
	assert.Equal(t, "task-submissions/7", FolderTaskSubmissions.WithEntity(7))
	assert.Equal(t, "misc/1", FolderMisc.WithEntity(1))
}

func TestKindForMIME(t *testing.T) {
	assert.Equal(t, ResourceImage, KindForMIME("image/png"))
	assert.Equal(t, ResourceImage, KindForMIME("image/jpeg"))
	assert.Equal(t, ResourceRaw, KindForMIME("application/pdf"))
	assert.Equal(t, ResourceRaw, KindForMIME("text/plain"))
	assert.Equal(t, ResourceRaw, KindForMIME(""))
}
