package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Folder is one of the fixed remote-side folder categories. Project and task
// folders are sub-namespaced with the owning entity id so the remote store
// mirrors the relational layout without enforcing it.
type Folder string

const (
	FolderIdentityDocuments Folder = "identity-documents"
	FolderProfilePictures   Folder = "profile-pictures"
	FolderProjectFiles      Folder = "project-files"
	FolderTaskSubmissions   Folder = "task-submissions"
	FolderMisc              Folder = "misc"
)

// WithEntity suffixes the folder with an entity id sub-namespace.
func (f Folder) WithEntity(id uint) string {
	return fmt.Sprintf("%s/%d", f, id)
}

// ResourceKind distinguishes image blobs from generic/raw blobs; the provider
// serves the two through different URL shapes.
type ResourceKind string

const (
	ResourceImage ResourceKind = "image"
	ResourceRaw   ResourceKind = "raw"
)

// KindForMIME derives the resource kind from a stored MIME type.
func KindForMIME(mime string) ResourceKind {
	if strings.HasPrefix(mime, "image/") {
		return ResourceImage
	}
	return ResourceRaw
}

// DefaultSignedURLTTL bounds how long an issued fetch URL stays valid.
const DefaultSignedURLTTL = 300 * time.Second

// UploadResult carries the provider-issued identifiers for a stored blob.
type UploadResult struct {
	BlobID  string // provider key, required for Remove/SignedURL
	BlobURL string // canonical (unsigned) URL of the blob
}

// BlobStore wraps the remote object-storage provider. Implementations keep no
// local state; every call is a network round trip.
type BlobStore interface {
	// Upload stores size bytes from r under the given folder. name is a hint
	// used only to keep the original file extension on the remote key.
	Upload(ctx context.Context, r io.Reader, size int64, folder, name, contentType string) (*UploadResult, error)

	// Remove deletes a blob. Callers must treat failures as non-fatal.
	Remove(ctx context.Context, blobID string) error

	// SignedURL produces a time-limited fetch URL for the blob. displayName
	// drives the filename the browser sees, kind selects the provider URL
	// shape for image versus raw blobs.
	SignedURL(ctx context.Context, blobID, displayName string, kind ResourceKind, ttl time.Duration) (string, error)
}
