package utils

// allowedMIMETypes is the upload allow-list: PDF, common office formats,
// plain text, common images and zip. Checked against the client-declared
// content type before a batch reaches the upload orchestrator; content is
// not sniffed.
var allowedMIMETypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-powerpoint":                                     true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"text/plain":      true,
	"text/csv":        true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"application/zip": true,
	"application/x-zip-compressed": true,
}

// AllowedFileType reports whether the declared MIME type may be uploaded.
func AllowedFileType(mime string) bool {
	return allowedMIMETypes[mime]
}
