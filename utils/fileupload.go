package utils

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// MaxFileSize is 25MB in bytes
	MaxFileSize = 25 * 1024 * 1024
)

// allowedAttachmentTypes maps accepted extensions to the content type stored with the object
var allowedAttachmentTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".step": "application/step",
	".stp":  "application/step",
	".dxf":  "image/vnd.dxf",
	".nc":   "text/plain",
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateAttachmentFile validates the uploaded file format and size
func ValidateAttachmentFile(fileHeader *multipart.FileHeader) error {
	if fileHeader.Size > MaxFileSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}

	if fileHeader.Size == 0 {
		return &FileUploadError{
			Code:    "EMPTY_FILE",
			Message: "File is empty",
		}
	}

	if _, ok := AttachmentContentType(fileHeader.Filename); !ok {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: "Only pdf, png, jpg, step, stp, dxf and nc files are allowed",
		}
	}

	return nil
}

// AttachmentContentType returns the content type for an accepted attachment filename
func AttachmentContentType(filename string) (string, bool) {
	ct, ok := allowedAttachmentTypes[strings.ToLower(filepath.Ext(filename))]
	return ct, ok
}

// SanitizeFilename strips directories and characters that do not belong in an object key
func SanitizeFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	if base == "" || base == "." || base == ".." {
		return "file"
	}
	return base
}
