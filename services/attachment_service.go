package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/google/uuid"
	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/kendall-kelly/shopfloor-api/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrStorageNotConfigured is returned when attachments are used without an S3 backend
var ErrStorageNotConfigured = errors.New("attachment storage is not configured")

// UploadAttachmentInput is a file a user attaches to a part
type UploadAttachmentInput struct {
	OrderID      string
	PartID       string
	UploadedByID *string
	File         *multipart.FileHeader
}

// AttachmentService stores part drawings, photos and programs in S3
type AttachmentService struct {
	db      *gorm.DB
	storage S3Interface
}

// NewAttachmentService creates an attachment service; storage may be nil when S3 is not configured
func NewAttachmentService(db *gorm.DB, storage S3Interface) *AttachmentService {
	return &AttachmentService{db: db, storage: storage}
}

func attachmentKey(orderID, partID, filename string) string {
	return fmt.Sprintf("orders/%s/parts/%s/%s_%s", orderID, partID, uuid.NewString()[:8], utils.SanitizeFilename(filename))
}

// UploadAttachment validates the file, uploads it and records it against the part.
// Invalid files are rejected with *utils.FileUploadError.
func (s *AttachmentService) UploadAttachment(ctx context.Context, in UploadAttachmentInput) (*models.PartAttachment, error) {
	if s.storage == nil {
		return nil, ErrStorageNotConfigured
	}
	if in.File == nil {
		return nil, &utils.FileUploadError{Code: "NO_FILE", Message: "A file is required"}
	}
	if err := utils.ValidateAttachmentFile(in.File); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	if _, err := findPartOnOrder(db, in.OrderID, in.PartID); err != nil {
		return nil, err
	}

	contentType, _ := utils.AttachmentContentType(in.File.Filename)
	key := attachmentKey(in.OrderID, in.PartID, in.File.Filename)

	file, err := in.File.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if err := s.storage.PutObject(ctx, key, contentType, file, in.File.Size); err != nil {
		return nil, fmt.Errorf("failed to upload attachment: %w", err)
	}

	attachment := models.PartAttachment{
		OrderID:      in.OrderID,
		PartID:       in.PartID,
		FileName:     utils.SanitizeFilename(in.File.Filename),
		StorageKey:   key,
		ContentType:  contentType,
		SizeBytes:    in.File.Size,
		UploadedByID: in.UploadedByID,
	}
	if err := db.Create(&attachment).Error; err != nil {
		s.DeleteObjects(ctx, []string{key})
		return nil, fmt.Errorf("failed to save attachment: %w", err)
	}

	attachment.URL = s.presign(ctx, key)
	return &attachment, nil
}

// ListAttachments returns a part's attachments with download links
func (s *AttachmentService) ListAttachments(ctx context.Context, orderID, partID string) ([]models.PartAttachment, error) {
	db := s.db.WithContext(ctx)
	if _, err := findPartOnOrder(db, orderID, partID); err != nil {
		return nil, err
	}

	var attachments []models.PartAttachment
	if err := db.Where("order_id = ? AND part_id = ?", orderID, partID).
		Order("created_at ASC").
		Find(&attachments).Error; err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	for i := range attachments {
		attachments[i].URL = s.presign(ctx, attachments[i].StorageKey)
	}
	return attachments, nil
}

// DeleteAttachment removes the record and then the stored object
func (s *AttachmentService) DeleteAttachment(ctx context.Context, orderID, partID, attachmentID string) error {
	var attachment models.PartAttachment
	db := s.db.WithContext(ctx)
	if err := db.Where("id = ? AND order_id = ? AND part_id = ?", attachmentID, orderID, partID).
		First(&attachment).Error; err != nil {
		return notFoundOr(err, "attachment", attachmentID)
	}
	if err := db.Delete(&attachment).Error; err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	s.DeleteObjects(ctx, []string{attachment.StorageKey})
	return nil
}

// DeleteObjects removes stored objects. Failures are logged; the rows are already gone.
func (s *AttachmentService) DeleteObjects(ctx context.Context, keys []string) {
	if s.storage == nil {
		return
	}
	for _, key := range keys {
		if err := s.storage.DeleteObject(ctx, key); err != nil {
			utils.Log.WithError(err).WithFields(logrus.Fields{"key": key}).Warn("Failed to delete attachment object")
		}
	}
}

func (s *AttachmentService) presign(ctx context.Context, key string) string {
	if s.storage == nil {
		return ""
	}
	url, err := s.storage.GetPresignedURL(ctx, key)
	if err != nil {
		utils.Log.WithError(err).WithField("key", key).Warn("Failed to presign attachment URL")
		return ""
	}
	return url
}
