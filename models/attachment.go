package models

import (
	"time"

	"gorm.io/gorm"
)

// PartAttachment is a drawing, photo or program stored in S3 for a part
type PartAttachment struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID      string    `gorm:"type:varchar(36);not null;index" json:"order_id"`
	PartID       string    `gorm:"type:varchar(36);not null;index" json:"part_id"`
	FileName     string    `gorm:"not null" json:"file_name"`
	StorageKey   string    `gorm:"not null" json:"-"`
	ContentType  string    `gorm:"not null" json:"content_type"`
	SizeBytes    int64     `gorm:"not null" json:"size_bytes"`
	UploadedByID *string   `gorm:"type:varchar(36)" json:"uploaded_by_id"`
	URL          string    `gorm:"-" json:"url,omitempty"` // computed field, presigned URL
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for the PartAttachment model
func (PartAttachment) TableName() string {
	return "part_attachments"
}

func (a *PartAttachment) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
