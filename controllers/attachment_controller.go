package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/shopfloor-api/config"
	"github.com/kendall-kelly/shopfloor-api/services"
	"github.com/kendall-kelly/shopfloor-api/utils"
)

func attachmentService() *services.AttachmentService {
	return services.NewAttachmentService(config.GetDB(), services.GetS3Service())
}

// ListAttachments handles GET /api/v1/orders/:id/parts/:partId/attachments
func ListAttachments(c *gin.Context) {
	attachments, err := attachmentService().ListAttachments(c.Request.Context(), c.Param("id"), c.Param("partId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, attachments)
}

// UploadAttachment handles POST /api/v1/orders/:id/parts/:partId/attachments (multipart field "file")
func UploadAttachment(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	// Cap the body slightly above the file limit so oversized uploads fail fast
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxFileSize+1024*1024)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "NO_FILE", "A file is required in the \"file\" form field")
		return
	}

	attachment, err := attachmentService().UploadAttachment(c.Request.Context(), services.UploadAttachmentInput{
		OrderID:      c.Param("id"),
		PartID:       c.Param("partId"),
		UploadedByID: userIDPtr(user),
		File:         fileHeader,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, attachment)
}

// DeleteAttachment handles DELETE /api/v1/orders/:id/parts/:partId/attachments/:attachmentId
func DeleteAttachment(c *gin.Context) {
	err := attachmentService().DeleteAttachment(c.Request.Context(), c.Param("id"), c.Param("partId"), c.Param("attachmentId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"deleted": true})
}
