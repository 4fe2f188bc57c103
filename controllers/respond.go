package controllers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/kendall-kelly/shopfloor-api/config"
	"github.com/kendall-kelly/shopfloor-api/middleware"
	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/kendall-kelly/shopfloor-api/services"
	"github.com/kendall-kelly/shopfloor-api/utils"
	"github.com/sirupsen/logrus"
)

func init() {
	// report binding errors under the JSON names clients send
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondServiceError renders an error returned by a service
func respondServiceError(c *gin.Context, err error) {
	var timerErr *services.ActiveTimerError
	if errors.As(err, &timerErr) {
		c.JSON(timerErr.Status(), gin.H{
			"success": false,
			"error": gin.H{
				"code":            timerErr.Code(),
				"message":         "An active timer is already running",
				"active_entry":    timerErr.Entry,
				"elapsed_seconds": timerErr.ElapsedSeconds,
			},
		})
		return
	}

	if appErr, ok := services.AsAppError(err); ok {
		body := gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		}
		if len(appErr.Fields) > 0 {
			body["fields"] = appErr.Fields
		}
		c.JSON(appErr.Status(), gin.H{
			"success": false,
			"error":   body,
		})
		return
	}

	var uploadErr *utils.FileUploadError
	if errors.As(err, &uploadErr) {
		respondError(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
		return
	}

	if errors.Is(err, services.ErrStorageNotConfigured) {
		respondError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Attachment storage is not configured")
		return
	}

	utils.Log.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).Error("Unexpected error")
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}

// bindJSON binds the request body and renders itemized validation errors on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondBindError(c, err)
		return false
	}
	return true
}

// bindQuery binds query parameters and renders itemized validation errors on failure
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		respondBindError(c, err)
		return false
	}
	return true
}

func respondBindError(c *gin.Context, err error) {
	fields := services.FieldErrors{}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields.Add(fe.Field(), describeFieldError(fe))
		}
	} else {
		fields.Add("body", err.Error())
	}
	respondServiceError(c, fields.Err())
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " item(s)"
	case "oneof":
		return "must be one of " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "dive":
		return "contains an invalid value"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

// currentUser resolves the authenticated Auth0 subject to a stored profile.
// It renders the error response itself and returns nil when there is no profile.
func currentUser(c *gin.Context) *models.User {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return nil
	}

	var user models.User
	if err := config.GetDB().WithContext(c.Request.Context()).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return nil
	}
	return &user
}

// userIDPtr returns the user's id for optional actor columns
func userIDPtr(user *models.User) *string {
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}
