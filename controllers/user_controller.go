package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/shopfloor-api/config"
	"github.com/kendall-kelly/shopfloor-api/middleware"
	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/kendall-kelly/shopfloor-api/services"
	"github.com/kendall-kelly/shopfloor-api/utils"
)

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Name  string `json:"name" binding:"omitempty"`
	Email string `json:"email" binding:"omitempty,email"`
}

func isDuplicate(err error) bool {
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate") || strings.Contains(errMsg, "unique")
}

// roleFromClaims returns the role carried by the token, falling back to viewer
func roleFromClaims(c *gin.Context) string {
	claims, err := middleware.GetCustomClaims(c)
	if err != nil {
		return models.RoleViewer
	}
	switch claims.Role {
	case models.RoleMachinist, models.RoleManager, models.RoleViewer:
		return claims.Role
	}
	return models.RoleViewer
}

// CreateUser handles POST /api/v1/users - creates a new user from Auth0 userinfo
func CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token")
		return
	}

	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found")
		return
	}

	userInfo, err := services.NewAuth0Service(config.GetConfig()).GetUserInfo(c.Request.Context(), accessToken)
	if err != nil {
		utils.Log.WithError(err).WithField("auth0_id", auth0ID).Error("Failed to fetch Auth0 userinfo")
		respondError(c, http.StatusInternalServerError, "AUTH0_ERROR", "Failed to fetch user information from Auth0")
		return
	}

	if userInfo.Email == "" {
		respondError(c, http.StatusBadRequest, "MISSING_EMAIL", "Email not provided by Auth0")
		return
	}
	if userInfo.Name == "" {
		respondError(c, http.StatusBadRequest, "MISSING_NAME", "Name not provided by Auth0")
		return
	}

	user := models.User{
		Auth0ID: auth0ID,
		Name:    userInfo.Name,
		Email:   userInfo.Email,
		Role:    roleFromClaims(c),
	}

	if err := config.GetDB().WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if isDuplicate(err) {
			respondError(c, http.StatusConflict, "USER_EXISTS", "A user with this Auth0 ID or email already exists")
			return
		}
		utils.Log.WithError(err).Error("Failed to create user")
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create user")
		return
	}

	respondData(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func GetMyProfile(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	respondData(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me - updates current user's profile
func UpdateMyProfile(c *gin.Context) {
	if _, err := middleware.GetUserID(c); err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return
	}

	var req UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user := currentUser(c)
	if user == nil {
		return
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}
	if len(updates) == 0 {
		respondData(c, http.StatusOK, user)
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	if err := db.Model(user).Updates(updates).Error; err != nil {
		if isDuplicate(err) {
			respondError(c, http.StatusConflict, "EMAIL_EXISTS", "A user with this email already exists")
			return
		}
		utils.Log.WithError(err).Error("Failed to update user profile")
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update user profile")
		return
	}

	if err := db.First(user, "id = ?", user.ID).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch updated profile")
		return
	}
	respondData(c, http.StatusOK, user)
}
