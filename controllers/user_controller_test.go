package controllers

import (
	"net/http"
	"testing"

	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/kendall-kelly/shopfloor-api/services"
	"github.com/stretchr/testify/assert"
)

func TestCreateUser(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		name           string
		auth0ID        string
		email          string
		userName       string
		role           string
		expectedStatus int
		expectedCode   string
		expectedRole   string
	}{
		{
			name:           "Create machinist",
			auth0ID:        "auth0|mach1",
			email:          "mach1@example.com",
			userName:       "Dana Reyes",
			role:           models.RoleMachinist,
			expectedStatus: http.StatusCreated,
			expectedRole:   models.RoleMachinist,
		},
		{
			name:           "Create manager",
			auth0ID:        "auth0|boss",
			email:          "boss@example.com",
			userName:       "Pat Lowe",
			role:           models.RoleManager,
			expectedStatus: http.StatusCreated,
			expectedRole:   models.RoleManager,
		},
		{
			name:           "Unknown role falls back to viewer",
			auth0ID:        "auth0|guest",
			email:          "guest@example.com",
			userName:       "Guest",
			role:           "owner",
			expectedStatus: http.StatusCreated,
			expectedRole:   models.RoleViewer,
		},
		{
			name:           "Fail with missing email",
			auth0ID:        "auth0|noemail",
			userName:       "No Email",
			role:           models.RoleMachinist,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "MISSING_EMAIL",
		},
		{
			name:           "Fail with missing name",
			auth0ID:        "auth0|noname",
			email:          "noname@example.com",
			role:           models.RoleMachinist,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "MISSING_NAME",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db.Exec("DELETE FROM users")

			token := "token-" + tt.auth0ID
			useMockAuth0(t, map[string]*services.Auth0UserInfo{
				token: {Sub: tt.auth0ID, Email: tt.email, Name: tt.userName},
			})

			router := setupTestRouter()
			router.POST("/users", mockAuthMiddleware(tt.auth0ID, tt.role, token), CreateUser)

			w, response := performRequest(t, router, http.MethodPost, "/users", nil)
			assert.Equal(t, tt.expectedStatus, w.Code, "Response body: %s", w.Body.String())

			if tt.expectedStatus == http.StatusCreated {
				data := dataOf(t, response)
				assert.Equal(t, tt.email, data["email"])
				assert.Equal(t, tt.userName, data["name"])
				assert.Equal(t, tt.auth0ID, data["auth0_id"])
				assert.Equal(t, tt.expectedRole, data["role"])
				return
			}
			assert.False(t, response["success"].(bool))
			assert.Equal(t, tt.expectedCode, errorOf(t, response)["code"])
		})
	}
}

func TestCreateUser_Duplicates(t *testing.T) {
	tests := []struct {
		name    string
		auth0ID string
		email   string
	}{
		{name: "same Auth0 ID", auth0ID: "auth0|dana", email: "other@example.com"},
		{name: "same email", auth0ID: "auth0|second", email: "dana@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			seedUser(t, db, "auth0|dana", "Dana Reyes", models.RoleMachinist)

			useMockAuth0(t, map[string]*services.Auth0UserInfo{
				"token-dup": {Sub: tt.auth0ID, Email: tt.email, Name: "Second User"},
			})

			router := setupTestRouter()
			router.POST("/users", mockAuthMiddleware(tt.auth0ID, models.RoleMachinist, "token-dup"), CreateUser)

			w, response := performRequest(t, router, http.MethodPost, "/users", nil)
			assert.Equal(t, http.StatusConflict, w.Code)
			assert.Equal(t, "USER_EXISTS", errorOf(t, response)["code"])
		})
	}
}

func TestCreateUser_Auth0Unavailable(t *testing.T) {
	setupTestDB(t)
	useMockAuth0(t, map[string]*services.Auth0UserInfo{})

	router := setupTestRouter()
	router.POST("/users", mockAuthMiddleware("auth0|dana", models.RoleMachinist, "unknown-token"), CreateUser)

	w, response := performRequest(t, router, http.MethodPost, "/users", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "AUTH0_ERROR", errorOf(t, response)["code"])
}

func TestGetMyProfile(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "auth0|dana", "Dana Reyes", models.RoleMachinist)

	t.Run("found", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/users/me", mockAuthMiddleware("auth0|dana", models.RoleMachinist, ""), GetMyProfile)

		w, response := performRequest(t, router, http.MethodGet, "/users/me", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		data := dataOf(t, response)
		assert.Equal(t, "dana@example.com", data["email"])
		assert.Equal(t, models.RoleMachinist, data["role"])
	})

	t.Run("not found", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/users/me", mockAuthMiddleware("auth0|nobody", models.RoleViewer, ""), GetMyProfile)

		w, response := performRequest(t, router, http.MethodGet, "/users/me", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "USER_NOT_FOUND", errorOf(t, response)["code"])
	})

	t.Run("no subject", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/users/me", GetMyProfile)

		w, response := performRequest(t, router, http.MethodGet, "/users/me", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "UNAUTHORIZED", errorOf(t, response)["code"])
	})
}

func TestUpdateMyProfile(t *testing.T) {
	tests := []struct {
		name           string
		auth0ID        string
		payload        UpdateUserRequest
		expectedStatus int
		expectedCode   string
		expectedName   string
		expectedEmail  string
	}{
		{
			name:           "Update both fields",
			auth0ID:        "auth0|dana",
			payload:        UpdateUserRequest{Name: "Dana R.", Email: "dana.r@example.com"},
			expectedStatus: http.StatusOK,
			expectedName:   "Dana R.",
			expectedEmail:  "dana.r@example.com",
		},
		{
			name:           "Partial update keeps email",
			auth0ID:        "auth0|dana",
			payload:        UpdateUserRequest{Name: "Dana R."},
			expectedStatus: http.StatusOK,
			expectedName:   "Dana R.",
			expectedEmail:  "dana@example.com",
		},
		{
			name:           "Empty update returns the profile",
			auth0ID:        "auth0|dana",
			expectedStatus: http.StatusOK,
			expectedName:   "Dana Reyes",
			expectedEmail:  "dana@example.com",
		},
		{
			name:           "Invalid email",
			auth0ID:        "auth0|dana",
			payload:        UpdateUserRequest{Email: "not-an-email"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "Email taken by another user",
			auth0ID:        "auth0|dana",
			payload:        UpdateUserRequest{Email: "pat@example.com"},
			expectedStatus: http.StatusConflict,
			expectedCode:   "EMAIL_EXISTS",
		},
		{
			name:           "No profile",
			auth0ID:        "auth0|nobody",
			payload:        UpdateUserRequest{Name: "Ghost"},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "USER_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			seedUser(t, db, "auth0|dana", "Dana Reyes", models.RoleMachinist)
			seedUser(t, db, "auth0|pat", "Pat Lowe", models.RoleManager)

			router := setupTestRouter()
			router.PUT("/users/me", mockAuthMiddleware(tt.auth0ID, models.RoleMachinist, ""), UpdateMyProfile)

			w, response := performRequest(t, router, http.MethodPut, "/users/me", tt.payload)
			assert.Equal(t, tt.expectedStatus, w.Code, "Response body: %s", w.Body.String())

			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorOf(t, response)["code"])
				return
			}
			data := dataOf(t, response)
			assert.Equal(t, tt.expectedName, data["name"])
			assert.Equal(t, tt.expectedEmail, data["email"])
		})
	}
}
