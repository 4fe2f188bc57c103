package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/shopfloor-api/config"
	"github.com/kendall-kelly/shopfloor-api/middleware"
	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/kendall-kelly/shopfloor-api/services"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db), "failed to migrate test database")

	config.SetDB(db)
	services.SetEventPublisher(nil)
	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// setupMockAuth0Server creates a mock HTTP server that simulates Auth0's /userinfo endpoint
func setupMockAuth0Server(userInfoMap map[string]*services.Auth0UserInfo) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if len(authHeader) < 7 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		userInfo, exists := userInfoMap[authHeader[7:]]
		if !exists {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userInfo)
	}))
}

// useMockAuth0 points the Auth0 client at a mock /userinfo server for the test
func useMockAuth0(t *testing.T, userInfoMap map[string]*services.Auth0UserInfo) {
	t.Helper()
	server := setupMockAuth0Server(userInfoMap)
	t.Cleanup(server.Close)

	original := config.GetConfig()
	config.SetConfig(&config.Config{Auth0Domain: server.URL})
	t.Cleanup(func() { config.SetConfig(original) })
}

// mockAuthMiddleware sets up the context exactly as EnsureValidToken does
func mockAuthMiddleware(auth0ID, role, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Set("access_token", accessToken)
		c.Set("validated_claims", &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{Subject: auth0ID},
			CustomClaims:     &middleware.CustomClaims{Role: role},
		})
		c.Next()
	}
}

// apiRouter mounts the full API behind a fake token for auth0ID
func apiRouter(auth0ID, role string) *gin.Engine {
	router := setupTestRouter()
	RegisterRoutes(router.Group("/api/v1"), mockAuthMiddleware(auth0ID, role, "token-"+auth0ID))
	return router
}

func seedUser(t *testing.T, db *gorm.DB, auth0ID, name, role string) models.User {
	t.Helper()
	user := models.User{Auth0ID: auth0ID, Name: name, Email: auth0ID[len("auth0|"):] + "@example.com", Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedDepartment(t *testing.T, db *gorm.DB, name string, sortOrder int) models.Department {
	t.Helper()
	dept := models.Department{Name: name, SortOrder: sortOrder, IsActive: true}
	require.NoError(t, db.Create(&dept).Error)
	return dept
}

// performRequest sends body as JSON (when non-nil) and decodes the envelope
func performRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "response body: %s", w.Body.String())
	return w, response
}

func dataOf(t *testing.T, response map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", response)
	return data
}

func errorOf(t *testing.T, response map[string]interface{}) map[string]interface{} {
	t.Helper()
	errData, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "response has no error object: %v", response)
	return errData
}
