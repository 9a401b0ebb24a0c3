package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scmsdev/scms-app/models"
	"github.com/scmsdev/scms-app/router"
	"github.com/scmsdev/scms-app/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// TestEndToEndLifecycle walks the main flow over HTTP:
// 1. Register a developer and a technical lead, log both in
// 2. Developer creates a change request (Draft) and submits it
// 3. Lead approves it with a comment
// 4. Developer finds the approval in the notifications
func TestEndToEndLifecycle(t *testing.T) {
	db := setupTestDB(t)
	r := router.SetupRouter(db)

	devToken := registerAndLogin(t, r, "dev@example.com", models.RoleDeveloper)
	leadToken := registerAndLogin(t, r, "lead@example.com", models.RoleTechnicalLead)

	// Create
	w := request(t, r, "POST", "/change-requests", devToken, map[string]interface{}{
		"title":       "Rotate the staging TLS certificates",
		"description": "The staging wildcard certificate expires next month and must be replaced.",
		"category":    "Standard",
		"priority":    "High",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := responseData(t, w)
	crID := uint(created["id"].(float64))
	assert.Regexp(t, `^CR-\d{4}-\d{4}$`, created["cr_number"])
	assert.Equal(t, "Draft", created["status"])

	// Submit
	w = request(t, r, "PUT", fmt.Sprintf("/change-requests/%d/submit", crID), devToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Pending", responseData(t, w)["status"])

	// Approve
	w = request(t, r, "PUT", fmt.Sprintf("/change-requests/%d/approve", crID), leadToken,
		map[string]interface{}{"comment": "certificate plan reviewed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	approved := responseData(t, w)
	assert.Equal(t, "Approved", approved["status"])
	assert.Equal(t, "certificate plan reviewed", approved["reviewer_comment"])

	// The record is terminal now.
	w = request(t, r, "PUT", fmt.Sprintf("/change-requests/%d/submit", crID), devToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Timeline carries the full history in order.
	w = request(t, r, "GET", fmt.Sprintf("/change-requests/%d", crID), devToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	timeline := responseData(t, w)["timeline"].([]interface{})
	require.Len(t, timeline, 3)
	actions := make([]string, 0, len(timeline))
	for _, e := range timeline {
		actions = append(actions, e.(map[string]interface{})["action"].(string))
	}
	assert.Equal(t, []string{"Created", "Submitted", "Approved"}, actions)

	// Notifications for the creator.
	w = request(t, r, "GET", "/notifications", devToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	notifs := responseData(t, w)["notifications"].([]interface{})
	require.Len(t, notifs, 2)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:integration?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ChangeRequest{},
		&models.TimelineEntry{},
		&models.Counter{},
		&models.Notification{},
	))
	return db
}

func registerAndLogin(t *testing.T, r *gin.Engine, email, role string) string {
	t.Helper()
	w := request(t, r, "POST", "/register", "", map[string]interface{}{
		"email":    email,
		"password": "password123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = request(t, r, "POST", "/login", "", map[string]interface{}{
		"email":    email,
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	token, ok := responseData(t, w)["token"].(string)
	require.True(t, ok)
	return token
}

func request(t *testing.T, r *gin.Engine, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body := bytes.NewBuffer(nil)
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func responseData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}
