package Controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
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

func setupApp(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ChangeRequest{},
		&models.TimelineEntry{},
		&models.Counter{},
		&models.Notification{},
	))
	return db, router.SetupRouter(db)
}

// seedAccount creates a user directly and mints a token for it, bypassing
// the register endpoint.
func seedAccount(t *testing.T, db *gorm.DB, email, role string) (models.User, string) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{Email: email, Password: string(hashed), Role: role}
	require.NoError(t, db.Create(&user).Error)

	token, err := utils.GenerateToken(user.ID, user.Role)
	require.NoError(t, err)
	return user, token
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
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

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	data, ok := decodeBody(t, w)["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func validCRPayload() map[string]interface{} {
	return map[string]interface{}{
		"title":       "Upgrade the payment gateway",
		"description": "Move the gateway integration to the new provider API.",
		"category":    "Normal",
	}
}

func createCR(t *testing.T, r *gin.Engine, token string) uint {
	t.Helper()
	w := doJSON(t, r, "POST", "/change-requests", token, validCRPayload())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, ok := dataOf(t, w)["id"].(float64)
	require.True(t, ok)
	return uint(id)
}

func TestHappyPathCreateSubmitApprove(t *testing.T) {
	db, r := setupApp(t)
	_, devToken := seedAccount(t, db, "dev@example.com", models.RoleDeveloper)
	_, leadToken := seedAccount(t, db, "lead@example.com", models.RoleTechnicalLead)

	w := doJSON(t, r, "POST", "/change-requests", devToken, validCRPayload())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := dataOf(t, w)
	assert.Regexp(t, `^CR-\d{4}-\d{4}$`, data["cr_number"])
	assert.Equal(t, "Draft", data["status"])
	id := uint(data["id"].(float64))

	w = doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/submit", id), devToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Pending", dataOf(t, w)["status"])

	w = doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/approve", id), leadToken,
		map[string]interface{}{"comment": "go ahead"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data = dataOf(t, w)
	assert.Equal(t, "Approved", data["status"])
	assert.Equal(t, "go ahead", data["reviewer_comment"])
	assert.NotNil(t, data["reviewed_at"])
}

func TestRejectNeedsReason(t *testing.T) {
	db, r := setupApp(t)
	_, devToken := seedAccount(t, db, "dev@example.com", models.RoleDeveloper)
	_, mgrToken := seedAccount(t, db, "mgr@example.com", models.RoleChangeManager)

	id := createCR(t, r, devToken)
	w := doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/submit", id), devToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// No reason -> 400, record untouched.
	w = doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/reject", id), mgrToken,
		map[string]interface{}{"reason": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = doJSON(t, r, "GET", fmt.Sprintf("/change-requests/%d", id), mgrToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pending", dataOf(t, w)["status"])

	w = doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/reject", id), mgrToken,
		map[string]interface{}{"reason": "missing rollback plan"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataOf(t, w)
	assert.Equal(t, "Rejected", data["status"])
	assert.Equal(t, "missing rollback plan", data["rejection_reason"])
}

func TestRoleGating(t *testing.T) {
	db, r := setupApp(t)
	_, devToken := seedAccount(t, db, "dev@example.com", models.RoleDeveloper)
	_, leadToken := seedAccount(t, db, "lead@example.com", models.RoleTechnicalLead)
	_, auditToken := seedAccount(t, db, "audit@example.com", models.RoleAuditor)

	// Approver-class roles cannot author records.
	w := doJSON(t, r, "POST", "/change-requests", leadToken, validCRPayload())
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	w = doJSON(t, r, "POST", "/change-requests", auditToken, validCRPayload())
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// Developers cannot decide.
	id := createCR(t, r, devToken)
	w = doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/submit", id), devToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/approve", id), devToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
}

func TestWrongStateTransitions(t *testing.T) {
	db, r := setupApp(t)
	_, devToken := seedAccount(t, db, "dev@example.com", models.RoleDeveloper)
	_, leadToken := seedAccount(t, db, "lead@example.com", models.RoleTechnicalLead)

	id := createCR(t, r, devToken)

	// Approving a Draft is a transition error, not a permission one.
	w := doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/approve", id), leadToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/submit", id), devToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Editing or deleting after submission is forbidden.
	w = doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d", id), devToken,
		map[string]interface{}{"title": "A different but still valid title"})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	w = doJSON(t, r, "DELETE", fmt.Sprintf("/change-requests/%d", id), devToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// Submitting twice is a 400.
	w = doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/submit", id), devToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, decodeBody(t, w)["message"], "already been submitted")
}

func TestDraftVisibility(t *testing.T) {
	db, r := setupApp(t)
	_, devToken := seedAccount(t, db, "dev@example.com", models.RoleDeveloper)
	_, otherToken := seedAccount(t, db, "other@example.com", models.RoleDeveloper)
	_, leadToken := seedAccount(t, db, "lead@example.com", models.RoleTechnicalLead)
	_, adminToken := seedAccount(t, db, "admin@example.com", models.RoleSystemAdministrator)

	id := createCR(t, r, devToken)

	w := doJSON(t, r, "GET", fmt.Sprintf("/change-requests/%d", id), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	w = doJSON(t, r, "GET", fmt.Sprintf("/change-requests/%d", id), leadToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	w = doJSON(t, r, "GET", fmt.Sprintf("/change-requests/%d", id), adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// After submission the approver sees it.
	w = doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/submit", id), devToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, "GET", fmt.Sprintf("/change-requests/%d", id), leadToken, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestListIsScopedPerRole(t *testing.T) {
	db, r := setupApp(t)
	_, devToken := seedAccount(t, db, "dev@example.com", models.RoleDeveloper)
	_, otherToken := seedAccount(t, db, "other@example.com", models.RoleDeveloper)
	_, leadToken := seedAccount(t, db, "lead@example.com", models.RoleChangeManager)

	createCR(t, r, devToken)
	otherID := createCR(t, r, otherToken)
	w := doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/submit", otherID), otherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	listLen := func(token string) int {
		w := doJSON(t, r, "GET", "/change-requests", token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		items, ok := dataOf(t, w)["change_requests"].([]interface{})
		require.True(t, ok)
		return len(items)
	}

	assert.Equal(t, 1, listLen(devToken), "developer sees only own records")
	assert.Equal(t, 1, listLen(leadToken), "approver does not see drafts")
}

func TestValidationFailureLists(t *testing.T) {
	db, r := setupApp(t)
	_, devToken := seedAccount(t, db, "dev@example.com", models.RoleDeveloper)

	w := doJSON(t, r, "POST", "/change-requests", devToken, map[string]interface{}{
		"title":       "bad",
		"description": "short",
		"category":    "Nope",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	data := dataOf(t, w)
	assert.Equal(t, "VALIDATION", data["kind"])
	fields, ok := data["fields"].([]interface{})
	require.True(t, ok)
	assert.Len(t, fields, 3)
}

func TestUnauthenticatedAndUnknownRecords(t *testing.T) {
	db, r := setupApp(t)
	_, devToken := seedAccount(t, db, "dev@example.com", models.RoleDeveloper)

	w := doJSON(t, r, "GET", "/change-requests", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, "GET", "/change-requests/9999", devToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// A malformed id also reads as not found.
	w = doJSON(t, r, "GET", "/change-requests/not-a-number", devToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteDraft(t *testing.T) {
	db, r := setupApp(t)
	_, devToken := seedAccount(t, db, "dev@example.com", models.RoleDeveloper)

	id := createCR(t, r, devToken)
	w := doJSON(t, r, "DELETE", fmt.Sprintf("/change-requests/%d", id), devToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, "GET", fmt.Sprintf("/change-requests/%d", id), devToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLegacyRoleTokensStillWork(t *testing.T) {
	db, r := setupApp(t)
	_, devToken := seedAccount(t, db, "dev@example.com", models.RoleDeveloper)
	// Pre-cleanup accounts carry the old names in their tokens.
	_, reviewerToken := seedAccount(t, db, "rev@example.com", models.RoleLegacyReviewer)

	id := createCR(t, r, devToken)
	w := doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/submit", id), devToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/approve", id), reviewerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Approved", dataOf(t, w)["status"])
}

func TestSubmitNotifiesCreator(t *testing.T) {
	db, r := setupApp(t)
	dev, devToken := seedAccount(t, db, "dev@example.com", models.RoleDeveloper)

	id := createCR(t, r, devToken)
	w := doJSON(t, r, "PUT", fmt.Sprintf("/change-requests/%d/submit", id), devToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "GET", "/notifications", devToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	notifs, ok := dataOf(t, w)["notifications"].([]interface{})
	require.True(t, ok)
	require.Len(t, notifs, 1)
	first := notifs[0].(map[string]interface{})
	assert.Equal(t, float64(dev.ID), first["user_id"])
	assert.Contains(t, first["message"], "submitted for review")
}
