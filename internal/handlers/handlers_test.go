package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"medbuddy/internal/auth"
	"medbuddy/internal/database"
	"medbuddy/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func setupHandlerTest(t *testing.T) *gorm.DB {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	database.DB = db
	Configure(nil, nil, nil, nil)
	return db
}

// authAs substitutes the session middleware with a fixed user identity
func authAs(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(auth.ContextUserIDKey, userID)
	}
}

func seedUser(t *testing.T, db *gorm.DB, email string) models.Profile {
	t.Helper()
	profile := models.Profile{
		Email:      email,
		HashedPass: "x",
		FullName:   "Test User",
		Role:       models.RolePatient,
	}
	require.NoError(t, db.Create(&profile).Error)
	return profile
}

func seedMedication(t *testing.T, db *gorm.DB, userID, times string) models.Medication {
	t.Helper()
	medication := models.Medication{
		UserID: userID,
		Name:   "Lisinopril",
		Dosage: "10mg",
		Time:   times,
	}
	require.NoError(t, db.Create(&medication).Error)
	return medication
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMarkMedicationTakenIsIdempotent(t *testing.T) {
	db := setupHandlerTest(t)
	user := seedUser(t, db, "taken@example.com")
	medication := seedMedication(t, db, user.ID, "08:00")

	r := gin.New()
	r.POST("/api/medications/:id/taken", authAs(user.ID), MarkMedicationTaken)

	body := gin.H{"scheduled_time": "08:00", "date": "2025-03-10"}
	w := doJSON(t, r, http.MethodPost, "/api/medications/"+medication.ID+"/taken", body)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPost, "/api/medications/"+medication.ID+"/taken", body)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.TrackingRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var record models.TrackingRecord
	require.NoError(t, db.First(&record).Error)
	assert.True(t, record.Taken)
	assert.NotNil(t, record.TakenAt)
}

func TestMarkMedicationTakenRejectsBadInput(t *testing.T) {
	db := setupHandlerTest(t)
	user := seedUser(t, db, "badinput@example.com")
	medication := seedMedication(t, db, user.ID, "08:00")

	r := gin.New()
	r.POST("/api/medications/:id/taken", authAs(user.ID), MarkMedicationTaken)

	w := doJSON(t, r, http.MethodPost, "/api/medications/"+medication.ID+"/taken",
		gin.H{"scheduled_time": "25:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/medications/"+medication.ID+"/taken",
		gin.H{"scheduled_time": "08:00", "date": "03/10/2025"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkMedicationTakenOwnership(t *testing.T) {
	db := setupHandlerTest(t)
	owner := seedUser(t, db, "owner@example.com")
	intruder := seedUser(t, db, "intruder@example.com")
	medication := seedMedication(t, db, owner.ID, "08:00")

	r := gin.New()
	r.POST("/api/medications/:id/taken", authAs(intruder.ID), MarkMedicationTaken)

	body := gin.H{"scheduled_time": "08:00"}
	w := doJSON(t, r, http.MethodPost, "/api/medications/"+medication.ID+"/taken", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/medications/missing-id/taken", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateMedicationValidatesSchedule(t *testing.T) {
	db := setupHandlerTest(t)
	user := seedUser(t, db, "create@example.com")

	r := gin.New()
	r.POST("/api/medications", authAs(user.ID), CreateMedication)

	w := doJSON(t, r, http.MethodPost, "/api/medications",
		gin.H{"name": "Aspirin", "dosage": "100mg", "time": "25:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/medications",
		gin.H{"name": "Aspirin", "dosage": "100mg", "time": "08:00, 20:00"})
	require.Equal(t, http.StatusCreated, w.Code)

	var medication models.Medication
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &medication))
	assert.Equal(t, user.ID, medication.UserID)
	assert.Equal(t, "08:00, 20:00", medication.Time)
}

func TestUpdateMedicationPartial(t *testing.T) {
	db := setupHandlerTest(t)
	user := seedUser(t, db, "update@example.com")
	medication := seedMedication(t, db, user.ID, "08:00")

	r := gin.New()
	r.PUT("/api/medications/:id", authAs(user.ID), UpdateMedication)

	w := doJSON(t, r, http.MethodPut, "/api/medications/"+medication.ID,
		gin.H{"dosage": "20mg"})
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Medication
	require.NoError(t, db.First(&updated, "id = ?", medication.ID).Error)
	assert.Equal(t, "20mg", updated.Dosage)
	assert.Equal(t, "Lisinopril", updated.Name)
	assert.Equal(t, "08:00", updated.Time)
}

func TestAlertReadFlow(t *testing.T) {
	db := setupHandlerTest(t)
	user := seedUser(t, db, "alerts@example.com")
	other := seedUser(t, db, "other@example.com")

	alert := models.Alert{UserID: user.ID, Message: "test", Severity: models.SeverityLow}
	require.NoError(t, db.Create(&alert).Error)

	r := gin.New()
	r.GET("/api/alerts", authAs(user.ID), GetAlerts)
	r.PUT("/api/alerts/:id/read", authAs(user.ID), MarkAlertRead)
	r.PUT("/api/alerts/other/:id/read", authAs(other.ID), MarkAlertRead)

	w := doJSON(t, r, http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var alerts []models.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)
	assert.False(t, alerts[0].Read)

	w = doJSON(t, r, http.MethodPut, "/api/alerts/other/"+alert.ID+"/read", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPut, "/api/alerts/"+alert.ID+"/read", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stored models.Alert
	require.NoError(t, db.First(&stored, "id = ?", alert.ID).Error)
	assert.True(t, stored.Read)
}

func TestCheckMissedMedicationsEmpty(t *testing.T) {
	db := setupHandlerTest(t)
	user := seedUser(t, db, "nomeds@example.com")

	r := gin.New()
	r.GET("/api/tracking/missed", authAs(user.ID), CheckMissedMedications)

	w := doJSON(t, r, http.MethodGet, "/api/tracking/missed", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Missed []string `json:"missed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Missed)
}

func TestAccountSignupAndLogin(t *testing.T) {
	db := setupHandlerTest(t)

	r := gin.New()
	r.POST("/api/account", CreateAccount)
	r.POST("/api/login", Login)
	r.GET("/api/me", auth.AuthMiddleware(), GetCurrentUser)

	signup := gin.H{
		"email":     "New@Example.com",
		"password":  "hunter2abc",
		"full_name": "New User",
		"role":      "patient",
	}

	w := doJSON(t, r, http.MethodPost, "/api/account", signup)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Result().Cookies())

	var profile models.Profile
	require.NoError(t, db.First(&profile).Error)
	assert.Equal(t, "new@example.com", profile.Email)
	assert.NotEqual(t, "hunter2abc", profile.HashedPass)

	// Same email again is a conflict
	w = doJSON(t, r, http.MethodPost, "/api/account", signup)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Weak password is rejected up front
	w = doJSON(t, r, http.MethodPost, "/api/account", gin.H{
		"email": "weak@example.com", "password": "lettersonly", "full_name": "Weak", "role": "patient",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/login",
		gin.H{"email": "new@example.com", "password": "wrong-pass1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/login",
		gin.H{"email": "new@example.com", "password": "hunter2abc"})
	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var me models.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, profile.ID, me.ID)

	// No cookie means no access
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
