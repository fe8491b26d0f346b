package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"watchlist_backend/config"
	"watchlist_backend/middleware"
	"watchlist_backend/models"
	"watchlist_backend/services"
)

const testJWTSecret = "routes-test-secret"

// stubProvider answers quote lookups from a fixed table
type stubProvider struct {
	overviews map[string]*services.Overview
}

func (p *stubProvider) GetOverview(ctx context.Context, symbol string) (*services.Overview, error) {
	if o, ok := p.overviews[symbol]; ok {
		return o, nil
	}
	return nil, fmt.Errorf("%w: no quote for %s", services.ErrUpstreamUnavailable, symbol)
}

func setupTestRouter(t *testing.T) (*gin.Engine, *stubProvider) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.AppConfig = &config.Config{JWTSecret: testJWTSecret}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.MigrateWatchlistModels(db))
	require.NoError(t, models.MigrateAlertModels(db))

	provider := &stubProvider{overviews: make(map[string]*services.Overview)}
	watchlistStore := services.NewGormWatchlistStore(db)
	alertStore := services.NewGormAlertStore(db)
	alertService := services.NewAlertService(alertStore, provider)
	aggregation := services.NewAggregationService(watchlistStore, provider)
	realtime := services.NewRealtimeService(aggregation)

	router := gin.New()
	SetupRoutes(router, watchlistStore, alertService, aggregation, realtime)
	return router, provider
}

func sessionToken(t *testing.T, userID string) string {
	t.Helper()
	claims := middleware.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: userID + "@example.com",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func doRequest(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWatchlistRoutes_AnonymousReadsDegrade(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/watchlist", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["data"])

	w = doRequest(router, http.MethodGet, "/api/v1/watchlist/AAPL/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["in_watchlist"])
}

func TestWatchlistRoutes_MutationsRequireSession(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/watchlist", "", gin.H{
		"symbol": "AAPL", "company": "Apple Inc",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authenticated", decodeBody(t, w)["message"])

	w = doRequest(router, http.MethodDelete, "/api/v1/watchlist/AAPL", "invalid-token", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWatchlistRoutes_AddListRemove(t *testing.T) {
	router, provider := setupTestRouter(t)
	token := sessionToken(t, "user-1")

	price := 123.4
	change := -2.345
	provider.overviews["AAPL"] = &services.Overview{
		CurrentPrice:  &price,
		ChangePercent: &change,
	}

	w := doRequest(router, http.MethodPost, "/api/v1/watchlist", token, gin.H{
		"symbol": "aapl", "company": "Apple Inc",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Added to watchlist", decodeBody(t, w)["message"])

	// Duplicate add, case-insensitively
	w = doRequest(router, http.MethodPost, "/api/v1/watchlist", token, gin.H{
		"symbol": "AAPL", "company": "Apple Inc",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Already in watchlist", decodeBody(t, w)["message"])

	w = doRequest(router, http.MethodGet, "/api/v1/watchlist", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].([]interface{})
	require.Len(t, data, 1)
	entry := data[0].(map[string]interface{})
	assert.Equal(t, "AAPL", entry["symbol"])
	assert.Equal(t, "$123.40", entry["price_formatted"])
	assert.Equal(t, "-2.35%", entry["change_formatted"])

	w = doRequest(router, http.MethodGet, "/api/v1/watchlist/aapl/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["in_watchlist"])

	w = doRequest(router, http.MethodGet, "/api/v1/watchlist/symbols", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"AAPL"}, decodeBody(t, w)["data"])

	w = doRequest(router, http.MethodDelete, "/api/v1/watchlist/AAPL", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Removed from watchlist", decodeBody(t, w)["message"])

	w = doRequest(router, http.MethodDelete, "/api/v1/watchlist/AAPL", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Stock not in watchlist", decodeBody(t, w)["message"])
}

func TestWatchlistRoutes_MissingFieldsRejected(t *testing.T) {
	router, _ := setupTestRouter(t)
	token := sessionToken(t, "user-1")

	w := doRequest(router, http.MethodPost, "/api/v1/watchlist", token, gin.H{"symbol": "AAPL"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Symbol and company are required", decodeBody(t, w)["message"])
}

func TestAlertRoutes_CreateUpdateDelete(t *testing.T) {
	router, _ := setupTestRouter(t)
	token := sessionToken(t, "user-1")

	payload := gin.H{
		"symbol":     "AAPL",
		"company":    "Apple Inc",
		"alert_name": "Breakout",
		"alert_type": "upper",
		"threshold":  "150",
	}

	w := doRequest(router, http.MethodPost, "/api/v1/alerts", token, payload)
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Alert created", body["message"])
	alert := body["alert"].(map[string]interface{})
	alertID := alert["id"].(string)
	require.NotEmpty(t, alertID)
	assert.Equal(t, 150.0, alert["threshold"])

	// Same configuration again
	w = doRequest(router, http.MethodPost, "/api/v1/alerts", token, payload)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "An alert with this configuration already exists.", decodeBody(t, w)["message"])

	// Invalid threshold
	bad := gin.H{
		"symbol": "AAPL", "company": "Apple Inc", "alert_name": "Bad",
		"alert_type": "upper", "threshold": "-5",
	}
	w = doRequest(router, http.MethodPost, "/api/v1/alerts", token, bad)
	require.Equal(t, http.StatusBadRequest, w.Code)

	update := gin.H{
		"symbol":     "AAPL",
		"company":    "Apple Inc",
		"alert_name": "Breakout",
		"alert_type": "upper",
		"threshold":  "175.5",
	}
	w = doRequest(router, http.MethodPut, "/api/v1/alerts/"+alertID, token, update)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, "Alert updated", body["message"])
	assert.Equal(t, 175.5, body["alert"].(map[string]interface{})["threshold"])

	// Another user cannot touch it
	otherToken := sessionToken(t, "user-2")
	w = doRequest(router, http.MethodDelete, "/api/v1/alerts/"+alertID, otherToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/v1/alerts/"+alertID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alert deleted", decodeBody(t, w)["message"])

	w = doRequest(router, http.MethodDelete, "/api/v1/alerts/"+alertID, token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Alert not found", decodeBody(t, w)["message"])
}

func TestAlertRoutes_AnonymousListDegrades(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/alerts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["data"])
}
