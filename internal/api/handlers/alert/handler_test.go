package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/aliskhannn/market-alerts/internal/model"
	alertrepo "github.com/aliskhannn/market-alerts/internal/repository/alert"
)

type fakeAlertStore struct {
	created       []model.Alert
	alerts        []model.Alert
	deactivateErr error
}

func (f *fakeAlertStore) CreateAlert(_ context.Context, a model.Alert) (int64, error) {
	f.created = append(f.created, a)
	return int64(len(f.created)), nil
}

func (f *fakeAlertStore) GetUserAlerts(_ context.Context, _ string) ([]model.Alert, error) {
	return f.alerts, nil
}

func (f *fakeAlertStore) Deactivate(_ context.Context, _ int64, _ string) error {
	return f.deactivateErr
}

func setupHandler() (*Handler, *fakeAlertStore) {
	store := &fakeAlertStore{}
	return NewHandler(store, validator.New()), store
}

func TestHandler_Create_Success(t *testing.T) {
	handler, store := setupHandler()

	reqBody := CreateRequest{
		UserEmail: "user@example.com",
		Name:      "vintage cameras",
		Terms:     []string{"leica", "m6"},
		Source:    "ebay",
	}

	bodyBytes, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/alerts", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, w.Result().StatusCode)
	assert.Len(t, store.created, 1)
	assert.Equal(t, "vintage cameras", store.created[0].Name)
}

func TestHandler_Create_RejectsUnknownSource(t *testing.T) {
	handler, store := setupHandler()

	reqBody := CreateRequest{
		UserEmail: "user@example.com",
		Name:      "anything",
		Terms:     []string{"x"},
		Source:    "craigslist",
	}

	bodyBytes, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/alerts", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	assert.Empty(t, store.created)
}

func TestHandler_GetAll_Success(t *testing.T) {
	handler, store := setupHandler()
	store.alerts = []model.Alert{{ID: 1, Name: "cameras"}}

	req := httptest.NewRequest(http.MethodGet, "/api/alerts?user_email=user@example.com", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.GetAll(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
}

func TestHandler_Deactivate_NotFound(t *testing.T) {
	handler, store := setupHandler()
	store.deactivateErr = alertrepo.ErrAlertNotFound

	req := httptest.NewRequest(http.MethodDelete, "/api/alerts/9?user_email=user@example.com", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "9"}}

	handler.Deactivate(c)

	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}
