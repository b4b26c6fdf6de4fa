package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/portside-labs/portside/internal/domain"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) CreateOperator(ctx context.Context, name, email string) (*domain.Operator, error) {
	args := m.Called(ctx, name, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operator), args.Error(1)
}

func (m *MockAuthService) CreateAPIKey(ctx context.Context, operatorID, name string) (string, error) {
	args := m.Called(ctx, operatorID, name)
	return args.String(0), args.Error(1)
}

func TestAuthHandler_CreateOperator_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	expectedOp := &domain.Operator{
		ID:        "op-123",
		Name:      "Jordan",
		Email:     "jordan@example.com",
		CreatedAt: time.Now().UTC(),
	}
	mockSvc.On("CreateOperator", mock.Anything, "Jordan", "jordan@example.com").Return(expectedOp, nil)

	body := `{"name":"Jordan","email":"jordan@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/operators", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.CreateOperator(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "op-123", data["id"])
	assert.Equal(t, "Jordan", data["name"])
	mockSvc.AssertExpectations(t)
}

func TestAuthHandler_CreateOperator_MissingName(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	body := `{}`
	req := httptest.NewRequest(http.MethodPost, "/operators", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.CreateOperator(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "name is required")
}

func TestAuthHandler_CreateOperator_InvalidJSON(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	body := `{invalid`
	req := httptest.NewRequest(http.MethodPost, "/operators", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.CreateOperator(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestAuthHandler_CreateAPIKey_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("CreateAPIKey", mock.Anything, "op-123", "dashboard-key").Return("pts_abc123secret", nil)

	body := `{"operator_id":"op-123","name":"dashboard-key"}`
	req := httptest.NewRequest(http.MethodPost, "/apikeys", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.CreateAPIKey(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "pts_abc123secret", data["token"])
	assert.Equal(t, "dashboard-key", data["name"])
	mockSvc.AssertExpectations(t)
}

func TestAuthHandler_CreateAPIKey_MissingOperatorID(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	body := `{"name":"dashboard-key"}`
	req := httptest.NewRequest(http.MethodPost, "/apikeys", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.CreateAPIKey(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "operator_id is required")
}

func TestAuthHandler_CreateAPIKey_MissingName(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	body := `{"operator_id":"op-123"}`
	req := httptest.NewRequest(http.MethodPost, "/apikeys", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.CreateAPIKey(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "name is required")
}

func TestAuthHandler_CreateAPIKey_OperatorNotFound(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("CreateAPIKey", mock.Anything, "op-999", "dashboard-key").Return("", domain.ErrOperatorNotFound)

	body := `{"operator_id":"op-999","name":"dashboard-key"}`
	req := httptest.NewRequest(http.MethodPost, "/apikeys", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.CreateAPIKey(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}
