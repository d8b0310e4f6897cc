package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goplan-travel/goplan-backend/internal/auth"
	userHandler "github.com/goplan-travel/goplan-backend/internal/handler/http"
	"github.com/goplan-travel/goplan-backend/internal/user"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, u *user.User, password string) (*user.User, error) {
	args := m.Called(ctx, u, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, login, password string) (*user.User, error) {
	args := m.Called(ctx, login, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]user.User, int, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]user.User), args.Int(1), args.Error(2)
}

func (m *MockUserService) UpdateUser(ctx context.Context, id uuid.UUID, update user.Update) (*user.User, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestRouter(service user.Service) (chi.Router, *auth.TokenManager) {
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	handler := userHandler.NewUserHandler(service, tokens)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, tokens
}

func bearerFor(t *testing.T, tokens *auth.TokenManager, id uuid.UUID) string {
	t.Helper()
	token, err := tokens.Issue(id)
	require.NoError(t, err)
	return "Bearer " + token
}

func sampleUser() *user.User {
	return &user.User{
		ID:           uuid.Must(uuid.NewV4()),
		Email:        "sample@example.com",
		Username:     "sample",
		FirstName:    "Sample",
		LastName:     "User",
		PasswordHash: "hashed_password_from_service",
		CreatedAt:    time.Now().Truncate(time.Second),
		UpdatedAt:    time.Now().Truncate(time.Second),
	}
}

func TestUserHandler_Register_Success(t *testing.T) {
	mockService := new(MockUserService)
	router, tokens := newTestRouter(mockService)

	responseUser := sampleUser()

	mockService.On("Register", mock.Anything, mock.MatchedBy(func(u *user.User) bool {
		return u.Email == "sample@example.com" &&
			u.Username == "sample" &&
			u.FirstName == "Sample" &&
			u.LastName == "User"
	}), "password123").Return(responseUser, nil).Once()

	body := `{"email":"sample@example.com","password":"password123","username":"sample","first_name":"Sample","last_name":"User"}`
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var response userHandler.AuthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))

	assert.True(t, response.Success)
	assert.Equal(t, responseUser.ID, response.User.ID)
	assert.Equal(t, responseUser.Email, response.User.Email)
	assert.Equal(t, responseUser.Username, response.User.Username)

	// The issued token decodes back to the new user's id.
	tokenUserID, err := tokens.Parse(response.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, responseUser.ID, tokenUserID)

	mockService.AssertExpectations(t)
}

func TestUserHandler_Register_MissingFields(t *testing.T) {
	mockService := new(MockUserService)
	router, _ := newTestRouter(mockService)

	// No password supplied.
	body := `{"email":"sample@example.com","username":"sample","first_name":"Sample","last_name":"User"}`
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var response userHandler.ValidationErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))

	assert.Contains(t, response.Error, "password")
	assert.NotContains(t, response.Error, "email")
	assert.Contains(t, response.Details, "password")

	mockService.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserHandler_Register_InvalidJSON(t *testing.T) {
	mockService := new(MockUserService)
	router, _ := newTestRouter(mockService)

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader("this is not json"))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	mockService.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserHandler_Register_Duplicate(t *testing.T) {
	mockService := new(MockUserService)
	router, _ := newTestRouter(mockService)

	mockService.On("Register", mock.Anything, mock.AnythingOfType("*user.User"), "password123").
		Return(nil, user.ErrDuplicate).
		Once()

	body := `{"email":"sample@example.com","password":"password123","username":"sample","first_name":"Sample","last_name":"User"}`
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
	mockService.AssertExpectations(t)
}

func TestUserHandler_Login_Success(t *testing.T) {
	mockService := new(MockUserService)
	router, tokens := newTestRouter(mockService)

	responseUser := sampleUser()

	mockService.On("Authenticate", mock.Anything, "sample@example.com", "password123").
		Return(responseUser, nil).
		Once()

	body := `{"email":"sample@example.com","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var response userHandler.AuthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.True(t, response.Success)

	tokenUserID, err := tokens.Parse(response.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, responseUser.ID, tokenUserID)
	mockService.AssertExpectations(t)
}

func TestUserHandler_Login_ByUsername(t *testing.T) {
	mockService := new(MockUserService)
	router, _ := newTestRouter(mockService)

	responseUser := sampleUser()

	mockService.On("Authenticate", mock.Anything, "sample", "password123").
		Return(responseUser, nil).
		Once()

	body := `{"username":"sample","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	mockService.AssertExpectations(t)
}

func TestUserHandler_Login_InvalidCredentials(t *testing.T) {
	mockService := new(MockUserService)
	router, _ := newTestRouter(mockService)

	// Wrong password and unknown user produce the same response body.
	mockService.On("Authenticate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, user.ErrInvalidCredentials).
		Twice()

	var bodies []string
	for _, payload := range []string{
		`{"email":"sample@example.com","password":"wrong"}`,
		`{"email":"ghost@example.com","password":"whatever"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		bodies = append(bodies, rr.Body.String())
	}

	assert.Equal(t, bodies[0], bodies[1], "login failures must be indistinguishable")
	mockService.AssertExpectations(t)
}

func TestUserHandler_Login_MissingFields(t *testing.T) {
	mockService := new(MockUserService)
	router, _ := newTestRouter(mockService)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	mockService.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserHandler_GetUserByID_RequiresToken(t *testing.T) {
	mockService := new(MockUserService)
	router, _ := newTestRouter(mockService)

	req := httptest.NewRequest(http.MethodGet, "/users/"+uuid.Must(uuid.NewV4()).String(), nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	mockService.AssertNotCalled(t, "GetUserByID", mock.Anything, mock.Anything)
}

func TestUserHandler_GetUserByID_RejectsGarbageToken(t *testing.T) {
	mockService := new(MockUserService)
	router, _ := newTestRouter(mockService)

	req := httptest.NewRequest(http.MethodGet, "/users/"+uuid.Must(uuid.NewV4()).String(), nil)
	req.Header.Set("Authorization", "Bearer garbage")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUserHandler_GetUserByID_Success(t *testing.T) {
	mockService := new(MockUserService)
	router, tokens := newTestRouter(mockService)

	responseUser := sampleUser()

	mockService.On("GetUserByID", mock.Anything, responseUser.ID).
		Return(responseUser, nil).
		Once()

	req := httptest.NewRequest(http.MethodGet, "/users/"+responseUser.ID.String(), nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, responseUser.ID))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	// The password digest never appears in a response body.
	assert.NotContains(t, rr.Body.String(), "password")
	assert.NotContains(t, rr.Body.String(), responseUser.PasswordHash)

	var response userHandler.UserResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Equal(t, responseUser.ID, response.ID)
	assert.Equal(t, responseUser.Email, response.Email)
	mockService.AssertExpectations(t)
}

func TestUserHandler_GetUserByID_NotFound(t *testing.T) {
	mockService := new(MockUserService)
	router, tokens := newTestRouter(mockService)

	unknownID := uuid.Must(uuid.NewV4())

	mockService.On("GetUserByID", mock.Anything, unknownID).
		Return(nil, user.ErrNotFound).
		Once()

	req := httptest.NewRequest(http.MethodGet, "/users/"+unknownID.String(), nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, uuid.Must(uuid.NewV4())))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	mockService.AssertExpectations(t)
}

func TestUserHandler_GetUserByID_InvalidID(t *testing.T) {
	mockService := new(MockUserService)
	router, tokens := newTestRouter(mockService)

	req := httptest.NewRequest(http.MethodGet, "/users/not-a-uuid", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, uuid.Must(uuid.NewV4())))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	mockService.AssertNotCalled(t, "GetUserByID", mock.Anything, mock.Anything)
}

func TestUserHandler_ListUsers(t *testing.T) {
	mockService := new(MockUserService)
	router, tokens := newTestRouter(mockService)

	users := []user.User{*sampleUser(), *sampleUser()}

	mockService.On("ListUsers", mock.Anything, 2, 0).
		Return(users, 5, nil).
		Once()

	req := httptest.NewRequest(http.MethodGet, "/users?limit=2", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, uuid.Must(uuid.NewV4())))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.NotContains(t, rr.Body.String(), "password")

	var response userHandler.ListUsersResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Len(t, response.Users, 2)
	assert.Equal(t, 5, response.Total)
	assert.Equal(t, 2, response.Limit)
	assert.Equal(t, 0, response.Offset)
	mockService.AssertExpectations(t)
}

func TestUserHandler_ListUsers_RequiresToken(t *testing.T) {
	mockService := new(MockUserService)
	router, _ := newTestRouter(mockService)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	mockService.AssertNotCalled(t, "ListUsers", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserHandler_UpdateUser_Success(t *testing.T) {
	mockService := new(MockUserService)
	router, tokens := newTestRouter(mockService)

	updatedUser := sampleUser()
	updatedUser.FirstName = "Renamed"

	mockService.On("UpdateUser", mock.Anything, updatedUser.ID, mock.MatchedBy(func(u user.Update) bool {
		return u.FirstName != nil && *u.FirstName == "Renamed" &&
			u.Email == nil && u.Password == nil
	})).Return(updatedUser, nil).Once()

	body := `{"first_name":"Renamed"}`
	req := httptest.NewRequest(http.MethodPut, "/users/"+updatedUser.ID.String(), strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerFor(t, tokens, updatedUser.ID))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var response userHandler.UserResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Equal(t, "Renamed", response.FirstName)
	mockService.AssertExpectations(t)
}

func TestUserHandler_UpdateUser_RejectsUnknownFields(t *testing.T) {
	mockService := new(MockUserService)
	router, tokens := newTestRouter(mockService)

	// Server-controlled fields are not assignable; unknown keys fail decode.
	body := `{"id":"11111111-1111-1111-1111-111111111111","first_name":"Renamed"}`
	req := httptest.NewRequest(http.MethodPut, "/users/"+uuid.Must(uuid.NewV4()).String(), strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerFor(t, tokens, uuid.Must(uuid.NewV4())))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	mockService.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserHandler_UpdateUser_NotFound(t *testing.T) {
	mockService := new(MockUserService)
	router, tokens := newTestRouter(mockService)

	unknownID := uuid.Must(uuid.NewV4())

	mockService.On("UpdateUser", mock.Anything, unknownID, mock.Anything).
		Return(nil, user.ErrNotFound).
		Once()

	body := `{"first_name":"Renamed"}`
	req := httptest.NewRequest(http.MethodPut, "/users/"+unknownID.String(), strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerFor(t, tokens, uuid.Must(uuid.NewV4())))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	mockService.AssertExpectations(t)
}

func TestUserHandler_DeleteUser_Success(t *testing.T) {
	mockService := new(MockUserService)
	router, tokens := newTestRouter(mockService)

	targetID := uuid.Must(uuid.NewV4())

	mockService.On("DeleteUser", mock.Anything, targetID).
		Return(nil).
		Once()

	req := httptest.NewRequest(http.MethodDelete, "/users/"+targetID.String(), nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, uuid.Must(uuid.NewV4())))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var response userHandler.DeleteResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.True(t, response.Success)
	assert.Equal(t, "User deleted", response.Message)
	mockService.AssertExpectations(t)
}

func TestUserHandler_DeleteUser_NotFound(t *testing.T) {
	mockService := new(MockUserService)
	router, tokens := newTestRouter(mockService)

	unknownID := uuid.Must(uuid.NewV4())

	mockService.On("DeleteUser", mock.Anything, unknownID).
		Return(user.ErrNotFound).
		Once()

	req := httptest.NewRequest(http.MethodDelete, "/users/"+unknownID.String(), nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, uuid.Must(uuid.NewV4())))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	mockService.AssertExpectations(t)
}

func TestUserHandler_Register_ResponseOmitsPasswordDigest(t *testing.T) {
	mockService := new(MockUserService)
	router, _ := newTestRouter(mockService)

	responseUser := sampleUser()

	mockService.On("Register", mock.Anything, mock.AnythingOfType("*user.User"), "password123").
		Return(responseUser, nil).
		Once()

	body, err := json.Marshal(map[string]string{
		"email":      responseUser.Email,
		"password":   "password123",
		"username":   responseUser.Username,
		"first_name": responseUser.FirstName,
		"last_name":  responseUser.LastName,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotContains(t, rr.Body.String(), responseUser.PasswordHash)
	mockService.AssertExpectations(t)
}
