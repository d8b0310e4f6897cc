package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/goplan-travel/goplan-backend/internal/auth"
	"github.com/goplan-travel/goplan-backend/internal/observability/metrics"
	"github.com/goplan-travel/goplan-backend/internal/user"
)

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Username  string `json:"username" validate:"required,min=3"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest carries the allow-listed mutable fields. Anything the
// server controls (id, timestamps) has no place here and unknown keys are
// rejected at decode time.
type UpdateUserRequest struct {
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Username  *string `json:"username,omitempty" validate:"omitempty,min=3"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,min=1"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,min=1"`
	Password  *string `json:"password,omitempty" validate:"omitempty,min=8"`
}

// UserResponse is the public representation: every persisted attribute except
// the password hash. All response-bearing handlers go through it.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AuthResponse struct {
	Success     bool         `json:"success"`
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

type ListUsersResponse struct {
	Users  []UserResponse `json:"users"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type UserHandler struct {
	service  user.Service
	tokens   *auth.TokenManager
	validate *validator.Validate
}

func NewUserHandler(service user.Service, tokens *auth.TokenManager) *UserHandler {
	validate := validator.New()

	// Report fields under their JSON names in validation errors.
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &UserHandler{
		service:  service,
		tokens:   tokens,
		validate: validate,
	}
}

func (h *UserHandler) RegisterRoutes(router chi.Router) {
	router.Post("/users", h.handleRegister)
	router.Post("/login", h.handleLogin)

	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(h.tokens))
		r.Get("/users", h.handleListUsers)
		r.Get("/users/{id}", h.handleGetUserByID)
		r.Put("/users/{id}", h.handleUpdateUser)
		r.Delete("/users/{id}", h.handleDeleteUser)
	})
}

func (h *UserHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var requestPayload RegisterRequest

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Error().Err(err).Msg("Failed to decode register request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithValidationError(w, validationErrors)
		} else {
			log.Error().Err(err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	domainUser := user.User{
		Email:     requestPayload.Email,
		Username:  requestPayload.Username,
		FirstName: requestPayload.FirstName,
		LastName:  requestPayload.LastName,
	}

	createdUser, err := h.service.Register(r.Context(), &domainUser, requestPayload.Password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to register user via service")

		statusCode := mapErrorToStatusCode(err)

		var clientMessage string
		if errors.Is(err, user.ErrDuplicate) {
			clientMessage = "User with this email or username already exists"
		} else {
			clientMessage = "Failed to register user"
		}

		respondWithError(w, statusCode, clientMessage)
		return
	}

	accessToken, err := h.tokens.Issue(createdUser.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue access token")
		respondWithError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	metrics.UsersRegistered.Inc()
	metrics.AccessTokensIssued.Inc()

	respondWithJSON(w, http.StatusCreated, AuthResponse{
		Success:     true,
		AccessToken: accessToken,
		User:        toUserResponse(createdUser),
	})
}

func (h *UserHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var requestPayload LoginRequest

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Error().Err(err).Msg("Failed to decode login request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return
	}

	login := requestPayload.Email
	if login == "" {
		login = requestPayload.Username
	}
	if login == "" || requestPayload.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Missing or invalid field(s): email or username, password")
		return
	}

	authedUser, err := h.service.Authenticate(r.Context(), login, requestPayload.Password)
	if err != nil {
		statusCode := mapErrorToStatusCode(err)
		if errors.Is(err, user.ErrInvalidCredentials) {
			metrics.LoginsFailed.Inc()
			respondWithError(w, statusCode, "Invalid credentials")
			return
		}

		log.Error().Err(err).Msg("Failed to authenticate user via service")
		respondWithError(w, statusCode, "Failed to log in")
		return
	}

	accessToken, err := h.tokens.Issue(authedUser.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue access token")
		respondWithError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	metrics.AccessTokensIssued.Inc()

	respondWithJSON(w, http.StatusOK, AuthResponse{
		Success:     true,
		AccessToken: accessToken,
		User:        toUserResponse(authedUser),
	})
}

func (h *UserHandler) handleGetUserByID(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	userID, err := uuid.FromString(idParam)
	if err != nil {
		log.Warn().Err(err).Str("user_id", idParam).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	foundUser, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		statusCode := mapErrorToStatusCode(err)

		var clientMessage string
		if errors.Is(err, user.ErrNotFound) {
			clientMessage = "User not found"
		} else {
			log.Error().Err(err).Msg("Failed to get user by id via service")
			clientMessage = "Failed to get user by id"
		}

		respondWithError(w, statusCode, clientMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, toUserResponse(foundUser))
}

func (h *UserHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", user.DefaultListLimit)
	offset := queryInt(r, "offset", 0)

	// Clamp here as well so the echoed limit/offset match what was applied.
	if limit <= 0 {
		limit = user.DefaultListLimit
	}
	if limit > user.MaxListLimit {
		limit = user.MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, total, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list users")
		return
	}

	responseUsers := make([]UserResponse, 0, len(users))
	for i := range users {
		responseUsers = append(responseUsers, toUserResponse(&users[i]))
	}

	respondWithJSON(w, http.StatusOK, ListUsersResponse{
		Users:  responseUsers,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *UserHandler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	userID, err := uuid.FromString(idParam)
	if err != nil {
		log.Warn().Err(err).Str("user_id", idParam).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload UpdateUserRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Error().Err(err).Msg("Failed to decode update request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithValidationError(w, validationErrors)
		} else {
			log.Error().Err(err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	update := user.Update{
		Email:     requestPayload.Email,
		Username:  requestPayload.Username,
		FirstName: requestPayload.FirstName,
		LastName:  requestPayload.LastName,
		Password:  requestPayload.Password,
	}

	updatedUser, err := h.service.UpdateUser(r.Context(), userID, update)
	if err != nil {
		statusCode := mapErrorToStatusCode(err)

		var clientMessage string
		switch {
		case errors.Is(err, user.ErrNotFound):
			clientMessage = "User not found"
		case errors.Is(err, user.ErrDuplicate):
			clientMessage = "User with this email or username already exists"
		default:
			log.Error().Err(err).Msg("Failed to update user via service")
			clientMessage = "Failed to update user"
		}

		respondWithError(w, statusCode, clientMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, toUserResponse(updatedUser))
}

func (h *UserHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	userID, err := uuid.FromString(idParam)
	if err != nil {
		log.Warn().Err(err).Str("user_id", idParam).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		statusCode := mapErrorToStatusCode(err)

		var clientMessage string
		if errors.Is(err, user.ErrNotFound) {
			clientMessage = "User not found"
		} else {
			log.Error().Err(err).Msg("Failed to delete user via service")
			clientMessage = "Failed to delete user"
		}

		respondWithError(w, statusCode, clientMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, DeleteResponse{
		Success: true,
		Message: "User deleted",
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
