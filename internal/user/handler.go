package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const maxJSONBodyBytes = 1 << 20

// PasswordHasher turns a plaintext password into a storable digest. Injected
// so this package stays free of hashing policy.
type PasswordHasher func(password string) (string, error)

type Handler struct {
	repo     *Repository
	hashFunc PasswordHasher
}

func NewHandler(repo *Repository, hashFunc PasswordHasher) *Handler {
	return &Handler{repo: repo, hashFunc: hashFunc}
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	found, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, found)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	input, ok := parseUserInput(w, r)
	if !ok {
		return
	}

	hash, err := h.hashFunc(input.Password)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	created, err := h.repo.Create(r.Context(), input, hash)
	if err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			writeError(w, http.StatusConflict, "username or email already taken")
		case errors.Is(err, ErrUnknownRole):
			writeError(w, http.StatusBadRequest, "role_id does not reference an existing role")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input RoleUpdateInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	input.RoleID = strings.TrimSpace(input.RoleID)
	if _, err := uuid.Parse(input.RoleID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid role id")
		return
	}

	updated, err := h.repo.UpdateRole(r.Context(), id, input.RoleID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, ErrUnknownRole):
			writeError(w, http.StatusBadRequest, "role_id does not reference an existing role")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to update user role")
		}
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.repo.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to deactivate user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseUserInput(w http.ResponseWriter, r *http.Request) (UserInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input UserInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return UserInput{}, false
	}

	input.Username = strings.ToLower(strings.TrimSpace(input.Username))
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.RoleID = strings.TrimSpace(input.RoleID)

	if !usernameRegex.MatchString(input.Username) {
		writeError(w, http.StatusBadRequest, "username format is invalid")
		return UserInput{}, false
	}
	if len(input.Email) > 255 || !emailRegex.MatchString(input.Email) {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return UserInput{}, false
	}
	if len(input.Password) < 8 || len(input.Password) > 200 {
		writeError(w, http.StatusBadRequest, "password format is invalid")
		return UserInput{}, false
	}
	if !utf8.ValidString(input.FirstName) || len(input.FirstName) > 255 {
		writeError(w, http.StatusBadRequest, "first_name is invalid")
		return UserInput{}, false
	}
	if !utf8.ValidString(input.LastName) || len(input.LastName) > 255 {
		writeError(w, http.StatusBadRequest, "last_name is invalid")
		return UserInput{}, false
	}
	if _, err := uuid.Parse(input.RoleID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid role id")
		return UserInput{}, false
	}

	return input, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
