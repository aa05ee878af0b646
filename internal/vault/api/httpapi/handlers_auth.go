package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/louisbranch/legacyvault/internal/auth"
	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
	"github.com/louisbranch/legacyvault/internal/platform/requestctx"
	"github.com/louisbranch/legacyvault/internal/vault/domain"
	"github.com/louisbranch/legacyvault/internal/vault/storage"
)

type userPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserPayload(user domain.User) userPayload {
	return userPayload{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		CreatedAt: user.CreatedAt,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	user, err := domain.NewUser(domain.CreateUserInput{
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hash,
	}, h.now, h.newID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			h.writeError(w, apperrors.New(apperrors.CodeUserEmailTaken,
				fmt.Sprintf("email %s is already registered", user.Email)))
			return
		}
		h.writeError(w, fmt.Errorf("create user: %w", err))
		return
	}

	h.logger.Printf("registered user %s", user.ID)
	writeJSON(w, http.StatusCreated, toUserPayload(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, apperrors.New(apperrors.CodeAuthCredentialsInvalid, "invalid email or password"))
			return
		}
		h.writeError(w, fmt.Errorf("load user: %w", err))
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.writeError(w, err)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.writeError(w, fmt.Errorf("issue token: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, apperrors.New(apperrors.CodeAuthTokenInvalid, "token subject no longer exists"))
			return
		}
		h.writeError(w, fmt.Errorf("load user: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, toUserPayload(user))
}
