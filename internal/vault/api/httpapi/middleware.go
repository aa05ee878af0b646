package httpapi

import (
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
	"github.com/louisbranch/legacyvault/internal/platform/requestctx"
)

// requireAuth resolves the bearer token into the request context principal.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			h.writeError(w, apperrors.New(apperrors.CodeAuthTokenMissing, "bearer token required"))
			return
		}

		userID, err := h.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			h.writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(requestctx.WithUserID(r.Context(), userID)))
	})
}
