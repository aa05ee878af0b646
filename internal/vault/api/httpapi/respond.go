package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
)

type errorBody struct {
	Code     apperrors.Code    `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps an error to its HTTP status and JSON body. Unclassified
// errors surface as 500 without leaking internals.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Code.HTTPStatus(), errorResponse{Error: errorBody{
			Code:     appErr.Code,
			Message:  appErr.Message,
			Metadata: appErr.Metadata,
		}})
		return
	}

	h.logger.Printf("internal error: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{
		Code:    apperrors.CodeUnknown,
		Message: "internal error",
	}})
}

// decodeBody parses a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperrors.New(apperrors.CodeRequestMalformed, "malformed request body")
	}
	return nil
}
