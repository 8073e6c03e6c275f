package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/logging"
	"github.com/dmitrijs2005/gophmaps/internal/validation"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var statusByKind = map[string]int{
	common.KindInvalidCredentials:      http.StatusUnauthorized,
	common.KindTokenExpired:            http.StatusUnauthorized,
	common.KindTokenInvalid:            http.StatusUnauthorized,
	common.KindRefreshTokenExpired:     http.StatusUnauthorized,
	common.KindForbidden:               http.StatusForbidden,
	common.KindNotFound:                http.StatusNotFound,
	common.KindConflict:                http.StatusConflict,
	common.KindValidation:              http.StatusBadRequest,
	common.KindMediaVerificationFailed: http.StatusUnprocessableEntity,
	common.KindStorageUnavailable:      http.StatusServiceUnavailable,
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string                  `json:"kind"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

// statusOf maps an error to its HTTP status. Kinds without an entry are 500.
func statusOf(kind string) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // the client is gone if this fails
	json.NewEncoder(w).Encode(data)
}

// writeError responds with the stable kind of err. Validation failures carry
// their field messages; everything else only the sentinel text.
func writeError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	kind, msg := common.Describe(err)
	status := statusOf(kind)

	detail := errorDetail{Kind: kind, Message: msg}
	var ve *validation.Error
	if errors.As(err, &ve) {
		detail.Message = ve.Error()
		detail.Fields = ve.Fields
	}

	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", "request_id", middleware.GetReqID(r.Context()), "kind", kind, "error", err.Error())
	} else {
		log.Debug(r.Context(), "request rejected", "request_id", middleware.GetReqID(r.Context()), "kind", kind, "error", err.Error())
	}
	writeJSON(w, status, errorBody{Error: detail})
}

// decodeJSON reads one JSON value from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty request body: %w", common.ErrValidation)
		}
		return fmt.Errorf("malformed request body: %w", common.ErrValidation)
	}
	return nil
}
