package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/paventhan183/dr-appointment/libs/httpx"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/model"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/storage"
)

// writeStoreError maps store errors to statuses. Anything unclassified is
// logged with the request id and answered with a generic 500.
func (h *AppointmentHandler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteError(w, http.StatusBadRequest, verr.Message)
	case storage.IsInvalidArgument(err):
		httpx.WriteError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), model.ErrInvalidArgument.Error()+": "))
	case storage.IsNotFound(err):
		httpx.WriteError(w, http.StatusNotFound, model.ErrNotFound.Error())
	default:
		h.logger.Error("store operation failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes a single JSON object into dst, rejecting unknown fields.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			httpx.WriteError(w, http.StatusBadRequest, "request body is required")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			httpx.WriteError(w, http.StatusBadRequest, "unknown field "+strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		}
		return false
	}
	if dec.More() {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteError(w, http.StatusNotFound, "route not found")
}

// pathParam returns the decoded URL parameter. chi matches against RawPath
// when it is set, so the captured segment is still escaped in that case.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return value, true
	}
	decoded, err := url.PathUnescape(value)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s in path", name))
		return "", false
	}
	return decoded, true
}
