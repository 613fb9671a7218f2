package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/product-catalog/pkg/catalog"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind to the HTTP status returned to clients.
func statusFor(kind catalog.ErrorKind) int {
	switch kind {
	case catalog.KindNotFound:
		return http.StatusNotFound
	case catalog.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error","kind"}. Server-side failures are
// logged with the request logger and their cause is not echoed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := catalog.KindOf(err)
	status := statusFor(kind)

	msg := err.Error()
	var ce *catalog.Error
	if errors.As(err, &ce) && status >= http.StatusInternalServerError {
		msg = ce.Message
	}

	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("kind", string(kind)).Msg("Request failed")
		if kind == catalog.KindInternal {
			msg = "internal error"
		}
	} else {
		hlog.FromRequest(r).Debug().Err(err).Str("kind", string(kind)).Msg("Request rejected")
	}

	writeJSON(w, status, errorResponse{Error: msg, Kind: string(kind)})
}
