// Package httputil collects the small per-request helpers every handler in
// internal/httpapi needs: JSON encode/decode, standard error shapes, and
// query-parameter parsing.
package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/solward/flywheel/internal/svcerr"
)

// ErrorResponse is the JSON shape returned on every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes data as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

func BadRequest(w http.ResponseWriter, message string) { WriteError(w, http.StatusBadRequest, message) }

func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "unauthorized"
	}
	WriteError(w, http.StatusUnauthorized, message)
}

func Forbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "forbidden"
	}
	WriteError(w, http.StatusForbidden, message)
}

func NotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "not found"
	}
	WriteError(w, http.StatusNotFound, message)
}

func Conflict(w http.ResponseWriter, message string) { WriteError(w, http.StatusConflict, message) }

func InternalError(w http.ResponseWriter, message string) {
	if message == "" {
		message = "internal server error"
	}
	WriteError(w, http.StatusInternalServerError, message)
}

// WriteServiceError writes a *svcerr.ServiceError using its own code and
// HTTP status, falling back to a bare 500 for anything else.
func WriteServiceError(w http.ResponseWriter, err error) {
	se := svcerr.GetServiceError(err)
	if se == nil {
		InternalError(w, err.Error())
		return
	}
	WriteJSON(w, se.HTTPStatus, ErrorResponse{Error: se.Message, Code: string(se.Code)})
}

// DecodeJSON decodes r's body into v, writing a 400 on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// QueryInt reads an integer query parameter, falling back to defaultVal.
func QueryInt(r *http.Request, key string, defaultVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return n
}
