// Package httputil holds the JSON response and request helpers shared by the
// HTTP handlers and the CLI client.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/banshee-data/mixcalc/internal/monitoring"
)

// ErrorBody is the JSON shape of every error response. Where names the
// validation stage that rejected the request and Missing lists the input
// fields it needed.
type ErrorBody struct {
	OK      bool     `json:"ok"`
	Error   string   `json:"error"`
	Where   string   `json:"where,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// WriteError writes body with the given status. OK is always false.
func WriteError(w http.ResponseWriter, status int, body ErrorBody) {
	body.OK = false
	WriteJSON(w, status, body)
}

// WriteJSONError writes an error response carrying only a message.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteError(w, status, ErrorBody{Error: msg})
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("failed to encode json response: %v", err)
	}
}

// WriteJSONOK writes a 200 JSON response.
func WriteJSONOK(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

func InternalServerError(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusInternalServerError, msg)
}

func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}
