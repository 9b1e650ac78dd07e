package respond

import (
	"encoding/json"
	"net/http"

	"github.com/ayush/rideshare/backend/internal/apperr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error writes err using the status its class maps to.
func Error(w http.ResponseWriter, err error) {
	JSON(w, apperr.Status(err), ErrorBody{Error: err.Error(), Details: apperr.Details(err)})
}

// Message writes a {"message": msg} confirmation.
func Message(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusOK, map[string]string{"message": msg})
}

// Decode reads a JSON body into v, reporting malformed input as a
// validation failure.
func Decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &apperr.ValidationError{Message: "invalid request body"}
	}
	return nil
}
