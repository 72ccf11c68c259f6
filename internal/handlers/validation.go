package handlers

import (
	"encoding/json"
	"net/http"

	"tourneyhost/internal/validator"
)

const maxJSONBody = 1 << 20

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// It writes the 400 response itself and reports whether the caller may go on.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := decoder.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	if err := validator.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, validator.Message(err))
		return false
	}
	return true
}
