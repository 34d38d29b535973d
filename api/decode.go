package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// decodeJSON reads a JSON body into v. An empty body leaves v untouched so
// handlers report their own missing-field errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) *APIError {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &APIError{Status: http.StatusRequestEntityTooLarge, Err: "Request body too large", Code: CodeValidation}
		}
		return validationError("Invalid request body", err.Error())
	}
	return nil
}
