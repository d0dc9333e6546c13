package ledger

import (
	"encoding/json"
	"log"
	"net/http"
)

const (
	contentType     = "Content-Type"
	applicationJSON = "application/json"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set(contentType, applicationJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	log.Printf("[ERROR] %s", msg)
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}

// capErrors bounds the inline error sample; the full list stays in the log
// row and is downloadable as CSV.
func capErrors(errs []RowError, max int) []RowError {
	if errs == nil {
		return []RowError{}
	}
	if len(errs) > max {
		return errs[:max]
	}
	return errs
}
