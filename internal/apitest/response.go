package apitest

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

type page struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// detail writes an error in the backend's {"detail": ...} shape.
func detail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// tokenInvalid mirrors the backend's rejection of a bad bearer token.
func tokenInvalid(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"detail": "Given token not valid for any token type",
		"code":   "token_not_valid",
	})
}

func (s *Server) writeList(w http.ResponseWriter, items any, n int) {
	if s.paginate {
		writeJSON(w, http.StatusOK, page{Count: n, Results: items})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func decode(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func newID() string {
	return uuid.NewString()
}
