package probely

import "net/http"

// Headers returns the headers every Probely API call needs. The token is not validated.
func Headers(token string) http.Header {
	h := make(http.Header)
	h.Set("Authorization", "JWT "+token)
	h.Set("Content-Type", "application/json")
	return h
}
