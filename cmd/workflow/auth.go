package main

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

const (
	// AuthorizationHeader is the header key to get the authorization token
	AuthorizationHeader = "authorization"
	tokenPrefix         = "Bearer "
)

// bearerAuthenticate rejects the requests that do not carry the api key
func bearerAuthenticate(apiKey string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authenticate(apiKey, r.Header.Get(AuthorizationHeader)); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(apiKey, token string) error {
	if token == "" {
		return fmt.Errorf("token not found")
	}
	if !strings.HasPrefix(token, tokenPrefix) {
		return fmt.Errorf(`missing "` + tokenPrefix + `" prefix`)
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(token, tokenPrefix)), []byte(apiKey)) != 1 {
		return fmt.Errorf("invalid token")
	}
	return nil
}
