package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerAuthenticate(t *testing.T) {
	handler := bearerAuthenticate("key")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		header string
		status int
	}{
		{"", http.StatusForbidden},
		{"key", http.StatusForbidden},
		{"Bearer wrong", http.StatusForbidden},
		{"Bearer key", http.StatusTeapot},
	}
	for _, test := range tests {
		req := httptest.NewRequest("GET", "/metadata", nil)
		if test.header != "" {
			req.Header.Set(AuthorizationHeader, test.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != test.status {
			t.Errorf("%q: expected %d, got %d", test.header, test.status, rec.Code)
		}
	}
}
