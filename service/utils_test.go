package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestPermanent(t *testing.T) {
	err := fmt.Errorf("Permanent error")
	if Temporary(err) {
		t.Fail()
	}
	err = &url.Error{Err: err}
	if Temporary(err) {
		t.Fail()
	}
}

func TestTemporary(t *testing.T) {
	err := MakeTemporary(fmt.Errorf("Temporary error"))
	if !Temporary(err) {
		t.Fail()
	}
	err = fmt.Errorf("Warp: %w", err)
	if !Temporary(err) {
		t.Fail()
	}
	if !Temporary(context.Canceled) {
		t.Fail()
	}
	if !Temporary(context.DeadlineExceeded) {
		t.Fail()
	}
	err = fmt.Errorf("Warp: %w", &url.Error{Err: err})
	if !Temporary(err) {
		t.Fail()
	}
}

func TestStringSet(t *testing.T) {
	ss := StringSet{}
	ss.Push("a")
	ss.Push("b")
	ss.Push("a")
	if len(ss.Slice()) != 2 {
		t.Errorf("expected 2 elements, got %v", ss.Slice())
	}
	ss.Pop("a")
	if ss.Exists("a") || !ss.Exists("b") {
		t.Errorf("unexpected content %v", ss.Slice())
	}
}

func TestGetBodyRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	body, err := GetBodyRetry(context.Background(), srv.Client(), srv.URL, 1)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "ok" || calls != 2 {
		t.Errorf("expected ok after 2 calls, got %s after %d calls", body, calls)
	}
}

func TestGetBodyRetryClientError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := GetBodyRetry(context.Background(), srv.Client(), srv.URL, 3); err == nil {
		t.Error("expected an error")
	}
	if calls != 1 {
		t.Errorf("4xx must not be retried: %d calls", calls)
	}
}
