package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/service"
)

const (
	testProductID = "0f3c6b2e-5f7a-4a3d-9d35-1c1b1c1c1c1c"
	testName      = "S2A_MSIL2A_20240101T105441_N0510_R051_T31TCJ_20240101T134512.SAFE"
	testToken     = "secret-token"
	testPayload   = "PK-not-really-a-zip"
)

var testTile = common.Tile{
	ID:      common.TileIDFromName(testName),
	Product: common.Product{ID: testProductID, Name: testName},
}

// cdse simulates the identity service and the download service
type cdse struct {
	*httptest.Server
	redirects int32 // number of redirections before the payload
	status    int32 // final status
	tokens    int32 // number of token requests
	tokenErrs int32 // number of token requests failing with 503
}

func newCDSE(t *testing.T) *cdse {
	c := &cdse{status: 200}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&c.tokens, 1)
		r.ParseForm()
		if r.Form.Get("client_id") != "cdse-public" || r.Form.Get("grant_type") != "password" {
			t.Errorf("unexpected token request %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&c.tokenErrs, -1) >= 0 {
			w.WriteHeader(503)
			fmt.Fprint(w, `{"error":"unavailable"}`)
			return
		}
		if r.Form.Get("username") != "user" || r.Form.Get("password") != "pword" {
			w.WriteHeader(401)
			fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Invalid user credentials"}`)
			return
		}
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":600}`, testToken)
	})
	serve := func(w http.ResponseWriter, r *http.Request, hop int) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(401)
			return
		}
		if hop < int(atomic.LoadInt32(&c.redirects)) {
			http.Redirect(w, r, "/hop/"+strconv.Itoa(hop+1), http.StatusFound)
			return
		}
		if status := int(atomic.LoadInt32(&c.status)); status != 200 {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(testPayload)))
		fmt.Fprint(w, testPayload)
	}
	mux.HandleFunc("/odata/v1/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/odata/v1/Products("+testProductID+")/$value" {
			w.WriteHeader(404)
			return
		}
		serve(w, r, 0)
	})
	mux.HandleFunc("/hop/", func(w http.ResponseWriter, r *http.Request) {
		hop, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/hop/"))
		serve(w, r, hop)
	})
	c.Server = httptest.NewServer(mux)
	return c
}

func (c *cdse) provider(user, pword string) *CopernicusImageProvider {
	ip := NewCopernicusImageProvider(user, pword,
		WithCopernicusEndpoints(c.URL+"/token", c.URL+"/odata/v1"),
		WithHTTPClient(c.Client()))
	ip.tokenRetryDelay = time.Millisecond
	return ip
}

func checkNoArchive(t *testing.T, dir string) {
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		t.Errorf("unexpected file %s", e.Name())
	}
}

func TestCopernicusDownload(t *testing.T) {
	c := newCDSE(t)
	defer c.Close()
	dir := t.TempDir()

	for _, redirects := range []int32{0, 1, MaxRedirects} {
		atomic.StoreInt32(&c.redirects, redirects)
		archive, err := c.provider("user", "pword").Download(context.Background(), testTile, dir)
		if err != nil {
			t.Fatalf("%d redirects: %v", redirects, err)
		}
		if archive != filepath.Join(dir, string(testTile.ID)+".zip") {
			t.Errorf("unexpected archive %s", archive)
		}
		b, err := os.ReadFile(archive)
		if err != nil || string(b) != testPayload {
			t.Errorf("unexpected content %s (%v)", b, err)
		}
		if _, err := os.Stat(archive + ".part"); !os.IsNotExist(err) {
			t.Errorf("partial file must be removed")
		}
	}
	if tokens := atomic.LoadInt32(&c.tokens); tokens != 3 {
		t.Errorf("expected a token per download, got %d", tokens)
	}
}

func TestCopernicusTooManyRedirects(t *testing.T) {
	c := newCDSE(t)
	defer c.Close()
	dir := t.TempDir()

	atomic.StoreInt32(&c.redirects, MaxRedirects+1)
	_, err := c.provider("user", "pword").Download(context.Background(), testTile, dir)
	if !errors.Is(err, service.ErrDownloadFailed) {
		t.Errorf("expected ErrDownloadFailed, got %v", err)
	}
	checkNoArchive(t, dir)
}

func TestCopernicusBadStatus(t *testing.T) {
	c := newCDSE(t)
	defer c.Close()
	dir := t.TempDir()

	for status, temporary := range map[int32]bool{404: false, 403: false, 503: true, 429: true} {
		atomic.StoreInt32(&c.status, status)
		_, err := c.provider("user", "pword").Download(context.Background(), testTile, dir)
		if !errors.Is(err, service.ErrDownloadFailed) {
			t.Errorf("%d: expected ErrDownloadFailed, got %v", status, err)
		}
		if service.Temporary(err) != temporary {
			t.Errorf("%d: expected temporary=%v", status, temporary)
		}
		checkNoArchive(t, dir)
	}

	atomic.StoreInt32(&c.status, 200)
	tile := testTile
	tile.Product.ID = "unknown"
	if _, err := c.provider("user", "pword").Download(context.Background(), tile, dir); !errors.Is(err, service.ErrDownloadFailed) {
		t.Errorf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestCopernicusAuthFailed(t *testing.T) {
	c := newCDSE(t)
	defer c.Close()
	dir := t.TempDir()

	_, err := c.provider("user", "wrong").Download(context.Background(), testTile, dir)
	if !errors.Is(err, service.ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
	checkNoArchive(t, dir)

	if tokens := atomic.LoadInt32(&c.tokens); tokens != 1 {
		t.Errorf("rejected credentials must not be retried, got %d token requests", tokens)
	}
	if service.Temporary(err) {
		t.Errorf("expected a permanent error, got %v", err)
	}

	if _, err := c.provider("user", "pword").LoadToken(context.Background()); err != nil {
		t.Errorf("LoadToken: %v", err)
	}
}

func TestCopernicusTokenRetry(t *testing.T) {
	c := newCDSE(t)
	defer c.Close()

	atomic.StoreInt32(&c.tokenErrs, 1)
	token, err := c.provider("user", "pword").LoadToken(context.Background())
	if err != nil || token.AccessToken != testToken {
		t.Fatalf("LoadToken: %v", err)
	}
	if tokens := atomic.LoadInt32(&c.tokens); tokens != 2 {
		t.Errorf("expected 2 token requests, got %d", tokens)
	}

	atomic.StoreInt32(&c.tokens, 0)
	atomic.StoreInt32(&c.tokenErrs, tokenTries)
	_, err = c.provider("user", "pword").LoadToken(context.Background())
	if !errors.Is(err, service.ErrAuthFailed) || !service.Temporary(err) {
		t.Errorf("expected a temporary ErrAuthFailed, got %v", err)
	}
	if tokens := atomic.LoadInt32(&c.tokens); tokens != tokenTries {
		t.Errorf("expected %d token requests, got %d", tokenTries, tokens)
	}
}

func TestCopernicusTransport(t *testing.T) {
	c := newCDSE(t)
	ip := c.provider("user", "pword")
	c.Close()

	_, err := ip.Download(context.Background(), testTile, t.TempDir())
	// The identity service is down first
	if !errors.Is(err, service.ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}

	c = newCDSE(t)
	defer c.Close()
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()
	ip = NewCopernicusImageProvider("user", "pword", WithCopernicusEndpoints(c.URL+"/token", downURL), WithHTTPClient(c.Client()))
	ip.tokenRetryDelay = time.Millisecond
	_, err = ip.Download(context.Background(), testTile, t.TempDir())
	if !errors.Is(err, service.ErrTransport) || !service.Temporary(err) {
		t.Errorf("expected a temporary ErrTransport, got %v", err)
	}
}

func TestCheckRedirect(t *testing.T) {
	first, _ := http.NewRequest("GET", "http://example.com/a", nil)
	first.Header.Set("Authorization", "Bearer x")
	via := []*http.Request{first}
	for i := 1; i <= MaxRedirects; i++ {
		req, _ := http.NewRequest("GET", "http://other.example.com/b", nil)
		if err := checkRedirectAndCopyAuth(req, via); err != nil {
			t.Fatalf("redirect %d: %v", i, err)
		}
		if req.Header.Get("Authorization") != "Bearer x" {
			t.Errorf("authorization not copied")
		}
		via = append(via, req)
	}
	req, _ := http.NewRequest("GET", "http://other.example.com/b", nil)
	if err := checkRedirectAndCopyAuth(req, via); err != http.ErrUseLastResponse {
		t.Errorf("expected ErrUseLastResponse, got %v", err)
	}
}

func TestLocalImageProvider(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	ip := NewLocalImageProvider(src)

	if _, err := ip.Download(context.Background(), testTile, dst); !errors.As(err, &ErrProductNotFound{}) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}

	srcDir := filepath.Join(src, "2024", "01", "01")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, string(testTile.ID)+".zip"), []byte(testPayload), 0644); err != nil {
		t.Fatal(err)
	}
	archive, err := ip.Download(context.Background(), testTile, dst)
	if err != nil {
		t.Fatal(err)
	}
	if b, _ := os.ReadFile(archive); string(b) != testPayload {
		t.Errorf("unexpected content %s", b)
	}
}

func TestFmtBytes(t *testing.T) {
	for v, s := range map[int64]string{12: "12.00o", 2048: "2.00ko", 3 << 20: "3.00Mo", 5 << 30: "5.00Go"} {
		if fmtBytes(v) != s {
			t.Errorf("fmtBytes(%d): expected %s, got %s", v, s, fmtBytes(v))
		}
	}
}

func TestProgress(t *testing.T) {
	p := NewProgress(context.Background(), "test", 100, 5)
	wc := &WriteCounter{Progress: p}
	for i := 0; i < 10; i++ {
		wc.Write(make([]byte, 10))
	}
	if p.BytesComplete() != 100 {
		t.Errorf("expected 100 bytes, got %d", p.BytesComplete())
	}
	if p.next <= 100 {
		t.Errorf("expected all steps to be logged, next=%v", p.next)
	}
}
