package downloader

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/interface/provider"
	"github.com/airbusgeo/s2-indices/service"
)

const tileName = "S2A_MSIL2A_20240101T105441_N0510_R051_T31TCJ_20240101T134512.SAFE"

// zipProvider writes a zip containing files (name => content) as the archive of the tile
type zipProvider struct {
	name  string
	files map[string]string
	raw   []byte
	err   error
	calls int
}

func (p *zipProvider) Name() string { return p.name }

func (p *zipProvider) Download(ctx context.Context, tile common.Tile, localDir string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	archive := filepath.Join(localDir, tile.ID.Archive())
	if p.raw != nil {
		return archive, os.WriteFile(archive, p.raw, 0644)
	}
	f, err := os.Create(archive)
	if err != nil {
		return "", err
	}
	defer f.Close()
	w := zip.NewWriter(f)
	for name, content := range p.files {
		fw, err := w.Create(name)
		if err != nil {
			return "", err
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			return "", err
		}
	}
	return archive, w.Close()
}

func providers(ps ...*zipProvider) []provider.ImageProvider {
	ips := make([]provider.ImageProvider, len(ps))
	for i, p := range ps {
		ips[i] = p
	}
	return ips
}

func newTile() common.Tile {
	return common.Tile{ID: common.TileIDFromName(tileName), Product: common.Product{ID: "id", Name: tileName}}
}

func TestDownload(t *testing.T) {
	workdir := filepath.Join(t.TempDir(), "run")
	tile := newTile()
	failing := &zipProvider{name: "failing", err: service.MakeTemporary(service.ErrTransport)}
	ok := &zipProvider{name: "ok", files: map[string]string{
		tileName + "/MTD_MSIL2A.xml":                            "<a/>",
		tileName + "/GRANULE/L2A_T31TCJ/IMG_DATA/R60m/band.jp2": "",
	}}
	unused := &zipProvider{name: "unused"}

	workspace, err := Download(context.Background(), providers(failing, ok, unused), tile, workdir)
	if err != nil {
		t.Fatal(err)
	}
	if workspace != filepath.Join(workdir, tileName) {
		t.Errorf("unexpected workspace %s", workspace)
	}
	if _, err := os.Stat(filepath.Join(workspace, "MTD_MSIL2A.xml")); err != nil {
		t.Error(err)
	}
	if _, err := os.Stat(filepath.Join(workdir, tile.ID.Archive())); !os.IsNotExist(err) {
		t.Errorf("archive must be deleted after extraction")
	}
	if failing.calls != 1 || ok.calls != 1 || unused.calls != 0 {
		t.Errorf("unexpected calls %d %d %d", failing.calls, ok.calls, unused.calls)
	}
}

func TestDownloadFailed(t *testing.T) {
	workdir := t.TempDir()
	p1 := &zipProvider{name: "p1", err: service.ErrDownloadFailed}
	p2 := &zipProvider{name: "p2", err: service.MakeTemporary(service.ErrTransport)}
	_, err := Download(context.Background(), providers(p1, p2), newTile(), workdir)
	if !errors.Is(err, service.ErrTransport) || !service.Temporary(err) {
		t.Errorf("expected a temporary ErrTransport, got %v", err)
	}

	if _, err := Download(context.Background(), nil, newTile(), workdir); err == nil {
		t.Error("expected an error without provider")
	}
}

func TestDownloadCorruptArchive(t *testing.T) {
	workdir := t.TempDir()
	tile := newTile()
	p := &zipProvider{name: "corrupt", raw: []byte("PK\x03\x04 truncated")}
	_, err := Download(context.Background(), providers(p), tile, workdir)
	if !errors.Is(err, service.ErrCorruptArchive) {
		t.Fatalf("expected ErrCorruptArchive, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(workdir, tile.ID.Archive())); err != nil {
		t.Errorf("corrupt archive must be left in place")
	}
}

func TestDownloadWorkspaceName(t *testing.T) {
	// Archive not named after the tile, with a single directory
	workdir := t.TempDir()
	p := &zipProvider{name: "p", files: map[string]string{"product.SAFE/MTD_MSIL2A.xml": "<a/>", "manifest.txt": ""}}
	workspace, err := Download(context.Background(), providers(p), newTile(), workdir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(workspace) != "product.SAFE" {
		t.Errorf("unexpected workspace %s", workspace)
	}

	// No directory at all
	p = &zipProvider{name: "p", files: map[string]string{"a.txt": "", "b.txt": ""}}
	if _, err := Download(context.Background(), providers(p), newTile(), t.TempDir()); !errors.Is(err, service.ErrCorruptArchive) {
		t.Errorf("expected ErrCorruptArchive, got %v", err)
	}
}

func TestDownloadAuthFailed(t *testing.T) {
	token := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": "invalid_grant", "error_description": "Invalid user credentials"}`)
	}))
	defer token.Close()
	copernicus := provider.NewCopernicusImageProvider("user", "wrong",
		provider.WithCopernicusEndpoints(token.URL, token.URL), provider.WithHTTPClient(token.Client()))

	// Empty local mirror
	_, err := Download(context.Background(), []provider.ImageProvider{copernicus, provider.NewLocalImageProvider(t.TempDir())}, newTile(), t.TempDir())
	if !errors.Is(err, service.ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}

	// The mirror holding the archive is not tried
	mirror := &zipProvider{name: "mirror", files: map[string]string{tileName + "/MTD_MSIL2A.xml": "<a/>"}}
	_, err = Download(context.Background(), []provider.ImageProvider{copernicus, mirror}, newTile(), t.TempDir())
	if !errors.Is(err, service.ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
	if mirror.calls != 0 {
		t.Errorf("mirror must not be called after an authentication failure")
	}
}
