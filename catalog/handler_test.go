package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/gorilla/mux"
)

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest("POST", "/catalog/tiles", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoadQuery(t *testing.T) {
	now := time.Date(2024, 1, 11, 15, 4, 5, 0, time.UTC)
	q, err := LoadQuery(formRequest(url.Values{
		aoiField:        {`{"type":"Polygon","coordinates":[[[1,43],[2,43],[2,44],[1,44],[1,43]]]}`},
		dayRangeField:   {"10"},
		cloudCoverField: {"20"},
	}), now)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(q.AOI, "POLYGON") {
		t.Errorf("unexpected aoi %s", q.AOI)
	}
	if q.Start != time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) || q.End != time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC) {
		t.Errorf("unexpected period %v-%v", q.Start, q.End)
	}
	if q.CloudCover == nil || *q.CloudCover != 20 {
		t.Errorf("unexpected cloud cover %v", q.CloudCover)
	}

	for _, values := range []url.Values{
		{dayRangeField: {"10"}},
		{aoiField: {"POLYGON ((1 43, 2 43, 2 44, 1 44, 1 43))"}},
		{aoiField: {"POLYGON ((1 43, 2 43, 2 44, 1 44, 1 43))"}, dayRangeField: {"-1"}},
		{aoiField: {"POLYGON ((1 43, 2 43, 2 44, 1 44, 1 43))"}, dayRangeField: {"5"}, cloudCoverField: {"150"}},
		{aoiField: {"POLYGON ((1 43, 2 43, 2 44, 1 44, 1 43))"}, dayRangeField: {"5"}, cloudCoverField: {"NaN"}},
		{aoiField: {"not a geometry"}, dayRangeField: {"5"}},
	} {
		if _, err := LoadQuery(formRequest(values), now); err == nil {
			t.Errorf("expected an error for %v", values)
		}
	}
}

func TestLoadSelectOptions(t *testing.T) {
	opts, err := LoadSelectOptions(formRequest(url.Values{}))
	if err != nil || opts.MaxTiles != 1 {
		t.Errorf("unexpected options %+v (%v)", opts, err)
	}
	opts, err = LoadSelectOptions(formRequest(url.Values{maxTilesField: {"-1"}, minCoverageField: {"0.5"}}))
	if err != nil || opts.MaxTiles != AllTiles || opts.MinCoverage != 0.5 {
		t.Errorf("unexpected options %+v (%v)", opts, err)
	}
	if _, err = LoadSelectOptions(formRequest(url.Values{minCoverageField: {"2"}})); err == nil {
		t.Error("expected an error")
	}
}

func TestTilesHandler(t *testing.T) {
	c := &Catalog{Provider: staticProvider{products: products(l1cA, l2aA)}}
	r := mux.NewRouter()
	c.AddHandler(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, formRequest(url.Values{aoiField: {"POLYGON ((1 43, 2 43, 2 44, 1 44, 1 43))"}, dayRangeField: {"5"}}))
	if w.Code != 200 {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	var tiles []common.Tile
	if err := json.Unmarshal(w.Body.Bytes(), &tiles); err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 1 || tiles[0].ID != common.TileIDFromName(l2aA) {
		t.Errorf("unexpected tiles %v", tiles)
	}

	c.Provider = staticProvider{products: products(l1cA)}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, formRequest(url.Values{aoiField: {"POLYGON ((1 43, 2 43, 2 44, 1 44, 1 43))"}, dayRangeField: {"5"}}))
	if w.Code != 404 {
		t.Errorf("expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, formRequest(url.Values{dayRangeField: {"5"}}))
	if w.Code != 400 {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
