package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/airbusgeo/s2-indices/catalog"
	"github.com/airbusgeo/s2-indices/common"
	db "github.com/airbusgeo/s2-indices/interface/database"
	"github.com/airbusgeo/s2-indices/processor"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// SessionCookie is the name of the cookie holding the session id
const SessionCookie = "session_id"

const (
	usernameField = "username"
	passwordField = "password"
)

// sessions are kept in memory
type sessions struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func (ss *sessions) add(s Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.sessions == nil {
		ss.sessions = map[string]Session{}
	}
	ss.sessions[s.ID] = s
}

func (ss *sessions) get(id string) (Session, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	s, ok := ss.sessions[id]
	return s, ok
}

// Server exposes the workflow through http
type Server struct {
	wf       *Workflow
	sessions sessions
}

// NewServer creates a new Server
func NewServer(wf *Workflow) *Server {
	return &Server{wf: wf}
}

// NewHandler returns the router of the server
func (srv *Server) NewHandler() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/login", srv.LoginHandler).Methods("POST")
	r.HandleFunc("/download_tile", srv.DownloadTileHandler).Methods("POST")
	r.HandleFunc("/metadata", srv.MetadataHandler).Methods("GET")
	r.HandleFunc("/metadata/{field}", srv.MetadataFieldHandler).Methods("GET")
	r.HandleFunc("/tiles", srv.ListTilesHandler).Methods("GET")
	r.HandleFunc("/{index:ndvi|ndwi|ndbi|ndmi}", srv.IndexImageHandler).Methods("GET")
	srv.wf.catalog.AddHandler(r)
	return r
}

func writeJSON(w http.ResponseWriter, req *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Logger(req.Context()).Sugar().Warnf("writeJSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, req *http.Request, status int, err error) {
	writeJSON(w, req, status, map[string]string{"error": err.Error()})
}

// session returns the session of the request or writes 401
func (srv *Server) session(w http.ResponseWriter, req *http.Request) (Session, bool) {
	if c, err := req.Cookie(SessionCookie); err == nil {
		if s, ok := srv.sessions.get(c.Value); ok {
			return s, true
		}
	}
	writeError(w, req, http.StatusUnauthorized, fmt.Errorf("not logged in"))
	return Session{}, false
}

// lastMetadata returns the metadata of the last tile processed by the session or writes 404
func (srv *Server) lastMetadata(w http.ResponseWriter, req *http.Request, s Session) (db.TileMetadata, bool) {
	m, err := srv.wf.db.LastMetadata(req.Context(), s.ID)
	var nf db.ErrNotFound
	switch {
	case errors.As(err, &nf):
		writeError(w, req, http.StatusNotFound, fmt.Errorf("no tile processed yet"))
		return m, false
	case err != nil:
		log.Logger(req.Context()).Sugar().Warnf("lastMetadata.%v", err)
		writeError(w, req, http.StatusInternalServerError, err)
		return m, false
	}
	return m, true
}

// LoginHandler checks the credentials (username, password) and opens a session
func (srv *Server) LoginHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	s := Session{
		ID:       uuid.New().String(),
		Username: req.FormValue(usernameField),
		Password: req.FormValue(passwordField),
	}
	if s.Username == "" || s.Password == "" {
		writeError(w, req, http.StatusBadRequest, fmt.Errorf("missing required fields: '%s', '%s'", usernameField, passwordField))
		return
	}
	token, err := srv.wf.Login(ctx, s)
	switch {
	case errors.Is(err, service.ErrAuthFailed):
		log.Logger(ctx).Sugar().Infof("login %s: %v", s.Username, err)
		writeError(w, req, http.StatusUnauthorized, err)
		return
	case err != nil:
		writeError(w, req, http.StatusBadGateway, err)
		return
	}
	srv.sessions.add(s)
	cookie := &http.Cookie{Name: SessionCookie, Value: s.ID, Path: "/", HttpOnly: true}
	if !token.Expiry.IsZero() {
		cookie.Expires = token.Expiry
	}
	http.SetCookie(w, cookie)
	writeJSON(w, req, http.StatusOK, map[string]string{"message": "login successful"})
}

// DownloadTileHandler runs the pipeline with the aoi, day_range, cloud_cover (and max_tiles, min_coverage) fields
func (srv *Server) DownloadTileHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	s, ok := srv.session(w, req)
	if !ok {
		return
	}
	q, err := catalog.LoadQuery(req, srv.wf.now())
	if err != nil {
		writeError(w, req, http.StatusBadRequest, err)
		return
	}
	opts, err := catalog.LoadSelectOptions(req)
	if err != nil {
		writeError(w, req, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	res, err := srv.wf.RunQuery(ctx, s, q, opts)
	log.Logger(ctx).Sugar().Infof("run %s in %v", res.Outcome, time.Since(start))

	status := http.StatusOK
	switch res.Outcome {
	case common.OutcomeNoTilesFound:
		status = http.StatusNotFound
	case common.OutcomeDownloadFailed:
		status = http.StatusBadGateway
	case common.OutcomeFailed:
		status = http.StatusBadGateway
		if errors.Is(err, service.ErrAuthFailed) {
			status = http.StatusUnauthorized
		}
	}
	writeJSON(w, req, status, res.ToCommon(s.ID, err))
}

// MetadataHandler returns the metadata of the last tile processed by the session
func (srv *Server) MetadataHandler(w http.ResponseWriter, req *http.Request) {
	s, ok := srv.session(w, req)
	if !ok {
		return
	}
	if m, ok := srv.lastMetadata(w, req, s); ok {
		writeJSON(w, req, http.StatusOK, m.Metadata)
	}
}

// MetadataFieldHandler returns one field of the metadata of the last tile processed by the session
func (srv *Server) MetadataFieldHandler(w http.ResponseWriter, req *http.Request) {
	field := mux.Vars(req)["field"]
	s, ok := srv.session(w, req)
	if !ok {
		return
	}
	if !processor.IsMetadataField(field) {
		writeError(w, req, http.StatusNotFound, fmt.Errorf("unknown field: %s", field))
		return
	}
	m, ok := srv.lastMetadata(w, req, s)
	if !ok {
		return
	}
	if m.Metadata == nil {
		writeError(w, req, http.StatusNotFound, fmt.Errorf("no metadata for %s", m.TileID))
		return
	}
	writeJSON(w, req, http.StatusOK, map[string]*string{field: m.Metadata[field]})
}

// IndexImageHandler sends the image of the index of the last tile processed by the session
func (srv *Server) IndexImageHandler(w http.ResponseWriter, req *http.Request) {
	kind, err := common.IndexKindString(mux.Vars(req)["index"])
	if err != nil {
		writeError(w, req, http.StatusNotFound, err)
		return
	}
	s, ok := srv.session(w, req)
	if !ok {
		return
	}
	m, ok := srv.lastMetadata(w, req, s)
	if !ok {
		return
	}
	path, ok := m.Images[kind]
	if !ok {
		writeError(w, req, http.StatusNotFound, fmt.Errorf("%s not available for %s", kind, m.TileID))
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeError(w, req, http.StatusNotFound, fmt.Errorf("%s not available for %s", kind, m.TileID))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, req, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", kind.MapName()))
	http.ServeContent(w, req, kind.MapName(), info.ModTime(), f)
}

// ListTilesHandler lists the metadata of the processed tiles (pattern, page, limit)
func (srv *Server) ListTilesHandler(w http.ResponseWriter, req *http.Request) {
	if _, ok := srv.session(w, req); !ok {
		return
	}
	page, _ := strconv.Atoi(req.FormValue("page"))
	limit, err := strconv.Atoi(req.FormValue("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	tiles, err := srv.wf.db.ListMetadata(req.Context(), req.FormValue("pattern"), page, limit)
	if err != nil {
		log.Logger(req.Context()).Sugar().Warnf("ListTilesHandler.%v", err)
		writeError(w, req, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, req, http.StatusOK, tiles)
}
