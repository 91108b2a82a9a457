package wms

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/seyi/mapserver/internal/collaborators"
	"github.com/seyi/mapserver/internal/config"
	"github.com/seyi/mapserver/internal/log"
	"github.com/seyi/mapserver/internal/mapconfig"
)

// MapSource supplies the current master Map Configuration Tree. The
// concrete implementation (parsing a mapfile on disk, polling a config
// service, ...) is an out-of-scope collaborator per spec.md §1; cmd/mapservd
// wires whatever MapSource its deployment needs.
type MapSource interface {
	Load(ctx context.Context) (*mapconfig.Map, error)
}

// Server adapts http.Request (CGI's ingress in spec.md §6, re-imagined
// as an http.Server per SPEC_FULL.md §1) to Dispatch, re-resolving the
// master Map and UpdateSequence on every request so a mapfile reload or
// a bumped sequence is visible without a restart.
type Server struct {
	Maps          MapSource
	Collaborators collaborators.Set
	Store         *config.Store
	MaxSize       int

	mu sync.Mutex
}

// Router builds the gorilla/mux router GetMap/GetCapabilities/etc. are
// served from. WMS requests arrive as both GET (query string) and POST
// (form-encoded body); both are accepted at the same path, matching the
// CGI front door's indifference to method (spec.md §6).
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/wms", s.ServeWMS).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/", s.ServeWMS).Methods(http.MethodGet, http.MethodPost)
	return r
}

func (s *Server) ServeWMS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	master, err := s.Maps.Load(ctx)
	if err != nil {
		log.G(ctx).WithError(err).Error("load map configuration")
		http.Error(w, "map configuration unavailable", http.StatusInternalServerError)
		return
	}

	updateSequence := "0"
	if s.Store != nil {
		if v, err := s.Store.UpdateSequence(); err == nil {
			updateSequence = v
		} else {
			log.G(ctx).WithError(err).Warn("read update sequence")
		}
	}

	params, err := paramsFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	deps := Deps{
		Collaborators:  s.Collaborators,
		UpdateSequence: updateSequence,
		MaxSize:        s.MaxSize,
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	status := Dispatch(ctx, w, master, params, deps)
	if status == StatusDone {
		http.Error(w, "not a WMS request", http.StatusBadRequest)
	}
}

// paramsFromRequest decodes the GET query string or POST form into the
// Dispatcher's ordered Params (spec.md §6 "Wire protocol (ingress)").
func paramsFromRequest(r *http.Request) (Params, error) {
	var values map[string][]string
	switch r.Method {
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		values = r.PostForm
	default:
		values = r.URL.Query()
	}

	var params Params
	for name, vs := range values {
		for _, v := range vs {
			params = append(params, Param{Name: name, Value: v})
		}
	}
	return params, nil
}
