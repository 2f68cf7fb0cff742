package emulator

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ps2ble/bondmgr/api/companion"
)

// Options describes the server options.
type Options struct {
	// Prefix is the path under which the service endpoints are mounted.
	// Defaults to companion.DefaultPrefix.
	Prefix string

	// AllowedOrigins lists the origins allowed to call the service
	// from a browser. Defaults to any origin.
	AllowedOrigins []string

	Metrics *Metrics
	Logger  zerolog.Logger
}

// Server serves the companion REST interface from a Store.
type Server struct {
	store   *Store
	prefix  string
	origins []string
	metrics *Metrics
	log     zerolog.Logger
}

// NewServer returns a new server for the store.
func NewServer(store *Store, opts Options) *Server {
	if opts.Prefix == "" {
		opts.Prefix = companion.DefaultPrefix
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	return &Server{
		store:   store,
		prefix:  opts.Prefix,
		origins: opts.AllowedOrigins,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
}

// Router returns the HTTP handler of the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(s.accessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route(s.prefix, func(r chi.Router) {
		r.Get("/bonded-devices", s.handleBondedDevices)
		r.Post("/bonded-devices/delete", s.handleDeleteBond)
		r.Post("/scan-mode", s.handleScanMode)
		r.Get("/last-connected-device", s.handleLastConnected)
	})

	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		duration := time.Since(start)
		s.metrics.ObserveHTTPRequest(r.Method, path, ww.Status(), duration)

		s.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", duration.Milliseconds()).
			Msg("http_request")
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"scanMode": s.store.ScanMode(),
	})
}

func (s *Server) handleBondedDevices(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, companion.BondedDevicesResponse{
		BondedDevices: s.store.BondedDevices(),
	})
}

func (s *Server) handleDeleteBond(w http.ResponseWriter, r *http.Request) {
	var req companion.DeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Address == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "address is required")
		return
	}
	if !req.AddressType.Valid() {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "addressType must be public or random")
		return
	}

	s.writeJSON(w, http.StatusOK, s.store.DeleteBond(req.Address, req.AddressType))
}

func (s *Server) handleScanMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScanMode *companion.ScanMode `json:"scanMode"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.ScanMode == nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "scanMode is required")
		return
	}

	if err := s.store.SetScanMode(*req.ScanMode); err != nil {
		if errors.Is(err, ErrInvalidScanMode) {
			s.writeError(w, http.StatusBadRequest, "invalid_scan_mode", err.Error())
			return
		}

		s.log.Error().Err(err).Msg("set scan mode failed")
		s.writeError(w, http.StatusInternalServerError, "internal_error", "set scan mode failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLastConnected(w http.ResponseWriter, _ *http.Request) {
	var resp companion.LastConnectedResponse
	if device, ok := s.store.LastConnectedDevice(); ok {
		resp.Exists = true
		resp.LastConnectedDevice = &device
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()

	return dec.Decode(dst)
}
