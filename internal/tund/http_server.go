package tund

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/tuning-core/internal/tuner"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/config"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/logger"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
)

const maxBodyBytes = 1 << 20

type HTTPServer struct {
	mux   *http.ServeMux
	store *SessionStore
}

func NewHTTPServer(store *SessionStore) *HTTPServer {
	s := &HTTPServer{
		mux:   http.NewServeMux(),
		store: store,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/sessions", s.handleSessions)
	s.mux.HandleFunc("/v1/sessions/", s.handleSessionByID)
	if in := store.Instruments(); in != nil {
		s.mux.Handle("/metrics", in.Handler())
	}

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"sessions":  s.store.Count(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSessions handles /v1/sessions
func (s *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	case http.MethodGet:
		s.handleListSessions(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSessionByID handles /v1/sessions/{id} and its sub-resources:
// :close, /suggest, /measurements, /result, /replay, /history, /log,
// /trace and /config.
func (s *HTTPServer) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	if strings.HasSuffix(path, ":close") {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleClose(w, r, strings.TrimSuffix(path, ":close"))
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	type route struct {
		method string
		handle func(http.ResponseWriter, *http.Request, string)
	}
	routes := map[string]route{
		"suggest":      {http.MethodGet, s.handleSuggest},
		"measurements": {http.MethodPost, s.handleTell},
		"result":       {http.MethodGet, s.handleResult},
		"replay":       {http.MethodGet, s.handleReplay},
		"history":      {http.MethodGet, s.handleHistory},
		"log":          {http.MethodGet, s.handleLog},
		"trace":        {http.MethodGet, s.handleTrace},
		"config":       {http.MethodGet, s.handleConfig},
	}

	if sub == "" {
		switch r.Method {
		case http.MethodGet:
			s.handleGetSession(w, r, id)
		case http.MethodDelete:
			s.handleClose(w, r, id)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	rt, ok := routes[sub]
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown resource: "+sub)
		return
	}
	if r.Method != rt.method {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rt.handle(w, r, id)
}

type createSessionRequest struct {
	SessionID string          `json:"session_id,omitempty"`
	Config    json.RawMessage `json:"config"`
	Callback  Callback        `json:"callback,omitempty"`
}

// handleCreateSession handles POST /v1/sessions. A YAML body is the session
// configuration itself, with session_id, callback_url and callback_secret
// taken from the query; a JSON body wraps the configuration.
func (s *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, "create", http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}

	var (
		req createSessionRequest
		raw []byte
	)
	if isYAML(r.Header.Get("Content-Type")) {
		q := r.URL.Query()
		req.SessionID = q.Get("session_id")
		req.Callback = Callback{URL: q.Get("callback_url"), Secret: q.Get("callback_secret")}
		raw = body
	} else {
		if err := json.Unmarshal(body, &req); err != nil {
			s.fail(w, "create", http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if len(bytes.TrimSpace(req.Config)) == 0 {
			s.fail(w, "create", http.StatusBadRequest, "config is required")
			return
		}
		raw = req.Config
	}

	cfg, err := config.ParseSessionYAML(raw)
	if err != nil {
		s.fail(w, "create", http.StatusBadRequest, err.Error())
		return
	}
	// keep the stored document in YAML whatever the request used
	if !isYAML(r.Header.Get("Content-Type")) {
		raw = nil
	}

	sess, err := s.store.Create(r.Context(), req.SessionID, cfg, raw, req.Callback)
	if err != nil {
		s.writeStoreError(w, "create", err)
		return
	}

	info := sess.Info()
	logger.Info("session created (HTTP)", "session_id", info.ID)
	s.count("create", codes.OK)
	s.writeJSON(w, http.StatusCreated, map[string]any{"session": info})
}

func isYAML(contentType string) bool {
	return strings.Contains(contentType, "yaml")
}

// handleListSessions handles GET /v1/sessions. ?status filters live
// sessions; ?stored=true lists persisted sessions instead.
func (s *HTTPServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("stored") == "true" {
		stored, err := s.store.ListStored(r.Context())
		if err != nil {
			s.writeStoreError(w, "list", err)
			return
		}
		if stored == nil {
			s.fail(w, "list", http.StatusPreconditionFailed, "persistence is disabled")
			return
		}
		s.count("list", codes.OK)
		s.writeJSON(w, http.StatusOK, map[string]any{"sessions": stored})
		return
	}

	sessions := s.store.List(models.SessionStatus(q.Get("status")))
	s.count("list", codes.OK)
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request, id string) {
	info, err := s.store.Lookup(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "get", err)
		return
	}
	s.count("get", codes.OK)
	s.writeJSON(w, http.StatusOK, map[string]any{"session": info})
}

func (s *HTTPServer) handleClose(w http.ResponseWriter, r *http.Request, id string) {
	info, err := s.store.Close(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "close", err)
		return
	}
	logger.Info("session closed (HTTP)", "session_id", id)
	s.count("close", codes.OK)
	s.writeJSON(w, http.StatusOK, map[string]any{"session": info})
}

func (s *HTTPServer) handleSuggest(w http.ResponseWriter, _ *http.Request, id string) {
	resp, err := s.store.Suggest(id)
	if err != nil {
		s.writeStoreError(w, "suggest", err)
		return
	}
	s.count("suggest", codes.OK)
	s.writeJSON(w, http.StatusOK, resp)
}

type tellRequest struct {
	Measurements []models.Measurement `json:"measurements,omitempty"`
	Values       []float64            `json:"values,omitempty"`
}

// handleTell handles POST /v1/sessions/{id}/measurements. The body carries
// either explicit measurements or plain values for the current batch.
func (s *HTTPServer) handleTell(w http.ResponseWriter, r *http.Request, id string) {
	var req tellRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.fail(w, "tell", http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var (
		res models.Result
		err error
	)
	switch {
	case len(req.Measurements) > 0 && len(req.Values) > 0:
		s.fail(w, "tell", http.StatusBadRequest, "measurements and values are exclusive")
		return
	case len(req.Values) > 0:
		res, err = s.store.TellValues(r.Context(), id, req.Values)
	default:
		res, err = s.store.Tell(r.Context(), id, req.Measurements)
	}
	if err != nil {
		s.writeStoreError(w, "tell", err)
		return
	}
	s.count("tell", codes.OK)
	s.writeJSON(w, http.StatusOK, map[string]any{"result": res})
}

func (s *HTTPServer) handleResult(w http.ResponseWriter, _ *http.Request, id string) {
	res, err := s.store.Result(id)
	if err != nil {
		s.writeStoreError(w, "result", err)
		return
	}
	s.count("result", codes.OK)
	s.writeJSON(w, http.StatusOK, map[string]any{"result": res})
}

// handleReplay handles GET /v1/sessions/{id}/replay; ?format=yaml returns
// the document ExportYAML writes.
func (s *HTTPServer) handleReplay(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := s.store.Replay(id)
	if err != nil {
		s.writeStoreError(w, "replay", err)
		return
	}
	s.count("replay", codes.OK)
	if r.URL.Query().Get("format") == "yaml" {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			logger.Error("failed to encode replay", "session_id", id, "error", err)
		}
		_ = enc.Close()
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request, id string) {
	rounds, err := s.store.History(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "history", err)
		return
	}
	if rounds == nil {
		rounds = []models.Round{}
	}
	s.count("history", codes.OK)
	s.writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "rounds": rounds})
}

// handleLog handles GET /v1/sessions/{id}/log?kind=viewer|loop|result|space
// and returns the printer output as plain text.
func (s *HTTPServer) handleLog(w http.ResponseWriter, r *http.Request, id string) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "viewer"
	}
	var buf bytes.Buffer
	var err error
	if kind == "loop" {
		var text string
		text, err = s.store.LoopLog(id)
		buf.WriteString(text)
	} else {
		err = s.store.WithTuner(id, func(t *tuner.Tuner) error {
			switch kind {
			case "viewer":
				return t.WriteViewerLog(&buf)
			case "result":
				return t.WriteResult(&buf)
			case "space":
				return t.WriteSearchSpace(&buf, -1)
			default:
				return errUnknownLog
			}
		})
	}
	switch {
	case errors.Is(err, errUnknownLog):
		s.fail(w, "log", http.StatusBadRequest, "unknown log kind: "+kind)
		return
	case errors.Is(err, tuner.ErrNoHistory):
		s.fail(w, "log", http.StatusPreconditionFailed, "session does not record its history")
		return
	case err != nil:
		s.writeStoreError(w, "log", err)
		return
	}
	s.count("log", codes.OK)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

var errUnknownLog = errors.New("unknown log kind")

func (s *HTTPServer) handleTrace(w http.ResponseWriter, _ *http.Request, id string) {
	tr, err := s.store.Trace(id)
	if err != nil {
		s.writeStoreError(w, "trace", err)
		return
	}
	s.count("trace", codes.OK)
	s.writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "trace": tr})
}

func (s *HTTPServer) handleConfig(w http.ResponseWriter, _ *http.Request, id string) {
	cfg, err := s.store.Config(id)
	if err != nil {
		s.writeStoreError(w, "config", err)
		return
	}
	out, err := config.MarshalSession(cfg)
	if err != nil {
		s.writeStoreError(w, "config", err)
		return
	}
	s.count("config", codes.OK)
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *HTTPServer) count(operation string, code codes.Code) {
	if in := s.store.Instruments(); in != nil {
		in.Request("http", operation, resultLabel(code))
	}
}

func (s *HTTPServer) writeStoreError(w http.ResponseWriter, operation string, err error) {
	code := errorCode(err)
	if code == codes.Internal {
		logger.Error("request failed", "operation", operation, "error", err)
	}
	s.count(operation, code)
	s.writeError(w, httpStatus(code), err.Error())
}

// fail writes a request error that did not come from the store
func (s *HTTPServer) fail(w http.ResponseWriter, operation string, status int, message string) {
	code := codes.InvalidArgument
	if status == http.StatusPreconditionFailed {
		code = codes.FailedPrecondition
	}
	s.count(operation, code)
	s.writeError(w, status, message)
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
