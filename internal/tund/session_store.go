// Package tund serves tuning sessions over HTTP and gRPC. Clients create a
// session from a configuration document, ask for suggestions, report
// measurements and read the result until the search finishes.
package tund

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/GoSim-25-26J-441/tuning-core/internal/metrics"
	"github.com/GoSim-25-26J-441/tuning-core/internal/storage"
	"github.com/GoSim-25-26J-441/tuning-core/internal/tuner"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/config"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/logger"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/utils"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionClosed   = errors.New("session is closed")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Session is one tuning session held in memory. All access to the tuner
// goes through the session mutex.
type Session struct {
	mu sync.Mutex

	info      models.Session
	tuner     *tuner.Tuner
	config    *config.Session
	callback  Callback
	collector *metrics.Collector
	labels    map[string]string
	// rounds already written to storage; the last one may grow
	persisted int
	loops     int
	notified  bool
	// loop log of the last report, captured before the state moves on
	loopLog string
	log     *slog.Logger
}

// Info returns a copy of the session description
func (s *Session) Info() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infoLocked()
}

func (s *Session) infoLocked() models.Session {
	info := s.info
	info.Parameters = append([]models.Parameter(nil), s.info.Parameters...)
	if s.info.Result != nil {
		r := *s.info.Result
		info.Result = &r
	}
	return info
}

// SuggestResponse is the batch handed to a client
type SuggestResponse struct {
	SessionID   string              `json:"session_id"`
	Finished    bool                `json:"finished"`
	Phase       string              `json:"phase"`
	Loop        int                 `json:"loop"`
	Suggestions []models.Suggestion `json:"suggestions"`
}

// StoreOption configures a SessionStore
type StoreOption func(*SessionStore)

// WithStorage persists sessions and their history
func WithStorage(db *storage.SqliteStorage) StoreOption {
	return func(s *SessionStore) { s.db = db }
}

// WithInstruments reports session activity to Prometheus
func WithInstruments(in *metrics.Instruments) StoreOption {
	return func(s *SessionStore) { s.instruments = in }
}

// WithNotifier posts a webhook when a session finishes
func WithNotifier(n *Notifier, defaultURL string) StoreOption {
	return func(s *SessionStore) {
		s.notifier = n
		s.notifyURL = defaultURL
	}
}

// SessionStore keeps live sessions in a TTL cache. A session that is not
// touched for the TTL is evicted and marked expired.
type SessionStore struct {
	cache       *cache.Cache
	db          *storage.SqliteStorage
	instruments *metrics.Instruments
	notifier    *Notifier
	notifyURL   string
	now         func() time.Time
}

// NewSessionStore creates a store whose sessions expire after ttl of
// inactivity. A non-positive ttl keeps sessions until they are closed.
func NewSessionStore(ttl time.Duration, opts ...StoreOption) *SessionStore {
	cleanup := ttl / 2
	if ttl <= 0 {
		ttl = cache.NoExpiration
		cleanup = 0
	}
	s := &SessionStore{
		cache: cache.New(ttl, cleanup),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache.OnEvicted(s.evicted)
	return s
}

// evicted runs for expired and deleted sessions alike
func (s *SessionStore) evicted(id string, v interface{}) {
	sess, ok := v.(*Session)
	if !ok {
		return
	}
	sess.mu.Lock()
	status := sess.info.Status
	if status == models.SessionStatusRunning {
		status = "expired"
		if s.db != nil {
			if err := s.db.UpdateStatus(context.Background(), id, models.SessionStatusClosed, "expired"); err != nil {
				sess.log.Warn("failed to persist expiry", "error", err)
			}
		}
	}
	sess.mu.Unlock()

	sess.log.Info("session removed", "status", string(status))
	if s.instruments != nil {
		s.instruments.SessionEnded(string(status))
	}
}

// Create builds a tuner from cfg and registers it. An empty id is replaced
// by a generated one. raw is the configuration document stored with the
// session.
func (s *SessionStore) Create(ctx context.Context, id string, cfg *config.Session, raw []byte, cb Callback) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration is required", ErrInvalidArgument)
	}
	if id == "" {
		id = utils.GenerateSessionID()
	} else if err := utils.ValidateSessionID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if cb.URL != "" {
		if err := validateCallbackURL(cb.URL); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}
	if _, ok := s.cache.Get(id); ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	t, err := tuner.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	log := logger.With("session_id", id)
	t.SetLogger(log)
	if err := t.Build(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	now := s.now()
	sess := &Session{
		info: models.Session{
			ID:         id,
			Status:     models.SessionStatusRunning,
			Algorithm:  t.Algorithm().String(),
			Parameters: t.ModelParameters(),
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		tuner:     t,
		config:    cfg,
		callback:  cb,
		collector: metrics.NewCollector(),
		labels:    metrics.SessionLabels(id),
		log:       log,
	}
	if cb.URL != "" {
		sess.info.Metadata = map[string]string{"callback_url": cb.URL}
	}
	res, err := t.Result()
	if err != nil {
		return nil, err
	}
	sess.info.Result = &res

	if err := s.cache.Add(id, sess, cache.DefaultExpiration); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	if s.db != nil {
		if raw == nil {
			if raw, err = config.MarshalSession(cfg); err != nil {
				log.Warn("failed to encode session config", "error", err)
			}
		}
		if err := s.db.SaveSession(ctx, &sess.info, raw); err != nil {
			log.Error("failed to persist session", "error", err)
		}
	}
	if s.instruments != nil {
		s.instruments.SessionCreated(sess.info.Algorithm)
	}
	sess.collector.Start()
	log.Info("session created", "algorithm", sess.info.Algorithm, "parameters", len(sess.info.Parameters))
	return sess, nil
}

// Get returns a live session and refreshes its expiry
func (s *SessionStore) Get(id string) (*Session, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess := v.(*Session)
	s.cache.SetDefault(id, sess)
	return sess, nil
}

// Lookup returns the description of a live session, or of a stored one
// when persistence is enabled.
func (s *SessionStore) Lookup(ctx context.Context, id string) (models.Session, error) {
	if sess, err := s.Get(id); err == nil {
		return sess.Info(), nil
	}
	if s.db == nil {
		return models.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	stored, _, err := s.db.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return models.Session{}, err
	}
	return *stored, nil
}

// List returns the live sessions ordered by creation time, optionally
// filtered by status.
func (s *SessionStore) List(status models.SessionStatus) []models.Session {
	items := s.cache.Items()
	out := make([]models.Session, 0, len(items))
	for _, item := range items {
		sess, ok := item.Object.(*Session)
		if !ok {
			continue
		}
		info := sess.Info()
		if status != "" && info.Status != status {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Suggest returns the current batch of suggestions
func (s *SessionStore) Suggest(id string) (*SuggestResponse, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.info.Status == models.SessionStatusClosed {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}

	coords, err := sess.tuner.SuggestedCoordinates()
	if err != nil {
		return nil, err
	}
	resp := &SuggestResponse{
		SessionID:   id,
		Finished:    sess.tuner.Finished(),
		Phase:       sess.tuner.Operator().PhaseName(),
		Loop:        sess.tuner.Operator().LoopCount(),
		Suggestions: make([]models.Suggestion, 0, len(coords)),
	}
	for _, c := range coords {
		values, err := sess.tuner.Values(c)
		if err != nil {
			return nil, err
		}
		resp.Suggestions = append(resp.Suggestions, models.Suggestion{Coordinate: append([]int(nil), c...), Values: values})
	}
	return resp, nil
}

// Tell reports measurements. Each one names its point by coordinate or, when
// the coordinate is empty, by parameter values.
func (s *SessionStore) Tell(ctx context.Context, id string, measured []models.Measurement) (models.Result, error) {
	sess, err := s.Get(id)
	if err != nil {
		return models.Result{}, err
	}
	if len(measured) == 0 {
		return models.Result{}, fmt.Errorf("%w: no measurements", ErrInvalidArgument)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.info.Status == models.SessionStatusClosed {
		return models.Result{}, fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}
	return s.tellLocked(ctx, sess, measured)
}

// TellValues reports values for the current batch in suggestion order.
// Fewer values than suggestions is allowed.
func (s *SessionStore) TellValues(ctx context.Context, id string, values []float64) (models.Result, error) {
	sess, err := s.Get(id)
	if err != nil {
		return models.Result{}, err
	}
	if len(values) == 0 {
		return models.Result{}, fmt.Errorf("%w: no values", ErrInvalidArgument)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.info.Status == models.SessionStatusClosed {
		return models.Result{}, fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}
	coords, err := sess.tuner.SuggestedCoordinates()
	if err != nil {
		return models.Result{}, err
	}
	if len(values) > len(coords) {
		return models.Result{}, fmt.Errorf("%w: %w: %d values for %d suggestions",
			ErrInvalidArgument, tuner.ErrTooManyValues, len(values), len(coords))
	}
	measured := make([]models.Measurement, len(values))
	for i, v := range values {
		measured[i] = models.Measurement{Coordinate: []int(coords[i]), Value: v}
	}
	return s.tellLocked(ctx, sess, measured)
}

// tellLocked validates and applies measurements; caller holds sess.mu
func (s *SessionStore) tellLocked(ctx context.Context, sess *Session, measured []models.Measurement) (models.Result, error) {
	// resolve everything before touching the tuner so a bad entry reports
	// nothing
	resolved := make([]models.Measurement, len(measured))
	for i, m := range measured {
		r, err := sess.resolve(m)
		if err != nil {
			return models.Result{}, fmt.Errorf("measurement %d: %w", i, err)
		}
		resolved[i] = r
	}
	for _, m := range resolved {
		if err := sess.tuner.SetMetricValueAt(m.Coordinate, m.Value, m.Start, m.End); err != nil {
			return models.Result{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		if s.instruments != nil {
			var span time.Duration
			if !m.Start.IsZero() && !m.End.IsZero() {
				span = m.End.Sub(m.Start)
			}
			s.instruments.Measured(sess.info.Algorithm, span)
		}
	}

	var loopLog bytes.Buffer
	if err := sess.tuner.WriteLoopLog(&loopLog); err != nil {
		return models.Result{}, err
	}
	sess.loopLog = loopLog.String()

	res, err := sess.tuner.Result()
	if err != nil {
		return models.Result{}, err
	}
	metrics.RecordRound(sess.collector, resolved, res, sess.labels)
	if s.instruments != nil {
		for ; sess.loops < res.Loop; sess.loops++ {
			s.instruments.RoundCompleted(sess.info.Algorithm)
		}
	}

	sess.info.Result = &res
	sess.info.UpdatedAt = s.now()
	if res.Finished && sess.info.Status == models.SessionStatusRunning {
		sess.info.Status = models.SessionStatusFinished
		sess.collector.Stop()
		sess.log.Info("search finished", "loop", res.Loop, "measured", res.Measured)
	}
	s.persist(ctx, sess)
	if sess.info.Status == models.SessionStatusFinished && !sess.notified {
		sess.notified = true
		s.notify(sess)
	}
	return res, nil
}

func (s *Session) resolve(m models.Measurement) (models.Measurement, error) {
	if len(m.Coordinate) == 0 {
		if len(m.Values) == 0 {
			return m, fmt.Errorf("%w: coordinate or values required", ErrInvalidArgument)
		}
		c, err := s.tuner.Coordinate(m.Values)
		if err != nil {
			return m, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		m.Coordinate = []int(c)
	}
	values, err := s.tuner.Values(m.Coordinate)
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	m.Values = values
	if !m.Start.IsZero() && m.End.Before(m.Start) {
		return m, fmt.Errorf("%w: end before start", ErrInvalidArgument)
	}
	return m, nil
}

// persist writes the session row and the rounds recorded since the last
// call; caller holds sess.mu.
func (s *SessionStore) persist(ctx context.Context, sess *Session) {
	if s.db == nil {
		return
	}
	if err := s.db.SaveSession(ctx, &sess.info, nil); err != nil {
		sess.log.Error("failed to persist session", "error", err)
		return
	}
	history := sess.tuner.History()
	from := sess.persisted - 1
	if from < 0 {
		from = 0
	}
	for _, r := range history[min(from, len(history)):] {
		if err := s.db.AppendRound(ctx, sess.info.ID, r); err != nil {
			sess.log.Error("failed to persist round", "loop", r.Loop, "error", err)
			return
		}
	}
	sess.persisted = len(history)
}

func (s *SessionStore) notify(sess *Session) {
	if s.notifier == nil {
		return
	}
	cb := sess.callback
	if cb.URL == "" {
		cb = Callback{URL: s.notifyURL}
	}
	s.notifier.Notify(cb, sess.infoLocked())
}

// Result returns the current result of a live session
func (s *SessionStore) Result(id string) (models.Result, error) {
	sess, err := s.Get(id)
	if err != nil {
		return models.Result{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.tuner.Result()
}

// Replay returns the replay document of a live session
func (s *SessionStore) Replay(id string) (*tuner.Replay, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.tuner.Snapshot()
}

// History returns the round history of a session, read from storage when
// the session is no longer in memory.
func (s *SessionStore) History(ctx context.Context, id string) ([]models.Round, error) {
	if sess, err := s.Get(id); err == nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.tuner.History(), nil
	}
	if s.db == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if _, _, err := s.db.GetSession(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, err
	}
	return s.db.LoadHistory(ctx, id)
}

// Trace aggregates the measurement trace of a live session
func (s *SessionStore) Trace(id string) (*metrics.Trace, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return metrics.ConvertToTrace(sess.collector, sess.labels), nil
}

// WithTuner runs fn with exclusive access to the session's tuner
func (s *SessionStore) WithTuner(id string, fn func(*tuner.Tuner) error) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess.tuner)
}

// Close marks the session closed, persists it and drops it from memory
func (s *SessionStore) Close(ctx context.Context, id string) (models.Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return models.Session{}, err
	}
	sess.mu.Lock()
	sess.info.Status = models.SessionStatusClosed
	sess.info.UpdatedAt = s.now()
	sess.collector.Stop()
	s.persist(ctx, sess)
	info := sess.infoLocked()
	sess.mu.Unlock()

	s.cache.Delete(id)
	return info, nil
}

// Count returns the number of live sessions
func (s *SessionStore) Count() int {
	return s.cache.ItemCount()
}

// Config returns the configuration a live session was created from
func (s *SessionStore) Config(id string) (*config.Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.config, nil
}

// ListStored returns every persisted session, nil without storage
func (s *SessionStore) ListStored(ctx context.Context) ([]*models.Session, error) {
	if s.db == nil {
		return nil, nil
	}
	return s.db.ListSessions(ctx)
}

// Instruments returns the Prometheus instruments, nil when disabled
func (s *SessionStore) Instruments() *metrics.Instruments {
	return s.instruments
}

// LoopLog returns the loop log printed for the last report
func (s *SessionStore) LoopLog(id string) (string, error) {
	sess, err := s.Get(id)
	if err != nil {
		return "", err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.loopLog, nil
}
