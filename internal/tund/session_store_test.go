package tund

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/tuning-core/internal/metrics"
	"github.com/GoSim-25-26J-441/tuning-core/internal/storage"
	"github.com/GoSim-25-26J-441/tuning-core/internal/tuner"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/utils"
)

func TestSessionStoreCreate(t *testing.T) {
	store := newTestStore()
	sess, err := store.Create(t.Context(), "", mustConfig(t, bowlConfig), nil, Callback{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	info := sess.Info()
	if info.ID == "" {
		t.Fatalf("expected a generated session id")
	}
	if info.Status != models.SessionStatusRunning || info.Algorithm != "S_2018" {
		t.Errorf("unexpected session %+v", info)
	}
	if len(info.Parameters) != 2 || info.Parameters[1].Name != "y" {
		t.Errorf("unexpected parameters %+v", info.Parameters)
	}
	if info.Result == nil || info.Result.Total != 25 {
		t.Errorf("expected an initial result over 25 points, got %+v", info.Result)
	}
	if store.Count() != 1 {
		t.Errorf("expected 1 session, got %d", store.Count())
	}
}

func TestSessionStoreCreateErrors(t *testing.T) {
	store := newTestStore()
	if _, err := store.Create(t.Context(), "dup", mustConfig(t, bowlConfig), nil, Callback{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name string
		id   string
		cb   Callback
		want error
	}{
		{"duplicate id", "dup", Callback{}, ErrSessionExists},
		{"id with slash", "a/b", Callback{}, ErrInvalidArgument},
		{"internal callback", "cb", Callback{URL: "http://10.0.0.1/hook"}, ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Create(t.Context(), tt.id, mustConfig(t, bowlConfig), nil, tt.cb)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := store.Create(t.Context(), "", nil, nil, Callback{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil config: expected ErrInvalidArgument, got %v", err)
	}
}

func TestSessionStoreSuggestTellFinish(t *testing.T) {
	store := newTestStore()
	if _, err := store.Create(t.Context(), "bowl", mustConfig(t, bowlConfig), nil, Callback{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := store.Suggest("bowl")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(first.Suggestions) == 0 || first.Suggestions[0].Values[0] != 2 || first.Suggestions[0].Values[1] != 2 {
		t.Fatalf("expected the centre first, got %+v", first.Suggestions)
	}

	res := driveToFinish(t, store, "bowl")
	if res.Value == nil || *res.Value > 1 {
		t.Fatalf("expected a best value of at most 1, got %+v", res)
	}
	if res.Best == nil || bowlValue(res.Best.Values) != *res.Value {
		t.Fatalf("best %+v does not match its value", res.Best)
	}

	info, err := store.Lookup(t.Context(), "bowl")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if info.Status != models.SessionStatusFinished {
		t.Errorf("expected finished status, got %s", info.Status)
	}

	history, err := store.History(t.Context(), "bowl")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	measured := 0
	for _, r := range history {
		measured += len(r.Measured)
	}
	if measured < res.Measured {
		t.Errorf("history holds %d measurements, result counts %d points", measured, res.Measured)
	}

	tr, err := store.Trace("bowl")
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if tr.Measurements < int64(res.Measured) || tr.Best == nil || *tr.Best != *res.Value {
		t.Errorf("unexpected trace %+v", tr)
	}
}

func TestSessionStoreTellByValues(t *testing.T) {
	store := newTestStore()
	if _, err := store.Create(t.Context(), "v", mustConfig(t, bowlConfig), nil, Callback{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	start := time.Now()
	res, err := store.Tell(t.Context(), "v", []models.Measurement{
		{Values: []float64{2, 2}, Value: 1, Start: start, End: start.Add(time.Millisecond)},
	})
	if err != nil {
		t.Fatalf("Tell: %v", err)
	}
	if res.Measured != 1 {
		t.Fatalf("expected 1 measured point, got %d", res.Measured)
	}

	tests := []struct {
		name string
		m    models.Measurement
	}{
		{"unknown value", models.Measurement{Values: []float64{2, 9}, Value: 1}},
		{"nothing named", models.Measurement{Value: 1}},
		{"out of range", models.Measurement{Coordinate: []int{5, 0}, Value: 1}},
		{"end before start", models.Measurement{Coordinate: []int{0, 0}, Value: 1, Start: start, End: start.Add(-time.Second)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Tell(t.Context(), "v", []models.Measurement{tt.m}); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}

	if _, err := store.TellValues(t.Context(), "v", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}); !errors.Is(err, tuner.ErrTooManyValues) {
		t.Fatalf("expected ErrTooManyValues, got %v", err)
	}
	if _, err := store.Tell(t.Context(), "v", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty tell: expected ErrInvalidArgument, got %v", err)
	}
}

func TestSessionStoreClose(t *testing.T) {
	in := metrics.NewInstruments()
	store := newTestStore(WithInstruments(in))
	if _, err := store.Create(t.Context(), "c", mustConfig(t, bowlConfig), nil, Callback{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	info, err := store.Close(t.Context(), "c")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if info.Status != models.SessionStatusClosed {
		t.Errorf("expected closed, got %s", info.Status)
	}
	if _, err := store.Suggest("c"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after close, got %v", err)
	}
	if _, err := store.Close(t.Context(), "c"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second close: expected ErrSessionNotFound, got %v", err)
	}

	reg := in.Registry()
	if v := counterValue(t, reg, "dsice_sessions_ended_total", map[string]string{"status": "closed"}); v != 1 {
		t.Errorf("expected 1 closed session, got %v", v)
	}
	if v := counterValue(t, reg, "dsice_sessions_active", nil); v != 0 {
		t.Errorf("expected no active sessions, got %v", v)
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	in := metrics.NewInstruments()
	store := NewSessionStore(40*time.Millisecond, WithInstruments(in))
	if _, err := store.Create(t.Context(), "idle", mustConfig(t, bowlConfig), nil, Callback{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if counterValue(t, in.Registry(), "dsice_sessions_ended_total", map[string]string{"status": "expired"}) == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if _, err := store.Get("idle"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected the idle session to expire, got %v", err)
	}
	if v := counterValue(t, in.Registry(), "dsice_sessions_ended_total", map[string]string{"status": "expired"}); v != 1 {
		t.Fatalf("expected one expired session, got %v", v)
	}
}

func TestSessionStoreList(t *testing.T) {
	store := newTestStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"b", "a", "c"} {
		at := base.Add(time.Duration(i) * time.Second)
		store.now = func() time.Time { return at }
		if _, err := store.Create(t.Context(), id, mustConfig(t, bowlConfig), nil, Callback{}); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}
	store.now = time.Now
	if _, err := store.Close(t.Context(), "a"); err != nil {
		t.Fatalf("Close: %v", err)
	}

	list := store.List("")
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "c" {
		t.Fatalf("unexpected list %+v", list)
	}
	if got := store.List(models.SessionStatusFinished); len(got) != 0 {
		t.Fatalf("expected no finished sessions, got %d", len(got))
	}
}

func TestSessionStorePersistence(t *testing.T) {
	db, err := storage.NewSqliteInMemory()
	if err != nil {
		t.Fatalf("NewSqliteInMemory: %v", err)
	}
	defer db.Close()

	store := newTestStore(WithStorage(db))
	if _, err := store.Create(t.Context(), "p", mustConfig(t, bowlConfig), []byte(bowlConfig), Callback{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	res := driveToFinish(t, store, "p")
	live, err := store.History(t.Context(), "p")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if _, err := store.Close(t.Context(), "p"); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := store.Lookup(t.Context(), "p")
	if err != nil {
		t.Fatalf("Lookup after close: %v", err)
	}
	if info.Status != models.SessionStatusClosed || info.Result == nil || info.Result.Measured != res.Measured {
		t.Fatalf("unexpected stored session %+v", info)
	}

	stored, err := store.History(t.Context(), "p")
	if err != nil {
		t.Fatalf("stored History: %v", err)
	}
	if len(stored) != len(live) {
		t.Fatalf("stored %d rounds, live history had %d", len(stored), len(live))
	}
	for i := range live {
		if len(stored[i].Measured) != len(live[i].Measured) {
			t.Fatalf("round %d: stored %d measurements, live %d", i+1, len(stored[i].Measured), len(live[i].Measured))
		}
	}

	_, cfg, err := db.GetSession(t.Context(), "p")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if string(cfg) != bowlConfig {
		t.Errorf("configuration document not stored: %q", cfg)
	}

	list, err := store.ListStored(t.Context())
	if err != nil || len(list) != 1 {
		t.Fatalf("ListStored: %v %+v", err, list)
	}
	if _, err := store.History(t.Context(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStoreNotifiesOnFinish(t *testing.T) {
	var (
		mu       sync.Mutex
		payloads []NotificationPayload
		secret   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p NotificationPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		mu.Lock()
		payloads = append(payloads, p)
		secret = r.Header.Get("X-DSICE-Callback-Secret")
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()
	u, _ := url.Parse(server.URL)

	n := NewNotifier()
	store := newTestStore(WithNotifier(n, ""))
	cb := Callback{URL: "http://localhost:" + u.Port() + "/done/{session_id}", Secret: "s3"}
	if _, err := store.Create(t.Context(), "n", mustConfig(t, bowlConfig), nil, cb); err != nil {
		t.Fatalf("Create: %v", err)
	}
	driveToFinish(t, store, "n")
	// a stale report after the finish must not notify again
	if _, err := store.Tell(t.Context(), "n", []models.Measurement{{Coordinate: []int{0, 0}, Value: 13}}); err != nil {
		t.Fatalf("Tell after finish: %v", err)
	}
	n.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(payloads) != 1 {
		t.Fatalf("expected one notification, got %d", len(payloads))
	}
	p := payloads[0]
	if p.SessionID != "n" || p.Status != models.SessionStatusFinished || p.Result == nil || !p.Result.Finished {
		t.Errorf("unexpected payload %+v", p)
	}
	if secret != "s3" {
		t.Errorf("expected the callback secret header, got %q", secret)
	}
}

func TestGeneratedIDsAreURLSafe(t *testing.T) {
	if err := utils.ValidateSessionID(utils.GenerateSessionID()); err != nil {
		t.Fatalf("generated id rejected: %v", err)
	}
}
