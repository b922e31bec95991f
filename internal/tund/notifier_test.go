package tund

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/utils"
)

func TestValidateCallbackURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"valid external URL", "https://example.com/callback", nil},
		{"valid localhost for development", "http://localhost:8000/callback", nil},
		{"URL with session_id template", "http://localhost:8000/callback/{session_id}", nil},
		{"invalid scheme", "ftp://example.com/callback", ErrInvalidURL},
		{"missing hostname", "http:///callback", ErrInvalidURL},
		{"metadata endpoint - IP", "http://169.254.169.254/metadata", ErrMetadataEndpoint},
		{"metadata endpoint - hostname", "http://metadata.google.internal/metadata", ErrMetadataEndpoint},
		{"wildcard address", "http://0.0.0.0:8000/callback", ErrInternalHost},
		{"direct loopback IP", "http://127.0.0.1:8000/callback", ErrInternalHost},
		{"private network", "http://192.168.1.20/callback", ErrInternalHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCallbackURL(tt.url)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("validateCallbackURL() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateCallbackURL() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		want bool
	}{
		{"public IP", "8.8.8.8", false},
		{"RFC 1918 - 10.0.0.0/8", "10.0.0.1", true},
		{"RFC 1918 - 172.16.0.0/12", "172.16.0.1", true},
		{"RFC 1918 - 192.168.0.0/16", "192.168.1.1", true},
		{"link-local", "169.254.0.1", true},
		{"loopback", "127.0.0.1", true},
		{"IPv6 loopback", "::1", true},
		{"IPv6 unique local", "fc00::1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			if ip == nil {
				t.Fatalf("failed to parse IP: %s", tt.ip)
			}
			if got := isPrivateIP(ip); got != tt.want {
				t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}

// localhostURL rewrites an httptest URL to a host name the validator accepts
func localhostURL(t *testing.T, server *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	return "http://localhost:" + u.Port()
}

func finishedSession(id string) models.Session {
	v := 0.5
	return models.Session{
		ID:        id,
		Status:    models.SessionStatusFinished,
		Algorithm: "S_2018",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Result:    &models.Result{Algorithm: "S_2018", Finished: true, Value: &v},
	}
}

func TestNotifierNotifySuccess(t *testing.T) {
	type delivery struct {
		contentType string
		payload     NotificationPayload
	}
	deliveries := make(chan delivery, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var d delivery
		d.contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&d.payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		deliveries <- d
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier()
	n.Notify(Callback{URL: localhostURL(t, server) + "/callback", Secret: "x"}, finishedSession("test-session-123"))
	n.Wait()

	d := <-deliveries
	contentType, got := d.contentType, d.payload
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}
	if got.SessionID != "test-session-123" || got.Status != models.SessionStatusFinished {
		t.Errorf("unexpected payload %+v", got)
	}
	if got.Result == nil || got.Result.Value == nil || *got.Result.Value != 0.5 {
		t.Errorf("result not carried: %+v", got.Result)
	}
	if got.Timestamp == 0 {
		t.Errorf("expected a timestamp")
	}
}

func TestNotifierURLTemplateSubstitution(t *testing.T) {
	paths := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier()
	n.Notify(Callback{URL: localhostURL(t, server) + "/callback/{session_id}"}, finishedSession("abc-123"))
	n.Wait()

	if receivedPath := <-paths; receivedPath != "/callback/abc-123" {
		t.Errorf("expected path '/callback/abc-123', got '%s'", receivedPath)
	}
}

func TestNotifierRetriesUntilSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier()
	n.backoff = utils.NewConstantBackoff(time.Millisecond)
	n.Notify(Callback{URL: localhostURL(t, server)}, finishedSession("retry"))
	n.Wait()

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestNotifierGivesUp(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewNotifier()
	n.backoff = utils.NewConstantBackoff(time.Millisecond)
	n.Notify(Callback{URL: localhostURL(t, server)}, finishedSession("down"))
	n.Wait()

	if got := atomic.LoadInt32(&calls); got != int32(n.attempts) {
		t.Errorf("expected %d attempts, got %d", n.attempts, got)
	}
}

func TestNotifierSkipsEmptyAndInvalidURL(t *testing.T) {
	n := NewNotifier()
	// neither call may start a delivery
	n.Notify(Callback{}, finishedSession("empty"))
	n.Notify(Callback{URL: "http://127.0.0.1:8000/callback"}, finishedSession("blocked"))

	done := make(chan struct{})
	go func() {
		n.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("notifier started a delivery for a skipped URL")
	}
}
