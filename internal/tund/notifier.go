package tund

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/tuning-core/pkg/logger"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/utils"
)

var (
	ErrInvalidURL       = errors.New("invalid callback URL")
	ErrMetadataEndpoint = errors.New("callback URL targets a cloud metadata endpoint")
	ErrInternalHost     = errors.New("callback URL targets an internal address")
)

// Callback is where and how a finished session is announced
type Callback struct {
	URL    string `json:"url,omitempty"`
	Secret string `json:"secret,omitempty"`
}

var metadataHosts = map[string]bool{
	"169.254.169.254":          true,
	"metadata.google.internal": true,
	"metadata":                 true,
	"fd00:ec2::254":            true,
}

// validateCallbackURL rejects URLs that would let a client reach internal
// services. IP literals must be public; host names other than metadata
// endpoints are accepted, localhost included.
func validateCallbackURL(raw string) error {
	u, err := url.Parse(strings.ReplaceAll(raw, "{session_id}", "x"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if metadataHosts[host] {
		return fmt.Errorf("%w: %s", ErrMetadataEndpoint, host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsUnspecified() || isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrInternalHost, host)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// NotificationPayload is the JSON body posted to the callback URL
type NotificationPayload struct {
	SessionID string               `json:"session_id"`
	Status    models.SessionStatus `json:"status"`
	Algorithm string               `json:"algorithm"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	Error     string               `json:"error,omitempty"`
	Result    *models.Result       `json:"result,omitempty"`
	Timestamp int64                `json:"timestamp"` // unix ms when sent
}

// Notifier posts session completion webhooks
type Notifier struct {
	httpClient *http.Client
	attempts   int
	backoff    utils.BackoffStrategy
	wg         sync.WaitGroup
}

// NewNotifier creates a notifier with 4 attempts and exponential backoff
// starting at one second.
func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		attempts: 4,
		backoff:  utils.NewExponentialBackoff(time.Second, 30*time.Second, 2),
	}
}

// Notify sends the notification in the background. {session_id} in the URL
// is replaced by the session id. Invalid URLs are logged and skipped.
func (n *Notifier) Notify(cb Callback, info models.Session) {
	if cb.URL == "" {
		return
	}
	if err := validateCallbackURL(cb.URL); err != nil {
		logger.Warn("notification skipped", "session_id", info.ID, "error", err)
		return
	}
	finalURL := strings.ReplaceAll(cb.URL, "{session_id}", info.ID)
	payload := NotificationPayload{
		SessionID: info.ID,
		Status:    info.Status,
		Algorithm: info.Algorithm,
		CreatedAt: info.CreatedAt,
		UpdatedAt: info.UpdatedAt,
		Error:     info.Error,
		Result:    info.Result,
		Timestamp: time.Now().UTC().UnixMilli(),
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.send(context.Background(), finalURL, cb.Secret, payload)
	}()
}

// Wait blocks until every pending notification has been delivered or given up
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) send(ctx context.Context, callbackURL, secret string, payload NotificationPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload",
			"callback_url", callbackURL,
			"session_id", payload.SessionID,
			"error", err)
		return
	}

	attempt := 0
	err = utils.Retry(ctx, n.attempts, n.backoff, func() error {
		attempt++
		err := n.post(ctx, callbackURL, secret, body)
		if err != nil {
			logger.Warn("notification attempt failed",
				"callback_url", callbackURL,
				"session_id", payload.SessionID,
				"attempt", attempt,
				"error", err)
		}
		return err
	})
	if err != nil {
		logger.Error("failed to send notification after retries",
			"callback_url", callbackURL,
			"session_id", payload.SessionID,
			"attempts", attempt,
			"last_error", err)
		return
	}
	logger.Info("notification sent",
		"session_id", payload.SessionID,
		"status", string(payload.Status))
}

func (n *Notifier) post(ctx context.Context, target, secret string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tuning-core/1.0")
	if secret != "" {
		req.Header.Set("X-DSICE-Callback-Secret", secret)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, snippet)
}
