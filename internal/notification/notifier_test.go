package notification

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/numbrly/portal/internal/config"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/httpclient"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/metrics"
	"github.com/numbrly/portal/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventMessage(t *testing.T) (*message.Message, *types.LifecycleEvent) {
	event := types.NewLifecycleEvent(types.EventNumberHeld, "usr_1", "num_1", map[string]any{"ttl": 60}, time.Now())
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return message.NewMessage(event.ID, body), event
}

func TestHandleWithoutWebhookOnlyLogs(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Notification.Enabled = false
	log := logger.NewNoopLogger()
	n := NewNotifier(cfg, NewWebhookClient(cfg, log), log, metrics.New())

	msg, _ := newEventMessage(t)
	assert.NoError(t, n.Handle(msg))
}

func TestHandlePostsToWebhook(t *testing.T) {
	var (
		calls    int32
		gotEvent types.LifecycleEvent
		gotName  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		gotName = r.Header.Get("X-Numbrly-Event")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotEvent)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := config.GetDefaultConfig()
	cfg.Notification.Enabled = true
	cfg.Notification.WebhookURL = srv.URL
	log := logger.NewNoopLogger()
	n := NewNotifier(cfg, NewWebhookClient(cfg, log), log, metrics.New())

	msg, event := newEventMessage(t)
	require.NoError(t, n.Handle(msg))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, types.EventNumberHeld, gotName)
	assert.Equal(t, event.ID, gotEvent.ID)
	assert.Equal(t, "num_1", gotEvent.NumberID)
}

func TestHandleWebhookClientErrorIsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := config.GetDefaultConfig()
	cfg.Notification.Enabled = true
	cfg.Notification.WebhookURL = srv.URL
	cfg.Notification.MaxRetries = 0
	log := logger.NewNoopLogger()
	n := NewNotifier(cfg, NewWebhookClient(cfg, log), log, metrics.New())

	msg, _ := newEventMessage(t)
	err := n.Handle(msg)
	require.Error(t, err)

	httpErr, ok := httpclient.IsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
}

func TestHandleMalformedPayload(t *testing.T) {
	cfg := config.GetDefaultConfig()
	log := logger.NewNoopLogger()
	n := NewNotifier(cfg, NewWebhookClient(cfg, log), log, metrics.New())

	err := n.Handle(message.NewMessage("m1", []byte("{not json")))
	assert.True(t, ierr.IsValidation(err))
}
