package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jborcher/vegfuel/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPSender_Send(t *testing.T) {
	var (
		mu      sync.Mutex
		gotAuth string
		gotBody sendRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	s := NewHTTPSender(config.MailConfig{APIKey: "re_test", APIURL: srv.URL, From: "VegFuel <no-reply@vegfuel.app>"}, srv.Client())
	err := s.Send(context.Background(), Message{To: "a@example.com", Subject: "Hi", Text: "hello"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer re_test", gotAuth)
	assert.Equal(t, []string{"a@example.com"}, gotBody.To)
	assert.Equal(t, "VegFuel <no-reply@vegfuel.app>", gotBody.From)
	assert.Equal(t, "hello", gotBody.Text)
}

func TestHTTPSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	s := NewHTTPSender(config.MailConfig{APIKey: "k", APIURL: srv.URL}, srv.Client())
	err := s.Send(context.Background(), Message{To: "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestNewSender_NoKeyFallsBackToLog(t *testing.T) {
	s := NewSender(config.MailConfig{}, discardLogger())
	_, ok := s.(*LogSender)
	assert.True(t, ok)
	assert.NoError(t, s.Send(context.Background(), Message{To: "x@example.com"}))
}

// recordingSender collects messages and can be told to fail.
type recordingSender struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func TestDispatcher(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, time.Second, discardLogger())

	d.Dispatch(Message{To: "a@example.com"})
	d.Dispatch(Message{To: "b@example.com"})
	require.NoError(t, d.Wait(context.Background()))

	assert.Len(t, sender.msgs, 2)
}

func TestDispatcher_FailureIsSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	d := NewDispatcher(sender, time.Second, discardLogger())

	d.Dispatch(Message{To: "a@example.com"})
	assert.NoError(t, d.Wait(context.Background()))
}

func TestDispatchFunc(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, time.Second, discardLogger())

	release := make(chan struct{})
	d.DispatchFunc(func(ctx context.Context) (Message, bool) {
		<-release
		_, hasDeadline := ctx.Deadline()
		return Message{To: "a@example.com", Subject: fmt.Sprint(hasDeadline)}, true
	})
	d.DispatchFunc(func(context.Context) (Message, bool) { return Message{To: "skip@example.com"}, false })

	// DispatchFunc returned while the first compose is still blocked.
	close(release)
	require.NoError(t, d.Wait(context.Background()))

	require.Len(t, sender.msgs, 1)
	assert.Equal(t, "a@example.com", sender.msgs[0].To)
	assert.Equal(t, "true", sender.msgs[0].Subject)
}

func TestPasswordReset(t *testing.T) {
	msg, err := PasswordReset("a@example.com", "https://vegfuel.app/reset-password?src=email", "tok_abc-123", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "a@example.com", msg.To)
	assert.Contains(t, msg.Text, "https://vegfuel.app/reset-password?src=email&token=tok_abc-123")
	assert.Contains(t, msg.Text, "1 hour")
	assert.True(t, strings.Contains(msg.HTML, "token=tok_abc-123"))
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "2 hours", humanDuration(2*time.Hour))
	assert.Equal(t, "30 minutes", humanDuration(30*time.Minute))
	assert.Equal(t, "90 minutes", humanDuration(90*time.Minute))
}
