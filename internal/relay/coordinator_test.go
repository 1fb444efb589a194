package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/kellybasil185/notification-proxy-server/internal/domain"
	"github.com/kellybasil185/notification-proxy-server/internal/metrics"
	"github.com/kellybasil185/notification-proxy-server/internal/sink"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakePlatform is an in-memory domain.Platform that never blocks on
// authorization.
type fakePlatform struct {
	events     chan domain.Message
	connectErr error
	authorized bool

	mu           sync.Mutex
	disconnected bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		events:     make(chan domain.Message, 16),
		authorized: true,
	}
}

func (f *fakePlatform) Connect(ctx context.Context) error { return f.connectErr }
func (f *fakePlatform) Authorized() bool                   { return f.authorized }
func (f *fakePlatform) Events() <-chan domain.Message      { return f.events }

func (f *fakePlatform) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	return nil
}

func (f *fakePlatform) wasDisconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

// fakeDeliverer records payloads and returns scripted outcomes.
type fakeDeliverer struct {
	mu       sync.Mutex
	payloads []sink.Payload
	outcomes []sink.Outcome // consumed in order; Success once exhausted
}

func (d *fakeDeliverer) Deliver(ctx context.Context, p sink.Payload) sink.Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, p)
	if len(d.outcomes) > 0 {
		out := d.outcomes[0]
		d.outcomes = d.outcomes[1:]
		return out
	}
	return sink.Outcome{Kind: sink.Success, Status: http.StatusOK}
}

func (d *fakeDeliverer) delivered() []sink.Payload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sink.Payload(nil), d.payloads...)
}

func watchedMessage(text string) domain.Message {
	return domain.Message{
		ChatID:    -1001452351575,
		MessageID: 7,
		Text:      text,
		Time:      time.Unix(1700000000, 0),
		Sender:    &domain.Sender{ID: 42, Username: "trader1"},
		Chat:      domain.Chat{Title: "SwingTradingLab", Kind: domain.ChatGroup},
	}
}

func newTestCoordinator(p domain.Platform, d Deliverer, counters *metrics.Relay) *Coordinator {
	return NewCoordinator(Config{
		Platform:  p,
		Deliverer: d,
		Watched:   domain.NewWatchSet([]int64{-1001452351575, 770150645}),
		Counters:  counters,
		Logger:    testLogger(),
	})
}

// runUntilStopped runs the coordinator in the background and returns a
// wait func yielding its error.
func runUntilStopped(t *testing.T, c *Coordinator) func() error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(context.Background()) }()
	return func() error {
		select {
		case err := <-errCh:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("coordinator did not stop in time")
			return nil
		}
	}
}

func TestCoordinator_ForwardsQualifyingMessage(t *testing.T) {
	p := newFakePlatform()
	d := &fakeDeliverer{}
	c := newTestCoordinator(p, d, metrics.NewRelay())

	p.events <- watchedMessage("BUY AAPL")
	close(p.events)

	wait := runUntilStopped(t, c)
	if err := wait(); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := d.delivered()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].Text != "BUY AAPL" || got[0].FromUsername != "trader1" || got[0].ChatTitle != "SwingTradingLab" {
		t.Errorf("payload mismatch: %+v", got[0])
	}
}

func TestCoordinator_DropsUnwatchedChat(t *testing.T) {
	p := newFakePlatform()
	d := &fakeDeliverer{}
	counters := metrics.NewRelay()
	c := newTestCoordinator(p, d, counters)

	msg := watchedMessage("hello")
	msg.ChatID = 999 // not in the watch set
	p.events <- msg
	close(p.events)

	wait := runUntilStopped(t, c)
	if err := wait(); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(d.delivered()) != 0 {
		t.Error("unwatched chat must never reach delivery")
	}
	if snap := counters.Snapshot(); snap.Unwatched != 1 {
		t.Errorf("unwatched counter: got %d", snap.Unwatched)
	}
}

func TestCoordinator_DropsFilteredMessages(t *testing.T) {
	p := newFakePlatform()
	d := &fakeDeliverer{}
	counters := metrics.NewRelay()
	c := newTestCoordinator(p, d, counters)

	outgoing := watchedMessage("me talking")
	outgoing.Outgoing = true
	p.events <- outgoing

	empty := watchedMessage("")
	p.events <- empty
	close(p.events)

	wait := runUntilStopped(t, c)
	if err := wait(); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(d.delivered()) != 0 {
		t.Error("filtered messages must not be delivered")
	}
	if snap := counters.Snapshot(); snap.Filtered != 2 {
		t.Errorf("filtered counter: got %d", snap.Filtered)
	}
}

func TestCoordinator_DeliveryFailureDoesNotStopListening(t *testing.T) {
	p := newFakePlatform()
	d := &fakeDeliverer{outcomes: []sink.Outcome{
		{Kind: sink.NetworkFailure, Err: errors.New("connection refused")},
	}}
	counters := metrics.NewRelay()
	c := newTestCoordinator(p, d, counters)

	first := watchedMessage("first")
	second := watchedMessage("second")
	second.MessageID = 8
	p.events <- first
	p.events <- second
	close(p.events)

	wait := runUntilStopped(t, c)
	if err := wait(); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := d.delivered()
	if len(got) != 2 {
		t.Fatalf("expected both events attempted, got %d", len(got))
	}
	if got[1].Text != "second" {
		t.Errorf("second event payload: %+v", got[1])
	}
	snap := counters.Snapshot()
	if snap.NetworkFailures != 1 || snap.Forwarded != 1 {
		t.Errorf("counters: %+v", snap)
	}
}

// panicDeliverer simulates an unforeseen failure inside delivery.
type panicDeliverer struct{ calls int }

func (d *panicDeliverer) Deliver(ctx context.Context, p sink.Payload) sink.Outcome {
	d.calls++
	if d.calls == 1 {
		panic("boom")
	}
	return sink.Outcome{Kind: sink.Success, Status: http.StatusOK}
}

func TestCoordinator_PanicContained(t *testing.T) {
	p := newFakePlatform()
	d := &panicDeliverer{}
	counters := metrics.NewRelay()
	c := newTestCoordinator(p, d, counters)

	p.events <- watchedMessage("first")
	p.events <- watchedMessage("second")
	close(p.events)

	wait := runUntilStopped(t, c)
	if err := wait(); err != nil {
		t.Fatalf("run: %v", err)
	}

	if d.calls != 2 {
		t.Errorf("expected second event still processed, calls=%d", d.calls)
	}
	if snap := counters.Snapshot(); snap.Unexpected != 1 {
		t.Errorf("unexpected counter: got %d", snap.Unexpected)
	}
}

func TestCoordinator_DisconnectsAfterConnectFailure(t *testing.T) {
	p := newFakePlatform()
	p.connectErr = errors.New("no route to platform")
	c := newTestCoordinator(p, &fakeDeliverer{}, metrics.NewRelay())

	if err := c.Run(context.Background()); err == nil {
		t.Fatal("expected connect error to surface")
	}
	if !p.wasDisconnected() {
		t.Error("clean disconnect must happen even when connect fails")
	}
	if c.State() != StateStopped {
		t.Errorf("expected Stopped, got %s", c.State())
	}
}

func TestCoordinator_FailsWhenUnauthorized(t *testing.T) {
	p := newFakePlatform()
	p.authorized = false
	c := newTestCoordinator(p, &fakeDeliverer{}, metrics.NewRelay())

	if err := c.Run(context.Background()); err == nil {
		t.Fatal("expected authorization error")
	}
	if !p.wasDisconnected() {
		t.Error("clean disconnect must happen after authorization failure")
	}
}

func TestCoordinator_ShutdownSignalStopsListening(t *testing.T) {
	p := newFakePlatform()
	c := newTestCoordinator(p, &fakeDeliverer{}, metrics.NewRelay())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	// Wait for the coordinator to reach Listening before cancelling.
	deadline := time.After(2 * time.Second)
	for c.State() != StateListening {
		select {
		case <-deadline:
			t.Fatal("never reached Listening")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("graceful shutdown should not error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not stop on shutdown signal")
	}

	if !p.wasDisconnected() {
		t.Error("shutdown must disconnect the platform")
	}
	if c.State() != StateStopped {
		t.Errorf("expected Stopped, got %s", c.State())
	}
}

func TestCoordinator_EndToEndAgainstHTTPSink(t *testing.T) {
	var mu sync.Mutex
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("sink received invalid JSON: %v", err)
		}
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newFakePlatform()
	counters := metrics.NewRelay()
	c := NewCoordinator(Config{
		Platform:  p,
		Deliverer: sink.NewClient(srv.URL, 0, testLogger()),
		Watched:   domain.NewWatchSet([]int64{-1001452351575}),
		Counters:  counters,
		Logger:    testLogger(),
	})

	p.events <- watchedMessage("BUY AAPL")
	unwatched := watchedMessage("ignore me")
	unwatched.ChatID = 123456
	p.events <- unwatched
	close(p.events)

	wait := runUntilStopped(t, c)
	if err := wait(); err != nil {
		t.Fatalf("run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 1 {
		t.Fatalf("expected exactly 1 sink call, got %d", len(bodies))
	}
	body := bodies[0]
	if body["text"] != "BUY AAPL" || body["from_user_username"] != "trader1" {
		t.Errorf("sink body mismatch: %v", body)
	}
	if body["chat_id"] != float64(-1001452351575) {
		t.Errorf("chat_id: got %v", body["chat_id"])
	}
	if snap := counters.Snapshot(); snap.Forwarded != 1 || snap.Unwatched != 1 {
		t.Errorf("counters: %+v", snap)
	}
}
