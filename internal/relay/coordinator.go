package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kellybasil185/notification-proxy-server/internal/domain"
	"github.com/kellybasil185/notification-proxy-server/internal/metrics"
	"github.com/kellybasil185/notification-proxy-server/internal/sink"
)

// State is the coordinator lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthorizing
	StateListening
	StateDisconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthorizing:
		return "authorizing"
	case StateListening:
		return "listening"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "stopped"
	}
}

// Deliverer hands one payload to the downstream sink. *sink.Client is
// the production implementation.
type Deliverer interface {
	Deliver(ctx context.Context, p sink.Payload) sink.Outcome
}

// Coordinator drives the relay pipeline: it connects the platform
// session, consumes its event stream, and runs filter → build → deliver
// for every watched message. One coordinator owns one platform session.
type Coordinator struct {
	platform  domain.Platform
	deliverer Deliverer
	watched   domain.WatchSet
	counters  *metrics.Relay
	logger    *slog.Logger

	mu    sync.Mutex
	state State
}

// Config wires a Coordinator's collaborators.
type Config struct {
	Platform  domain.Platform
	Deliverer Deliverer
	Watched   domain.WatchSet
	Counters  *metrics.Relay // optional
	Logger    *slog.Logger
}

// NewCoordinator creates a coordinator in the Disconnected state.
func NewCoordinator(cfg Config) *Coordinator {
	counters := cfg.Counters
	if counters == nil {
		counters = metrics.NewRelay()
	}
	return &Coordinator{
		platform:  cfg.Platform,
		deliverer: cfg.Deliverer,
		watched:   cfg.Watched,
		counters:  counters,
		logger:    cfg.Logger,
		state:     StateDisconnected,
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	c.logger.Debug("coordinator state change", "from", prev.String(), "to", s.String())
}

// Run executes the coordinator until the context is cancelled or the
// platform event stream terminates. Clean disconnect is guaranteed on
// every exit path, including connect and authorization failures.
func (c *Coordinator) Run(ctx context.Context) (err error) {
	c.setState(StateConnecting)

	defer func() {
		c.setState(StateDisconnecting)
		if derr := c.platform.Disconnect(); derr != nil {
			c.logger.Error("platform disconnect failed", "err", derr)
		}
		c.setState(StateStopped)

		snap := c.counters.Snapshot()
		c.logger.Info("relay stopped",
			"received", snap.Received,
			"forwarded", snap.Forwarded,
			"filtered", snap.Filtered,
			"unwatched", snap.Unwatched,
			"sink_rejected", snap.SinkRejected,
			"network_failures", snap.NetworkFailures,
			"unexpected_failures", snap.Unexpected,
		)
	}()

	c.logger.Info("connecting to platform")
	if err := c.platform.Connect(ctx); err != nil {
		c.logger.Error("platform connect failed", "err", err)
		return fmt.Errorf("platform connect: %w", err)
	}

	c.setState(StateAuthorizing)
	if !c.platform.Authorized() {
		c.logger.Error("platform session not authorized")
		return errors.New("platform session not authorized")
	}

	c.setState(StateListening)
	c.logger.Info("listening for messages", "watched_chats", c.watched.Len())

	events := c.platform.Events()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("shutdown signal received")
			return nil
		case msg, ok := <-events:
			if !ok {
				// Stream terminated by the platform collaborator.
				c.logger.Warn("platform event stream closed")
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

// handle runs one message through filter → build → deliver. Failures,
// including panics, stay contained in this call so one bad event cannot
// take down the Listening state.
func (c *Coordinator) handle(ctx context.Context, msg domain.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.counters.Unexpected()
			c.logger.Error("panic while processing message",
				"chat_id", msg.ChatID,
				"message_id", msg.MessageID,
				"panic", r,
			)
		}
	}()

	c.counters.Received()

	if !c.watched.Contains(msg.ChatID) {
		c.counters.Unwatched()
		c.logger.Debug("message from unwatched chat dropped", "chat_id", msg.ChatID)
		return
	}

	forward, reason := ShouldForward(msg)
	if !forward {
		c.counters.Filtered()
		c.logger.Info("message not forwarded",
			"chat_id", msg.ChatID,
			"message_id", msg.MessageID,
			"reason", reason,
		)
		return
	}

	payload := BuildPayload(msg)
	c.logger.Info("forwarding message",
		"chat_id", payload.ChatID,
		"message_id", payload.MessageID,
		"from", payload.FromUsername,
		"chat_title", payload.ChatTitle,
	)

	outcome := c.deliverer.Deliver(ctx, payload)
	switch outcome.Kind {
	case sink.Success:
		c.counters.Forwarded()
	case sink.Rejected:
		c.counters.SinkRejected()
	case sink.NetworkFailure:
		c.counters.NetworkFailure()
	default:
		c.counters.Unexpected()
	}
	// Outcome details were already logged by the delivery client; the
	// failed event is dropped and the loop carries on.
}
