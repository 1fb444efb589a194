// Package platform adapts the Telegram session to the domain.Platform
// interface the relay coordinator consumes.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kellybasil185/notification-proxy-server/internal/domain"
	"github.com/kellybasil185/notification-proxy-server/internal/session"
)

const eventBuffer = 100

// Telegram implements domain.Platform over bot-API long polling.
// The update offset is persisted through the session store so a restart
// resumes the subscription without replaying already-seen updates.
type Telegram struct {
	token       string
	pollTimeout int
	watched     domain.WatchSet
	store       *session.Store
	logger      *slog.Logger

	bot    *tgbotapi.BotAPI
	selfID int64
	events chan domain.Message

	stopOnce sync.Once
}

// TelegramConfig configures the Telegram platform adapter.
type TelegramConfig struct {
	Token       string
	PollTimeout int // long-poll timeout in seconds
	Watched     domain.WatchSet
	Store       *session.Store
	Logger      *slog.Logger
}

// NewTelegram creates a disconnected adapter.
func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30
	}
	return &Telegram{
		token:       cfg.Token,
		pollTimeout: cfg.PollTimeout,
		watched:     cfg.Watched,
		store:       cfg.Store,
		logger:      cfg.Logger,
		events:      make(chan domain.Message, eventBuffer),
	}
}

// Connect authenticates the session and starts the update poll loop.
func (t *Telegram) Connect(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram session init: %w", err)
	}
	t.bot = bot
	t.selfID = bot.Self.ID
	t.logger.Info("telegram session authorized",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	offset := 0
	if t.store != nil {
		offset, err = t.store.Offset()
		if err != nil {
			t.logger.Warn("could not read session offset, starting fresh", "err", err)
			offset = 0
		}
	}

	u := tgbotapi.NewUpdate(offset)
	u.Timeout = t.pollTimeout
	updates := bot.GetUpdatesChan(u)

	go t.poll(updates)

	t.logger.Info("telegram polling started", "offset", offset, "watched_chats", t.watched.Len())
	return nil
}

// Authorized reports whether the session authenticated successfully.
func (t *Telegram) Authorized() bool {
	return t.bot != nil && t.bot.Self.ID != 0
}

// Events returns the stream of watched incoming messages. Closed when
// polling stops.
func (t *Telegram) Events() <-chan domain.Message {
	return t.events
}

// Disconnect stops the poll loop. The underlying library panics if the
// updates channel is stopped twice, hence the Once.
func (t *Telegram) Disconnect() error {
	t.stopOnce.Do(func() {
		if t.bot != nil {
			t.bot.StopReceivingUpdates()
			t.logger.Info("telegram session disconnected")
		}
	})
	return nil
}

// poll consumes raw updates until the library closes the channel, then
// closes the event stream.
func (t *Telegram) poll(updates tgbotapi.UpdatesChannel) {
	defer close(t.events)

	for update := range updates {
		if t.store != nil {
			if err := t.store.SetOffset(update.UpdateID + 1); err != nil {
				t.logger.Warn("session offset not persisted", "err", err)
			}
		}

		msg, ok := t.mapUpdate(update)
		if !ok {
			continue
		}
		if !t.watched.Contains(msg.ChatID) {
			continue
		}

		select {
		case t.events <- msg:
		default:
			t.logger.Warn("event buffer full, dropping message",
				"chat_id", msg.ChatID,
				"message_id", msg.MessageID,
			)
		}
	}
}

// mapUpdate converts a raw update into a domain message. Only new
// messages and channel posts carry relayable content.
func (t *Telegram) mapUpdate(update tgbotapi.Update) (domain.Message, bool) {
	m := update.Message
	if m == nil {
		m = update.ChannelPost
	}
	if m == nil || m.Chat == nil {
		return domain.Message{}, false
	}

	msg := domain.Message{
		ChatID:    m.Chat.ID,
		MessageID: int64(m.MessageID),
		Text:      m.Text,
		Time:      m.Time(),
		Outgoing:  m.From != nil && m.From.ID == t.selfID,
		Chat: domain.Chat{
			Title: m.Chat.Title,
			Kind:  chatKind(m.Chat.Type),
		},
	}

	if m.From != nil {
		msg.Sender = &domain.Sender{
			ID:          m.From.ID,
			Username:    m.From.UserName,
			DisplayName: strings.TrimSpace(m.From.FirstName + " " + m.From.LastName),
		}
	}

	return msg, true
}

func chatKind(chatType string) domain.ChatKind {
	switch chatType {
	case "private":
		return domain.ChatPrivate
	case "group", "supergroup":
		return domain.ChatGroup
	case "channel":
		return domain.ChatChannel
	default:
		return domain.ChatUnknown
	}
}
