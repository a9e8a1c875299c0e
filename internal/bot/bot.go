package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jac08h/HahOrNahBot/internal/config"
	"github.com/jac08h/HahOrNahBot/internal/queue"
	"github.com/jac08h/HahOrNahBot/internal/service"
	"github.com/jac08h/HahOrNahBot/pkg/logger"

	"gopkg.in/telebot.v4"
)

var ErrRateLimited = errors.New("telegram rate limited")

// pending tracks what free-form text from a chat should mean next.
type pending int

const (
	pendingNothing pending = iota
	pendingUsername
	pendingJoke
)

// session is the per-chat conversation state: the prompt we are waiting on
// and the joke the user saw last. The last joke is consumed by the vote
// callback and has no expiry.
type session struct {
	pending     pending
	lastJokeID  int64
	hasLastJoke bool
}

type Bot struct {
	settings telebot.Settings
	svc      *service.Service
	q        *queue.NATS
	tbot     *telebot.Bot
	cfg      config.BotConfig

	mu       sync.Mutex
	sessions map[int64]*session
}

func New(cfg config.BotConfig, svc *service.Service, q *queue.NATS) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	return &Bot{
		cfg:      cfg,
		svc:      svc,
		q:        q,
		sessions: make(map[int64]*session),
		settings: telebot.Settings{
			Token:  cfg.Token,
			Poller: &telebot.LongPoller{Timeout: 10},
		},
	}, nil
}

func (b *Bot) Start(ctx context.Context) (*telebot.Bot, error) {
	tbot, err := telebot.NewBot(b.settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b.tbot = tbot
	b.setupHandlers(tbot)

	go b.runOutboundConsumer(ctx)

	go tbot.Start()

	return tbot, nil
}

func (b *Bot) setupHandlers(bot *telebot.Bot) {
	bot.Handle(telebot.OnText, func(c telebot.Context) error {
		logger.Info("Incoming text message",
			logger.Int64("user_id", c.Sender().ID),
			logger.String("username", c.Sender().Username),
		)
		return b.handleText(c)
	})

	bot.Handle("/start", b.handleStart)
	bot.Handle("/joke", b.handleRandomJoke)
	bot.Handle("/favorite", b.handleFavoriteJoke)
	bot.Handle("/best", b.handleBestJoke)
	bot.Handle("/add", b.handleAddJoke)
	bot.Handle("/profile", b.handleProfile)
	bot.Handle("/top10", b.handleTop10)
	bot.Handle("/cancel", b.handleCancel)
	bot.Handle("/help", b.handleHelp)
	bot.Handle("/pending", b.handlePending)

	bot.Handle(&btnHah, func(c telebot.Context) error {
		return b.handleVote(c, true)
	})
	bot.Handle(&btnNah, func(c telebot.Context) error {
		return b.handleVote(c, false)
	})
	bot.Handle(&btnApprove, b.handleApprove)
	bot.Handle(&btnRemove, b.handleRemove)
}

func (b *Bot) session(chatID int64) *session {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[chatID]
	if !ok {
		s = &session{}
		b.sessions[chatID] = s
	}
	return s
}

// runOutboundConsumer blocks delivering queued replies until ctx is
// canceled. No-op without a queue.
func (b *Bot) runOutboundConsumer(ctx context.Context) {
	if b.q == nil {
		return
	}

	err := b.q.ConsumeOutbound(ctx, func(msg *queue.OutboundMessage) error {
		return b.sendMessageWithRetry(msg.ChatID, msg.Text)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Outbound consumer error", logger.Err(err))
	}
}

func (b *Bot) sendMessageWithRetry(chatID int64, text string) error {
	maxRetries := 3
	retryDelay := time.Second

	for i := 0; i < maxRetries; i++ {
		_, err := b.tbot.Send(&telebot.Chat{ID: chatID}, text, &telebot.SendOptions{
			ParseMode: telebot.ModeMarkdown,
		})

		if err != nil {
			errStr := err.Error()
			if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "rate") {
				logger.Warn("Rate limited, retrying...",
					logger.Int("retry", i+1),
					logger.Int("max_retries", maxRetries),
				)
				time.Sleep(retryDelay)
				retryDelay *= 2
				continue
			}
			return fmt.Errorf("failed to send message: %w", err)
		}
		return nil
	}

	return ErrRateLimited
}

func (b *Bot) queueOrSend(chatID int64, text string) error {
	if b.q != nil {
		msg := &queue.OutboundMessage{
			ChatID: chatID,
			Text:   text,
		}
		if err := b.q.PublishOutbound(context.Background(), msg); err != nil {
			logger.Error("Failed to queue outbound message", logger.Err(err))
		}
		return nil
	}

	_, err := b.tbot.Send(&telebot.Chat{ID: chatID}, text, &telebot.SendOptions{
		ParseMode: telebot.ModeMarkdown,
	})
	return err
}
