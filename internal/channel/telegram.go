package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"babas/internal/agent"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// Telegram exposes the assistant as a bot. Each chat gets its own session.
type Telegram struct {
	token     string
	allowFrom []int64 // empty = allow all
	parseMode string
	welcome   string

	bot    *tgbotapi.BotAPI
	loop   *agent.Loop
	logger *slog.Logger
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // user IDs as strings
	ParseMode string
	// Welcome is sent on /start.
	Welcome string
	Loop    *agent.Loop
	Logger  *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = tgbotapi.ModeMarkdown
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		parseMode: cfg.ParseMode,
		welcome:   cfg.Welcome,
		loop:      cfg.Loop,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			// One goroutine per update; the session guard rejects overlap
			// within a chat.
			go t.handleUpdate(ctx, update)
		}
	}
}

// Stop is a no-op: StopReceivingUpdates runs when Start's context ends and
// panics if called twice.
func (t *Telegram) Stop() error { return nil }

func sessionKey(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	userID, chatID := msg.From.ID, msg.Chat.ID
	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user", "user_id", userID, "username", msg.From.UserName)
		t.sendMessage(chatID, "⛔ Acesso não autorizado.")
		return
	}

	if msg.IsCommand() {
		t.sendMessage(chatID, t.command(chatID, msg.Command()))
		return
	}

	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	t.logger.Info("telegram message received", "user_id", userID, "chat_id", chatID, "text_len", len(msg.Text))

	_, _ = t.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	if reply := t.reply(ctx, chatID, msg.Text); reply != "" {
		t.sendMessage(chatID, reply)
	}
}

// reply runs one chat turn and returns the text to send back, or "" when
// nothing should be sent.
func (t *Telegram) reply(ctx context.Context, chatID int64, text string) string {
	ex, err := t.loop.Submit(ctx, sessionKey(chatID), text)
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		return ""
	case errors.Is(err, agent.ErrBusy):
		return "⏳ Ainda estou respondendo sua mensagem anterior."
	case err != nil:
		t.logger.Error("telegram submit failed", "chat_id", chatID, "err", err)
		return ""
	}
	return ex.Reply.Text
}

func (t *Telegram) command(chatID int64, cmd string) string {
	switch cmd {
	case "start":
		t.loop.Reset(sessionKey(chatID))
		return t.welcome
	case "help":
		return "Envie uma pergunta sobre o Babás do Futuro.\n\nComandos:\n/clear - Limpar conversa\n/help - Ajuda"
	case "clear":
		t.loop.Reset(sessionKey(chatID))
		return "🗑 Conversa apagada."
	default:
		return "Comando desconhecido. Use /help."
	}
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

func (t *Telegram) sendMessage(chatID int64, text string) {
	if text == "" {
		return
	}
	for _, chunk := range splitMessage(text, telegramMaxMsgLen) {
		t.sendChunk(chatID, chunk)
	}
}

// sendChunk tries the configured parse mode first, falls back to plain text
// on entity errors, and backs off on rate limits.
func (t *Telegram) sendChunk(chatID int64, text string) {
	const maxRetries = telegramMaxSendRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		if attempt == 0 && t.parseMode != "" {
			msg.ParseMode = t.parseMode
		}

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}
		errStr := err.Error()

		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off", "retry_after", retryAfter, "attempt", attempt+1)
			time.Sleep(retryAfter)
			continue
		}

		if attempt == 0 && msg.ParseMode != "" && strings.Contains(errStr, "can't parse entities") {
			t.logger.Warn("telegram markdown parse error, retrying as plain text", "err", err)
			if _, err2 := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err2 == nil {
				return
			}
		}

		if attempt < maxRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		t.logger.Error("telegram send failed after retries", "err", err, "attempts", maxRetries+1)
	}
}
