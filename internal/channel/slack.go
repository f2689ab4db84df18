package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"babas/internal/agent"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const slackMaxMsgLen = 4000

// Slack answers direct messages and mentions over Socket Mode. Each Slack
// channel is one session.
type Slack struct {
	botToken string
	appToken string
	client   *slack.Client
	loop     *agent.Loop
	logger   *slog.Logger
	botUID   string
}

type SlackConfig struct {
	BotToken string
	AppToken string
	Loop     *agent.Loop
	Logger   *slog.Logger
}

func NewSlack(cfg SlackConfig) *Slack {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Slack{
		botToken: cfg.BotToken,
		appToken: cfg.AppToken,
		loop:     cfg.Loop,
		logger:   cfg.Logger,
	}
}

func (s *Slack) Name() string { return "slack" }

// Start connects via Socket Mode and blocks until ctx is cancelled.
func (s *Slack) Start(ctx context.Context) error {
	api := slack.New(s.botToken, slack.OptionAppLevelToken(s.appToken))
	s.client = api

	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = auth.UserID
	s.logger.Info("slack bot connected", "user", auth.User, "user_id", auth.UserID)

	socket := socketmode.New(api)

	go func() {
		for evt := range socket.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				event, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				socket.Ack(*evt.Request)
				go s.handleEventsAPI(ctx, event)
			case socketmode.EventTypeSlashCommand:
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				socket.Ack(*evt.Request)
				go s.handleSlashCommand(ctx, cmd)
			default:
				// Unacknowledged envelopes make Socket Mode reconnect.
				if evt.Request != nil {
					socket.Ack(*evt.Request)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- socket.RunContext(ctx) }()

	select {
	case <-ctx.Done():
		s.logger.Info("slack bot disconnecting")
		return nil
	case err := <-errCh:
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

func (s *Slack) Stop() error { return nil }

func slackKey(channelID string) string { return "slack:" + channelID }

// stripMention removes the leading "<@U123>" of an app mention.
func stripMention(text string) string {
	if strings.HasPrefix(text, "<@") {
		if idx := strings.Index(text, ">"); idx >= 0 {
			return strings.TrimSpace(text[idx+1:])
		}
	}
	return text
}

func (s *Slack) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		// Bot echoes and edits carry a subtype or the bot's own user.
		if ev.User == s.botUID || ev.User == "" || ev.SubType != "" {
			return
		}
		// Channel messages arrive as mentions too; answer DMs only here.
		if ev.ChannelType != "im" {
			return
		}
		s.logger.Info("slack message received", "user", ev.User, "channel", ev.Channel, "content_len", len(ev.Text))
		s.answer(ctx, ev.Channel, ev.Text)
	case *slackevents.AppMentionEvent:
		s.logger.Info("slack mention received", "user", ev.User, "channel", ev.Channel)
		s.answer(ctx, ev.Channel, stripMention(ev.Text))
	}
}

func (s *Slack) handleSlashCommand(ctx context.Context, cmd slack.SlashCommand) {
	s.logger.Info("slack slash command", "command", cmd.Command, "user", cmd.UserID, "channel", cmd.ChannelID)
	if text := s.command(ctx, cmd.ChannelID, cmd.Text); text != "" {
		s.sendMessage(cmd.ChannelID, text)
	}
}

// command handles the slash command text: "clear" resets the channel
// session, anything else is a question.
func (s *Slack) command(ctx context.Context, channelID, text string) string {
	if strings.TrimSpace(text) == "clear" {
		s.loop.Reset(slackKey(channelID))
		return "🗑 Conversa apagada."
	}
	return s.reply(ctx, channelID, text)
}

func (s *Slack) answer(ctx context.Context, channelID, text string) {
	if reply := s.reply(ctx, channelID, text); reply != "" {
		s.sendMessage(channelID, reply)
	}
}

// reply runs one turn and returns the text to post, or "" for nothing.
func (s *Slack) reply(ctx context.Context, channelID, text string) string {
	ex, err := s.loop.Submit(ctx, slackKey(channelID), text)
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		return ""
	case errors.Is(err, agent.ErrBusy):
		return "⏳ Ainda estou respondendo a mensagem anterior."
	case err != nil:
		s.logger.Error("slack submit failed", "channel", channelID, "err", err)
		return ""
	}
	return ex.Reply.Text
}

func (s *Slack) sendMessage(channelID, content string) {
	for _, chunk := range splitMessage(content, slackMaxMsgLen) {
		if _, _, err := s.client.PostMessage(channelID, slack.MsgOptionText(chunk, false)); err != nil {
			s.logger.Error("slack send failed", "channel", channelID, "err", err)
		}
	}
}
