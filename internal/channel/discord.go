package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"babas/internal/agent"

	"github.com/bwmarrin/discordgo"
)

const discordMaxMsgLen = 2000

// Discord answers channel messages and the /ask slash command. Each
// Discord channel is one session.
type Discord struct {
	token   string
	guildID string
	session *discordgo.Session
	loop    *agent.Loop
	logger  *slog.Logger
}

type DiscordConfig struct {
	Token   string
	GuildID string
	Loop    *agent.Loop
	Logger  *slog.Logger
}

func NewDiscord(cfg DiscordConfig) *Discord {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Discord{
		token:   cfg.Token,
		guildID: cfg.GuildID,
		loop:    cfg.Loop,
		logger:  cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Start connects with the bot token and blocks until ctx is cancelled.
func (d *Discord) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.ID == s.State.User.ID {
			return
		}
		if d.guildID != "" && m.GuildID != d.guildID {
			return
		}
		d.logger.Info("discord message received", "author", m.Author.Username, "channel_id", m.ChannelID, "content_len", len(m.Content))

		_ = s.ChannelTyping(m.ChannelID)
		if reply := d.reply(ctx, m.ChannelID, m.Content); reply != "" {
			d.sendMessage(m.ChannelID, reply)
		}
	})

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		})

		data := i.ApplicationCommandData()
		var question string
		for _, opt := range data.Options {
			if opt.Type == discordgo.ApplicationCommandOptionString {
				question = opt.StringValue()
			}
		}
		answer := d.command(ctx, i.ChannelID, data.Name, question)
		chunks := splitMessage(answer, discordMaxMsgLen)
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &chunks[0]}); err != nil {
			d.logger.Error("discord interaction edit failed", "err", err)
		}
		for _, c := range chunks[1:] {
			d.sendMessage(i.ChannelID, c)
		}
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.logger.Info("discord bot connected", "user", session.State.User.Username)
	d.registerSlashCommands()

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

func (d *Discord) Stop() error { return nil }

func discordKey(channelID string) string { return "discord:" + channelID }

// command answers the /ask and /clear slash commands.
func (d *Discord) command(ctx context.Context, channelID, name, question string) string {
	var answer string
	switch name {
	case "ask":
		answer = d.reply(ctx, channelID, question)
	case "clear":
		d.loop.Reset(discordKey(channelID))
		answer = "🗑 Conversa apagada."
	}
	if answer == "" {
		answer = "Nada a responder."
	}
	return answer
}

func (d *Discord) reply(ctx context.Context, channelID, text string) string {
	ex, err := d.loop.Submit(ctx, discordKey(channelID), text)
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		return ""
	case errors.Is(err, agent.ErrBusy):
		return "⏳ Ainda estou respondendo a mensagem anterior."
	case err != nil:
		d.logger.Error("discord submit failed", "channel_id", channelID, "err", err)
		return ""
	}
	return ex.Reply.Text
}

func (d *Discord) sendMessage(channelID, content string) {
	for _, chunk := range splitMessage(strings.TrimSpace(content), discordMaxMsgLen) {
		if _, err := d.session.ChannelMessageSend(channelID, chunk); err != nil {
			d.logger.Error("discord send failed", "channel", channelID, "err", err)
		}
	}
}

func (d *Discord) registerSlashCommands() {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "ask",
			Description: "Pergunte ao assistente do Babás do Futuro",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "pergunta",
				Description: "Sua pergunta",
				Required:    true,
			}},
		},
		{
			Name:        "clear",
			Description: "Limpar a conversa deste canal",
		},
	}

	for _, cmd := range commands {
		if _, err := d.session.ApplicationCommandCreate(d.session.State.User.ID, d.guildID, cmd); err != nil {
			d.logger.Warn("failed to register slash command", "command", cmd.Name, "err", err)
		}
	}
}
