package gateway

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/relay-labs/rumpbot/internal/engine"
)

// DiscordGateway is a second Messenger, backed by discordgo, sharing the
// same Engine dispatch as TelegramGateway. A Discord "chat" is a channel
// ID; Send writes directly to it.
type DiscordGateway struct {
	Session *discordgo.Session
	Engine  *engine.Engine
}

func NewDiscordGateway(token string, eng *engine.Engine) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("gateway: discord session: %w", err)
	}

	dg := &DiscordGateway{Session: session, Engine: eng}
	session.AddHandler(dg.onMessageCreate)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	return dg, nil
}

func (dg *DiscordGateway) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.Bot {
		return
	}

	log.Printf("[discord:%s] %s", m.Author.Username, m.Content)

	if err := dg.Engine.HandleMessage(context.Background(), m.ChannelID, m.Content, dg); err != nil {
		log.Printf("Error handling message: %v", err)
		_ = dg.Send(m.ChannelID, "I'm having trouble thinking right now...")
	}
}

func (dg *DiscordGateway) Start() error {
	return dg.Session.Open()
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	_, err := dg.Session.ChannelMessageSend(chatID, text)
	return err
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}
