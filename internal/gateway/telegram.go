package gateway

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/relay-labs/rumpbot/internal/engine"
)

// TelegramGateway is a Messenger backed by the Telegram Bot API. It feeds
// every inbound message to the Engine and uses itself as the Engine's
// Sender.
type TelegramGateway struct {
	Bot    *tgbotapi.BotAPI
	Engine *engine.Engine
}

func NewTelegramGateway(token string, eng *engine.Engine) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:    bot,
		Engine: eng,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

		chatID := fmt.Sprintf("%d", update.Message.Chat.ID)
		if err := tg.Engine.HandleMessage(context.Background(), chatID, update.Message.Text, tg); err != nil {
			log.Printf("Error handling message: %v", err)
			_ = tg.Send(chatID, "I'm having trouble thinking right now...")
		}
	}
	return nil
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id := 0
	fmt.Sscanf(chatID, "%d", &id)
	if id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(int64(id), text)
	msg.ParseMode = "Markdown"
	_, err := tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
