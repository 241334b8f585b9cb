package gateway

import "testing"

func TestTelegramGateway_Send_InvalidChatID(t *testing.T) {
	tg := &TelegramGateway{}

	if err := tg.Send("not-a-number", "hello"); err == nil {
		t.Error("expected an error for a non-numeric chat ID")
	}
}
