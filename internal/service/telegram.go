package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"minishop/internal/model"
)

var ErrNoBotConfig = errors.New("telegram bot is not configured")

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier sends operational messages to the shop owner's chat.
// Delivery is best-effort: callers log a returned error and move on, a
// failed send is never retried and never blocks a state transition.
type TelegramNotifier struct {
	mu       sync.RWMutex
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  telegramAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *TelegramNotifier) Reconfigure(botToken, chatID string) {
	n.mu.Lock()
	n.botToken = botToken
	n.chatID = chatID
	n.mu.Unlock()
}

// Send posts one HTML-formatted message. Text interpolated from user input
// must already be escaped with EscapeText.
func (n *TelegramNotifier) Send(ctx context.Context, text string) error {
	n.mu.RLock()
	token, chatID, base := n.botToken, n.chatID, n.apiBase
	n.mu.RUnlock()

	if token == "" || chatID == "" {
		return ErrNoBotConfig
	}

	body, err := json.Marshal(map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", base, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// EscapeText neutralizes Telegram HTML markup in user-supplied fields.
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

func NewOrderMessage(o model.Order) string {
	return fmt.Sprintf(
		"🚀 <b>Новая заявка</b>\n\n"+
			"👤 Имя: %s\n"+
			"🆔 TG: %s\n"+
			"📧 Email: %s\n"+
			"📱 Телефон: %s\n"+
			"🛍 Товар: %s\n"+
			"💰 Сумма: %s",
		orDash(EscapeText(o.CustomerName)),
		orDash(EscapeText(o.TgUsername)),
		orDash(EscapeText(o.CustomerEmail)),
		orDash(EscapeText(o.CustomerPhone)),
		orDash(EscapeText(o.ProductTitle)),
		orDash(EscapeText(o.Price)),
	)
}

func OrderFailedMessage(o model.Order) string {
	return fmt.Sprintf(
		"📦 <b>Заказ перенесён в архив</b>\n\n"+
			"🆔 Заказ: %s\n"+
			"🛍 Товар: %s\n"+
			"👤 Клиент: %s\n"+
			"📧 Email: %s\n"+
			"📱 Телефон: %s",
		EscapeText(o.ID),
		orDash(EscapeText(o.ProductTitle)),
		orDash(EscapeText(o.CustomerName)),
		orDash(EscapeText(o.CustomerEmail)),
		orDash(EscapeText(o.CustomerPhone)),
	)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
