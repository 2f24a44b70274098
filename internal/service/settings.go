package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	SettingWebhookURL = "sheet_webhook_url"
	SettingBotToken   = "telegram_bot_token"
	SettingChatID     = "telegram_chat_id"
)

// SettingsService persists the shop owner's integration settings. Values
// saved here survive restarts and override the process environment; the
// sheet client and notifier are reconfigured explicitly when a setting
// changes, they never read this table on their own.
type SettingsService struct {
	db *sql.DB
}

func NewSettingsService(db *sql.DB) *SettingsService {
	return &SettingsService{db: db}
}

func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
