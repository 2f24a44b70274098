package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"minishop/internal/model"
)

var ErrNoWebhook = errors.New("sheet webhook is not configured")

// SheetClient talks to the spreadsheet web-app script. The script is an
// opaque remote log reached over HTTP with an action parameter; reads go
// through GET, appends and status updates through POST. Writes are
// fire-and-forget on the script side, so no response body is interpreted
// beyond the HTTP status.
type SheetClient struct {
	mu         sync.RWMutex
	webhookURL string
	client     *http.Client
}

// Snapshot is one getStats response: the sibling session and order logs
// fetched in a single call.
type Snapshot struct {
	Sessions []model.Session
	Orders   []model.RemoteOrder
}

func NewSheetClient(webhookURL string) *SheetClient {
	return &SheetClient{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Reconfigure swaps the webhook URL. Called on an explicit settings
// change, never per request.
func (c *SheetClient) Reconfigure(webhookURL string) {
	c.mu.Lock()
	c.webhookURL = webhookURL
	c.mu.Unlock()
}

func (c *SheetClient) url() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.webhookURL
}

func (c *SheetClient) FetchStats(ctx context.Context) (*Snapshot, error) {
	base := c.url()
	if base == "" {
		return nil, ErrNoWebhook
	}

	// cache-buster mirrors what the sheet script expects from clients
	url := fmt.Sprintf("%s?action=getStats&_t=%d", base, time.Now().UnixMilli())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status: %d, body: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Status   string           `json:"status"`
		Sessions []map[string]any `json:"sessions"`
		Orders   []map[string]any `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Status != "success" {
		return nil, fmt.Errorf("sheet script reported status %q", payload.Status)
	}

	snap := &Snapshot{}
	for _, raw := range payload.Sessions {
		snap.Sessions = append(snap.Sessions, sessionFromRecord(raw))
	}
	for _, raw := range payload.Orders {
		snap.Orders = append(snap.Orders, orderFromRecord(raw))
	}
	return snap, nil
}

func (c *SheetClient) FetchProducts(ctx context.Context) ([]model.Product, error) {
	base := c.url()
	if base == "" {
		return nil, ErrNoWebhook
	}

	url := fmt.Sprintf("%s?action=getProducts&_t=%d", base, time.Now().UnixMilli())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var products []model.Product
	for i, raw := range rows {
		p := productFromRecord(raw, i)
		if p.Title == "" {
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// AppendLog posts one record to the sheet log. The script acknowledges
// nothing useful, so callers treat this as fire-and-forget and only log
// the returned error.
func (c *SheetClient) AppendLog(ctx context.Context, logType string, data any) error {
	return c.post(ctx, map[string]any{
		"action":  "log",
		"type":    logType,
		"data":    data,
		"dateStr": time.Now().Format("02.01.2006, 15:04:05"),
	})
}

// UpdateStatus asks the script to rewrite the status cell of one order row.
func (c *SheetClient) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	return c.post(ctx, map[string]any{
		"action":        "updateOrderStatus",
		"orderId":       orderID,
		"paymentStatus": string(status),
	})
}

func (c *SheetClient) post(ctx context.Context, payload map[string]any) error {
	base := c.url()
	if base == "" {
		return ErrNoWebhook
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	// the apps-script endpoint rejects preflighted content types
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
