package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minishop/internal/model"
	"minishop/internal/service"
)

type stubOrders struct {
	created *service.CheckoutInput
	err     error
}

func (s *stubOrders) Create(ctx context.Context, in service.CheckoutInput) (*model.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = &in
	return &model.Order{
		ID:            "order-1",
		ProductTitle:  in.ProductTitle,
		Price:         in.Price,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		CustomerPhone: in.CustomerPhone,
		Status:        model.StatusPending,
		CreatedAt:     time.Now(),
	}, nil
}

type stubSheets struct {
	mu   sync.Mutex
	logs []string
}

func (s *stubSheets) AppendLog(ctx context.Context, logType string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, logType)
	return nil
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (s *stubNotifier) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func TestCheckoutHandler(t *testing.T) {
	orders := &stubOrders{}
	sheets := &stubSheets{}
	notifier := &stubNotifier{}
	h := CheckoutHandler(orders, sheets, notifier)

	body := `{"productTitle": "Course", "price": "1500", "customerName": "Ivan", "customerEmail": "ivan@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "order-1", resp["id"])

	require.NotNil(t, orders.created)
	assert.Equal(t, "Course", orders.created.ProductTitle)
	assert.Equal(t, "direct", orders.created.SourceTag, "missing source tag defaults")

	// side effects are detached from the request and land shortly after
	require.Eventually(t, func() bool {
		sheets.mu.Lock()
		defer sheets.mu.Unlock()
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(sheets.logs) == 1 && len(notifier.sent) == 1
	}, time.Second, 5*time.Millisecond)

	sheets.mu.Lock()
	assert.Equal(t, []string{"order"}, sheets.logs)
	sheets.mu.Unlock()

	notifier.mu.Lock()
	assert.Contains(t, notifier.sent[0], "Course")
	notifier.mu.Unlock()
}

func TestCheckoutHandlerValidation(t *testing.T) {
	h := CheckoutHandler(&stubOrders{}, &stubSheets{}, &stubNotifier{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing product", `{"customerEmail": "a@b.c"}`},
		{"missing contacts", `{"productTitle": "Course"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCheckoutHandlerStoreFailure(t *testing.T) {
	h := CheckoutHandler(&stubOrders{err: errors.New("db down")}, &stubSheets{}, &stubNotifier{})

	body := `{"productTitle": "Course", "customerPhone": "+79000000000"}`
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
