package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"minishop/internal/model"
	"minishop/internal/service"
)

type OrderCreator interface {
	Create(ctx context.Context, in service.CheckoutInput) (*model.Order, error)
}

type LogAppender interface {
	AppendLog(ctx context.Context, logType string, data any) error
}

type Notifier interface {
	Send(ctx context.Context, text string) error
}

type checkoutRequest struct {
	ProductTitle  string `json:"productTitle"`
	Price         string `json:"price"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
	TgUsername    string `json:"tgUsername"`
	SourceTag     string `json:"sourceTag"`
}

// CheckoutHandler records a purchase intent. The local order row is the
// synchronous part; the sheet append and the owner notification are
// best-effort and never fail the request.
func CheckoutHandler(orders OrderCreator, sheets LogAppender, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		req.ProductTitle = strings.TrimSpace(req.ProductTitle)
		if req.ProductTitle == "" {
			http.Error(w, "productTitle is required", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.CustomerEmail) == "" && strings.TrimSpace(req.CustomerPhone) == "" {
			http.Error(w, "email or phone is required", http.StatusBadRequest)
			return
		}
		if req.SourceTag == "" {
			req.SourceTag = "direct"
		}

		order, err := orders.Create(r.Context(), service.CheckoutInput{
			ProductTitle:  req.ProductTitle,
			Price:         strings.TrimSpace(req.Price),
			CustomerName:  strings.TrimSpace(req.CustomerName),
			CustomerEmail: strings.TrimSpace(req.CustomerEmail),
			CustomerPhone: strings.TrimSpace(req.CustomerPhone),
			TgUsername:    strings.TrimSpace(req.TgUsername),
			SourceTag:     req.SourceTag,
		})
		if err != nil {
			slog.Error("order create failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		// fire-and-forget side effects, detached from the request context
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			if err := sheets.AppendLog(ctx, "order", order); err != nil {
				slog.Warn("sheet order log failed", "order", order.ID, "error", err)
			}
			if err := notifier.Send(ctx, service.NewOrderMessage(*order)); err != nil {
				slog.Warn("new order notification failed", "order", order.ID, "error", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": order.ID})
	}
}
