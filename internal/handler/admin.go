package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"minishop/internal/model"
	"minishop/internal/reconcile"
	"minishop/internal/service"
)

type loginRequest struct {
	Password string `json:"password"`
}

func LoginHandler(authSvc *service.AuthService, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		if err := authSvc.Authenticate(req.Password); err != nil {
			if errors.Is(err, service.ErrInvalidPassword) {
				http.Error(w, "invalid password", http.StatusUnauthorized)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"role": "admin",
			"exp":  jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		})

		tokenString, err := token.SignedString([]byte(secret))
		if err != nil {
			http.Error(w, "token generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Authorization", "Bearer "+tokenString)
		w.WriteHeader(http.StatusOK)
	}
}

type statsResponse struct {
	Visits     int         `json:"visits"`
	PaidOrders int         `json:"paidOrders"`
	Revenue    string      `json:"revenue"`
	TopCities  []cityCount `json:"topCities"`
}

type cityCount struct {
	City   string `json:"city"`
	Visits int    `json:"visits"`
}

// StatsHandler summarizes the sheet's traffic and sales data for the
// dashboard header cards.
func StatsHandler(orders *service.OrderService, sheets *service.SheetClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := sheets.FetchStats(r.Context())
		if err != nil {
			slog.Error("stats fetch failed", "error", err)
			http.Error(w, "remote store unavailable", http.StatusBadGateway)
			return
		}

		local, err := orders.List(r.Context())
		if err != nil {
			slog.Error("list orders failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		resp := statsResponse{Visits: len(snap.Sessions)}

		revenue := decimal.Zero
		for _, p := range reconcile.MergeByID(local, snap.Orders) {
			if p.EffectiveStatus() != model.StatusPaid {
				continue
			}
			resp.PaidOrders++
			if amount, ok := parsePrice(priceOf(p)); ok {
				revenue = revenue.Add(amount)
			}
		}
		resp.Revenue = revenue.StringFixed(2)

		counts := make(map[string]int)
		for _, s := range snap.Sessions {
			city := s.City
			if city == "" {
				city = "Unknown"
			}
			counts[city]++
		}
		for city, n := range counts {
			resp.TopCities = append(resp.TopCities, cityCount{City: city, Visits: n})
		}
		sort.Slice(resp.TopCities, func(i, j int) bool {
			if resp.TopCities[i].Visits != resp.TopCities[j].Visits {
				return resp.TopCities[i].Visits > resp.TopCities[j].Visits
			}
			return resp.TopCities[i].City < resp.TopCities[j].City
		})
		if len(resp.TopCities) > 5 {
			resp.TopCities = resp.TopCities[:5]
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}

func priceOf(p reconcile.Pair) string {
	if p.Remote != nil && p.Remote.Price != "" {
		return p.Remote.Price
	}
	if p.Local != nil {
		return p.Local.Price
	}
	return ""
}

// parsePrice tolerates the free-form price column: currency signs, spaces
// and comma decimal separators from ru-RU formatting.
func parsePrice(raw string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		case r == ',':
			return '.'
		default:
			return -1
		}
	}, raw)
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

type orderView struct {
	ID            string `json:"id"`
	ProductTitle  string `json:"productTitle"`
	Price         string `json:"price"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
	TgUsername    string `json:"tgUsername,omitempty"`
	Status        string `json:"status"`
	Timestamp     int64  `json:"timestamp,omitempty"`
}

// ListOrdersHandler is the dashboard's view of the merged order union:
// the same identity merge and status classification as the reconciler,
// partitioned into active and archive tabs.
func ListOrdersHandler(orders *service.OrderService, sheets *service.SheetClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		local, err := orders.List(r.Context())
		if err != nil {
			slog.Error("list orders failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		// display degrades to local data when the sheet is unreachable
		var remote []model.RemoteOrder
		if snap, err := sheets.FetchStats(r.Context()); err != nil {
			slog.Warn("remote fetch failed, showing local orders only", "error", err)
		} else {
			remote = snap.Orders
		}

		archive := r.URL.Query().Get("view") == "archive"

		views := make([]orderView, 0)
		for _, p := range reconcile.MergeByID(local, remote) {
			status := p.EffectiveStatus()
			if p.Local != nil && p.Local.Status.Terminal() {
				status = p.Local.Status
			}
			if (status == model.StatusFailed) != archive {
				continue
			}
			views = append(views, viewOf(p, status))
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(views); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}

func viewOf(p reconcile.Pair, status model.OrderStatus) orderView {
	v := orderView{
		ID:        p.ID(),
		Status:    string(status),
		Timestamp: p.EffectiveTimestamp(),
	}
	if p.Local != nil {
		v.ProductTitle = p.Local.ProductTitle
		v.Price = p.Local.Price
		v.CustomerName = p.Local.CustomerName
		v.CustomerEmail = p.Local.CustomerEmail
		v.CustomerPhone = p.Local.CustomerPhone
		v.TgUsername = p.Local.TgUsername
	}
	if p.Remote != nil {
		if v.ProductTitle == "" {
			v.ProductTitle = p.Remote.ProductTitle
		}
		if v.Price == "" {
			v.Price = p.Remote.Price
		}
		if v.CustomerName == "" {
			v.CustomerName = p.Remote.CustomerName
		}
		if v.CustomerEmail == "" {
			v.CustomerEmail = p.Remote.CustomerEmail
		}
		if v.CustomerPhone == "" {
			v.CustomerPhone = p.Remote.CustomerPhone
		}
		if v.TgUsername == "" {
			v.TgUsername = p.Remote.TgUsername
		}
	}
	return v
}

type settingsRequest struct {
	WebhookURL string `json:"webhookUrl"`
	BotToken   string `json:"botToken"`
	ChatID     string `json:"chatId"`
}

// UpdateSettingsHandler is the explicit config-changed event: it persists
// the new integration settings and pushes them into the sheet client and
// notifier. Nothing re-reads settings per call.
func UpdateSettingsHandler(settings *service.SettingsService, sheets *service.SheetClient, notifier *service.TelegramNotifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		pairs := map[string]string{
			service.SettingWebhookURL: req.WebhookURL,
			service.SettingBotToken:   req.BotToken,
			service.SettingChatID:     req.ChatID,
		}
		for key, value := range pairs {
			if err := settings.Set(r.Context(), key, value); err != nil {
				slog.Error("save setting failed", "key", key, "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}

		sheets.Reconfigure(req.WebhookURL)
		notifier.Reconfigure(req.BotToken, req.ChatID)

		w.WriteHeader(http.StatusNoContent)
	}
}
