package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"minishop/internal/service"
)

func ListProductsHandler(products *service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := products.List(r.Context())
		if err != nil {
			slog.Error("list products failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if list == nil {
			_, _ = w.Write([]byte("[]"))
			return
		}
		if err := json.NewEncoder(w).Encode(list); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}

func SyncProductsHandler(products *service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := products.Sync(r.Context())
		if err != nil {
			slog.Error("product sync failed", "error", err)
			http.Error(w, "sync failed", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"synced": count})
	}
}
