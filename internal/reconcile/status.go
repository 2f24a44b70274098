package reconcile

import (
	"strings"

	"minishop/internal/model"
)

// Normalize maps a free-form status string from the sheet to the canonical
// three-state enum. The sheet script has written canonical tokens, localized
// phrases and plain prose over its lifetime; matching is case-insensitive
// and substring-based, checked paid first, then failed, then pending.
//
// The paid check is deliberately narrow (exact token or the localized stem):
// a vague match like "contains paid" would classify "not yet paid" as paid.
// Anything unrecognized is treated as pending, never as paid.
func Normalize(raw string) model.OrderStatus {
	s := strings.ToLower(strings.TrimSpace(raw))

	switch {
	case s == string(model.StatusPaid) || strings.Contains(s, "оплачен"):
		return model.StatusPaid
	case s == string(model.StatusFailed) ||
		strings.Contains(s, "отмен") ||
		strings.Contains(s, "архив") ||
		strings.Contains(s, "cancel"):
		return model.StatusFailed
	default:
		// covers "pending", "ожидание/ожидании" and everything unknown
		return model.StatusPending
	}
}
