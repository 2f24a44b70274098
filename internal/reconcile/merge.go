package reconcile

import (
	"strconv"
	"strings"

	"minishop/internal/model"
)

// Pair joins the local and remote views of one order. Either side may be
// nil: Local nil means the order was created by another client and only
// exists in the sheet, Remote nil means the sheet has not ingested it yet.
type Pair struct {
	Local  *model.Order
	Remote *model.RemoteOrder
}

// CanonicalID coerces an order identifier to its canonical string form.
// The sheet transport turns integer-like ids into numbers, numeric strings
// or zero-padded strings inconsistently; all of those must compare equal.
func CanonicalID(value any) string {
	var s string
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		s = strings.TrimSpace(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		s = strconv.FormatInt(v, 10)
	case int:
		s = strconv.Itoa(v)
	default:
		return ""
	}

	if isDigits(s) {
		if trimmed := strings.TrimLeft(s, "0"); trimmed != "" {
			return trimmed
		}
		return "0"
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MergeByID builds the union of the local and remote order sets keyed by
// canonical identity: every local order in its original position, followed
// by remote-only orders in sheet order.
func MergeByID(local []model.Order, remote []model.RemoteOrder) []Pair {
	pairs := make([]Pair, 0, len(local)+len(remote))
	index := make(map[string]int, len(local))

	for i := range local {
		id := CanonicalID(local[i].ID)
		index[id] = len(pairs)
		pairs = append(pairs, Pair{Local: &local[i]})
	}

	for i := range remote {
		id := CanonicalID(remote[i].ID)
		if id == "" {
			continue
		}
		if at, ok := index[id]; ok {
			pairs[at].Remote = &remote[i]
			continue
		}
		index[id] = len(pairs)
		pairs = append(pairs, Pair{Remote: &remote[i]})
	}

	return pairs
}

func (p Pair) ID() string {
	if p.Local != nil {
		return CanonicalID(p.Local.ID)
	}
	if p.Remote != nil {
		return CanonicalID(p.Remote.ID)
	}
	return ""
}

// EffectiveStatus classifies the pair: the remote record is the source of
// truth whenever it exists, otherwise the local status speaks for itself.
func (p Pair) EffectiveStatus() model.OrderStatus {
	if p.Remote != nil {
		return Normalize(p.Remote.RawStatus)
	}
	if p.Local != nil {
		return Normalize(string(p.Local.Status))
	}
	return model.StatusPending
}

// EffectiveTimestamp resolves the pair's timestamp in epoch millis, 0 when
// unknown. Mirrors the status precedence: a present remote record supplies
// the timestamp even if its value fails to parse.
func (p Pair) EffectiveTimestamp() int64 {
	if p.Remote != nil {
		return p.Remote.Timestamp
	}
	if p.Local != nil {
		return clamp(p.Local.CreatedAt.UnixMilli())
	}
	return 0
}
