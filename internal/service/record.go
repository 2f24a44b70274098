package service

import (
	"encoding/json"
	"strconv"
	"strings"

	"minishop/internal/model"
	"minishop/internal/reconcile"
)

// record is one loosely-keyed sheet row. Keys vary in case and spelling
// across historical writes ("ProductTitle", "producttitle", "product"),
// so all alias resolution happens here, once, at the ingestion boundary.
// Business logic only ever sees the typed projections below.
type record map[string]any

func newRecord(raw map[string]any) record {
	r := make(record, len(raw))
	for k, v := range raw {
		r[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return r
}

func (r record) val(aliases ...string) any {
	for _, a := range aliases {
		if v, ok := r[a]; ok && v != nil {
			return v
		}
	}
	return nil
}

func (r record) str(aliases ...string) string {
	switch v := r.val(aliases...).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func orderFromRecord(raw map[string]any) model.RemoteOrder {
	r := newRecord(raw)
	return model.RemoteOrder{
		ID:            reconcile.CanonicalID(r.val("id", "orderid", "order_id")),
		RawStatus:     r.str("paymentstatus", "payment_status", "status", "статус"),
		Timestamp:     reconcile.ParseTimestamp(r.val("timestamp", "date", "datestr", "created", "createdat", "дата")),
		ProductTitle:  r.str("producttitle", "product", "title", "товар"),
		Price:         r.str("price", "sum", "amount", "цена", "сумма"),
		CustomerName:  r.str("customername", "name", "имя"),
		CustomerEmail: r.str("customeremail", "email"),
		CustomerPhone: r.str("customerphone", "phone", "телефон"),
		TgUsername:    r.str("tgusername", "tg_username", "username"),
		SourceTag:     r.str("utmsource", "utm_source", "source"),
	}
}

func sessionFromRecord(raw map[string]any) model.Session {
	r := newRecord(raw)
	s := model.Session{
		ID:        reconcile.CanonicalID(r.val("id", "sessionid", "session_id")),
		StartTime: reconcile.ParseTimestamp(r.val("starttime", "start_time", "timestamp", "date")),
		City:      r.str("city", "город"),
		Country:   r.str("country", "страна"),
		SourceTag: r.str("utmsource", "utm_source", "source"),
	}
	if d := r.str("duration"); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			s.Duration = n
		}
	}
	if hist, ok := r.val("pathhistory", "path_history", "path").([]any); ok {
		for _, p := range hist {
			if str, ok := p.(string); ok {
				s.PathHistory = append(s.PathHistory, str)
			}
		}
	}
	return s
}

func productFromRecord(raw map[string]any, rowIndex int) model.Product {
	r := newRecord(raw)
	p := model.Product{
		ID:          reconcile.CanonicalID(r.val("id")),
		Title:       r.str("title", "название"),
		Description: r.str("description"),
		Category:    r.str("category"),
		Price:       r.str("price"),
		ImageURL:    r.str("imageurl", "image_url", "image"),
		Section:     r.str("section"),
		PaymentSlug: r.str("prodamusid", "paymentslug", "payment_slug"),
		ExternalURL: r.str("externallink", "external_link", "url"),
	}
	if p.ID == "" {
		// sheet rows without an id column are addressed by position,
		// header row included (hence +2)
		p.ID = "row-" + strconv.Itoa(rowIndex+2)
	}
	if p.Section != "shop" && p.Section != "portfolio" && p.Section != "bonus" {
		p.Section = "shop"
	}
	if f := r.str("features"); f != "" {
		for _, part := range strings.Split(f, ",") {
			if part = strings.TrimSpace(part); part != "" {
				p.Features = append(p.Features, part)
			}
		}
	}
	return p
}
