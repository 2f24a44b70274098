package model

import (
	"time"
)

type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
	StatusPaid    OrderStatus = "paid"
	StatusFailed  OrderStatus = "failed"
)

// Terminal statuses are write-once: an order never leaves paid or failed.
func (s OrderStatus) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

type Order struct {
	ID            string      `json:"id"`
	ProductTitle  string      `json:"productTitle"`
	Price         string      `json:"price"`
	CustomerName  string      `json:"customerName"`
	CustomerEmail string      `json:"customerEmail"`
	CustomerPhone string      `json:"customerPhone"`
	TgUsername    string      `json:"tgUsername,omitempty"`
	SourceTag     string      `json:"sourceTag"`
	Status        OrderStatus `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// RemoteOrder is the spreadsheet's view of an order after the field-alias
// projection. RawStatus is free-form text (possibly localized), Timestamp
// is epoch millis with 0 meaning the sheet's date column could not be parsed.
type RemoteOrder struct {
	ID            string
	RawStatus     string
	Timestamp     int64
	ProductTitle  string
	Price         string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	TgUsername    string
	SourceTag     string
}
