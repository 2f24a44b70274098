package model

type Product struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       string   `json:"price"`
	ImageURL    string   `json:"imageUrl"`
	Features    []string `json:"features"`
	Section     string   `json:"section"` // shop, portfolio or bonus
	PaymentSlug string   `json:"paymentSlug,omitempty"`
	ExternalURL string   `json:"externalUrl,omitempty"`
}
