package model

// Session is a visit record kept in the sheet by the mini-app client.
// Read-only input for traffic reporting; the reconciler never mutates it.
type Session struct {
	ID          string   `json:"id"`
	StartTime   int64    `json:"startTime"`
	City        string   `json:"city"`
	Country     string   `json:"country"`
	PathHistory []string `json:"pathHistory"`
	Duration    int      `json:"duration"`
	SourceTag   string   `json:"sourceTag"`
}
