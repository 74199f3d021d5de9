// Package model defines the records shared by the store, the API and the CLI.
package model

import "time"

// ScrapedPage is one fetch result persisted by a caller of the scrape chain.
type ScrapedPage struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Provider  string    `json:"provider,omitempty"` // provider that produced Content
	Content   string    `json:"content"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"` // aggregate failure message
	FetchedAt time.Time `json:"fetched_at"`
}

// Text returns the content of a successful fetch or the failure message.
func (p ScrapedPage) Text() string {
	if p.Success {
		return p.Content
	}
	return p.Error
}

// ContentLength returns the number of characters of content.
func (p ScrapedPage) ContentLength() int {
	return len([]rune(p.Content))
}
