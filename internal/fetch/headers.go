package fetch

import "net/http"

// Browser-like header values sent with every request to reduce anti-bot
// rejections.
const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.9"
)

// DefaultHeaders returns a fresh copy of the fixed header set.
func DefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      {userAgent},
		"Accept":          {acceptHeader},
		"Accept-Language": {acceptLanguage},
		"Connection":      {"keep-alive"},
		"Dnt":             {"1"},
	}
}
