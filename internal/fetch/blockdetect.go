package fetch

import (
	"bytes"
	"net/http"
)

// BlockType names the anti-bot protection a response appears to come from.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

var (
	cloudflareMarkers = [][]byte{[]byte("checking your browser"), []byte("cf-browser-verification"), []byte("just a moment...")}
	captchaMarkers    = [][]byte{[]byte("captcha"), []byte("recaptcha"), []byte("hcaptcha")}
)

// DetectBlock inspects a response for signs of anti-bot protection. The
// executor only reports the result in its logs; a blocked-looking 2xx page is
// still a Success.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("Cf-Ray") != "" || resp.Header.Get("Cf-Cache-Status") != "" ||
			resp.Header.Get("Server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := bytes.ToLower(body)

	for _, m := range cloudflareMarkers {
		if bytes.Contains(lower, m) {
			return true, BlockCloudflare
		}
	}
	if bytes.Contains(lower, []byte("cloudflare")) && bytes.Contains(lower, []byte("challenge")) {
		return true, BlockCloudflare
	}

	for _, m := range captchaMarkers {
		if bytes.Contains(lower, m) {
			return true, BlockCaptcha
		}
	}

	// Tiny page that only asks for JavaScript or immediately redirects.
	if len(body) < 2000 {
		if bytes.Contains(lower, []byte("<noscript")) && bytes.Contains(lower, []byte("javascript")) {
			return true, BlockJSShell
		}
		if bytes.Contains(lower, []byte(`http-equiv="refresh"`)) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
