package fetch

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot protection detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// smallBody bounds the text-marker checks. Policy pages routinely name
// captcha vendors and CDN providers in their third-party sections, so
// marker words only count as a block on interstitial-sized bodies.
const smallBody = 4096

// DetectBlock checks a response for signs of anti-bot protection.
func DetectBlock(statusCode int, header http.Header, body []byte) (bool, BlockType) {
	// Cloudflare: 403/503 with cf-* headers.
	if statusCode == 403 || statusCode == 503 {
		if header.Get("cf-ray") != "" || header.Get("cf-cache-status") != "" {
			return true, BlockCloudflare
		}
		if strings.EqualFold(header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	// Challenge page markers.
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") {
		return true, BlockCloudflare
	}
	if len(body) < smallBody {
		if strings.Contains(lower, "just a moment") ||
			strings.Contains(lower, "attention required") ||
			(strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge")) {
			return true, BlockCloudflare
		}
	}

	// Captcha interstitials are short. Long pages that merely mention a
	// captcha vendor are not blocks.
	if len(body) < smallBody && strings.Contains(lower, "captcha") {
		return true, BlockCaptcha
	}

	// JS-only shell: tiny body that immediately bounces to script.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
