package analytics

import (
	"net"
	"net/url"
	"strings"
)

var defaultBotPatterns = []string{
	"bot", "crawler", "spider", "scraper", "googlebot",
	"bingbot", "slackbot", "twitterbot", "facebookexternalhit",
	"linkedinbot", "whatsapp", "telegram", "discord",
}

var browserTokens = []string{"mozilla", "chrome", "safari", "firefox", "edge", "opera"}

var scriptTokens = []string{"python", "java", "ruby", "perl", "php", "curl", "wget"}

// IsBot classifies a user agent as automated traffic. Pattern matches
// come first; the fallback heuristics catch very short UAs and UAs that
// carry a scripting-tool token without any browser token.
func IsBot(userAgent string, patterns []string) bool {
	if userAgent == "" {
		return false
	}
	lower := strings.ToLower(userAgent)

	if len(patterns) == 0 {
		patterns = defaultBotPatterns
	}
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}

	if len(userAgent) < 20 {
		return true
	}

	hasBrowser := false
	for _, tok := range browserTokens {
		if strings.Contains(lower, tok) {
			hasBrowser = true
			break
		}
	}
	if !hasBrowser {
		for _, tok := range scriptTokens {
			if strings.Contains(lower, tok) {
				return true
			}
		}
	}
	return false
}

var sensitiveParams = []string{
	"password", "token", "key", "secret", "api_key",
	"auth", "session", "csrf", "credit_card",
}

// Redacted replaces the values of sensitive query parameters.
const Redacted = "[REDACTED]"

// SanitizeURL prepares a URL for storage: truncates to MaxURLLen,
// redacts the values of query parameters whose name contains a
// sensitive substring, and drops any fragment. On parse failure the
// truncated original is returned rather than losing the event.
func SanitizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	raw = Truncate(raw, MaxURLLen)

	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if parsed.RawQuery != "" {
		values, err := url.ParseQuery(parsed.RawQuery)
		if err != nil {
			return raw
		}
		for name := range values {
			lower := strings.ToLower(name)
			for _, sensitive := range sensitiveParams {
				if strings.Contains(lower, sensitive) {
					values[name] = []string{Redacted}
					break
				}
			}
		}
		parsed.RawQuery = values.Encode()
	}
	parsed.Fragment = ""

	return parsed.String()
}

// ExtractDomain returns the host portion of a URL, or "" if unparseable.
func ExtractDomain(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// DetectDeviceType buckets a user agent into mobile, tablet, desktop,
// or unknown.
func DetectDeviceType(userAgent string) string {
	if userAgent == "" {
		return "unknown"
	}
	lower := strings.ToLower(userAgent)
	for _, tok := range []string{"mobile", "android", "iphone", "ipod"} {
		if strings.Contains(lower, tok) {
			return "mobile"
		}
	}
	if strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") {
		return "tablet"
	}
	return "desktop"
}

// PageCategory buckets a request path into a coarse site section for
// reporting.
func PageCategory(path string) string {
	if path == "" {
		return "other"
	}
	lower := strings.ToLower(path)

	categories := []struct {
		name     string
		patterns []string
	}{
		{"news", []string{"/news/", "/blog/", "/article/"}},
		{"research", []string{"/research/", "/publication/", "/paper/"}},
		{"people", []string{"/people/", "/staff/", "/researcher/"}},
		{"events", []string{"/event/", "/symposium/", "/conference/", "/meeting/"}},
		{"resources", []string{"/resource/", "/download/", "/document/", "/file/"}},
		{"about", []string{"/about/", "/mission/", "/history/"}},
		{"contact", []string{"/contact/", "/support/"}},
		{"member", []string{"/member/", "/account/", "/profile/"}},
		{"search", []string{"/search/", "?q=", "?search="}},
	}
	for _, cat := range categories {
		for _, p := range cat.patterns {
			if strings.Contains(lower, p) {
				return cat.name
			}
		}
	}
	if path == "/" || path == "/home/" {
		return "home"
	}
	return "other"
}

// ClientIP resolves the originating address of a request: first hop of
// X-Forwarded-For, then X-Real-IP, then the transport remote address.
func ClientIP(forwardedFor, realIP, remoteAddr string) string {
	if forwardedFor != "" {
		first := forwardedFor
		if idx := strings.IndexByte(forwardedFor, ','); idx >= 0 {
			first = forwardedFor[:idx]
		}
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
