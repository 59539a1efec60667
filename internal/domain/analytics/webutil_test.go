package analytics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

func TestIsBotPatternMatch(t *testing.T) {
	assert.True(t, IsBot("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", nil))
	assert.True(t, IsBot("Slackbot-LinkExpanding 1.0", nil))
	assert.False(t, IsBot(chromeUA, nil))
}

func TestIsBotShortUserAgent(t *testing.T) {
	assert.True(t, IsBot("shortua", nil))
}

func TestIsBotScriptWithoutBrowserToken(t *testing.T) {
	assert.True(t, IsBot("python-requests/2.31.0 something long enough", nil))
	assert.True(t, IsBot("curl/8.0.1 (x86_64-pc-linux-gnu) libcurl", nil))
}

func TestIsBotEmptyUserAgent(t *testing.T) {
	assert.False(t, IsBot("", nil))
}

func TestIsBotCustomPatterns(t *testing.T) {
	assert.True(t, IsBot(chromeUA+" internal-monitor", []string{"internal-monitor"}))
	assert.False(t, IsBot(chromeUA, []string{"internal-monitor"}))
}

func TestSanitizeURLRedactsSensitiveParams(t *testing.T) {
	out := SanitizeURL("https://example.org/login?password=hunter2&next=/home")

	assert.Contains(t, out, "password=%5BREDACTED%5D")
	assert.Contains(t, out, "next=%2Fhome")
	assert.NotContains(t, out, "hunter2")
}

func TestSanitizeURLKeepsSearchQuery(t *testing.T) {
	out := SanitizeURL("https://example.org/search?q=photonics")
	assert.Contains(t, out, "q=photonics")
}

func TestSanitizeURLDropsFragment(t *testing.T) {
	out := SanitizeURL("https://example.org/page#section-2")
	assert.Equal(t, "https://example.org/page", out)
}

func TestSanitizeURLTruncates(t *testing.T) {
	long := "https://example.org/" + strings.Repeat("a", 2*MaxURLLen)
	assert.LessOrEqual(t, len(SanitizeURL(long)), MaxURLLen)
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "example.org", ExtractDomain("https://example.org/path?x=1"))
	assert.Equal(t, "", ExtractDomain(""))
}

func TestDetectDeviceType(t *testing.T) {
	assert.Equal(t, "mobile", DetectDeviceType("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"))
	assert.Equal(t, "tablet", DetectDeviceType("Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)"))
	assert.Equal(t, "desktop", DetectDeviceType(chromeUA))
	assert.Equal(t, "unknown", DetectDeviceType(""))
}

func TestPageCategory(t *testing.T) {
	assert.Equal(t, "news", PageCategory("/news/annual-review/"))
	assert.Equal(t, "research", PageCategory("/publication/2026/"))
	assert.Equal(t, "home", PageCategory("/"))
	assert.Equal(t, "other", PageCategory("/something-else/"))
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "203.0.113.9", ClientIP("203.0.113.9, 10.0.0.1", "", "127.0.0.1:1234"))
	assert.Equal(t, "198.51.100.4", ClientIP("", "198.51.100.4", "127.0.0.1:1234"))
	assert.Equal(t, "127.0.0.1", ClientIP("", "", "127.0.0.1:1234"))
}
