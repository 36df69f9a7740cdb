package signals

import "strings"

// Browser and OS families recognized by ParseUserAgent. Anything else is
// reported as "unknown" rather than erroring.
const (
	FamilyUnknown = "unknown"
	FamilyBot     = "bot"
)

// uaBrowser patterns, checked in order. Order matters: Chrome's UA contains
// "Safari", Edge's contains "Chrome", Opera's contains both.
var uaBrowsers = []struct {
	token  string
	family string
}{
	{"edg/", "edge"},
	{"edge/", "edge"},
	{"opr/", "opera"},
	{"opera", "opera"},
	{"samsungbrowser", "samsung"},
	{"firefox/", "firefox"},
	{"chrome/", "chrome"},
	{"crios/", "chrome"},
	{"safari/", "safari"},
	{"trident", "ie"},
	{"msie", "ie"},
}

var uaOSes = []struct {
	token  string
	family string
}{
	{"windows", "windows"},
	{"android", "android"}, // before linux: Android UAs contain "Linux"
	{"cros", "chromeos"},
	{"linux", "linux"},
	{"iphone", "ios"},
	{"ipad", "ios"},
	{"mac os x", "macos"},
	{"macintosh", "macos"},
}

var uaBotTokens = []string{
	"bot", "crawler", "spider", "curl/", "wget/", "python-requests",
	"go-http-client", "httpclient", "headlesschrome", "phantomjs",
}

// ParseUserAgent extracts browser and OS families via pattern matching.
// Unknown or empty user agents yield "unknown"; automation tooling yields
// browser family "bot".
func ParseUserAgent(ua string) DeviceSignals {
	sig := DeviceSignals{
		UserAgent: strings.TrimSpace(ua),
		Browser:   FamilyUnknown,
		OS:        FamilyUnknown,
	}

	lower := strings.ToLower(sig.UserAgent)
	if lower == "" {
		return sig
	}

	for _, t := range uaBotTokens {
		if strings.Contains(lower, t) {
			sig.Browser = FamilyBot
			break
		}
	}

	if sig.Browser == FamilyUnknown {
		for _, b := range uaBrowsers {
			if strings.Contains(lower, b.token) {
				sig.Browser = b.family
				break
			}
		}
	}

	for _, o := range uaOSes {
		if strings.Contains(lower, o.token) {
			sig.OS = o.family
			break
		}
	}

	return sig
}
