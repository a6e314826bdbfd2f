package assistant

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const DefaultDays = 30

// PageContext describes where the panel is embedded.
type PageContext struct {
	Page   Page
	Topic  string
	Days   int
	UserID string
}

var (
	userPathRe   = regexp.MustCompile(`^/user/(\d+)`)
	leadingIntRe = regexp.MustCompile(`^[+-]?\d+`)
)

// ContextFromURL derives the page context from the embedding page's URL.
// Unparsable input yields the generic "app" context.
func ContextFromURL(raw string) PageContext {
	pc := PageContext{Page: PageApp, Days: DefaultDays}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return pc
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	switch {
	case path == "/":
		pc.Page = PageHome
	case path == "/user" || strings.HasPrefix(path, "/user/"):
		pc.Page = PageUser
	case path == "/server" || strings.HasPrefix(path, "/server/"):
		pc.Page = PageServer
	case strings.HasPrefix(path, "/leaderboard"):
		pc.Page = PageLeaderboard
	}
	if m := userPathRe.FindStringSubmatch(path); m != nil {
		pc.UserID = m[1]
	}

	q := u.Query()
	pc.Topic = q.Get("topic")
	if n, ok := leadingInt(q.Get("days")); ok && n != 0 {
		pc.Days = n
	}
	return pc
}

// leadingInt reads the integer prefix of s, so "7d" is 7 and "abc" is not a
// number.
func leadingInt(s string) (int, bool) {
	digits := leadingIntRe.FindString(strings.TrimSpace(s))
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	return n, err == nil
}

// Request builds the outbound payload for message.
func (pc PageContext) Request(message string) Request {
	return Request{
		Message: message,
		Page:    pc.Page,
		Topic:   pc.Topic,
		Days:    pc.Days,
		UserID:  pc.UserID,
	}
}
