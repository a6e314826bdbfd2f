package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want PageContext
	}{
		{"https://mentra.test/", PageContext{Page: PageHome, Days: 30}},
		{"https://mentra.test", PageContext{Page: PageHome, Days: 30}},
		{"https://mentra.test/user/42?topic=web&days=7", PageContext{Page: PageUser, Topic: "web", Days: 7, UserID: "42"}},
		{"/user", PageContext{Page: PageUser, Days: 30}},
		{"/user/abc", PageContext{Page: PageUser, Days: 30}},
		{"/server/9", PageContext{Page: PageServer, Days: 30}},
		{"/leaderboard?days=0", PageContext{Page: PageLeaderboard, Days: 30}},
		{"/leaderboards", PageContext{Page: PageLeaderboard, Days: 30}},
		{"/users", PageContext{Page: PageApp, Days: 30}},
		{"/mentrascan?days=oops", PageContext{Page: PageApp, Days: 30}},
		{"/leaderboard?days=7d", PageContext{Page: PageLeaderboard, Days: 7}},
		{"/leaderboard?days=%2014%20days", PageContext{Page: PageLeaderboard, Days: 14}},
		{"/leaderboard?days=0x10", PageContext{Page: PageLeaderboard, Days: 30}},
		{"/leaderboard?days=d7", PageContext{Page: PageLeaderboard, Days: 30}},
		{"%zz", PageContext{Page: PageApp, Days: 30}},
	}
	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			assert.Equal(t, tc.want, ContextFromURL(tc.url))
		})
	}
}

func TestPageContextRequest(t *testing.T) {
	req := ContextFromURL("/user/7?topic=crypto").Request("hello")
	assert.Equal(t, Request{Message: "hello", Page: PageUser, Topic: "crypto", Days: 30, UserID: "7"}, req)
}
