package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/mentra/internal/agent"
	"github.com/ent0n29/mentra/internal/agentapi"
	"github.com/ent0n29/mentra/internal/assistant"
	"github.com/ent0n29/mentra/internal/config"
	"github.com/ent0n29/mentra/internal/memory"
	"github.com/ent0n29/mentra/internal/observability"
	"github.com/ent0n29/mentra/internal/session"
)

type testEnv struct {
	server   *httptest.Server
	sessions *session.Manager
	store    *memory.InMemoryStore
}

func newTestEnv(t *testing.T, name string, agentService *agentapi.Service) *testEnv {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		AssistantMode:            "mock",
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%s_%d", name, time.Now().UnixNano()))
	store := memory.NewInMemoryStore()

	panels := func(ctx context.Context, tab *session.Session, presenter agent.Presenter) *agent.Controller {
		mem := memory.New(memory.Options{Store: store, TabID: tab.ID, DeferPersist: true})
		mem.Restore(ctx)
		return agent.New(agent.Options{
			Client:    assistant.NewMockClient(),
			Memory:    mem,
			Presenter: presenter,
			PageURL:   tab.PageURL,
			TabID:     tab.ID,
			Metrics:   metrics,
		})
	}

	srv := New(cfg, sessions, panels, metrics, Options{Store: store, AgentService: agentService})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, sessions: sessions, store: store}
}

func (e *testEnv) createTab(t *testing.T, pageURL string) string {
	t.Helper()
	body, _ := json.Marshal(session.CreateRequest{PageURL: pageURL})
	res, err := http.Post(e.server.URL+"/v1/panel/session", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var created session.CreateResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	require.NotEmpty(t, created.TabID)
	assert.Equal(t, pageURL, created.PageURL)
	return created.TabID
}

func TestCreateAndEndSession(t *testing.T) {
	env := newTestEnv(t, "session", nil)
	tabID := env.createTab(t, "https://example.test/")
	require.NoError(t, env.store.Save(context.Background(), tabID, []byte(`[]`)))

	endRes, err := http.Post(env.server.URL+"/v1/panel/session/"+tabID+"/end", "application/json", nil)
	require.NoError(t, err)
	defer endRes.Body.Close()
	assert.Equal(t, http.StatusOK, endRes.StatusCode)

	_, err = env.store.Load(context.Background(), tabID)
	assert.ErrorIs(t, err, memory.ErrSnapshotNotFound)

	missing, err := http.Post(env.server.URL+"/v1/panel/session/nope/end", "application/json", nil)
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestSessionMemoryEndpoint(t *testing.T) {
	env := newTestEnv(t, "memory", nil)
	tabID := env.createTab(t, "")

	got := getMemory(t, env, tabID)
	assert.False(t, got.Stored)
	assert.Empty(t, got.Turns)

	payload, err := memory.EncodeSnapshot([]memory.Turn{{Role: memory.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	require.NoError(t, env.store.Save(context.Background(), tabID, payload))

	got = getMemory(t, env, tabID)
	assert.True(t, got.Stored)
	assert.Equal(t, []memory.Turn{{Role: memory.RoleUser, Content: "hi"}}, got.Turns)
}

func TestPanelWebSocketRoundTrip(t *testing.T) {
	env := newTestEnv(t, "ws", nil)
	tabID := env.createTab(t, "https://example.test/leaderboard")

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/v1/panel/ws?tab_id=" + tabID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	ready := readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "system_event" })
	assert.Equal(t, "session_ready", ready["code"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "panel_open"}))
	placeholder := readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "placeholder" })
	assert.Equal(t, agent.DefaultPlaceholder, placeholder["text"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "submit", "text": "  hello <there>  "}))
	user := readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "transcript" && m["role"] == "user" })
	assert.Equal(t, "hello &lt;there&gt;", user["html"])

	reply := readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "transcript" && m["role"] == "assistant" })
	assert.Equal(t, "I heard you: hello <there>", reply["text"])
	readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "busy" && m["busy"] == false })

	require.Eventually(t, func() bool { return len(storedTurns(env, tabID)) == 2 }, time.Second, 5*time.Millisecond)
	got := getMemory(t, env, tabID)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, "hello <there>", got.Turns[0].Content)

	sess, err := env.sessions.Get(tabID)
	require.NoError(t, err)
	assert.True(t, sess.Connected)
	assert.Equal(t, 1, sess.RequestCount)
}

func TestPanelWebSocketSecondConnectionTakesOver(t *testing.T) {
	env := newTestEnv(t, "ws_takeover", nil)
	tabID := env.createTab(t, "")
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/v1/panel/ws?tab_id=" + tabID

	first, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer first.Close()
	readUntil(t, first, func(m map[string]any) bool { return m["type"] == "system_event" })
	require.NoError(t, first.WriteJSON(map[string]any{"type": "submit", "text": "first"}))
	readUntil(t, first, func(m map[string]any) bool { return m["type"] == "busy" && m["busy"] == false })
	require.Eventually(t, func() bool { return len(storedTurns(env, tabID)) == 2 }, time.Second, 5*time.Millisecond)

	second, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer second.Close()

	// The superseded socket is closed by the server.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err = first.ReadMessage(); err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "first connection error = %v", err)

	readUntil(t, second, func(m map[string]any) bool { return m["type"] == "system_event" })
	require.NoError(t, second.WriteJSON(map[string]any{"type": "submit", "text": "second"}))
	readUntil(t, second, func(m map[string]any) bool { return m["type"] == "busy" && m["busy"] == false })

	require.Eventually(t, func() bool { return len(storedTurns(env, tabID)) == 4 }, time.Second, 5*time.Millisecond)
	turns := storedTurns(env, tabID)
	assert.Equal(t, "first", turns[0].Content)
	assert.Equal(t, "second", turns[2].Content)

	sess, err := env.sessions.Get(tabID)
	require.NoError(t, err)
	assert.True(t, sess.Connected, "tab should stay connected while the second socket is live")
	assert.Equal(t, 2, sess.RequestCount)

	require.NoError(t, second.Close())
	require.Eventually(t, func() bool {
		sess, err := env.sessions.Get(tabID)
		return err == nil && !sess.Connected
	}, 3*time.Second, 10*time.Millisecond)
}

func TestEndSessionClosesPanelSocket(t *testing.T) {
	env := newTestEnv(t, "ws_end", nil)
	tabID := env.createTab(t, "")
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/v1/panel/ws?tab_id=" + tabID

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "system_event" })

	res, err := http.Post(env.server.URL+"/v1/panel/session/"+tabID+"/end", "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "read error = %v", err)
}

func TestPanelWebSocketReportsInvalidMessages(t *testing.T) {
	env := newTestEnv(t, "ws_invalid", nil)
	tabID := env.createTab(t, "")

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/v1/panel/ws?tab_id=" + tabID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"launch_rockets"}`)))
	evt := readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "error_event" })
	assert.Equal(t, "invalid_client_message", evt["code"])
}

func TestPanelWebSocketRequiresKnownTab(t *testing.T) {
	env := newTestEnv(t, "ws_unknown", nil)

	res, err := http.Get(env.server.URL + "/v1/panel/ws?tab_id=missing")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res2, err := http.Get(env.server.URL + "/v1/panel/ws")
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res2.StatusCode)
}

func TestAgentChatEndpoint(t *testing.T) {
	svc := agentapi.NewService(agentapi.Options{
		Backend: agentapi.NewMockBackend(),
		Limiter: agentapi.NewRateLimiter(1, time.Minute),
	})
	env := newTestEnv(t, "agent_chat", svc)

	res := postChat(t, env, "how do loops work?", nil)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body assistant.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "You said: how do loops work?", body.Reply)

	var cookie *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "session cookie should be issued")

	limited := postChat(t, env, "again", cookie)
	defer limited.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	var limitedBody assistant.Response
	require.NoError(t, json.NewDecoder(limited.Body).Decode(&limitedBody))
	assert.Equal(t, agentapi.MsgTooManyRequests, limitedBody.Error)

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/api/agent/reset", nil)
	req.AddCookie(cookie)
	resetRes, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resetRes.Body.Close()
	assert.Equal(t, http.StatusOK, resetRes.StatusCode)

	again := postChat(t, env, "again", cookie)
	defer again.Body.Close()
	assert.Equal(t, http.StatusOK, again.StatusCode)
}

func TestAgentChatRejectsEmptyMessage(t *testing.T) {
	env := newTestEnv(t, "agent_empty", agentapi.NewService(agentapi.Options{Backend: agentapi.NewMockBackend()}))

	res := postChat(t, env, "   ", nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	var body assistant.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, agentapi.MsgEmptyMessage, body.Error)
}

func TestHealthAndPerfRoutes(t *testing.T) {
	env := newTestEnv(t, "health", nil)

	for _, path := range []string{"/healthz", "/readyz", "/v1/perf/latency", "/metrics"} {
		res, err := http.Get(env.server.URL + path)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
	}
}

func getMemory(t *testing.T, env *testEnv, tabID string) memoryResponse {
	t.Helper()
	res, err := http.Get(env.server.URL + "/v1/panel/session/" + tabID + "/memory")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var out memoryResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

// storedTurns reads the tab snapshot straight from the store; errors read as empty.
func storedTurns(env *testEnv, tabID string) []memory.Turn {
	payload, err := env.store.Load(context.Background(), tabID)
	if err != nil {
		return nil
	}
	turns, _ := memory.DecodeSnapshot(payload)
	return turns
}

func postChat(t *testing.T, env *testEnv, message string, cookie *http.Cookie) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"message": message})
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/agent/chat", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}
