package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/mentra/internal/agent"
	"github.com/ent0n29/mentra/internal/agentapi"
	"github.com/ent0n29/mentra/internal/config"
	"github.com/ent0n29/mentra/internal/logging"
	"github.com/ent0n29/mentra/internal/memory"
	"github.com/ent0n29/mentra/internal/observability"
	"github.com/ent0n29/mentra/internal/panel"
	"github.com/ent0n29/mentra/internal/protocol"
	"github.com/ent0n29/mentra/internal/session"
)

// PanelFactory builds the controller hosted by one panel connection.
type PanelFactory func(ctx context.Context, tab *session.Session, presenter agent.Presenter) *agent.Controller

// Options carries the optional collaborators of a Server.
type Options struct {
	Store        memory.SnapshotStore
	AgentService *agentapi.Service
	Logger       *zap.Logger
}

type Server struct {
	cfg          config.Config
	sessions     *session.Manager
	panels       PanelFactory
	store        memory.SnapshotStore
	agentService *agentapi.Service
	metrics      *observability.Metrics
	logger       *zap.Logger
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, panels PanelFactory, metrics *observability.Metrics, opts Options) *Server {
	return &Server{
		cfg:          cfg,
		sessions:     sessions,
		panels:       panels,
		store:        opts.Store,
		agentService: opts.AgentService,
		metrics:      metrics,
		logger:       logging.OrNop(opts.Logger).Named("httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser pages may drive a panel.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/panel/session", s.handleCreateSession)
	r.Post("/v1/panel/session/{id}/end", s.handleEndSession)
	r.Get("/v1/panel/session/{id}/memory", s.handleSessionMemory)
	r.Get("/v1/panel/ws", s.handlePanelWS)

	r.Post("/api/agent/chat", s.handleAgentChat)
	r.Post("/api/agent/reset", s.handleAgentReset)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"assistant_mode": s.cfg.AssistantMode,
		"memory_store":   s.storeMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	state := "ready"
	if s.panels == nil {
		status = http.StatusServiceUnavailable
		state = "no_panel_factory"
	}
	respondJSON(w, status, map[string]any{
		"status":       state,
		"active_tabs":  s.sessions.ActiveCount(),
		"memory_store": s.storeMode(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess := s.sessions.Create(strings.TrimSpace(req.PageURL))
	s.metrics.ObservePanelEvent("created")

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		TabID:           sess.ID,
		PageURL:         sess.PageURL,
		Status:          sess.Status,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_tab_id", "missing tab id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.deleteSnapshot(r.Context(), id)
	s.metrics.ObservePanelEvent("ended")
	respondJSON(w, http.StatusOK, sess)
}

type memoryResponse struct {
	TabID  string        `json:"tab_id"`
	Turns  []memory.Turn `json:"turns"`
	Stored bool          `json:"stored"`
}

func (s *Server) handleSessionMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	resp := memoryResponse{TabID: id, Turns: []memory.Turn{}}
	if s.store == nil {
		respondJSON(w, http.StatusOK, resp)
		return
	}
	payload, err := s.store.Load(r.Context(), id)
	switch {
	case errors.Is(err, memory.ErrSnapshotNotFound):
	case err != nil:
		respondError(w, http.StatusBadGateway, "store_unavailable", err.Error())
		return
	default:
		turns, err := memory.DecodeSnapshot(payload)
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, "malformed_snapshot", err.Error())
			return
		}
		if turns != nil {
			resp.Turns = turns
		}
		resp.Stored = true
	}
	respondJSON(w, http.StatusOK, resp)
}

// priorDetachTimeout bounds how long a takeover waits for the superseded
// connection to flush its memory before restoring it.
const priorDetachTimeout = 5 * time.Second

func (s *Server) handlePanelWS(w http.ResponseWriter, r *http.Request) {
	tabID := strings.TrimSpace(r.URL.Query().Get("tab_id"))
	if tabID == "" {
		respondError(w, http.StatusBadRequest, "missing_tab_id", "query parameter tab_id is required")
		return
	}
	if s.panels == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "panel factory not configured")
		return
	}

	sess, lease, err := s.sessions.Attach(tabID)
	switch {
	case errors.Is(err, session.ErrEnded):
		respondError(w, http.StatusGone, "session_ended", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	defer s.sessions.Detach(lease)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.ActivePanels.Inc()
		defer s.metrics.ActivePanels.Dec()
	}
	s.metrics.ObservePanelEvent("ws_connected")
	logger := s.logger.With(zap.String("tab_id", tabID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A newer connection for this tab, or ending the tab, revokes the lease.
	// Closing the socket unblocks ReadMessage below.
	go func() {
		select {
		case <-lease.Revoked():
			s.metrics.ObservePanelEvent("revoked")
			logger.Info("panel lease revoked")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "tab attached elsewhere"),
				time.Now().Add(time.Second))
			cancel()
		case <-ctx.Done():
		}
		_ = conn.Close()
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, priorDetachTimeout)
	err = lease.WaitPrior(waitCtx)
	waitCancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Warn("previous panel connection still detaching", zap.Error(err))
	}

	outbound := make(chan any, 256)
	outbox := panel.NewOutbox(outbound, ctx.Done(), s.metrics)
	ctrl := s.panels(ctx, sess, panel.NewEventPresenter(outbox))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					s.metrics.ObserveWSWriteError("write_json")
					cancel()
					return
				}
				s.metrics.ObserveWSMessage("outbound", panel.MessageType(msg))
			}
		}
	}()

	outbox.Deliver(protocol.SystemEvent{Type: protocol.TypeSystemEvent, TabID: tabID, Code: "session_ready"})

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			outbox.Deliver(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				TabID:     tabID,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}
		_ = s.sessions.Touch(tabID)
		s.dispatch(ctrl, tabID, parsed, outbox, logger)
	}

	cancel()
	ctrl.Shutdown()
	<-writerDone
	s.metrics.ObservePanelEvent("ws_disconnected")
}

func (s *Server) dispatch(ctrl *agent.Controller, tabID string, msg any, outbox *panel.Outbox, logger *zap.Logger) {
	switch m := msg.(type) {
	case protocol.Submit:
		s.metrics.ObserveWSMessage("inbound", string(m.Type))
		if !ctrl.Send(m.Text, agent.SendOptions{}) {
			logger.Debug("submit ignored", zap.Bool("busy", ctrl.Busy()), zap.Bool("locked", ctrl.InputLocked()))
			return
		}
		_ = s.sessions.RecordRequest(tabID)
	case protocol.StartDay:
		s.metrics.ObserveWSMessage("inbound", string(m.Type))
		s.metrics.ObservePanelEvent("start_day")
		if ctrl.StartDay(m.Signal) {
			_ = s.sessions.RecordRequest(tabID)
		}
	case protocol.PanelControl:
		s.metrics.ObserveWSMessage("inbound", string(m.Type))
		switch m.Type {
		case protocol.TypePanelOpen:
			s.metrics.ObservePanelEvent("opened")
			ctrl.Open()
		case protocol.TypePanelClose:
			s.metrics.ObservePanelEvent("closed")
			ctrl.Close()
		case protocol.TypeStop:
			ctrl.Stop()
		}
	default:
		outbox.Deliver(protocol.ErrorEvent{
			Type:   protocol.TypeErrorEvent,
			TabID:  tabID,
			Code:   "unhandled_client_message",
			Detail: "message type not handled",
		})
	}
}

func (s *Server) deleteSnapshot(ctx context.Context, tabID string) {
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, tabID); err != nil {
		s.logger.Warn("delete snapshot failed", zap.String("tab_id", tabID), zap.Error(err))
	}
}

func (s *Server) storeMode() string {
	switch s.store.(type) {
	case nil:
		return "none"
	case *memory.PostgresStore:
		return "postgres"
	default:
		return "in-memory"
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
