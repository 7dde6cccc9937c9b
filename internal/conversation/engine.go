package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/webchat-support-agent/internal/observability/metrics"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

const maxSaveAttempts = 3

// Reply is the outcome of one chat turn.
type Reply struct {
	SessionID  string      `json:"session_id"`
	Message    string      `json:"reply"`
	LeadStatus *LeadStatus `json:"lead_status,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// EngineConfig wires the engine's collaborators. Router, QA and LeadFlow are required.
// Locker serialises turns across processes and defaults to Store when the store
// implements SessionLocker.
type EngineConfig struct {
	Router   *Router
	QA       TurnHandler
	LeadFlow TurnHandler
	OffTopic TurnHandler
	Store    SessionStore
	Locker   SessionLocker
	Metrics  *metrics.ConversationMetrics
	Logger   *logging.Logger
	Tracer   trace.Tracer
}

// Engine routes each user turn to exactly one handler, merges the result into
// the session state, and serialises turns of the same session.
type Engine struct {
	router   *Router
	handlers map[Route]TurnHandler
	store    SessionStore
	locks    *keyedMutex
	leases   SessionLocker
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Router == nil {
		panic("conversation: router cannot be nil")
	}
	if cfg.QA == nil {
		panic("conversation: qa handler cannot be nil")
	}
	if cfg.LeadFlow == nil {
		panic("conversation: lead flow cannot be nil")
	}
	if cfg.OffTopic == nil {
		cfg.OffTopic = OffTopicHandler{}
	}
	if cfg.Store == nil {
		cfg.Store = NewMemorySessionStore(defaultSessionTTL)
	}
	if cfg.Locker == nil {
		if locker, ok := cfg.Store.(SessionLocker); ok {
			cfg.Locker = locker
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("support.internal.conversation.engine")
	}
	return &Engine{
		router: cfg.Router,
		handlers: map[Route]TurnHandler{
			RouteQA:          cfg.QA,
			RouteLeadCapture: cfg.LeadFlow,
			RouteOffTopic:    cfg.OffTopic,
		},
		store:   cfg.Store,
		locks:   newKeyedMutex(),
		leases:  cfg.Locker,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		tracer:  cfg.Tracer,
		now:     time.Now,
	}
}

// Turn runs one step on state without persisting anything. It returns the new
// state and the assistant reply. On error the input state is returned unchanged.
func (e *Engine) Turn(ctx context.Context, state State, text string) (State, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return state, "", ErrEmptyMessage
	}

	current := state.normalize()
	withUser, err := Merge(current, Update{Messages: []ChatMessage{{Role: ChatRoleUser, Content: text}}})
	if err != nil {
		return state, "", err
	}

	route := e.router.Route(ctx, withUser)
	ctx, span := e.tracer.Start(ctx, "conversation.turn", trace.WithAttributes(attribute.String("route", string(route))))
	defer span.End()

	upd, err := e.handlers[route].Handle(ctx, withUser)
	if err != nil {
		span.RecordError(err)
		e.metrics.ObserveTurn(string(route), "error")
		return state, "", fmt.Errorf("conversation: %s handler: %w", route, err)
	}
	if len(upd.Messages) == 0 {
		e.metrics.ObserveTurn(string(route), "no_reply")
		return state, "", ErrNoReply
	}

	next, err := Merge(withUser, upd)
	if err != nil {
		span.RecordError(err)
		e.metrics.ObserveTurn(string(route), "contract_violation")
		return state, "", err
	}
	reply, ok := next.LastAssistantMessage()
	if !ok || next.Messages[len(next.Messages)-1].Role != ChatRoleAssistant {
		e.metrics.ObserveTurn(string(route), "no_reply")
		return state, "", ErrNoReply
	}

	if current.LeadStatus != next.LeadStatus {
		e.metrics.ObserveLeadTransition(string(current.LeadStatus), string(next.LeadStatus))
		e.logger.Info("lead status changed", "from", string(current.LeadStatus), "to", string(next.LeadStatus), "step", string(next.LeadStep))
	}
	e.metrics.ObserveTurn(string(route), "ok")
	return next, reply, nil
}

// Chat runs a turn for a stored session. Turns of one session never overlap,
// within this process via a keyed mutex and across processes via the store's
// lease when it has one. A started turn is not cancelled by the caller going away.
func (e *Engine) Chat(ctx context.Context, sessionID, text string) (*Reply, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	unlock := e.locks.Lock(sessionID)
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	if e.leases != nil {
		release, err := e.leases.Lock(ctx, sessionID)
		if err != nil {
			e.logger.Warn("session lease unavailable", "session_id", sessionID, "error", err)
			return nil, err
		}
		defer release()
	}

	var (
		next  State
		reply string
	)
	for attempt := 1; ; attempt++ {
		state, found, err := e.store.Load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if !found {
			state = NewState()
		}

		next, reply, err = e.Turn(ctx, state, text)
		if err != nil {
			e.logger.Error("chat turn failed", "session_id", sessionID, "error", err)
			return nil, err
		}
		err = e.store.Save(ctx, sessionID, next)
		if err == nil {
			break
		}
		// Only reachable when a lease expired mid-turn or the store has no lease.
		if errors.Is(err, ErrSessionConflict) && attempt < maxSaveAttempts {
			e.logger.Warn("session changed during turn; retrying", "session_id", sessionID, "attempt", attempt)
			continue
		}
		return nil, err
	}

	out := &Reply{
		SessionID: sessionID,
		Message:   reply,
		Timestamp: e.now().UTC(),
	}
	if next.LeadStatus != LeadStatusNone {
		status := next.LeadStatus
		out.LeadStatus = &status
	}
	return out, nil
}

// History returns the stored transcript of a session, or nil for unknown sessions.
func (e *Engine) History(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	state, found, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return state.Messages, nil
}
