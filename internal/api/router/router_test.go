package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wolfman30/webchat-support-agent/internal/conversation"
	"github.com/wolfman30/webchat-support-agent/internal/leads"
	"github.com/wolfman30/webchat-support-agent/internal/webchat"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

type echoService struct{}

func (echoService) Chat(ctx context.Context, sessionID, text string) (*conversation.Reply, error) {
	return &conversation.Reply{SessionID: sessionID, Message: "echo: " + text, Timestamp: time.Now()}, nil
}

func (echoService) History(ctx context.Context, sessionID string) ([]conversation.ChatMessage, error) {
	return []conversation.ChatMessage{{Role: conversation.ChatRoleUser, Content: "hi"}}, nil
}

const adminSecret = "router-secret"

func newTestRouter(t *testing.T, mutate func(*Config)) (http.Handler, *leads.InMemoryRepository) {
	t.Helper()

	logger := logging.New("error")
	repo := leads.NewInMemoryRepository()
	cfg := &Config{
		Logger:          logger,
		ChatHandler:     conversation.NewHandler(echoService{}, logger),
		WebchatHandler:  webchat.NewHandler(echoService{}, []byte("// widget"), logger),
		LeadsHandler:    leads.NewHandler(repo, logger),
		AdminAuthSecret: adminSecret,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		ChatRateLimit: 100,
		ChatRateBurst: 100,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg), repo
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterReadyReportsFailingCheck(t *testing.T) {
	router, _ := newTestRouter(t, func(c *Config) {
		c.ReadinessChecks = map[string]ReadinessCheck{
			"redis":    func(ctx context.Context) error { return nil },
			"postgres": func(ctx context.Context) error { return errors.New("connection refused") },
		}
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.Checks["redis"] != "ok" || resp.Checks["postgres"] != "connection refused" {
		t.Fatalf("unexpected readiness payload %+v", resp)
	}
}

func TestRouterChatEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"session_id":"s1","message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var resp conversation.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "echo: hello" || resp.SessionID != "s1" {
		t.Fatalf("unexpected chat response %+v", resp)
	}
}

func TestRouterChatHistoryEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat/history?session=s1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestRouterChatRateLimited(t *testing.T) {
	router, _ := newTestRouter(t, func(c *Config) {
		c.ChatRateLimit = 0.001
		c.ChatRateBurst = 1
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"session_id":"s1","message":"hello"}`))
		req.RemoteAddr = "198.51.100.7:4000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestRouterMetricsAndWidget(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	for path, want := range map[string]string{"/metrics": "# metrics", "/widget.js": "// widget"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK || rr.Body.String() != want {
			t.Fatalf("%s: unexpected response %d %q", path, rr.Code, rr.Body.String())
		}
	}
}

func TestRouterAdminLeadsRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/leads", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestRouterAdminLeadsWithToken(t *testing.T) {
	router, repo := newTestRouter(t, nil)
	record := leads.NewRecord(leads.Contact{Name: "Ada", Email: "ada@example.com"}, "demo please", "")
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatalf("seed: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "reviewer",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte(adminSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/leads/"+record.ID, nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var got leads.Record
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Email != "ada@example.com" {
		t.Fatalf("unexpected lead %+v", got)
	}
}
