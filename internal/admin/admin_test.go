package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Versifine/warden/internal/server"
	"github.com/google/uuid"
)

type fakeController struct {
	sessions []server.SessionInfo
	kicked   map[string]string
	err      error
}

func (f *fakeController) Sessions(context.Context) ([]server.SessionInfo, error) {
	return f.sessions, f.err
}

func (f *fakeController) Session(_ context.Context, target string) (server.SessionInfo, error) {
	if f.err != nil {
		return server.SessionInfo{}, f.err
	}
	for _, s := range f.sessions {
		if s.Name == target || s.ID.String() == target {
			return s, nil
		}
	}
	return server.SessionInfo{}, fmt.Errorf("%w: %s", server.ErrSessionNotFound, target)
}

func (f *fakeController) Kick(_ context.Context, target, message string) error {
	if f.err != nil {
		return f.err
	}
	for _, s := range f.sessions {
		if s.Name == target || s.ID.String() == target {
			f.kicked[target] = message
			return nil
		}
	}
	return fmt.Errorf("%w: %s", server.ErrSessionNotFound, target)
}

func newFake() *fakeController {
	return &fakeController{
		sessions: []server.SessionInfo{
			{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Name: "Alex", Phase: "play"},
			{ID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Phase: "status"},
		},
		kicked: map[string]string{},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	api := New(newFake(), false)
	rec := do(t, api.Handler(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("响应不正确: %s", rec.Body.String())
	}
}

func TestListSessions(t *testing.T) {
	api := New(newFake(), false)
	rec := do(t, api.Handler(), http.MethodGet, "/sessions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d", rec.Code)
	}
	var body struct {
		Sessions []server.SessionInfo `json:"sessions"`
		Total    int                  `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("响应不是合法 JSON: %v", err)
	}
	if body.Total != 2 || len(body.Sessions) != 2 || body.Sessions[0].Name != "Alex" {
		t.Errorf("会话列表不正确: %+v", body)
	}
}

func TestGetSession(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"按名字查询", "/sessions/Alex", http.StatusOK},
		{"按会话 id 查询", "/sessions/22222222-2222-2222-2222-222222222222", http.StatusOK},
		{"不存在", "/sessions/Nobody", http.StatusNotFound},
	}

	api := New(newFake(), false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, api.Handler(), http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("期望 %d, 实际 %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestKick(t *testing.T) {
	fake := newFake()
	api := New(fake, false)

	rec := do(t, api.Handler(), http.MethodPost, "/sessions/Alex/kick", `{"reason":"afk"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d: %s", rec.Code, rec.Body.String())
	}
	if got, ok := fake.kicked["Alex"]; !ok || got != "afk" {
		t.Errorf("期望以 afk 踢出 Alex, 实际 %q", got)
	}

	rec = do(t, api.Handler(), http.MethodPost, "/sessions/Alex/kick", "")
	if rec.Code != http.StatusOK {
		t.Errorf("无请求体也应成功, 实际 %d", rec.Code)
	}

	rec = do(t, api.Handler(), http.MethodPost, "/sessions/Alex/kick", `{"reason":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("期望 400, 实际 %d", rec.Code)
	}

	rec = do(t, api.Handler(), http.MethodPost, "/sessions/Nobody/kick", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("期望 404, 实际 %d", rec.Code)
	}
}

func TestControllerTimeout(t *testing.T) {
	fake := newFake()
	fake.err = context.DeadlineExceeded
	api := New(fake, false)

	rec := do(t, api.Handler(), http.MethodGet, "/sessions", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("期望 503, 实际 %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	api := New(newFake(), false)
	rec := do(t, api.Handler(), http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("期望 404, 实际 %d", rec.Code)
	}
}
