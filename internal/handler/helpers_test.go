package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/binpoints/internal/auth"
	"github.com/dukerupert/binpoints/internal/config"
	"github.com/dukerupert/binpoints/internal/database"
	"github.com/dukerupert/binpoints/internal/model"
	"github.com/dukerupert/binpoints/internal/server"
	"github.com/dukerupert/binpoints/internal/store"
)

const testSecret = "test-secret"

// testApp is the full router over an in-memory database.
type testApp struct {
	t     *testing.T
	srv   *httptest.Server
	users *store.UserStore
	admin string
}

func newTestApp(t *testing.T, scanRate int) *testApp {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{JWTSecret: testSecret, ScanRateLimit: scanRate}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := server.New(db, cfg, logger)

	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	app := &testApp{t: t, srv: srv, users: store.NewUserStore(db)}
	admin := app.createUser("admin@example.com", model.RoleAdmin, 0)
	app.admin = app.token(admin.ID, model.RoleAdmin)
	return app
}

func (a *testApp) createUser(email, role string, points int) *model.User {
	a.t.Helper()
	ctx := context.Background()
	u, err := a.users.Create(ctx, email, email, role)
	if err != nil {
		a.t.Fatalf("create user: %v", err)
	}
	if points > 0 {
		if err := a.users.SetPoints(ctx, u.ID, points); err != nil {
			a.t.Fatalf("set points: %v", err)
		}
	}
	return u
}

func (a *testApp) token(userID int64, role string) string {
	a.t.Helper()
	tok, err := auth.GenerateToken(testSecret, userID, role, time.Hour)
	if err != nil {
		a.t.Fatalf("generate token: %v", err)
	}
	return tok
}

// do sends a request and decodes the JSON response into out when non-nil.
// body may be a string (sent verbatim) or any JSON-encodable value.
func (a *testApp) do(method, path, token string, body any, out any) int {
	a.t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, a.srv.URL+path, r)
	if err != nil {
		a.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			a.t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// seedBin creates a bin with n codes through the admin API.
func (a *testApp) seedBin(n int) (model.Bin, []model.QRCode) {
	a.t.Helper()
	var bin model.Bin
	if code := a.do("POST", "/api/bins", a.admin, map[string]any{"location": "Main St"}, &bin); code != http.StatusCreated {
		a.t.Fatalf("create bin: status %d", code)
	}
	var codes []model.QRCode
	if code := a.do("POST", "/api/bins/"+itoa(bin.ID)+"/qrcodes", a.admin, map[string]any{"count": n}, &codes); code != http.StatusCreated {
		a.t.Fatalf("issue qr codes: status %d", code)
	}
	return bin, codes
}

func (a *testApp) seedReward(name string, cost int) model.Reward {
	a.t.Helper()
	var reward model.Reward
	body := map[string]any{"reward_name": name, "required_points": cost}
	if code := a.do("POST", "/api/rewards", a.admin, body, &reward); code != http.StatusCreated {
		a.t.Fatalf("create reward: status %d", code)
	}
	return reward
}

type errorBody struct {
	Error string `json:"error"`
}
