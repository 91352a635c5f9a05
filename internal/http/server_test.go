package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"vizintel/api/internal/archive"
	"vizintel/api/internal/auth"
	"vizintel/api/internal/config"
	"vizintel/api/internal/identity"
	"vizintel/api/internal/live"
	"vizintel/api/internal/logging"
	"vizintel/api/internal/metrics"
	"vizintel/api/internal/model"
	"vizintel/api/internal/repository/memory"
	"vizintel/api/internal/services"
)

const testSecret = "test-secret"

type testEnv struct {
	app   *httptest.Server
	store *memory.Store
	hub   *live.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{
		JWTSecret:      testSecret,
		AllowedOrigin:  "http://localhost:5173",
		UploadMaxBytes: 1 << 20,
	}
	log := logging.Discard()
	m := metrics.New()
	store := memory.NewStore()
	hub := live.NewHub(cfg.AllowedOrigin, log, m)
	broker := live.NewLocalBroker(hub)

	server := NewServer(cfg, Deps{
		Sessions: services.NewSessions(store, identity.Disabled{}, cfg.JWTSecret, log),
		Accounts: services.NewAccounts(store, store, log),
		Records:  services.NewRecords(store, broker, archive.Discard{}, m, log),
		Tickets:  services.NewTickets(store, log),
		Traffic:  services.NewTraffic(store),
		Hub:      hub,
		Metrics:  m,
		Log:      log,
	})
	app := httptest.NewServer(server.Router())
	t.Cleanup(func() {
		hub.Close()
		app.Close()
	})
	return &testEnv{app: app, store: store, hub: hub}
}

func mustToken(t *testing.T, userID, role string, issued time.Time) string {
	t.Helper()
	token, err := auth.NewSessionToken(testSecret, userID, role, issued)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.app.URL+path, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func messageOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	decodeBody(t, resp, &body)
	return body.Message
}

func sessionCookieOf(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	return nil
}

func (e *testEnv) seedAccount(t *testing.T, role model.Role, email string) model.Account {
	t.Helper()
	account := model.Account{Name: "Seeded", Email: email, PasswordHash: "x", Role: role}
	require.NoError(t, e.store.CreateAccount(context.Background(), &account))
	return account
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": "a@x.com", "password": "12345678", "schoolName": "X",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "12345678"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login loginResponse
	decodeBody(t, resp, &login)
	assert.Equal(t, 0, login.Identity)
	assert.Equal(t, "Ann", login.Name)
	assert.NotEmpty(t, login.AuthToken)

	cookie := sessionCookieOf(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 3600, cookie.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, login.AuthToken, cookie.Value)

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, sessionCookieOf(resp))
	assert.Equal(t, "Invalid credentials", messageOf(t, resp))

	resp = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": "a@x.com", "password": "12345678", "schoolName": "X",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "User already exists", messageOf(t, resp))

	resp = env.do(t, http.MethodGet, "/api/auth/me", cookie.Value, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me profileResponse
	decodeBody(t, resp, &me)
	assert.Equal(t, login.ID, me.ID)
}

func TestRegister_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "All fields are required", messageOf(t, resp))
}

func TestLogin_Suspended(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": "a@x.com", "password": "12345678", "schoolName": "X",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	admin := env.seedAccount(t, model.RoleSuperAdmin, "root@x.com")
	adminToken := mustToken(t, admin.ID, auth.RoleSuperAdmin, time.Now())
	resp = env.do(t, http.MethodPut, "/api/user/manage?email=a@x.com", adminToken, map[string]any{"suspend": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "12345678"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Account suspended", messageOf(t, resp))
	assert.Nil(t, sessionCookieOf(resp))
}

func TestAuthGate(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/data", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "No token provided", messageOf(t, resp))

	resp = env.do(t, http.MethodGet, "/api/data", "garbage", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Invalid token", messageOf(t, resp))

	expired := mustToken(t, "u1", "", time.Now().Add(-time.Hour-time.Minute))
	resp = env.do(t, http.MethodGet, "/api/data", expired, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Token expired", messageOf(t, resp))

	fresh := mustToken(t, "u1", "", time.Now().Add(-59*time.Minute))
	resp = env.do(t, http.MethodGet, "/api/data", fresh, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	userToken := mustToken(t, "u1", "", time.Now())
	adminToken := mustToken(t, "a1", auth.RoleSuperAdmin, time.Now())

	for _, path := range []string{"/api/users", "/api/users/count", "/api/datas/count", "/api/data/all", "/api/support/admin", "/api/traffic/week", "/api/user/profile"} {
		resp := env.do(t, http.MethodGet, path, userToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}

	resp := env.do(t, http.MethodGet, "/api/users", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No users found", messageOf(t, resp))

	env.seedAccount(t, model.RoleUser, "u@x.com")
	resp = env.do(t, http.MethodGet, "/api/users/count", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var count map[string]int64
	decodeBody(t, resp, &count)
	assert.Equal(t, int64(1), count["totalUsers"])
}

func TestSuperadminRegisterBootstrap(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"name": "Root", "email": "root@x.com", "password": "supersecret", "schoolName": "HQ", "identity": 1}

	resp := env.do(t, http.MethodPost, "/api/auth/superadminregister", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body["email"] = "eve@x.com"
	resp = env.do(t, http.MethodPost, "/api/auth/superadminregister", "", body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/superadminlogin", "", map[string]string{"email": "root@x.com", "password": "supersecret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login loginResponse
	decodeBody(t, resp, &login)
	assert.Equal(t, 1, login.Identity)

	resp = env.do(t, http.MethodPost, "/api/auth/superadminregister", login.AuthToken, body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRecordOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := mustToken(t, "owner", "", time.Now())
	intruder := mustToken(t, "intruder", "", time.Now())

	resp := env.do(t, http.MethodPost, "/api/data/manual", owner, map[string]any{"data": []map[string]any{{"month": "Jan", "sales": 10}}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created recordWriteResponse
	decodeBody(t, resp, &created)
	assert.Equal(t, "Manual Entry", created.FileName)
	require.NotEmpty(t, created.ID)

	resp = env.do(t, http.MethodPut, "/api/data/"+created.ID, intruder, map[string]any{"data": []map[string]any{}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Data not found", messageOf(t, resp))

	resp = env.do(t, http.MethodDelete, "/api/data/"+created.ID, intruder, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/data/owner", intruder, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/data/"+created.ID, owner, map[string]any{"data": []map[string]any{{"month": "Feb"}}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/data", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data":[{"month":"Feb"}]`)

	resp = env.do(t, http.MethodDelete, "/api/data/"+created.ID, owner, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/data", intruder, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestManualEntryRejectsEmpty(t *testing.T) {
	env := newTestEnv(t)
	token := mustToken(t, "owner", "", time.Now())
	for _, body := range []any{map[string]any{"data": []any{}}, map[string]any{"data": "nope"}, map[string]any{}} {
		resp := env.do(t, http.MethodPost, "/api/data/manual", token, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid data format", messageOf(t, resp))
	}
}

func multipartWorkbook(t *testing.T, rows int, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"subject", "grade"}))
	for i := 0; i < rows; i++ {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &[]any{"math", 10 + i}))
	}
	xlsx, err := f.WriteToBuffer()
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="excel"; filename="grades.xlsx"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(xlsx.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.app.URL+"/api/data/upload", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	token := mustToken(t, "owner", "", time.Now())

	body, ct := multipartWorkbook(t, 4, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	resp := env.upload(t, token, body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out recordWriteResponse
	decodeBody(t, resp, &out)
	assert.Len(t, out.Data, 4)
	assert.Equal(t, "grades.xlsx", out.FileName)
	grade, _ := out.Data[0].Get("grade")
	assert.Equal(t, 10.0, grade)

	body, ct = multipartWorkbook(t, 1, "text/plain")
	resp = env.upload(t, token, body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Only Excel files are allowed", messageOf(t, resp))

	resp = env.upload(t, token, strings.NewReader(""), "multipart/form-data; boundary=x")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No file uploaded", messageOf(t, resp))
}

func TestTickets(t *testing.T) {
	env := newTestEnv(t)
	admin := mustToken(t, "a1", auth.RoleSuperAdmin, time.Now())

	resp := env.do(t, http.MethodPost, "/api/support", "", map[string]string{"userId": "u1", "message": "help"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Ticket model.Ticket `json:"ticket"`
	}
	decodeBody(t, resp, &created)
	assert.Equal(t, model.TicketPending, created.Ticket.Status)

	resp = env.do(t, http.MethodPost, "/api/support", "", map[string]string{"userId": "u1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/support/"+created.Ticket.ID, admin, map[string]string{"status": "Closed"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid status", messageOf(t, resp))

	resp = env.do(t, http.MethodGet, "/api/support/u1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []model.Ticket
	decodeBody(t, resp, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, model.TicketPending, mine[0].Status)

	resp = env.do(t, http.MethodPut, "/api/support/"+created.Ticket.ID, mustToken(t, "u1", "", time.Now()), map[string]string{"status": "Resolved"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/support/"+created.Ticket.ID, admin, map[string]string{"status": "Resolved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/support/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Ticket not found", messageOf(t, resp))

	resp = env.do(t, http.MethodDelete, "/api/support/"+created.Ticket.ID, admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTrafficWeekCountsRequests(t *testing.T) {
	env := newTestEnv(t)
	admin := mustToken(t, "a1", auth.RoleSuperAdmin, time.Now())

	env.do(t, http.MethodGet, "/health", "", nil)
	env.do(t, http.MethodGet, "/", "", nil)

	resp := env.do(t, http.MethodGet, "/api/traffic/week", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		TrafficCounts []int64 `json:"trafficCounts"`
	}
	decodeBody(t, resp, &out)
	require.Len(t, out.TrafficCounts, 7)
	assert.Equal(t, int64(3), out.TrafficCounts[6])
}

func TestSecurityHeadersAndCORS(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodGet, env.app.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req.Header.Set("Origin", "http://evil.example")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestLiveUpdateReachesOwner(t *testing.T) {
	env := newTestEnv(t)
	token := mustToken(t, "owner", "", time.Now())

	url := "ws" + strings.TrimPrefix(env.app.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set("Cookie", sessionCookie+"="+token)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(live.Event{Name: live.EventJoin, Room: "owner"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ack live.Event
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, live.EventJoined, ack.Name)

	resp2 := env.do(t, http.MethodPost, "/api/data/manual", token, map[string]any{"data": []map[string]any{{"k": "v"}}})
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var ev struct {
		Name string            `json:"event"`
		Data live.RecordUpdate `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, live.EventDataUpdate, ev.Name)
	assert.Equal(t, "owner", ev.Data.UserID)
	assert.Equal(t, "Manual Entry", ev.Data.FileName)
	require.Len(t, ev.Data.Data, 1)
}
