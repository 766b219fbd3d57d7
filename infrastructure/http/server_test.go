package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"linkup/auth"
	"linkup/domain"
	"linkup/domain/event"
	"linkup/domain/mimetypes"
	"linkup/infrastructure/realtime"
	"linkup/observability"
	"linkup/repositories"
	"linkup/runtime"
	"linkup/runtime/workers"
	"linkup/services"
	"linkup/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
)

const (
	testOrigin   = "http://localhost:5173"
	testPassword = "ComplexPass123!"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type testApp struct {
	server     *httptest.Server
	monitoring *observability.MonitoringManager
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	index, err := repositories.NewUserIndex("", log)
	req.NoError(err)
	store, err := storage.NewDiskStore(t.TempDir(), "/uploads", log)
	req.NoError(err)

	monitoring := observability.NewMonitoringManager(log)
	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, log)
	images := services.NewImageService(log, store, services.ImagePolicy{
		MaxBytes:      1 << 20,
		Allowed:       mimetypes.ParseImageFormats("jpeg|jpg|png"),
		UploadTimeout: time.Second,
		MaxDimension:  1000,
		Quality:       80,
	}, monitoring)
	authService := services.NewAuthService(log, users, index, images, auth.NewTokenManager("test-secret", time.Hour))

	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log), runtime.NewRegistry(), monitoring,
		health.NewServer(), repositories.Probe(db), 16, time.Second, time.Minute)
	censor, err := orchestrator.LoadModerator(true, '*')
	req.NoError(err)
	messageService := services.NewMessageService(log, users, messages, images, orchestrator, censor, monitoring, time.Second)
	directoryService := services.NewDirectoryService(log, users, messages, index)

	ctx, cancel := context.WithCancel(context.Background())
	go orchestrator.Start(ctx)

	realtimeHandler := realtime.NewHandler(log, authService, orchestrator, monitoring, realtime.Config{
		BufferSize:     16,
		PingInterval:   time.Second,
		AllowedOrigins: []string{testOrigin},
	})
	router := NewRouter(log, Config{
		AllowedOrigins: []string{testOrigin},
		TokenDuration:  time.Hour,
		MaxImageBytes:  1 << 20,
		UploadDir:      store.Root(),
	}, Dependencies{
		AuthService:      authService,
		MessageService:   messageService,
		DirectoryService: directoryService,
		Monitoring:       monitoring,
		Probe:            repositories.Probe(db),
		Realtime:         realtimeHandler,
	})
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		realtimeHandler.Shutdown(context.Background())
		server.Close()
		cancel()
		orchestrator.Stop()
		_ = index.Close()
		_ = db.Close()
	})
	return &testApp{server: server, monitoring: monitoring}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	r, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

type signedUp struct {
	domain.User
	Token string `json:"token"`
}

func (a *testApp) signup(t *testing.T, name, email string) signedUp {
	t.Helper()
	resp, body := a.do(t, http.MethodPost, "/api/auth/signup", "", auth.SignupRequest{
		FullName: name, Email: email, Password: testPassword,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var u signedUp
	require.NoError(t, json.Unmarshal(body, &u))
	return u
}

func (a *testApp) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// nextEvent skips presence snapshots until an event named name arrives.
func nextEvent(t *testing.T, conn *websocket.Conn, name string) envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var e envelope
		require.NoError(t, conn.ReadJSON(&e))
		if e.Event == name {
			return e
		}
	}
}

func TestAuthFlow(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)

	// Given a new account
	alice := app.signup(t, "Alice", "alice@example.com")
	req.NotEmpty(alice.Token)
	req.NotEmpty(alice.ID)

	// When the same email signs up again
	resp, _ := app.do(t, http.MethodPost, "/api/auth/signup", "", auth.SignupRequest{
		FullName: "Alice Bis", Email: "ALICE@example.com", Password: testPassword,
	})
	// Then it conflicts
	req.Equal(http.StatusConflict, resp.StatusCode)

	// When logging in, the session cookie is set
	resp, body := app.do(t, http.MethodPost, "/api/auth/login", "", auth.LoginRequest{
		Email: "alice@example.com", Password: testPassword,
	})
	req.Equal(http.StatusOK, resp.StatusCode, string(body))
	cookie := findCookie(resp, auth.CookieName)
	req.NotNil(cookie)
	req.True(cookie.HttpOnly)

	// And a wrong password is unauthorized
	resp, _ = app.do(t, http.MethodPost, "/api/auth/login", "", auth.LoginRequest{
		Email: "alice@example.com", Password: "WrongPass123!!",
	})
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	// Check needs a valid token
	resp, body = app.do(t, http.MethodGet, "/api/auth/check", alice.Token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	var me domain.User
	req.NoError(json.Unmarshal(body, &me))
	req.Equal(alice.ID, me.ID)
	resp, _ = app.do(t, http.MethodGet, "/api/auth/check", "", nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp, _ = app.do(t, http.MethodGet, "/api/auth/check", "forged", nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	// Update profile uploads the picture
	resp, body = app.do(t, http.MethodPut, "/api/auth/update-profile", alice.Token, map[string]string{
		"profilePic": dataURI("png", pngBytes),
	})
	req.Equal(http.StatusOK, resp.StatusCode, string(body))
	req.NoError(json.Unmarshal(body, &me))
	req.True(strings.HasPrefix(me.ProfilePic, "/uploads/"+domain.ProfilePicsFolder+"/"))

	// Logout expires the cookie
	resp, _ = app.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	cookie = findCookie(resp, auth.CookieName)
	req.NotNil(cookie)
	req.Empty(cookie.Value)
	req.Less(cookie.MaxAge, 0)
}

func TestMessaging_OnlineImageMessage(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)
	alice := app.signup(t, "Alice", "alice@example.com")
	bob := app.signup(t, "Bob", "bob@example.com")

	// Given bob is online
	conn := app.dial(t, bob.Token)
	presence := nextEvent(t, conn, event.OnlineUsersName)
	var online []domain.UserID
	req.NoError(json.Unmarshal(presence.Data, &online))
	req.Contains(online, bob.ID)

	// When alice sends him an image
	resp, body := app.do(t, http.MethodPost, "/api/messages/send/"+bob.ID.String(), alice.Token, map[string]string{
		"image": dataURI("png", pngBytes),
	})

	// Then the message is persisted with a resolved URL
	req.Equal(http.StatusCreated, resp.StatusCode, string(body))
	var sent domain.Message
	req.NoError(json.Unmarshal(body, &sent))
	req.True(strings.HasPrefix(sent.Image, "/uploads/"+domain.ChatImagesFolder+"/"))
	req.Equal(alice.ID, sent.SenderID)

	// And bob receives exactly that message
	pushed := nextEvent(t, conn, event.NewMessageName)
	var received domain.Message
	req.NoError(json.Unmarshal(pushed.Data, &received))
	req.Equal(sent.ID, received.ID)
	req.Equal(sent.Image, received.Image)

	// And the image is served
	imageResp, err := http.Get(app.server.URL + sent.Image)
	req.NoError(err)
	_ = imageResp.Body.Close()
	req.Equal(http.StatusOK, imageResp.StatusCode)

	// And no second push follows
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var extra envelope
	err = conn.ReadJSON(&extra)
	req.Error(err)
	req.NotEqual(event.NewMessageName, extra.Event)
}

func TestMessaging_OfflineTextMessage(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)
	alice := app.signup(t, "Alice", "alice@example.com")
	bob := app.signup(t, "Bob", "bob@example.com")
	app.signup(t, "Carol", "carol@example.com")

	// Given bob is offline, when alice writes to him twice
	resp, body := app.do(t, http.MethodPost, "/api/messages/send/"+bob.ID.String(), alice.Token, map[string]string{"text": "hello"})
	req.Equal(http.StatusCreated, resp.StatusCode, string(body))
	resp, body = app.do(t, http.MethodPost, "/api/messages/send/"+bob.ID.String(), alice.Token, map[string]string{"text": "are you there?"})
	req.Equal(http.StatusCreated, resp.StatusCode, string(body))

	// Then bob finds both in history, oldest first
	resp, body = app.do(t, http.MethodGet, "/api/messages/chat/"+alice.ID.String(), bob.Token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	var history []domain.Message
	req.NoError(json.Unmarshal(body, &history))
	req.Len(history, 2)
	req.Equal("hello", history[0].Text)
	req.Equal("are you there?", history[1].Text)

	// And alice sees bob first in her directory, carol after him with no timestamp
	resp, body = app.do(t, http.MethodGet, "/api/messages/users", alice.Token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	var directory []domain.UserSummary
	req.NoError(json.Unmarshal(body, &directory))
	req.Len(directory, 2)
	req.Equal(bob.ID, directory[0].ID)
	req.NotNil(directory[0].LastMessageAt)
	req.Equal("Carol", directory[1].FullName)
	req.Nil(directory[1].LastMessageAt)

	// And search is a case-insensitive substring match
	resp, body = app.do(t, http.MethodGet, "/api/messages/search?query=AR", alice.Token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	var found []domain.User
	req.NoError(json.Unmarshal(body, &found))
	req.Len(found, 1)
	req.Equal("Carol", found[0].FullName)

	// And the counters moved
	stats := app.monitoring.GetLatest()
	req.EqualValues(2, stats.MessagesSent)
	req.EqualValues(0, stats.MessagesDelivered)
}

func TestMessaging_Errors(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)
	alice := app.signup(t, "Alice", "alice@example.com")
	bob := app.signup(t, "Bob", "bob@example.com")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{"empty message", http.MethodPost, "/api/messages/send/" + bob.ID.String(), alice.Token, map[string]string{"text": "  "}, http.StatusBadRequest},
		{"malformed receiver", http.MethodPost, "/api/messages/send/not-a-uuid", alice.Token, map[string]string{"text": "hi"}, http.StatusBadRequest},
		{"unknown receiver", http.MethodPost, "/api/messages/send/00000000-0000-0000-0000-000000000001", alice.Token, map[string]string{"text": "hi"}, http.StatusNotFound},
		{"image not allowed", http.MethodPost, "/api/messages/send/" + bob.ID.String(), alice.Token, map[string]string{"image": dataURI("gif", []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00"))}, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/messages/send/" + bob.ID.String(), alice.Token, "not an object", http.StatusBadRequest},
		{"blank search", http.MethodGet, "/api/messages/search?query=%20", alice.Token, nil, http.StatusBadRequest},
		{"anonymous history", http.MethodGet, "/api/messages/chat/" + bob.ID.String(), "", nil, http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/api/nothing", "", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := app.do(t, tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.status, resp.StatusCode, string(body))
			require.Contains(t, string(body), `"message"`)
		})
	}

	// Nothing was persisted
	req.EqualValues(0, app.monitoring.GetLatest().MessagesSent)
}

func TestSystemRoutes(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)

	resp, body := app.do(t, http.MethodGet, "/health", "", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.JSONEq(`{"status":"ok"}`, string(body))

	resp, body = app.do(t, http.MethodGet, "/api/stats", "", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Contains(string(body), `"active_connections"`)

	// CORS preflight from an allowed origin
	r, err := http.NewRequest(http.MethodOptions, app.server.URL+"/api/auth/login", nil)
	req.NoError(err)
	r.Header.Set("Origin", testOrigin)
	resp, err = http.DefaultClient.Do(r)
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal(http.StatusNoContent, resp.StatusCode)
	req.Equal(testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	req.Equal("true", resp.Header.Get("Access-Control-Allow-Credentials"))

	// And a refusal for another origin
	r.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(r)
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal(http.StatusForbidden, resp.StatusCode)
	req.Empty(resp.Header.Get("Access-Control-Allow-Origin"))

	// A simple request from an allowed origin carries the credentials header too
	r, err = http.NewRequest(http.MethodGet, app.server.URL+"/health", nil)
	req.NoError(err)
	r.Header.Set("Origin", testOrigin)
	resp, err = http.DefaultClient.Do(r)
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal(testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	req.Equal("true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func dataURI(format string, data []byte) string {
	return "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(data)
}
