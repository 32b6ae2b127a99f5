package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pkt.systems/blockdeck/console"
	"pkt.systems/blockdeck/schema"
)

type fakeService struct {
	createServer func(schema.CreateServerRequest) (schema.CreateServerResponse, error)
	listServers  func(schema.ListServersRequest) (schema.ListServersResponse, error)
	startServer  func(schema.StartServerRequest) (schema.StartServerResponse, error)
	stopServer   func(schema.StopServerRequest) (schema.StopServerResponse, error)
	sendCommand  func(schema.SendCommandRequest) (schema.SendCommandResponse, error)
	getConsole   func(schema.GetConsoleRequest) (schema.GetConsoleResponse, error)
	listLogFiles func(schema.ListLogFilesRequest) (schema.ListLogFilesResponse, error)
	getLogFile   func(schema.GetLogFileRequest) (schema.GetLogFileResponse, error)
	readFile     func(schema.ReadFileRequest) (schema.ReadFileResponse, error)
	writeFile    func(schema.WriteFileRequest) (schema.WriteFileResponse, error)
	statFile     func(schema.StatFileRequest) (schema.StatFileResponse, error)
}

func (f *fakeService) CreateServer(_ context.Context, req schema.CreateServerRequest) (schema.CreateServerResponse, error) {
	if f.createServer == nil {
		return schema.CreateServerResponse{}, errors.New("unexpected CreateServer")
	}
	return f.createServer(req)
}

func (f *fakeService) ListServers(_ context.Context, req schema.ListServersRequest) (schema.ListServersResponse, error) {
	if f.listServers == nil {
		return schema.ListServersResponse{}, nil
	}
	return f.listServers(req)
}

func (f *fakeService) GetServer(_ context.Context, req schema.GetServerRequest) (schema.GetServerResponse, error) {
	return schema.GetServerResponse{}, schema.ErrServerNotFound
}

func (f *fakeService) StartServer(_ context.Context, req schema.StartServerRequest) (schema.StartServerResponse, error) {
	if f.startServer == nil {
		return schema.StartServerResponse{}, errors.New("unexpected StartServer")
	}
	return f.startServer(req)
}

func (f *fakeService) StopServer(_ context.Context, req schema.StopServerRequest) (schema.StopServerResponse, error) {
	if f.stopServer == nil {
		return schema.StopServerResponse{}, errors.New("unexpected StopServer")
	}
	return f.stopServer(req)
}

func (f *fakeService) SendCommand(_ context.Context, req schema.SendCommandRequest) (schema.SendCommandResponse, error) {
	if f.sendCommand == nil {
		return schema.SendCommandResponse{}, errors.New("unexpected SendCommand")
	}
	return f.sendCommand(req)
}

func (f *fakeService) GetConsole(_ context.Context, req schema.GetConsoleRequest) (schema.GetConsoleResponse, error) {
	if f.getConsole == nil {
		return schema.GetConsoleResponse{}, nil
	}
	return f.getConsole(req)
}

func (f *fakeService) ListLogFiles(_ context.Context, req schema.ListLogFilesRequest) (schema.ListLogFilesResponse, error) {
	if f.listLogFiles == nil {
		return schema.ListLogFilesResponse{}, errors.New("unexpected ListLogFiles")
	}
	return f.listLogFiles(req)
}

func (f *fakeService) GetLogFile(_ context.Context, req schema.GetLogFileRequest) (schema.GetLogFileResponse, error) {
	if f.getLogFile == nil {
		return schema.GetLogFileResponse{}, errors.New("unexpected GetLogFile")
	}
	return f.getLogFile(req)
}

func (f *fakeService) ReadFile(_ context.Context, req schema.ReadFileRequest) (schema.ReadFileResponse, error) {
	if f.readFile == nil {
		return schema.ReadFileResponse{}, errors.New("unexpected ReadFile")
	}
	return f.readFile(req)
}

func (f *fakeService) WriteFile(_ context.Context, req schema.WriteFileRequest) (schema.WriteFileResponse, error) {
	if f.writeFile == nil {
		return schema.WriteFileResponse{}, errors.New("unexpected WriteFile")
	}
	return f.writeFile(req)
}

func (f *fakeService) StatFile(_ context.Context, req schema.StatFileRequest) (schema.StatFileResponse, error) {
	if f.statFile == nil {
		return schema.StatFileResponse{}, errors.New("unexpected StatFile")
	}
	return f.statFile(req)
}

func (f *fakeService) Close(context.Context) error { return nil }

type fakeAuth struct {
	password string
}

func (f *fakeAuth) Authenticate(username, password string) error {
	if username != "admin" || password != f.password {
		return errors.New("invalid credentials")
	}
	return nil
}

func (f *fakeAuth) ChangePassword(username, currentPassword, newPassword string) error {
	if err := f.Authenticate(username, currentPassword); err != nil {
		return err
	}
	f.password = newPassword
	return nil
}

func newTestAPI(t *testing.T, svc *fakeService) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(100)
	cfg := Config{
		SessionCookie:      "blockdeck_session",
		SessionTTLHours:    1,
		InitialBufferLines: 1000,
	}
	server := NewServer(cfg, svc, &fakeAuth{password: "hunter2"}, hub)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, hub
}

func loginClient(t *testing.T, ts *httptest.Server) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	client := &http.Client{Jar: jar}
	resp, err := client.Post(ts.URL+"/api/login", "application/json",
		strings.NewReader(`{"username":"admin","password":"hunter2"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	return client
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	ts, _ := newTestAPI(t, &fakeService{})
	resp, err := http.Get(ts.URL + "/api/servers")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ts, _ := newTestAPI(t, &fakeService{})
	resp, err := http.Post(ts.URL+"/api/login", "application/json",
		strings.NewReader(`{"username":"admin","password":"wrong"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLoginAndMe(t *testing.T) {
	ts, _ := newTestAPI(t, &fakeService{})
	client := loginClient(t, ts)

	resp, err := client.Get(ts.URL + "/api/me")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	var payload struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if payload.Username != "admin" {
		t.Fatalf("username = %q, want admin", payload.Username)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	ts, _ := newTestAPI(t, &fakeService{})
	client := loginClient(t, ts)

	resp, err := client.Post(ts.URL+"/api/logout", "application/json", nil)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	resp.Body.Close()

	resp, err = client.Get(ts.URL + "/api/me")
	if err != nil {
		t.Fatalf("me after logout: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status after logout = %d, want 401", resp.StatusCode)
	}
}

func TestChangePassword(t *testing.T) {
	ts, _ := newTestAPI(t, &fakeService{})
	client := loginClient(t, ts)

	body := `{"current_password":"hunter2","new_password":"correcthorse","confirm_password":"correcthorse"}`
	resp, err := client.Post(ts.URL+"/api/chpasswd", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("chpasswd: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chpasswd status = %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/login", "application/json",
		strings.NewReader(`{"username":"admin","password":"correcthorse"}`))
	if err != nil {
		t.Fatalf("relogin: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("relogin with new password status = %d", resp.StatusCode)
	}
}

func TestChangePasswordMismatchRejected(t *testing.T) {
	ts, _ := newTestAPI(t, &fakeService{})
	client := loginClient(t, ts)

	body := `{"current_password":"hunter2","new_password":"one","confirm_password":"two"}`
	resp, err := client.Post(ts.URL+"/api/chpasswd", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("chpasswd: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateServerConflictMapsTo409(t *testing.T) {
	svc := &fakeService{
		createServer: func(schema.CreateServerRequest) (schema.CreateServerResponse, error) {
			return schema.CreateServerResponse{}, schema.ErrServerExists
		},
	}
	ts, _ := newTestAPI(t, svc)
	client := loginClient(t, ts)

	resp, err := client.Post(ts.URL+"/api/servers", "application/json",
		strings.NewReader(`{"name":"vanilla","jar_path":"server.jar"}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestStartUnknownServerMapsTo404(t *testing.T) {
	svc := &fakeService{
		startServer: func(schema.StartServerRequest) (schema.StartServerResponse, error) {
			return schema.StartServerResponse{}, schema.ErrServerNotFound
		},
	}
	ts, _ := newTestAPI(t, svc)
	client := loginClient(t, ts)

	resp, err := client.Post(ts.URL+"/api/servers/start", "application/json",
		strings.NewReader(`{"server_id":"nope"}`))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCommandEmptyMapsTo400(t *testing.T) {
	svc := &fakeService{
		sendCommand: func(schema.SendCommandRequest) (schema.SendCommandResponse, error) {
			return schema.SendCommandResponse{}, schema.ErrEmptyCommand
		},
	}
	ts, _ := newTestAPI(t, svc)
	client := loginClient(t, ts)

	resp, err := client.Post(ts.URL+"/api/command", "application/json",
		strings.NewReader(`{"server_id":"srv","command":"  "}`))
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDownloadSetsAttachmentHeaders(t *testing.T) {
	svc := &fakeService{
		readFile: func(req schema.ReadFileRequest) (schema.ReadFileResponse, error) {
			if req.Path != "config/paper.yml" {
				return schema.ReadFileResponse{}, schema.ErrFileNotFound
			}
			return schema.ReadFileResponse{Content: "settings: true\n"}, nil
		},
	}
	ts, _ := newTestAPI(t, svc)
	client := loginClient(t, ts)

	resp, err := client.Get(ts.URL + "/api/download?server_id=srv&path=config/paper.yml")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	disposition := resp.Header.Get("Content-Disposition")
	if !strings.Contains(disposition, `attachment`) || !strings.Contains(disposition, "paper.yml") {
		t.Fatalf("content-disposition = %q", disposition)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if buf.String() != "settings: true\n" {
		t.Fatalf("body = %q", buf.String())
	}
}

func TestConsoleIntegrationOverHTTPClient(t *testing.T) {
	svc := &fakeService{
		sendCommand: func(req schema.SendCommandRequest) (schema.SendCommandResponse, error) {
			if req.Command != "say hello" {
				return schema.SendCommandResponse{}, fmt.Errorf("unexpected command %q", req.Command)
			}
			return schema.SendCommandResponse{}, nil
		},
		listLogFiles: func(schema.ListLogFilesRequest) (schema.ListLogFilesResponse, error) {
			return schema.ListLogFilesResponse{Files: []schema.LogFileInfo{
				{Name: "latest.log", Size: 42},
			}}, nil
		},
		readFile: func(req schema.ReadFileRequest) (schema.ReadFileResponse, error) {
			return schema.ReadFileResponse{
				Content: "motd=hi",
				Stat:    schema.FileStat{Path: req.Path, Size: 7, Hash: schema.HashContent([]byte("motd=hi"))},
			}, nil
		},
	}
	ts, hub := newTestAPI(t, svc)

	client, err := console.NewHTTPClient(ts.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := client.Login(ctx, "admin", "hunter2"); err != nil {
		t.Fatalf("client login: %v", err)
	}

	if err := client.SendCommand(ctx, "srv", "say hello"); err != nil {
		t.Fatalf("send command: %v", err)
	}

	files, err := client.ListLogFiles(ctx, "srv")
	if err != nil {
		t.Fatalf("list log files: %v", err)
	}
	if len(files) != 1 || files[0].Name != "latest.log" {
		t.Fatalf("files = %+v", files)
	}

	content, err := client.FetchFile(ctx, "srv", "server.properties")
	if err != nil {
		t.Fatalf("fetch file: %v", err)
	}
	if content != "motd=hi" {
		t.Fatalf("content = %q", content)
	}

	lines := make(chan string, 16)
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- client.StreamConsole(ctx, "srv", func(line string) {
			lines <- line
		})
	}()

	// Give the stream a moment to attach before publishing.
	time.Sleep(100 * time.Millisecond)
	hub.OnOutput(schema.OutputEvent{ServerID: "srv", Lines: []string{"[12:00:00] [Server thread/INFO]: hello"}})
	hub.OnOutput(schema.OutputEvent{ServerID: "other", Lines: []string{"ignored"}})
	hub.OnOutput(schema.OutputEvent{ServerID: "srv", Lines: []string{"second"}})

	var got []string
	deadline := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case line := <-lines:
			got = append(got, line)
		case err := <-streamErr:
			t.Fatalf("stream ended early: %v", err)
		case <-deadline:
			t.Fatalf("timed out; got %v", got)
		}
	}
	if got[0] != "[12:00:00] [Server thread/INFO]: hello" || got[1] != "second" {
		t.Fatalf("lines = %v", got)
	}
	select {
	case line := <-lines:
		t.Fatalf("unexpected extra line %q", line)
	case <-time.After(200 * time.Millisecond):
	}
	cancel()
	select {
	case <-streamErr:
	case <-time.After(5 * time.Second):
		t.Fatalf("stream did not stop on cancel")
	}
}

func TestStreamReplaysAfterLastEventID(t *testing.T) {
	ts, hub := newTestAPI(t, &fakeService{})
	client := loginClient(t, ts)

	for i := 1; i <= 5; i++ {
		hub.OnOutput(schema.OutputEvent{ServerID: "srv", Lines: []string{fmt.Sprintf("line %d", i)}})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream?server_id=srv", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Last-Event-ID", "3")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	var seen []uint64
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 1024)
	for {
		n, err := resp.Body.Read(chunk)
		buf = append(buf, chunk[:n]...)
		for _, frame := range strings.Split(string(buf), "\n\n") {
			for _, line := range strings.Split(frame, "\n") {
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				var event StreamEvent
				if jsonErr := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); jsonErr != nil {
					continue
				}
				if event.Type == "output" {
					seen = append(seen, event.Seq)
				}
			}
		}
		if len(seen) >= 2 {
			break
		}
		if err != nil {
			t.Fatalf("read: %v (seen %v)", err, seen)
		}
		seen = seen[:0]
	}
	if len(seen) != 2 || seen[0] != 4 || seen[1] != 5 {
		t.Fatalf("replayed seqs = %v, want [4 5]", seen)
	}
	cancel()
}
