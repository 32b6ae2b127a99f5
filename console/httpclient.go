package console

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"pkt.systems/blockdeck/schema"
)

// DefaultRequestTimeout bounds REST round trips. The stream connection
// is exempt; it stays open until closed or broken.
const DefaultRequestTimeout = 10 * time.Second

// HTTPClient talks to the blockdeck HTTP API. It implements Client.
type HTTPClient struct {
	baseURL string
	rest    *http.Client
	stream  *http.Client
}

// NewHTTPClient constructs a client for the given base URL. A
// non-positive timeout falls back to DefaultRequestTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		rest:    &http.Client{Timeout: timeout, Jar: jar},
		stream:  &http.Client{Jar: jar},
	}, nil
}

// Login authenticates and stores the session cookie for later calls.
func (c *HTTPClient) Login(ctx context.Context, username, password string) error {
	payload := map[string]string{"username": username, "password": password}
	return c.postJSON(ctx, "/api/login", payload, nil)
}

// Logout drops the server-side session.
func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.postJSON(ctx, "/api/logout", map[string]string{}, nil)
}

// ListLogFiles implements Client.
func (c *HTTPClient) ListLogFiles(ctx context.Context, serverID schema.ServerID) ([]schema.LogFileInfo, error) {
	var resp schema.ListLogFilesResponse
	query := url.Values{"server_id": {string(serverID)}}
	if err := c.getJSON(ctx, "/api/logs", query, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// FetchLogFile implements Client.
func (c *HTTPClient) FetchLogFile(ctx context.Context, serverID schema.ServerID, name string) ([]string, error) {
	var resp schema.GetLogFileResponse
	query := url.Values{"server_id": {string(serverID)}, "name": {name}}
	if err := c.getJSON(ctx, "/api/logfile", query, &resp); err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

// SendCommand implements Client.
func (c *HTTPClient) SendCommand(ctx context.Context, serverID schema.ServerID, command string) error {
	payload := map[string]string{"server_id": string(serverID), "command": command}
	return c.postJSON(ctx, "/api/command", payload, nil)
}

// FetchFile implements Client.
func (c *HTTPClient) FetchFile(ctx context.Context, serverID schema.ServerID, path string) (string, error) {
	var resp schema.ReadFileResponse
	query := url.Values{"server_id": {string(serverID)}, "path": {path}}
	if err := c.getJSON(ctx, "/api/file", query, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// WriteFile implements Client.
func (c *HTTPClient) WriteFile(ctx context.Context, serverID schema.ServerID, path, content string) error {
	payload := map[string]string{
		"server_id": string(serverID),
		"path":      path,
		"content":   content,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/file", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(c.rest, req, nil)
}

// StatFile implements Client.
func (c *HTTPClient) StatFile(ctx context.Context, serverID schema.ServerID, path string) (schema.FileStat, error) {
	var resp schema.StatFileResponse
	query := url.Values{"server_id": {string(serverID)}, "path": {path}}
	if err := c.getJSON(ctx, "/api/filestat", query, &resp); err != nil {
		return schema.FileStat{}, err
	}
	return resp.Stat, nil
}

// streamFrame mirrors the server's SSE event payload. Only the fields
// the console consumes are decoded.
type streamFrame struct {
	Seq      uint64          `json:"seq"`
	Type     string          `json:"type"`
	ServerID schema.ServerID `json:"server_id"`
	Lines    []string        `json:"lines"`
}

// StreamConsole implements Client. It opens the SSE stream and delivers
// output lines for the requested server in arrival order until the
// context is cancelled or the connection drops.
func (c *HTTPClient) StreamConsole(ctx context.Context, serverID schema.ServerID, onLine func(line string)) error {
	query := url.Values{"server_id": {string(serverID)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stream?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("stream request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 2*1024*1024)

	var dataLines []string
	flush := func() {
		if len(dataLines) == 0 {
			return
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		var frame streamFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			return
		}
		if frame.Type != "output" || frame.ServerID != serverID {
			return
		}
		for _, line := range frame.Lines {
			onLine(line)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			part := strings.TrimPrefix(line, "data:")
			part = strings.TrimPrefix(part, " ")
			dataLines = append(dataLines, part)
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, target any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(c.rest, req, target)
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(c.rest, req, target)
}

func (c *HTTPClient) do(client *http.Client, req *http.Request, target any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("api error: status %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("api error: status %d", resp.StatusCode)
}
