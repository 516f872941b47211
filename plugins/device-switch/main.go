// Package main provides a plugin that switches a device on or off.
// Each action either calls an HTTP endpoint (smart plugs, home automation
// hubs) or runs a local command.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action  string          `json:"action"`
	Gesture string          `json:"gesture"`
	Config  json.RawMessage `json:"config"`
	Params  json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the binding configuration for one device.
type Config struct {
	OnURL     string `json:"on_url"`
	OffURL    string `json:"off_url"`
	ToggleURL string `json:"toggle_url"`
	Method    string `json:"method"`

	OnCommand     []string `json:"on_command"`
	OffCommand    []string `json:"off_command"`
	ToggleCommand []string `json:"toggle_command"`
}

// target returns the URL and command configured for an action.
func (c Config) target(action string) (string, []string, error) {
	switch action {
	case "on":
		return c.OnURL, c.OnCommand, nil
	case "off":
		return c.OffURL, c.OffCommand, nil
	case "toggle":
		return c.ToggleURL, c.ToggleCommand, nil
	default:
		return "", nil, fmt.Errorf("unknown action: %s", action)
	}
}

const requestTimeout = 3 * time.Second

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}
	writeResponse(handle(context.Background(), http.DefaultClient, req))
}

// handle runs one action and builds the response.
func handle(ctx context.Context, client *http.Client, req Request) Response {
	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return Response{Error: fmt.Sprintf("invalid config: %v", err)}
		}
	}

	url, command, err := cfg.target(req.Action)
	if err != nil {
		return Response{Error: err.Error()}
	}

	switch {
	case url != "":
		status, err := callURL(ctx, client, cfg.Method, url, req)
		if err != nil {
			return Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)}
		}
		data, _ := json.Marshal(map[string]int{"status": status})
		return Response{Success: true, Data: data}
	case len(command) > 0:
		if err := runCommand(ctx, command); err != nil {
			return Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)}
		}
		return Response{Success: true}
	default:
		return Response{Error: fmt.Sprintf("no url or command configured for action %s", req.Action)}
	}
}

// callURL sends the gesture to url. Non-GET requests carry the params as the body.
func callURL(ctx context.Context, client *http.Client, method, url string, req Request) (int, error) {
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var body io.Reader
	if method != http.MethodGet && len(req.Params) > 0 {
		body = bytes.NewReader(req.Params)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%s %s: %s", method, url, resp.Status)
	}
	return resp.StatusCode, nil
}

// runCommand executes argv and returns any error with its output.
func runCommand(ctx context.Context, argv []string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// writeResponse writes a response to stdout.
func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
