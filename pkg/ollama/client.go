// Package ollama locates faces with a vision model served by Ollama.
package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/passport-photo/pkg/modeljson"
	"github.com/menta2k/passport-photo/pkg/types"
)

// DefaultTimeout bounds a single model call when the context has no deadline
const DefaultTimeout = 300 * time.Second

// jsonFormat asks Ollama to constrain the answer to a JSON value
var jsonFormat = json.RawMessage(`"json"`)

// Client talks to an Ollama server
type Client struct {
	api     *api.Client
	timeout time.Duration
}

// Option customizes a Client
type Option func(*Client)

// WithTimeout overrides DefaultTimeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client for the server at ollamaURL. Only the scheme
// and host are used, so both http://host:11434 and
// http://host:11434/api/chat are accepted. OLLAMA_HOST is ignored.
func NewClient(ollamaURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs a scheme and host", ollamaURL)
	}

	c := &Client{
		api:     api.NewClient(&url.URL{Scheme: u.Scheme, Host: u.Host}, http.DefaultClient),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ping checks that the server is up
func (c *Client) Ping(ctx context.Context) error {
	if err := c.api.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	return nil
}

// SimpleQuery sends prompt and image and returns the free-form answer
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.chat(ctx, model, prompt, imgB64, nil, nil)
}

// DetectFaces asks the model for face boxes and parses its JSON answer
func (c *Client) DetectFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceDetection, error) {
	content, err := c.chat(ctx, model, prompt, imgB64, detectOptions(model), jsonFormat)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("empty response from ollama")
	}
	return modeljson.ParseFaceDetection(content)
}

// detectOptions keeps coordinates stable between runs. MiniCPM-V 4 needs
// a larger context than the default to fit the image tokens.
func detectOptions(model string) map[string]any {
	options := map[string]any{"temperature": 0.1}

	name := strings.ReplaceAll(strings.ToLower(model), "-", "")
	if strings.Contains(name, "minicpmv4") {
		options["num_ctx"] = 4096
	}
	return options
}

func (c *Client) chat(ctx context.Context, model, prompt, imgB64 string, options map[string]any, format json.RawMessage) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg := api.Message{Role: "user", Content: prompt}
	if imgB64 != "" {
		img, err := base64.StdEncoding.DecodeString(imgB64)
		if err != nil {
			return "", fmt.Errorf("failed to decode base64 image: %w", err)
		}
		msg.Images = []api.ImageData{img}
	}

	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: []api.Message{msg},
		Stream:   &stream,
		Options:  options,
		Format:   format,
	}

	var answer strings.Builder
	err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		answer.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return answer.String(), nil
}
