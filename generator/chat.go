package generator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/jitter/bundle"
	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/internal/httpclient"
	"github.com/teranos/jitter/logger"
)

// SystemPrompt frames every chat request
const SystemPrompt = `You implement exactly one pending Go function.
The user message is a context bundle: the target's signature and doc, the
types it touches, the collaborators named in its doc, and the call stack
that reached it. Reply with the complete function declaration only, in a
single go code block. Do not change the signature.`

// ChatConfig configures a Chat backend
type ChatConfig struct {
	Endpoint     string // base URL; /v1/chat/completions is appended
	Model        string
	APIKey       string // sent as a bearer token when set
	AllowPrivate bool
	Timeout      time.Duration
	Temperature  float64
	MaxTokens    int
}

// Chat calls an OpenAI-compatible chat completions endpoint (Ollama,
// LocalAI, OpenRouter and similar)
type Chat struct {
	cfg    ChatConfig
	url    string
	client *httpclient.Client
	log    *zap.SugaredLogger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewChat validates the endpoint and builds the backend
func NewChat(cfg ChatConfig) (*Chat, error) {
	if cfg.Model == "" {
		return nil, errors.New("chat generator needs a model")
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}

	client := httpclient.New(httpclient.Options{Timeout: cfg.Timeout, AllowPrivate: cfg.AllowPrivate})
	base, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parse generator endpoint %q", cfg.Endpoint)
	}
	if err := client.Check(base); err != nil {
		return nil, errors.WithHint(errors.Wrapf(err, "generator endpoint %s", cfg.Endpoint),
			"set generator.allow_private = true for a local inference server")
	}
	endpoint := base.String()
	if !strings.HasSuffix(endpoint, "/v1") {
		endpoint += "/v1"
	}

	return &Chat{
		cfg:    cfg,
		url:    endpoint + "/chat/completions",
		client: client,
		log:    logger.ComponentLogger("generator"),
	}, nil
}

// Generate sends one non-streaming completion request
func (c *Chat) Generate(ctx context.Context, b *bundle.Bundle, rendered string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: rendered},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal chat request")
	}

	header := http.Header{}
	if c.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.client.Post(ctx, c.url, "application/json", header, body)
	if err != nil {
		return "", errors.Wrapf(err, "chat request to %s", c.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", errors.Newf("chat endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var completion chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", errors.Wrap(err, "decode chat response")
	}
	if completion.Error != nil {
		return "", errors.Newf("chat endpoint error: %s", completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat endpoint returned no choices")
	}

	fields := []interface{}{
		logger.FieldTarget, b.Target.QualifiedName,
		"model", c.cfg.Model,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	}
	if completion.Usage != nil {
		fields = append(fields, "prompt_tokens", completion.Usage.PromptTokens, "completion_tokens", completion.Usage.CompletionTokens)
	}
	logger.ChildLogger(c.log, logger.FieldsFromContext(ctx)...).Infow("Chat completion", fields...)

	out := ExtractCode(completion.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("chat endpoint returned an empty completion")
	}
	return out, nil
}

// ExtractCode returns the body of the first fenced code block in text, or
// the trimmed text when there is none
func ExtractCode(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return strings.TrimSpace(text)
	}
	rest := text[start+3:]
	// skip the info string ("go")
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		return strings.TrimSpace(text)
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// String names the backend as model@endpoint
func (c *Chat) String() string {
	return c.cfg.Model + "@" + c.cfg.Endpoint
}
