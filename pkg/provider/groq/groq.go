// Package groq provides an eino chat model backed by Groq's OpenAI-compatible
// chat completions endpoint.
package groq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultTemperature = 0.7
	DefaultTimeout     = 30 * time.Second
)

// ErrMissingCredential is returned when no API key is available at call time.
var ErrMissingCredential = errors.New("groq: api key is not configured")

// CompletionError carries a non-200 response from the endpoint verbatim.
type CompletionError struct {
	StatusCode int
	Body       string
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.StatusCode, e.Body)
}

// Credential resolves the bearer token for a single request.
type Credential func() string

// Config describes how to reach the endpoint.
type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
	Credential  Credential
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// ChatModel implements model.BaseChatModel. Each Generate call issues exactly
// one request; retries are disabled so the first failure surfaces unchanged.
type ChatModel struct {
	client      oai.Client
	model       string
	temperature float64
	credential  Credential
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// New constructs a ChatModel, filling unset fields with Groq defaults.
func New(cfg Config) (*ChatModel, error) {
	if cfg.Credential == nil {
		return nil, errors.New("groq: credential source must not be nil")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client := oai.NewClient(
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMiddleware(captureStatus),
	)

	return &ChatModel{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		credential:  cfg.Credential,
	}, nil
}

// Generate sends the conversation and returns the first choice's message.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	key := strings.TrimSpace(m.credential())
	if key == "" {
		return nil, ErrMissingCredential
	}

	temperature := float32(m.temperature)
	modelName := m.model
	options := model.GetCommonOptions(&model.Options{
		Temperature: &temperature,
		Model:       &modelName,
	}, opts...)

	params, err := buildParams(input, options)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Chat.Completions.New(ctx, params, option.WithAPIKey(key))
	if err != nil {
		var completionErr *CompletionError
		if errors.As(err, &completionErr) {
			return nil, completionErr
		}
		return nil, fmt.Errorf("groq: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("groq: empty choices in response")
	}

	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

// Stream delivers the buffered reply as a single-chunk stream.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func buildParams(input []*schema.Message, options *model.Options) (oai.ChatCompletionNewParams, error) {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(input))
	for _, msg := range input {
		converted, err := convertMessage(msg)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, converted)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(*options.Model),
		Messages: messages,
	}
	if options.Temperature != nil {
		params.Temperature = param.NewOpt(widenTemperature(*options.Temperature))
	}
	if options.MaxTokens != nil {
		params.MaxTokens = param.NewOpt(int64(*options.MaxTokens))
	}
	return params, nil
}

// widenTemperature converts through the shortest decimal form of t, so 0.7
// goes out as 0.7 rather than 0.699999988079071 and no digits are dropped.
func widenTemperature(t float32) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(float64(t), 'g', -1, 32), 64)
	if err != nil {
		return float64(t)
	}
	return v
}

func convertMessage(msg *schema.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case schema.System:
		return oai.SystemMessage(msg.Content), nil
	case schema.User:
		return oai.UserMessage(msg.Content), nil
	case schema.Assistant:
		return oai.AssistantMessage(msg.Content), nil
	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("groq: unsupported message role %q", msg.Role)
	}
}

// captureStatus turns any non-200 response into a CompletionError holding the
// raw body, before the SDK tries to decode it as an OpenAI error object. A 200
// body is always decoded as JSON, even when a proxy dropped the content type.
func captureStatus(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	res, err := next(req)
	if err != nil {
		return res, err
	}
	if res.StatusCode == http.StatusOK {
		if !strings.Contains(res.Header.Get("Content-Type"), "json") {
			res.Header.Set("Content-Type", "application/json")
		}
		return res, nil
	}
	defer res.Body.Close()

	body, readErr := io.ReadAll(res.Body)
	if readErr != nil {
		return nil, fmt.Errorf("groq: read error body (status %d): %w", res.StatusCode, readErr)
	}
	return nil, &CompletionError{StatusCode: res.StatusCode, Body: string(body)}
}
