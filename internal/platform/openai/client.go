package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/envutil"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation transcript.
type Message struct {
	Role    Role
	Content string
}

// Client is the LLM surface used by the task pipeline.
type Client interface {
	// Complete sends the whole transcript and returns output_text.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Structured outputs (json_schema)
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)

	// JSON mode (json_object). The caller parses the text.
	GenerateJSONText(ctx context.Context, system string, user string) (string, error)

	// Plain text (no schema)
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

// Config holds the endpoint settings. Zero Timeout means no client-side deadline.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	ReasoningEffort string
	Verbosity       string
	Timeout         time.Duration
	MaxRetries      int
	PortkeyAPIKey   string
}

const (
	DefaultModel           = "gpt-5"
	DefaultReasoningEffort = "medium"
	DefaultVerbosity       = "medium"
)

func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:          envutil.String("OPENAI_API_KEY", ""),
		BaseURL:         envutil.String("OPENAI_BASE_URL", ""),
		Model:           envutil.String("OPENAI_MODEL", DefaultModel),
		ReasoningEffort: envutil.String("OPENAI_REASONING_EFFORT", DefaultReasoningEffort),
		Verbosity:       envutil.String("OPENAI_VERBOSITY", DefaultVerbosity),
		MaxRetries:      envutil.Int("OPENAI_MAX_RETRIES", 2),
		PortkeyAPIKey:   envutil.String("PORTKEY_API_KEY", ""),
	}
	if sec := envutil.Int("OPENAI_TIMEOUT_SECONDS", 0); sec > 0 {
		cfg.Timeout = time.Duration(sec) * time.Second
	}
	return cfg
}

// WithModel returns a client that uses the provided model.
// If model is empty or base is not a *client, base is returned unchanged.
func WithModel(base Client, model string) Client {
	model = strings.TrimSpace(model)
	if base == nil || model == "" {
		return base
	}
	if c, ok := base.(*client); ok {
		clone := *c
		clone.cfg.Model = model
		clone.log = c.log.With("model", model)
		return &clone
	}
	return base
}

type client struct {
	log *logger.Logger
	cfg Config
	api *openai.Client
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", envutil.ErrMissingEnv)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.PortkeyAPIKey != "" {
		opts = append(opts, option.WithHeader("x-portkey-api-key", cfg.PortkeyAPIKey))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	api := openai.NewClient(opts...)

	return &client{
		log: log.With("client", "OpenAIClient", "model", cfg.Model),
		cfg: cfg,
		api: &api,
	}, nil
}

type textFormat int

const (
	formatText textFormat = iota
	formatJSONObject
	formatJSONSchema
)

type call struct {
	name       string
	messages   []Message
	format     textFormat
	schemaName string
	schema     map[string]any
}

func (c *client) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("messages required")
	}
	return c.do(ctx, call{name: "complete", messages: messages})
}

func (c *client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" {
		return nil, errors.New("schemaName required")
	}
	if schema == nil {
		return nil, errors.New("schema required")
	}
	text, err := c.do(ctx, call{
		name:       "generate_json",
		messages:   pair(system, user),
		format:     formatJSONSchema,
		schemaName: schemaName,
		schema:     schema,
	})
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w; text=%s", err, snippet(text))
	}
	return obj, nil
}

func (c *client) GenerateJSONText(ctx context.Context, system string, user string) (string, error) {
	return c.do(ctx, call{name: "generate_json_text", messages: pair(system, user), format: formatJSONObject})
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	return c.do(ctx, call{name: "generate_text", messages: pair(system, user)})
}

func (c *client) do(ctx context.Context, in call) (string, error) {
	ctx, span := otel.Tracer("openai").Start(ctx, "openai.responses."+in.name)
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.cfg.Model),
		attribute.Int("llm.messages", len(in.messages)),
	)

	params := c.buildParams(in)
	start := time.Now()
	resp, err := c.api.Responses.New(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "responses request failed")
		c.log.Warn("openai request failed", "call", in.name, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("openai %s: %w", in.name, err)
	}

	text := resp.OutputText()
	c.log.Debug("openai response",
		"call", in.name,
		"response_id", resp.ID,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	if resp.IncompleteDetails.Reason != "" {
		c.log.Warn("openai response incomplete", "call", in.name, "reason", resp.IncompleteDetails.Reason)
	}
	if strings.TrimSpace(text) == "" {
		span.SetStatus(codes.Error, "empty output")
		return "", fmt.Errorf("openai %s: no output_text found in response", in.name)
	}
	return text, nil
}

func (c *client) buildParams(in call) responses.ResponseNewParams {
	items := make(responses.ResponseInputParam, 0, len(in.messages))
	for _, m := range in.messages {
		switch m.Role {
		case RoleSystem:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleSystem))
		case RoleAssistant:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleAssistant))
		default:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleUser))
		}
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.cfg.Model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: items,
		},
	}
	if c.cfg.ReasoningEffort != "" {
		params.Reasoning = shared.ReasoningParam{}
		params.Reasoning.Effort = shared.ReasoningEffort(c.cfg.ReasoningEffort)
	}

	switch in.format {
	case formatJSONSchema:
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   in.schemaName,
					Schema: in.schema,
					Strict: openai.Bool(true),
				},
			},
		}
	case formatJSONObject:
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
		}
	default:
		if c.cfg.Verbosity != "" {
			params.Text = responses.ResponseTextConfigParam{}
			params.Text.SetExtraFields(map[string]any{"verbosity": c.cfg.Verbosity})
		}
	}
	return params
}

func pair(system, user string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}

func snippet(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
