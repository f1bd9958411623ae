package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/josephgoksu/taskforge/internal/apperr"
)

// Kind tags a generation result.
type Kind string

const (
	KindText   Kind = "text"
	KindObject Kind = "object"
)

// Telemetry is the usage metadata of one generation call.
type Telemetry struct {
	Command      string        `json:"command,omitempty"`
	Role         Role          `json:"role"`
	Provider     Provider      `json:"provider"`
	Model        string        `json:"model"`
	InputTokens  int           `json:"inputTokens"`
	OutputTokens int           `json:"outputTokens"`
	TotalCostUSD float64       `json:"totalCostUsd"`
	Duration     time.Duration `json:"-"`
	DurationMS   int64         `json:"durationMs"`
}

// Result is the single shape every generation call returns.
// Object is set when Kind is KindObject, Text otherwise.
type Result struct {
	Kind      Kind            `json:"kind"`
	Text      string          `json:"text,omitempty"`
	Object    json.RawMessage `json:"object,omitempty"`
	Telemetry Telemetry       `json:"telemetry"`
}

// Request is a prompt pair addressed to a role.
type Request struct {
	Role         Role
	SystemPrompt string
	Prompt       string
	Command      string // operation name, for telemetry
}

// ObjectRequest asks for a JSON value. Schema is a short description or example
// of the expected shape that is appended to the system prompt.
type ObjectRequest struct {
	Request
	SchemaName string
	Schema     string
}

// Generator is the Generation Adapter contract consumed by the pipeline.
type Generator interface {
	GenerateText(ctx context.Context, req Request) (Result, error)
	GenerateObject(ctx context.Context, req ObjectRequest) (Result, error)
}

// RoleModel is a chat model bound to a role.
type RoleModel struct {
	Model    model.BaseChatModel
	Provider Provider
	Name     string
}

type call struct {
	system string
	prompt string
}

type roleChain struct {
	runnable compose.Runnable[call, *schema.Message]
	model    RoleModel
}

// Adapter runs requests through a compiled prompt -> model graph per role.
// It never retries; retry and backoff belong to the provider clients.
type Adapter struct {
	chains map[Role]roleChain
	logger *slog.Logger
}

// NewAdapter compiles one chain per configured role. RoleMain is required.
func NewAdapter(ctx context.Context, models map[Role]RoleModel, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if _, ok := models[RoleMain]; !ok {
		return nil, fmt.Errorf("no model configured for role %q", RoleMain)
	}

	a := &Adapter{chains: make(map[Role]roleChain, len(models)), logger: logger}
	for role, rm := range models {
		runnable, err := compileChain(ctx, string(role), rm.Model)
		if err != nil {
			return nil, fmt.Errorf("compile %s chain: %w", role, err)
		}
		a.chains[role] = roleChain{runnable: runnable, model: rm}
	}
	return a, nil
}

func compileChain(ctx context.Context, name string, chatModel model.BaseChatModel) (compose.Runnable[call, *schema.Message], error) {
	promptFunc := func(ctx context.Context, in call) ([]*schema.Message, error) {
		var msgs []*schema.Message
		if strings.TrimSpace(in.system) != "" {
			msgs = append(msgs, schema.SystemMessage(in.system))
		}
		return append(msgs, schema.UserMessage(in.prompt)), nil
	}

	// BaseChatModel is wrapped in a lambda so models without tool binding fit.
	modelFunc := func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		return chatModel.Generate(ctx, input)
	}

	graph := compose.NewGraph[call, *schema.Message]()
	_ = graph.AddLambdaNode("prompt", compose.InvokableLambda(promptFunc))
	_ = graph.AddLambdaNode("model", compose.InvokableLambda(modelFunc))
	_ = graph.AddEdge(compose.START, "prompt")
	_ = graph.AddEdge("prompt", "model")
	_ = graph.AddEdge("model", compose.END)

	return graph.Compile(ctx, compose.WithGraphName(name))
}

// GenerateText runs the request and returns a KindText result.
func (a *Adapter) GenerateText(ctx context.Context, req Request) (Result, error) {
	text, tel, err := a.run(ctx, "generateText", req, req.SystemPrompt)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: KindText, Text: text, Telemetry: tel}, nil
}

// GenerateObject runs the request asking for JSON. When the reply is valid JSON the
// result is KindObject (unwrapped from an "object" or "mainResult" envelope if the
// provider added one); otherwise the raw text is returned as KindText so the
// normalizer can recover it.
func (a *Adapter) GenerateObject(ctx context.Context, req ObjectRequest) (Result, error) {
	system := req.SystemPrompt
	if req.Schema != "" {
		system = strings.TrimSpace(system + "\n\nRespond with JSON only, matching this " +
			req.SchemaName + " shape:\n" + req.Schema)
	}
	text, tel, err := a.run(ctx, "generateObject", req.Request, system)
	if err != nil {
		return Result{}, err
	}
	return Envelope(text, tel), nil
}

func (a *Adapter) run(ctx context.Context, op string, req Request, system string) (string, Telemetry, error) {
	role := req.Role
	if role == "" {
		role = RoleMain
	}
	chain, ok := a.chains[role]
	if !ok {
		a.logger.Debug("role not configured, using main model", "role", role)
		chain = a.chains[RoleMain]
	}

	start := time.Now()
	msg, err := chain.runnable.Invoke(ctx, call{system: system, prompt: req.Prompt})
	duration := time.Since(start)
	if err != nil {
		return "", Telemetry{}, apperr.Upstream(op, err, "%s model call failed", role)
	}
	if msg == nil {
		return "", Telemetry{}, apperr.Upstream(op, nil, "%s model returned no message", role)
	}

	tel := Telemetry{
		Command:    req.Command,
		Role:       role,
		Provider:   chain.model.Provider,
		Model:      chain.model.Name,
		Duration:   duration,
		DurationMS: duration.Milliseconds(),
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		tel.InputTokens = msg.ResponseMeta.Usage.PromptTokens
		tel.OutputTokens = msg.ResponseMeta.Usage.CompletionTokens
	} else {
		tel.InputTokens = EstimateTokens(system) + EstimateTokens(req.Prompt)
		tel.OutputTokens = EstimateTokens(msg.Content)
	}
	tel.TotalCostUSD = CalculateCost(tel.Model, tel.InputTokens, tel.OutputTokens)

	a.logger.Debug("generation complete",
		"op", op, "command", req.Command, "role", role, "model", tel.Model,
		"input_tokens", tel.InputTokens, "output_tokens", tel.OutputTokens,
		"cost_usd", tel.TotalCostUSD, "duration", duration)
	return msg.Content, tel, nil
}

// envelopeKeys are wrapper fields some call paths nest the real object under.
var envelopeKeys = []string{"object", "mainResult"}

// Envelope tags raw model output: valid JSON becomes a KindObject result with any
// single-purpose wrapper removed, anything else stays KindText.
func Envelope(text string, tel Telemetry) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return Result{Kind: KindText, Text: text, Telemetry: tel}
	}

	raw := json.RawMessage(trimmed)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		for _, key := range envelopeKeys {
			if inner, ok := fields[key]; ok && len(inner) > 0 && string(inner) != "null" {
				raw = inner
				break
			}
		}
	}
	return Result{Kind: KindObject, Object: raw, Telemetry: tel}
}
