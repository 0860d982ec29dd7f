package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"google.golang.org/genai"

	"github.com/semanticbrowser/kb/internal/errs"
	"github.com/semanticbrowser/kb/internal/logging"
)

// GenAIProvider talks to Google's Gemini API. Client construction and
// error-wrapping follow internal/embedding/genai.go's
// NewGenAIEngine/Embed idiom, generalized from EmbedContent to
// GenerateContent/GenerateContentStream.
type GenAIProvider struct {
	client *genai.Client
	model  string
}

// NewGenAIProvider builds a provider bound to model (defaulting to
// "gemini-2.0-flash" when empty).
func NewGenAIProvider(apiKey, model string) (*GenAIProvider, error) {
	if apiKey == "" {
		return nil, errs.New(errs.KindInternal, "genai API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, "failed to create genai client", err)
	}
	return &GenAIProvider{client: client, model: model}, nil
}

func (p *GenAIProvider) modelOrDefault(cfg Config) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return p.model
}

func toGenAIContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		parts := []*genai.Part{genai.NewPartFromText(m.Content)}
		for _, img := range m.Images {
			if img.Data != "" {
				if raw, err := base64.StdEncoding.DecodeString(img.Data); err == nil {
					parts = append(parts, genai.NewPartFromBytes(raw, img.MediaType))
				}
			}
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

func toGenAITools(tools []ToolSpec) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		var schema genai.Schema
		if raw, err := json.Marshal(t.Schema); err == nil {
			_ = json.Unmarshal(raw, &schema)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  &schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func generationConfig(cfg Config) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{}
	if cfg.Temperature != 0 {
		t := float32(cfg.Temperature)
		gc.Temperature = &t
	}
	if cfg.MaxTokens != 0 {
		m := int32(cfg.MaxTokens)
		gc.MaxOutputTokens = m
	}
	return gc
}

func responseFromCandidate(result *genai.GenerateContentResponse) (Response, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return Response{}, errs.New(errs.KindInvalidResponse, "genai returned no candidates")
	}

	var resp Response
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			resp.Content += part.Text
		}
		if part.FunctionCall != nil {
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}
	if result.UsageMetadata != nil {
		resp.Usage = &Usage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}
	return resp, nil
}

// Chat issues a single non-streaming completion.
func (p *GenAIProvider) Chat(ctx context.Context, messages []Message, cfg Config) (Response, error) {
	return p.ChatWithTools(ctx, messages, nil, cfg)
}

// ChatWithTools issues a completion, offering tools for the model's
// native function-calling if any are given.
func (p *GenAIProvider) ChatWithTools(ctx context.Context, messages []Message, tools []ToolSpec, cfg Config) (Response, error) {
	start := time.Now()
	gc := generationConfig(cfg)
	gc.Tools = toGenAITools(tools)

	result, err := p.client.Models.GenerateContent(ctx, p.modelOrDefault(cfg), toGenAIContents(messages), gc)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, errs.Wrap(errs.KindTimeout, "genai call timed out", err)
		}
		return Response{}, errs.Wrap(errs.KindNetwork, "genai call failed", err)
	}
	logging.Get(logging.CategoryLLM).Debug("genai chat completed in %v", latency)

	return responseFromCandidate(result)
}

// Stream produces a buffered, single-producer/single-consumer sequence
// of token deltas. Dropping the returned channel (by the consumer no
// longer receiving and cancelling ctx) stops the producer at its next
// suspension point.
func (p *GenAIProvider) Stream(ctx context.Context, messages []Message, cfg Config) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 100)

	go func() {
		defer close(ch)
		for chunk, err := range p.client.Models.GenerateContentStream(ctx, p.modelOrDefault(cfg), toGenAIContents(messages), generationConfig(cfg)) {
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				select {
				case ch <- StreamEvent{Err: errs.Wrap(errs.KindNetwork, "genai stream failed", err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
				continue
			}
			for _, part := range chunk.Candidates[0].Content.Parts {
				if part.Text == "" {
					continue
				}
				select {
				case ch <- StreamEvent{Delta: part.Text}:
				case <-ctx.Done():
					return
				}
			}
		}
		select {
		case ch <- StreamEvent{Done: true}:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}

// SupportsVision reports true: Gemini models accept inline image parts.
func (p *GenAIProvider) SupportsVision() bool { return true }

// Health performs a cheap probe: a minimal completion request with a
// short deadline.
func (p *GenAIProvider) Health(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := p.client.Models.GenerateContent(probeCtx, p.model,
		toGenAIContents([]Message{{Role: RoleUser, Content: "ping"}}),
		&genai.GenerateContentConfig{MaxOutputTokens: 1})
	return err == nil
}
