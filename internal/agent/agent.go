package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/semanticbrowser/kb/internal/errs"
	"github.com/semanticbrowser/kb/internal/llm"
	"github.com/semanticbrowser/kb/internal/logging"
	"github.com/semanticbrowser/kb/internal/tools"
)

const defaultObservationCapBytes = 8 * 1024

// Config bootstraps an Orchestrator with defaults applied whenever a
// Task leaves the matching field at zero.
type Config struct {
	SystemPrompt          string
	DefaultMaxIterations  int
	DefaultTimeoutSeconds int
	ObservationCapBytes   int
	LLM                   llm.Config
}

// DefaultConfig matches spec.md §4.12's stated defaults: 10 iterations,
// a 60s overall budget, 8 KiB observation truncation.
func DefaultConfig() Config {
	return Config{
		SystemPrompt:          "You are an agent that can browse the web and query a knowledge graph to accomplish a goal. Use Action/Action Input to call a tool, or Final Answer once the goal is met.",
		DefaultMaxIterations:  10,
		DefaultTimeoutSeconds: 60,
		ObservationCapBytes:   defaultObservationCapBytes,
	}
}

// Orchestrator drives the ReAct loop of spec.md §4.12: THOUGHT asks the
// provider to decide; the decision resolves to either ACTION (dispatched
// through the tool registry, producing an OBSERVATION fed back as the
// next THOUGHT's input) or FINAL (the loop ends successfully).
type Orchestrator struct {
	provider llm.Provider
	registry *tools.Registry
	cfg      Config
}

// New builds an Orchestrator over provider and registry.
func New(provider llm.Provider, registry *tools.Registry, cfg Config) *Orchestrator {
	if cfg.DefaultMaxIterations == 0 {
		cfg.DefaultMaxIterations = DefaultConfig().DefaultMaxIterations
	}
	if cfg.DefaultTimeoutSeconds == 0 {
		cfg.DefaultTimeoutSeconds = DefaultConfig().DefaultTimeoutSeconds
	}
	if cfg.ObservationCapBytes == 0 {
		cfg.ObservationCapBytes = defaultObservationCapBytes
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultConfig().SystemPrompt
	}
	return &Orchestrator{provider: provider, registry: registry, cfg: cfg}
}

func (o *Orchestrator) log() *logging.Logger { return logging.Get(logging.CategoryAgent) }

// Run executes task to completion: success (a FINAL was reached),
// MAX_ITERATIONS exhaustion, or TIMEOUT, per spec.md §4.12's state
// machine. It never panics on a malformed LLM response; an unparseable
// turn ends the run as FAILED rather than looping forever.
func (o *Orchestrator) Run(ctx context.Context, task Task) (*Result, error) {
	maxIter := task.MaxIterations
	if maxIter <= 0 {
		maxIter = o.cfg.DefaultMaxIterations
	}
	timeoutSeconds := task.Timeout
	if timeoutSeconds <= 0 {
		timeoutSeconds = o.cfg.DefaultTimeoutSeconds
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	messages := o.buildInitialMessages(task)
	toolSpecs := o.toolSpecs()

	var history []Step

	for iter := 1; iter <= maxIter; iter++ {
		if runCtx.Err() != nil {
			o.log().Warn("agent %s: deadline exhausted before iteration %d", task.ID, iter)
			return &Result{Success: false, Error: "agent timed out", Iterations: iter - 1, History: history},
				errs.Wrap(errs.KindAgentTimeout, "agent timed out", runCtx.Err())
		}

		resp, err := o.think(runCtx, messages, toolSpecs)
		if err != nil {
			if runCtx.Err() != nil {
				return &Result{Success: false, Error: "agent timed out", Iterations: iter, History: history},
					errs.Wrap(errs.KindAgentTimeout, "agent timed out", runCtx.Err())
			}
			o.log().Error("agent %s: LLM call failed at iteration %d: %v", task.ID, iter, err)
			return &Result{Success: false, Error: err.Error(), Iterations: iter, History: history}, err
		}

		dec := parseResponse(resp)

		if dec.hasFinal {
			o.log().Debug("agent %s: reached FINAL at iteration %d", task.ID, iter)
			return &Result{Success: true, Result: dec.final, Iterations: iter, History: history}, nil
		}

		if !dec.hasAction {
			step := Step{Thought: dec.thought}
			history = append(history, step)
			o.log().Warn("agent %s: unparseable response at iteration %d", task.ID, iter)
			return &Result{Success: false, Error: "could not parse an action or final answer from the response", Iterations: iter, History: history},
				errs.New(errs.KindInvalidResponse, "unparseable agent response")
		}

		observation := o.dispatch(runCtx, dec.action, dec.actionInput)
		step := Step{Thought: dec.thought, Action: dec.action, ActionInput: dec.actionInput, Observation: observation}
		history = append(history, step)

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: formatAssistantTurn(dec)},
			llm.Message{Role: llm.RoleUser, Content: "Observation: " + observation},
		)
	}

	o.log().Warn("agent %s: exhausted %d iterations without a final answer", task.ID, maxIter)
	return &Result{Success: false, Error: "maximum iterations reached without a final answer", Iterations: maxIter, History: history},
		errs.New(errs.KindMaxIterations, "maximum iterations reached")
}

func (o *Orchestrator) buildInitialMessages(task Task) []llm.Message {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: o.cfg.SystemPrompt}}
	if task.Context != "" {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: task.Context})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: task.Goal})
	return messages
}

func (o *Orchestrator) think(ctx context.Context, messages []llm.Message, toolSpecs []llm.ToolSpec) (llm.Response, error) {
	if len(toolSpecs) == 0 {
		return o.provider.Chat(ctx, messages, o.cfg.LLM)
	}
	return o.provider.ChatWithTools(ctx, messages, toolSpecs, o.cfg.LLM)
}

func (o *Orchestrator) toolSpecs() []llm.ToolSpec {
	if o.registry == nil {
		return nil
	}
	defs := o.registry.List()
	specs := make([]llm.ToolSpec, 0, len(defs))
	for _, d := range defs {
		specs = append(specs, llm.ToolSpec{Name: d.Name, Description: d.Description, Schema: d.Schema})
	}
	return specs
}

// dispatch executes the named tool and returns a string observation,
// truncated to the configured cap. It never returns an error itself:
// a failed tool call becomes an "error: ..." observation so the loop can
// feed it back to the model for the next THOUGHT, per spec.md §4.12.
func (o *Orchestrator) dispatch(ctx context.Context, name string, args map[string]any) string {
	if o.registry == nil {
		return o.truncate(fmt.Sprintf("error: no tool registry configured, cannot call %q", name))
	}
	tool := o.registry.Get(name)
	if tool == nil {
		return o.truncate(fmt.Sprintf("error: unknown tool %q", name))
	}
	result, err := o.registry.ExecuteTool(ctx, tool, args)
	if err != nil {
		return o.truncate(fmt.Sprintf("error: %v", err))
	}
	return o.truncate(result.Result)
}

func (o *Orchestrator) truncate(s string) string {
	limit := o.cfg.ObservationCapBytes
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "...(truncated)"
}

// formatAssistantTurn reconstructs the textual form of dec so the
// conversation sent back to the provider carries a record of the tool
// call it just made, whether the provider answered with native tool
// calls or the textual Action:/Action Input: markers.
func formatAssistantTurn(dec decision) string {
	inputJSON := "{}"
	if dec.actionInput != nil {
		if b, err := json.Marshal(dec.actionInput); err == nil {
			inputJSON = string(b)
		}
	}
	prefix := ""
	if dec.thought != "" {
		prefix = dec.thought + "\n"
	}
	return fmt.Sprintf("%sAction: %s\nAction Input: %s", prefix, dec.action, inputJSON)
}
