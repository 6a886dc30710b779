// Package agent is the bounded, tool-using loop that drives an LLM to fill
// the required-layer coverage matrix of a TaskContextDigest. Each step sends
// the current coverage state to the model, dispatches the tool calls it
// returns against an injected executor, and folds the results into the
// digest until the required layers are complete or a bound is hit.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"codeindex/internal/codeerrors"
	"codeindex/internal/llm"
	"codeindex/internal/model"
)

// AllowedTools is the closed tool allow-list. Calls naming anything else
// are rejected and recorded, never dispatched.
var AllowedTools = map[string]bool{
	"search_symbols":            true,
	"find_references":           true,
	"analyze_call_graph":        true,
	"get_file_outline":          true,
	"get_imports":               true,
	"list_modules":              true,
	"find_module_dependencies":  true,
	"get_architecture_summary":  true,
	"get_stats":                 true,
	"list_dependencies":         true,
	"get_dependency_info":       true,
	"get_dependency_source":     true,
	"get_doc_section":           true,
	"get_project_compass":       true,
	"get_project_commands":      true,
}

// systemPrompt is the agent's fixed directive.
const systemPrompt = `You are a code-context collection agent. Return strictly one JSON object of the shape {"done": bool, "focus": string, "calls": [{"tool": string, "args": object}]}. Only call tools from the allowed_tools list in the supplied state. Fill the required digest layers (module_graph, file_import_graph, symbol_interactions) before optional ones. Keep every call deterministic: no randomness, no creative text outside the JSON object.`

// Request is one agent context-collection request.
type Request struct {
	Query        string
	File         string
	TaskHint     string
	TimeoutMs    int
	MaxSteps     int
	IncludeTrace bool
	Provider     string
	Model        string
	Endpoint     string
	APIKey       string
}

// defaults fills Request zero-values.
func (r *Request) defaults() {
	if r.TimeoutMs <= 0 {
		r.TimeoutMs = 60_000
	}
	if r.MaxSteps <= 0 {
		r.MaxSteps = 6
	}
}

// ToolExecutor dispatches one allow-listed tool call against the query
// surface, returning a result map folded into the digest.
type ToolExecutor func(ctx context.Context, tool string, args map[string]any) (map[string]any, error)

// CoverageGap records a required layer that never got filled, or a tool call
// rejected by the allow-list (layer "orchestration", no recommended call).
type CoverageGap struct {
	Layer               string
	Reason              string
	RecommendedToolCall SuggestedToolCall
}

// SuggestedToolCall proposes a follow-up tool invocation.
type SuggestedToolCall struct {
	Tool   string
	Args   map[string]any
	Reason string
}

// NextAction is a synthesized follow-up recommendation in the result.
type NextAction struct {
	Tool string
	Args map[string]any
	Hint string
}

// TraceEntry records one dispatched tool call, in step order.
type TraceEntry struct {
	Step   int
	Tool   string
	Args   map[string]any
	Error  string
	Result map[string]any
}

// CollectionMeta reports how the loop ran.
type CollectionMeta struct {
	Provider        string
	Model           string
	Endpoint        string
	StepsTaken      int
	ElapsedMs       int64
	TimeoutReached  bool
	MaxStepsReached bool
	FinishReason    string
	Usage           *llm.Usage
	Trace           []TraceEntry
}

// Result is the orchestrator's full answer: the digest, its coverage, and
// the follow-ups synthesized for anything still missing.
type Result struct {
	TaskContext        *model.TaskContextDigest
	Coverage           model.Coverage
	Gaps               []CoverageGap
	CollectionMeta     CollectionMeta
	NextActions        []NextAction
	SuggestedToolCalls []SuggestedToolCall
}

// command is the LLM's parsed JSON command.
type command struct {
	Done  bool   `json:"done"`
	Focus string `json:"focus"`
	Calls []struct {
		Tool string         `json:"tool"`
		Args map[string]any `json:"args"`
	} `json:"calls"`
}

// Run executes the bounded step loop against client, dispatching tool calls
// through exec.
func Run(ctx context.Context, req Request, client *llm.Client, exec ToolExecutor) (Result, error) {
	req.defaults()
	start := time.Now()
	deadline := start.Add(time.Duration(req.TimeoutMs) * time.Millisecond)

	digest := &model.TaskContextDigest{}
	var coverage model.Coverage
	var recentGaps []string
	var orchestrationGaps []CoverageGap
	var trace []TraceEntry
	var usage llm.Usage
	var finishReason string
	sessionID := uuid.New().String()

	meta := CollectionMeta{Provider: req.Provider, Model: req.Model, Endpoint: req.Endpoint}

	steps := 0
	timeoutReached := false
	for step := 1; step <= req.MaxSteps; step++ {
		if time.Now().After(deadline) {
			timeoutReached = true
			break
		}
		steps = step

		statePayload, err := buildStatePayload(req, digest, coverage, recentGaps, sessionID)
		if err != nil {
			return Result{}, err
		}

		res, err := client.Complete(ctx, []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: statePayload},
		})
		if err != nil {
			return Result{}, err
		}
		finishReason = res.FinishReason
		if res.Usage != nil {
			usage.PromptTokens += res.Usage.PromptTokens
			usage.CompletionTokens += res.Usage.CompletionTokens
			usage.TotalTokens += res.Usage.TotalTokens
		}

		cmd, err := parseCommand(res.Content)
		if err != nil {
			// A JSON-parse failure is the only hard stop; tool failures
			// become gaps instead.
			return Result{}, codeerrors.Wrap(codeerrors.KindMcp, "parse agent command", err)
		}

		recentGaps = nil
		for _, call := range cmd.Calls {
			args := inferArgs(call.Tool, call.Args, req)
			if !AllowedTools[call.Tool] {
				gap := fmt.Sprintf("%s: tool not in allow-list", call.Tool)
				recentGaps = append(recentGaps, gap)
				orchestrationGaps = append(orchestrationGaps, CoverageGap{Layer: "orchestration", Reason: gap})
				trace = append(trace, TraceEntry{Step: step, Tool: call.Tool, Args: args, Error: "tool not allow-listed"})
				continue
			}
			result, callErr := exec(ctx, call.Tool, args)
			entry := TraceEntry{Step: step, Tool: call.Tool, Args: args, Result: result}
			if callErr != nil {
				entry.Error = callErr.Error()
				recentGaps = append(recentGaps, fmt.Sprintf("%s: %v", call.Tool, callErr))
			} else {
				foldIntoDigest(digest, call.Tool, args, result)
			}
			trace = append(trace, entry)
			if len(recentGaps) > 5 {
				recentGaps = recentGaps[len(recentGaps)-5:]
			}
		}

		coverage.Recompute(digest)
		if cmd.Done && coverage.Complete() {
			break
		}
	}

	maxStepsReached := steps >= req.MaxSteps && !coverage.Complete()

	meta.StepsTaken = steps
	meta.ElapsedMs = time.Since(start).Milliseconds()
	meta.TimeoutReached = timeoutReached
	meta.MaxStepsReached = maxStepsReached
	meta.FinishReason = finishReason
	meta.Usage = &usage
	if req.IncludeTrace {
		meta.Trace = trace
	}

	gaps, nextActions, suggested := synthesizeGaps(coverage, req)
	gaps = append(gaps, orchestrationGaps...)

	return Result{
		TaskContext:        digest,
		Coverage:           coverage,
		Gaps:               gaps,
		CollectionMeta:     meta,
		NextActions:        nextActions,
		SuggestedToolCalls: suggested,
	}, nil
}

// buildStatePayload serialises the deterministic per-step state object.
func buildStatePayload(req Request, digest *model.TaskContextDigest, coverage model.Coverage, recentGaps []string, sessionID string) (string, error) {
	allowed := make([]string, 0, len(AllowedTools))
	for name := range AllowedTools {
		allowed = append(allowed, name)
	}
	sort.Strings(allowed)

	state := map[string]any{
		"session_id": sessionID,
		"query":      req.Query,
		"file":       req.File,
		"task_hint":  req.TaskHint,
		"coverage": map[string]bool{
			"module_graph":        coverage.ModuleGraph,
			"file_import_graph":   coverage.FileImportGraph,
			"symbol_interactions": coverage.SymbolInteractions,
			"deps_touchpoints":    coverage.DepsTouchpoints,
			"docs_config_digest":  coverage.DocsConfigDigest,
		},
		"collected_counts": map[string]int{
			"module_graph":        len(digest.ModuleGraph),
			"file_import_graph":   len(digest.FileImportGraph),
			"symbol_interactions": len(digest.SymbolInteractions),
			"deps_touchpoints":    len(digest.DepsTouchpoints),
			"docs_config_digest":  len(digest.DocsConfigDigest),
		},
		"recent_gaps":       recentGaps,
		"allowed_tools":     allowed,
		"response_contract": `{"done": bool, "focus": string, "calls": [{"tool": string, "args": object}]}`,
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", codeerrors.Wrap(codeerrors.KindMcp, "marshal agent state", err)
	}
	return string(data), nil
}

// parseCommand parses content as a direct JSON object or the largest {...}
// substring within it. Preamble and postamble around the object are
// tolerated; a missing object is never papered over with a default command.
func parseCommand(content string) (command, error) {
	var cmd command
	if err := json.Unmarshal([]byte(content), &cmd); err == nil {
		return cmd, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return command{}, codeerrors.New(codeerrors.KindParse, "no JSON object found in agent response")
	}
	candidate := content[start : end+1]
	if err := json.Unmarshal([]byte(candidate), &cmd); err != nil {
		return command{}, codeerrors.Wrap(codeerrors.KindParse, "parse extracted JSON object", err)
	}
	return cmd, nil
}

// inferArgs normalises args into a non-nil map and injects missing required
// args inferred from the request.
func inferArgs(tool string, args map[string]any, req Request) map[string]any {
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}

	switch tool {
	case "find_references", "search_symbols", "analyze_call_graph":
		if _, ok := out["name"]; !ok {
			if sym := inferSymbol(req.Query); sym != "" {
				out["name"] = sym
			}
		}
	case "get_imports", "get_file_outline":
		if _, ok := out["file"]; !ok && req.File != "" {
			out["file"] = req.File
		}
	case "list_modules", "find_module_dependencies":
		if _, ok := out["workspace_path"]; !ok {
			out["workspace_path"] = inferModule(req.Query, req.File)
		}
	}
	return out
}

// inferSymbol picks the token of length >= 3 preferring
// (has_underscore, has_uppercase) then longest.
func inferSymbol(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	var best string
	var bestScore [3]int
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		score := [3]int{boolToInt(strings.Contains(f, "_")), boolToInt(hasUpper(f)), len(f)}
		if better(score, bestScore) {
			best = f
			bestScore = score
		}
	}
	return best
}

func better(a, b [3]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// inferModule picks the first path component under src/, else the first
// path component of file, else the query.
func inferModule(query, file string) string {
	if file != "" {
		parts := strings.Split(filepathToSlash(file), "/")
		for i, p := range parts {
			if p == "src" && i+1 < len(parts) {
				return parts[i+1]
			}
		}
		if len(parts) > 0 && parts[0] != "" {
			return parts[0]
		}
	}
	return query
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
