// Package openaitest provides a deterministic Chat Completions backend for
// tests and local development. It recognizes the refinement, formulation
// and code-generation requests of the engine by their system prompt and
// answers each with canned text.
package openaitest

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	goopenai "github.com/sashabaranov/go-openai"
)

// ModelName is reported by the backend when a request names no model.
const ModelName = "mock-model"

// RefusalTrigger makes the formulation answer prose instead of JSON when
// it appears in the problem statement.
const RefusalTrigger = "unmodelable"

// DefaultModelAnswer is a formulation answer as language models tend to
// produce it: fenced, with single backslashes in LaTeX and an escaped
// dollar sign, so it only parses after repair.
const DefaultModelAnswer = "```json\n" + `{
  "sets": ["Products ($P$)", "Resources ($R$)"],
  "parameters": {
    "$p_i$": "Profit per unit of product $i$ (\$)",
    "$a_{ri}$": "Units of resource $r$ used by product $i$",
    "$b_r$": "Available units of resource $r$"
  },
  "variables": {
    "$x_i$": "Units of product $i$ to produce, $x_i \geq 0$"
  },
  "objective": {"type": "Maximize", "expression": "$\sum_{i \in P} p_i x_i$"},
  "constraints": [
    "$\sum_{i \in P} a_{ri} x_i \leq b_r$ for all $r \in R$ (Capacity)"
  ],
  "data": {
    "p": {"chairs": 45, "tables": 80},
    "b": {"wood": 400, "labor": 450}
  }
}` + "\n```"

// DefaultCode is the code-generation answer, sent inside a python fence.
const DefaultCode = `import pulp

model = pulp.LpProblem("production", pulp.LpMaximize)
x = pulp.LpVariable.dicts("x", ["chairs", "tables"], lowBound=0)
model += 45 * x["chairs"] + 80 * x["tables"]
model += 5 * x["chairs"] + 20 * x["tables"] <= 400, "Capacity_wood"
model += 10 * x["chairs"] + 15 * x["tables"] <= 450, "Capacity_labor"
status = model.solve(pulp.PULP_CBC_CMD(msg=False))
print("Status:", pulp.LpStatus[status])
print("Objective Value:", pulp.value(model.objective))
for k, v in x.items():
    print(k, v.varValue if v.varValue is not None else "Not in solution")
`

// Answers holds the canned completions.
type Answers struct {
	// Model answers formulation requests.
	Model string
	// Code answers code-generation requests.
	Code string
}

// DefaultAnswers returns the production-planning example.
func DefaultAnswers() Answers {
	return Answers{Model: DefaultModelAnswer, Code: DefaultCode}
}

// Backend serves the canned answers and records the requests it received.
type Backend struct {
	answers Answers

	mu       sync.Mutex
	requests []goopenai.ChatCompletionRequest
}

// New creates a Backend. Empty answers fall back to the defaults.
func New(answers Answers) *Backend {
	def := DefaultAnswers()
	if answers.Model == "" {
		answers.Model = def.Model
	}
	if answers.Code == "" {
		answers.Code = def.Code
	}
	return &Backend{answers: answers}
}

// Handler returns the HTTP routes. Configure clients with base URL
// "<server>/v1".
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", b.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// Requests returns a copy of the requests received so far.
func (b *Backend) Requests() []goopenai.ChatCompletionRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]goopenai.ChatCompletionRequest(nil), b.requests...)
}

func (b *Backend) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req goopenai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()

	text := b.answer(req)
	model := req.Model
	if model == "" {
		model = ModelName
	}

	resp := goopenai.ChatCompletionResponse{
		ID:     "chatcmpl-mock",
		Object: "chat.completion",
		Model:  model,
		Choices: []goopenai.ChatCompletionChoice{{
			Index:        0,
			Message:      goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: text},
			FinishReason: goopenai.FinishReasonStop,
		}},
		Usage: goopenai.Usage{
			PromptTokens:     len(strings.Fields(lastMessage(req, goopenai.ChatMessageRoleUser))),
			CompletionTokens: len(strings.Fields(text)),
		},
	}
	resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// answer picks the completion for req by its system prompt.
func (b *Backend) answer(req goopenai.ChatCompletionRequest) string {
	system := lastMessage(req, goopenai.ChatMessageRoleSystem)
	prompt := lastMessage(req, goopenai.ChatMessageRoleUser)

	switch {
	case strings.Contains(system, "rewrite problem statements"):
		statement := between(prompt, "---BEGIN ORIGINAL STATEMENT---", "---END ORIGINAL STATEMENT---")
		return "Refined Problem Statement for OR Modeling:\n\"" + strings.TrimSpace(statement) + "\""
	case strings.Contains(system, "optimization models"):
		if strings.Contains(prompt, RefusalTrigger) {
			return "I am sorry, but this statement does not describe an optimization problem."
		}
		return b.answers.Model
	case strings.Contains(system, "Python"):
		return "```python\n" + b.answers.Code + "```"
	default:
		return "Hello from the mock backend."
	}
}

func lastMessage(req goopenai.ChatCompletionRequest, role string) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == role {
			return req.Messages[i].Content
		}
	}
	return ""
}

func between(s, start, end string) string {
	_, rest, ok := strings.Cut(s, start)
	if !ok {
		return s
	}
	inner, _, _ := strings.Cut(rest, end)
	return inner
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": ModelName, "object": "model", "owned_by": "ormodeler"},
		},
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "invalid_request_error"},
	})
}
