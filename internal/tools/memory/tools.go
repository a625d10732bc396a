// Package memorytools exposes the memory engine over the tool registry:
// store, classify, search, recall, list and forget.
package memorytools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/engramhq/engram-mcp/internal/engine"
	"github.com/engramhq/engram-mcp/internal/memory"
	"github.com/engramhq/engram-mcp/internal/tools"
)

// RegisterAll registers every memory tool on the registry.
func RegisterAll(registry *tools.Registry, eng *engine.Engine) error {
	all := []tools.Tool{
		&StoreTool{engine: eng},
		&RecallTool{engine: eng},
		&SearchTool{engine: eng},
		&ListTool{engine: eng},
		&ForgetTool{engine: eng},
		&ClassifyTool{engine: eng},
	}
	for _, t := range all {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func decodeInput(input json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func parseTypes(names []string) ([]memory.Type, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]memory.Type, 0, len(names))
	for _, n := range names {
		t, err := memory.ParseType(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// memoryView is the wire shape of a stored memory.
type memoryView struct {
	ID                 string          `json:"id"`
	Content            string          `json:"content"`
	Type               string          `json:"type"`
	Confidence         float64         `json:"confidence"`
	ImportanceScore    float64         `json:"importance_score"`
	ConsolidationScore float64         `json:"consolidation_score"`
	AccessCount        int             `json:"access_count"`
	CreatedAt          time.Time       `json:"created_at"`
	LastAccessed       time.Time       `json:"last_accessed"`
	Metadata           memory.Metadata `json:"metadata"`
}

func viewOf(m *memory.Memory) memoryView {
	return memoryView{
		ID:                 m.ID,
		Content:            m.Content,
		Type:               string(m.Type),
		Confidence:         m.Confidence,
		ImportanceScore:    m.ImportanceScore,
		ConsolidationScore: m.ConsolidationScore,
		AccessCount:        m.AccessCount,
		CreatedAt:          m.CreatedAt,
		LastAccessed:       m.LastAccessed,
		Metadata:           m.Metadata,
	}
}

func viewsOf(ms []*memory.Memory) []memoryView {
	views := make([]memoryView, len(ms))
	for i, m := range ms {
		views[i] = viewOf(m)
	}
	return views
}

// StoreTool classifies and persists a new memory.
type StoreTool struct {
	engine *engine.Engine
}

type storeInput struct {
	Content    string   `json:"content"`
	Importance *float64 `json:"importance,omitempty"`
	OccurredAt string   `json:"occurred_at,omitempty"`
}

func (t *StoreTool) Name() string  { return "memory_store" }
func (t *StoreTool) Title() string { return "Store Memory" }
func (t *StoreTool) Description() string {
	return "Store a piece of content as a memory. The content is classified as semantic, episodic or procedural, typed metadata is derived, and the memory becomes searchable."
}

func (t *StoreTool) Annotations() map[string]bool {
	return tools.NonIdempotentWriteAnnotations()
}

func (t *StoreTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {
				"type": "string",
				"description": "Text to remember"
			},
			"importance": {
				"type": "number",
				"minimum": 0,
				"maximum": 1,
				"description": "Importance score in [0,1], defaults to 0.5"
			},
			"occurred_at": {
				"type": "string",
				"format": "date-time",
				"description": "RFC 3339 timestamp for when an episodic event happened, defaults to now"
			}
		},
		"required": ["content"]
	}`)
}

func (t *StoreTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var in storeInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	var occurredAt *time.Time
	if in.OccurredAt != "" {
		ts, err := time.Parse(time.RFC3339, in.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("invalid occurred_at: %w", err)
		}
		occurredAt = &ts
	}

	m, result, err := t.engine.StoreMemory(ctx, in.Content, in.Importance, occurredAt)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"memory":    viewOf(m),
		"scores":    result.Scores,
		"ambiguous": result.Ambiguous,
	}, nil
}

// RecallTool fetches a memory by id, reinforcing it by default.
type RecallTool struct {
	engine *engine.Engine
}

type recallInput struct {
	ID        string `json:"id"`
	Reinforce *bool  `json:"reinforce,omitempty"`
}

func (t *RecallTool) Name() string  { return "memory_recall" }
func (t *RecallTool) Title() string { return "Recall Memory" }
func (t *RecallTool) Description() string {
	return "Fetch a memory by id. By default the recall reinforces the memory: its access count increments and its consolidation score is recomputed."
}

func (t *RecallTool) Annotations() map[string]bool {
	return tools.SafeWriteAnnotations()
}

func (t *RecallTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"id": {
				"type": "string",
				"description": "Memory id"
			},
			"reinforce": {
				"type": "boolean",
				"description": "Update access count and consolidation score, defaults to true"
			}
		},
		"required": ["id"]
	}`)
}

func (t *RecallTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var in recallInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.ID == "" {
		return nil, fmt.Errorf("id is required")
	}

	reinforce := true
	if in.Reinforce != nil {
		reinforce = *in.Reinforce
	}

	m, err := t.engine.Recall(ctx, in.ID, reinforce)
	if err != nil {
		return nil, err
	}
	return viewOf(m), nil
}

// SearchTool runs similarity search with type, recency and importance
// aware ranking.
type SearchTool struct {
	engine *engine.Engine
}

type searchInput struct {
	Query               string   `json:"query"`
	Types               []string `json:"types,omitempty"`
	TimeframeDays       float64  `json:"timeframe_days,omitempty"`
	ImportanceThreshold float64  `json:"importance_threshold,omitempty"`
	Limit               int      `json:"limit,omitempty"`
}

func (t *SearchTool) Name() string  { return "memory_search" }
func (t *SearchTool) Title() string { return "Search Memories" }
func (t *SearchTool) Description() string {
	return "Search memories by meaning. Results combine similarity, type relevance, recency and importance; optional filters restrict by type and minimum importance."
}

func (t *SearchTool) Annotations() map[string]bool {
	return tools.ReadOnlyAnnotations()
}

func (t *SearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Search text"
			},
			"types": {
				"type": "array",
				"items": {
					"type": "string",
					"enum": ["semantic", "episodic", "procedural"]
				},
				"description": "Only return memories of these types"
			},
			"timeframe_days": {
				"type": "number",
				"minimum": 0,
				"description": "Recency window in days; memories older than this score low on the temporal factor"
			},
			"importance_threshold": {
				"type": "number",
				"minimum": 0,
				"maximum": 1,
				"description": "Exclude memories with importance below this value"
			},
			"limit": {
				"type": "integer",
				"minimum": 1,
				"description": "Maximum results, defaults to 10"
			}
		},
		"required": ["query"]
	}`)
}

func (t *SearchTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var in searchInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.Query == "" {
		return nil, fmt.Errorf("query is required")
	}

	types, err := parseTypes(in.Types)
	if err != nil {
		return nil, err
	}

	qc := memory.QueryContext{
		TypeFilter:          types,
		Timeframe:           time.Duration(in.TimeframeDays * 24 * float64(time.Hour)),
		ImportanceThreshold: in.ImportanceThreshold,
		Limit:               in.Limit,
	}

	results, err := t.engine.Search(ctx, in.Query, qc)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"memories": viewsOf(results),
		"count":    len(results),
	}, nil
}

// ListTool lists stored memories most recently accessed first.
type ListTool struct {
	engine *engine.Engine
}

type listInput struct {
	Types []string `json:"types,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

func (t *ListTool) Name() string  { return "memory_list" }
func (t *ListTool) Title() string { return "List Memories" }
func (t *ListTool) Description() string {
	return "List stored memories, most recently accessed first, optionally filtered by type."
}

func (t *ListTool) Annotations() map[string]bool {
	return tools.ReadOnlyAnnotations()
}

func (t *ListTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"types": {
				"type": "array",
				"items": {
					"type": "string",
					"enum": ["semantic", "episodic", "procedural"]
				},
				"description": "Only list memories of these types"
			},
			"limit": {
				"type": "integer",
				"minimum": 1,
				"description": "Maximum results, defaults to 10"
			}
		}
	}`)
}

func (t *ListTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var in listInput
	if len(input) > 0 {
		if err := decodeInput(input, &in); err != nil {
			return nil, err
		}
	}

	types, err := parseTypes(in.Types)
	if err != nil {
		return nil, err
	}

	results, err := t.engine.List(types, in.Limit)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"memories": viewsOf(results),
		"count":    len(results),
	}, nil
}

// ForgetTool deletes a memory.
type ForgetTool struct {
	engine *engine.Engine
}

type forgetInput struct {
	ID string `json:"id"`
}

func (t *ForgetTool) Name() string  { return "memory_forget" }
func (t *ForgetTool) Title() string { return "Forget Memory" }
func (t *ForgetTool) Description() string {
	return "Permanently delete a memory by id."
}

func (t *ForgetTool) Annotations() map[string]bool {
	return tools.DestructiveAnnotations()
}

func (t *ForgetTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"id": {
				"type": "string",
				"description": "Memory id"
			}
		},
		"required": ["id"]
	}`)
}

func (t *ForgetTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var in forgetInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.ID == "" {
		return nil, fmt.Errorf("id is required")
	}

	if err := t.engine.Forget(ctx, in.ID); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"deleted": true,
		"id":      in.ID,
	}, nil
}

// ClassifyTool runs classification without storing anything.
type ClassifyTool struct {
	engine *engine.Engine
}

type classifyInput struct {
	Content string `json:"content"`
}

func (t *ClassifyTool) Name() string  { return "memory_classify" }
func (t *ClassifyTool) Title() string { return "Classify Content" }
func (t *ClassifyTool) Description() string {
	return "Classify content as semantic, episodic or procedural and preview the metadata a store would produce, without persisting anything."
}

func (t *ClassifyTool) Annotations() map[string]bool {
	return tools.ReadOnlyAnnotations()
}

func (t *ClassifyTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {
				"type": "string",
				"description": "Text to classify"
			}
		},
		"required": ["content"]
	}`)
}

func (t *ClassifyTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var in classifyInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	result, metadata, err := t.engine.Classify(in.Content)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"type":       string(result.Type),
		"confidence": result.Confidence,
		"scores":     result.Scores,
		"ambiguous":  result.Ambiguous,
		"metadata":   metadata,
	}, nil
}
