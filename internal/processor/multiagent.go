package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/docrouter/internal/llm"
	"github.com/sells-group/docrouter/internal/model"
)

// ErrNoContent is returned when a document has no text for the agents to read.
var ErrNoContent = eris.New("processor: document has no text content")

const (
	reviewerAgent      = "reviewer"
	defaultAgentTokens = 512
	maxDocumentChars   = 100_000
)

// MultiAgent extracts each field with its own LLM agent, then runs a
// reviewer agent over the combined answers to resolve conflicts and fill
// gaps. Agents for one document share a cached system prompt.
type MultiAgent struct {
	client      llm.Client
	fields      []string
	maxTokens   int64
	concurrency int
}

// MultiAgentOption configures a MultiAgent.
type MultiAgentOption func(*MultiAgent)

// WithFields overrides the extracted field set.
func WithFields(fields []string) MultiAgentOption {
	return func(m *MultiAgent) {
		if len(fields) > 0 {
			m.fields = fields
		}
	}
}

// WithMaxTokens sets the per-agent output token budget.
func WithMaxTokens(n int64) MultiAgentOption {
	return func(m *MultiAgent) {
		if n > 0 {
			m.maxTokens = n
		}
	}
}

// WithAgentConcurrency bounds the number of field agents in flight.
func WithAgentConcurrency(n int) MultiAgentOption {
	return func(m *MultiAgent) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// NewMultiAgent creates the multi-agent collaborator.
func NewMultiAgent(client llm.Client, opts ...MultiAgentOption) *MultiAgent {
	m := &MultiAgent{
		client:      client,
		fields:      DefaultFields,
		maxTokens:   defaultAgentTokens,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type fieldAnswer struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Process implements router.Processor.
func (m *MultiAgent) Process(ctx context.Context, req model.ProcessRequest) (*model.ProcessingResult, error) {
	content := req.Content
	if content == "" && req.Snapshot != nil {
		content = req.Snapshot.Content
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrNoContent
	}

	system := agentSystemPrompt(content, req.Metadata)
	log := zap.L().With(zap.String("document_id", req.DocumentID), zap.String("provider", m.client.Provider()))

	var (
		mu      sync.Mutex
		answers = make(map[string]fieldAnswer, len(m.fields))
		usage   model.TokenUsage
		modelID string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, field := range m.fields {
		g.Go(func() error {
			resp, err := m.client.Complete(gctx, llm.Request{
				Agent:     field,
				System:    system,
				Prompt:    fieldPrompt(field),
				MaxTokens: m.maxTokens,
				JSON:      true,
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("processor: field agent failed", zap.String("field", field), zap.Error(err))
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			usage.Add(resp.Usage)
			modelID = resp.Model

			ans, err := parseFieldAnswer(resp.Text)
			if err != nil {
				log.Warn("processor: unparseable field answer", zap.String("field", field), zap.Error(err))
				return nil
			}
			if ans.Value != nil {
				answers[field] = ans
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "processor: field agents")
	}
	if len(answers) == 0 {
		return nil, eris.Errorf("processor: no field agent produced an answer for %s", req.DocumentID)
	}

	fields := make(map[string]any, len(answers))
	var confSum float64
	for f, a := range answers {
		fields[f] = NormalizeValue(f, a.Value)
		confSum += clamp01(a.Confidence)
	}
	confidence := confSum / float64(len(answers))

	reviewed, reviewConf, err := m.review(ctx, system, fields, &usage)
	if err != nil {
		log.Warn("processor: reviewer agent failed, keeping field answers", zap.Error(err))
	} else {
		for f, v := range reviewed {
			if v == nil {
				delete(fields, f)
				continue
			}
			fields[f] = NormalizeValue(f, v)
		}
		if reviewConf > 0 {
			confidence = reviewConf
		}
	}

	log.Info("processor: multi-agent extraction complete",
		zap.Int("fields", len(fields)),
		zap.Int("agents", len(m.fields)+1),
		zap.Float64("confidence", confidence),
		zap.Float64("cost_usd", usage.Cost),
	)

	return &model.ProcessingResult{
		Fields:     fields,
		Confidence: clamp01(confidence),
		Provider:   m.client.Provider(),
		Model:      modelID,
		Usage:      usage,
	}, nil
}

// review asks the reviewer agent to check the combined answers against the
// document. It returns the corrections (nil values mean "remove") and the
// reviewer's overall confidence.
func (m *MultiAgent) review(ctx context.Context, system string, fields map[string]any, usage *model.TokenUsage) (map[string]any, float64, error) {
	draft, err := json.Marshal(fields)
	if err != nil {
		return nil, 0, eris.Wrap(err, "marshal draft")
	}

	resp, err := m.client.Complete(ctx, llm.Request{
		Agent:     reviewerAgent,
		System:    system,
		Prompt:    reviewPrompt(string(draft)),
		MaxTokens: m.maxTokens * 2,
		JSON:      true,
	})
	if err != nil {
		return nil, 0, err
	}
	usage.Add(resp.Usage)

	obj, err := decodeObject(resp.Text)
	if err != nil {
		return nil, 0, eris.Wrap(err, "decode review")
	}

	corrections, _ := obj["corrections"].(map[string]any)
	conf, _ := toFloat64(obj["confidence"])
	return corrections, clamp01(conf), nil
}

func parseFieldAnswer(text string) (fieldAnswer, error) {
	obj, err := decodeObject(text)
	if err != nil {
		return fieldAnswer{}, err
	}
	conf, _ := toFloat64(obj["confidence"])
	return fieldAnswer{Value: obj["value"], Confidence: conf}, nil
}

// truncateText caps s at limit bytes without splitting a multibyte character.
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	n := limit
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func agentSystemPrompt(content string, meta model.DocumentMetadata) string {
	content = truncateText(content, maxDocumentChars)

	var b strings.Builder
	b.WriteString("You are one agent in a team extracting structured data from a business document ")
	b.WriteString("(invoice, receipt or contract). Answer only from the document text below. ")
	b.WriteString("Reply with a single JSON object and nothing else.\n\n")
	if keys := meta.Keys(); len(keys) > 0 {
		b.WriteString("Document metadata:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, meta[k])
		}
		b.WriteString("\n")
	}
	b.WriteString("<document>\n")
	b.WriteString(content)
	b.WriteString("\n</document>")
	return b.String()
}

func fieldPrompt(field string) string {
	hint := "a string"
	switch {
	case amountFields[field]:
		hint = "a number without currency symbols"
	case dateFields[field]:
		hint = "a date formatted YYYY-MM-DD"
	case field == FieldCurrency:
		hint = "an ISO 4217 currency code"
	}
	return fmt.Sprintf(
		"Extract the field %q. The value must be %s. "+
			`Respond as {"value": <value or null if absent>, "confidence": <0 to 1>}.`,
		field, hint)
}

func reviewPrompt(draft string) string {
	return "You are the reviewing agent. Other agents extracted these fields independently:\n" +
		draft + "\n\n" +
		"Check every value against the document. Make totals consistent (subtotal + tax = total " +
		"when all three are present) and fill any field the agents missed. " +
		`Respond as {"corrections": {<field>: <corrected value, or null to remove>}, "confidence": <0 to 1>}. ` +
		"Only list fields that change."
}
