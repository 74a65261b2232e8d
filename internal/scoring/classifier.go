package scoring

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"text/template"

	"github.com/ahrav/agentjudge/internal/domain"
	"github.com/ahrav/agentjudge/internal/llm/transport"
)

// Judge answers a single judge prompt. *llm.Client satisfies it.
type Judge interface {
	Complete(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

const (
	defaultJudgeMaxTokens = 1024
	emptyOutputRationale  = "agent produced no output"
)

var (
	errNilJudge      = errors.New("classifier requires a judge")
	errNoChoices     = errors.New("classifier requires at least one choice")
	errNoName        = errors.New("classifier requires a name")
	errChoiceRange   = errors.New("choice value outside [0,1]")
	errChoiceKey     = errors.New("choice key is empty")
	errChoiceClash   = errors.New("choice keys collide")
	errEmptyTemplate = errors.New("classifier requires a prompt template")
)

// ClassifierConfig is the static definition of an LLM classifier scorer.
type ClassifierConfig struct {
	Name string

	// Template is a text/template over .Input, .Output and .Expected.
	Template string

	// Choices maps each category letter to its score.
	Choices map[string]float64

	// UseCoT asks the judge to reason before choosing.
	UseCoT bool

	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Classifier is an LLM judge that picks one category per output.
type Classifier struct {
	cfg   ClassifierConfig
	tmpl  *template.Template
	judge Judge
}

// NewClassifier validates cfg once so that scoring never fails on config.
func NewClassifier(judge Judge, cfg ClassifierConfig) (*Classifier, error) {
	switch {
	case judge == nil:
		return nil, errNilJudge
	case cfg.Name == "":
		return nil, errNoName
	case len(cfg.Choices) == 0:
		return nil, fmt.Errorf("%s: %w", cfg.Name, errNoChoices)
	case strings.TrimSpace(cfg.Template) == "":
		return nil, fmt.Errorf("%s: %w", cfg.Name, errEmptyTemplate)
	}

	choices, err := NormalizeChoices(cfg.Choices)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Name, err)
	}
	cfg.Choices = choices

	tmpl, err := template.New(cfg.Name).Option("missingkey=error").Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("%s: parse template: %w", cfg.Name, err)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultJudgeMaxTokens
	}
	return &Classifier{cfg: cfg, tmpl: tmpl, judge: judge}, nil
}

// NormalizeChoices returns table with every key in the form verdicts are
// compared in. It fails when a score is not a number in [0,1], when a key
// normalizes to nothing, or when two keys name the same choice.
func NormalizeChoices(table map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(table))
	from := make(map[string]string, len(table))
	for _, k := range sortedKeys(table) {
		v := table[k]
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, fmt.Errorf("%w: %s=%v", errChoiceRange, k, v)
		}
		norm := normalizeChoice(k)
		if norm == "" {
			return nil, fmt.Errorf("%w: %q", errChoiceKey, k)
		}
		if prev, ok := from[norm]; ok {
			return nil, fmt.Errorf("%w: %q and %q both mean %s", errChoiceClash, prev, k, norm)
		}
		from[norm] = k
		out[norm] = v
	}
	return out, nil
}

// Name returns the scorer name.
func (c *Classifier) Name() string { return c.cfg.Name }

// Choices returns a copy of the choice table.
func (c *Classifier) Choices() map[string]float64 {
	return maps.Clone(c.cfg.Choices)
}

// Score asks the judge to classify in.Output. Empty output scores a valid 0
// without a judge call.
func (c *Classifier) Score(ctx context.Context, in ScoreInput) (domain.ScoreRecord, error) {
	if strings.TrimSpace(in.Output) == "" {
		return domain.NewScore(c.cfg.Name, 0, emptyOutputRationale), nil
	}

	prompt, err := c.render(in)
	if err != nil {
		return domain.ScoreRecord{}, err
	}

	resp, err := c.judge.Complete(ctx, &transport.Request{
		Provider:    c.cfg.Provider,
		Model:       c.cfg.Model,
		System:      judgeSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Scorer:      c.cfg.Name,
		Accept: func(r *transport.Response) error {
			_, _, err := parseVerdict(r.Content, c.cfg.Choices)
			return err
		},
	})
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("%s judge call: %w", c.cfg.Name, err)
	}

	v, _, err := parseVerdict(resp.Content, c.cfg.Choices)
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("%s: %w", c.cfg.Name, err)
	}

	rec := domain.NewScore(c.cfg.Name, c.cfg.Choices[v.Choice], v.Reasoning)
	rec.Choice = v.Choice
	return rec, nil
}

func (c *Classifier) render(in ScoreInput) (string, error) {
	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("%s: render template: %w", c.cfg.Name, err)
	}
	buf.WriteString("\n\n")
	buf.WriteString(answerInstructions(sortedKeys(c.cfg.Choices), c.cfg.UseCoT))
	return buf.String(), nil
}

const judgeSystemPrompt = "You are an impartial evaluator. Respond with a single JSON object and nothing else."

func answerInstructions(choices []string, cot bool) string {
	list := strings.Join(choices, ", ")
	if cot {
		return fmt.Sprintf(`Think step by step about which option applies, then respond with JSON of the form
{"reasoning": "<your step-by-step reasoning>", "choice": "<one of %s>"}`, list)
	}
	return fmt.Sprintf(`Respond with JSON of the form {"choice": "<one of %s>"}`, list)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
