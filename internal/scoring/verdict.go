package scoring

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	llmerrors "github.com/ahrav/agentjudge/internal/llm/errors"
)

// verdict is the JSON object a judge must answer with.
type verdict struct {
	Reasoning string `json:"reasoning"`
	Choice    string `json:"choice" validate:"required"`
}

var (
	verdictValidator = validator.New(validator.WithRequiredStructEnabled())

	unquotedKey   = regexp.MustCompile(`([{,])\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// parseVerdict decodes a judge reply, applying one repair pass when the raw
// text is not valid JSON, and checks the choice against allowed.
func parseVerdict(raw string, allowed map[string]float64) (verdict, bool, error) {
	v, err := decodeVerdict(raw)
	repaired := false
	if err != nil {
		fixed := repairJSON(raw)
		if fixed == raw {
			return verdict{}, false, &llmerrors.ValidationError{Field: "response", Message: "judge reply is not JSON: " + err.Error()}
		}
		if v, err = decodeVerdict(fixed); err != nil {
			return verdict{}, false, &llmerrors.ValidationError{Field: "response", Message: "judge reply still invalid after repair: " + err.Error()}
		}
		repaired = true
	}

	v.Choice = normalizeChoice(v.Choice)
	if err := verdictValidator.Struct(v); err != nil {
		return verdict{}, repaired, &llmerrors.ValidationError{Field: "choice", Message: err.Error()}
	}
	if _, ok := allowed[v.Choice]; !ok {
		return verdict{}, repaired, &llmerrors.ValidationError{
			Field:   "choice",
			Value:   v.Choice,
			Message: fmt.Sprintf("choice %q not in %v", v.Choice, sortedKeys(allowed)),
		}
	}
	v.Reasoning = strings.TrimSpace(v.Reasoning)
	return v, repaired, nil
}

func decodeVerdict(s string) (verdict, error) {
	var v verdict
	err := json.Unmarshal([]byte(strings.TrimSpace(s)), &v)
	return v, err
}

// repairJSON fixes the usual judge formatting slips: markdown fences,
// surrounding prose, trailing commas and unquoted keys.
func repairJSON(s string) string {
	out := strings.TrimSpace(s)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")

	if start, end := strings.Index(out, "{"), strings.LastIndex(out, "}"); start >= 0 && end > start {
		out = out[start : end+1]
	}

	out = trailingComma.ReplaceAllString(out, "$1")
	out = unquotedKey.ReplaceAllString(out, `$1"$2":`)
	if !strings.Contains(out, `"`) && strings.Contains(out, `'`) {
		out = strings.ReplaceAll(out, `'`, `"`)
	}
	return strings.TrimSpace(out)
}

// normalizeChoice accepts "a", "(A)" and "A." as "A".
func normalizeChoice(c string) string {
	c = strings.TrimSpace(c)
	c = strings.Trim(c, "().: ")
	return strings.ToUpper(c)
}
