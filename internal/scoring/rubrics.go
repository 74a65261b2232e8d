package scoring

import "maps"

// Built-in scorer names.
const (
	NameEquivalence = "equivalence"
	NameConciseness = "conciseness"
	NamePossible    = "possible"
	NameExactMatch  = "exact_match"
	NameContains    = "contains"
)

// JudgeOptions selects the judge model and optionally overrides a rubric's
// choice table.
type JudgeOptions struct {
	Name     string
	Provider string
	Model    string
	Choices  map[string]float64
}

// DefaultEquivalenceChoices scores a factual comparison against the
// reference answer.
var DefaultEquivalenceChoices = map[string]float64{
	"A": 0.4, // subset, consistent
	"B": 0.6, // superset, consistent
	"C": 1,   // same details
	"D": 0,   // disagreement
	"E": 1,   // differences don't matter
}

// DefaultConcisenessChoices rewards answering without padding.
var DefaultConcisenessChoices = map[string]float64{
	"A": 1,
	"B": 0.5,
	"C": 0,
}

// DefaultPossibleChoices penalises outputs that refuse the task.
var DefaultPossibleChoices = map[string]float64{
	"A": 0,
	"B": 1,
}

const equivalenceTemplate = `You are comparing a submitted answer to an expert answer on a given question. Here is the data:
[BEGIN DATA]
************
[Question]: {{.Input}}
************
[Expert]: {{.Expected}}
************
[Submission]: {{.Output}}
************
[END DATA]

Compare the factual content of the submitted answer with the expert answer. Ignore any differences in style, grammar, or punctuation.
The submitted answer may either be a subset or superset of the expert answer, or it may conflict with it. Determine which case applies. Answer the question by selecting one of the following options:
(A) The submitted answer is a subset of the expert answer and is fully consistent with it.
(B) The submitted answer is a superset of the expert answer and is fully consistent with it.
(C) The submitted answer contains all the same details as the expert answer.
(D) There is a disagreement between the submitted answer and the expert answer.
(E) The answers differ, but these differences don't matter from the perspective of factuality.`

const concisenessTemplate = `You are judging how concisely a response answers a request. Here is the data:
[BEGIN DATA]
************
[Request]: {{.Input}}
************
[Response]: {{.Output}}
************
[END DATA]

Ignore whether the answer is correct. Judge only how much of the response is the answer itself. Select one option:
(A) The response is the answer and nothing else.
(B) The response is the answer plus a brief amount of context or explanation.
(C) The response is verbose: it restates the request, narrates its process, or pads the answer with material that was not asked for.`

const possibleTemplate = `You are analyzing a statement for a task. You want to figure out if the statement declares the task as impossible or provides a solution. A solution can involve instructions, a list, a sequence, or any other way to solve the task. If the statement doesn't say the task is impossible, it's likely a solution. Here is the data:
[BEGIN DATA]
************
[Task]: {{.Input}}
************
[Submission]: {{.Output}}
************
[END DATA]

Select one option:
(A) The statement declares the task to be impossible.
(B) The statement provides instructions on how to solve the task, or provides a solution.`

// NewEquivalence builds the factuality classifier comparing output with the
// expected answer.
func NewEquivalence(judge Judge, opts JudgeOptions) (*Classifier, error) {
	return newRubric(judge, opts, NameEquivalence, equivalenceTemplate, DefaultEquivalenceChoices)
}

// NewConciseness builds the classifier that judges only the output's
// economy.
func NewConciseness(judge Judge, opts JudgeOptions) (*Classifier, error) {
	return newRubric(judge, opts, NameConciseness, concisenessTemplate, DefaultConcisenessChoices)
}

// NewPossible builds the classifier that checks the agent attempted the task.
func NewPossible(judge Judge, opts JudgeOptions) (*Classifier, error) {
	return newRubric(judge, opts, NamePossible, possibleTemplate, DefaultPossibleChoices)
}

func newRubric(judge Judge, opts JudgeOptions, name, tmpl string, defaults map[string]float64) (*Classifier, error) {
	if opts.Name != "" {
		name = opts.Name
	}
	choices := opts.Choices
	if len(choices) == 0 {
		choices = maps.Clone(defaults)
	}
	return NewClassifier(judge, ClassifierConfig{
		Name:     name,
		Template: tmpl,
		Choices:  choices,
		UseCoT:   true,
		Provider: opts.Provider,
		Model:    opts.Model,
	})
}
