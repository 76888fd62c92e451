package service

import (
	"fmt"

	"adaptive-quiz-backend/internal/irt"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/textanalysis"
)

// difficulty thresholds that switch the template wording
const (
	advancedDifficulty = 3.0
	basicDifficulty    = 2.0
)

// LocalQuestion is a question produced without a provider.
type LocalQuestion struct {
	Mode               model.QuestionMode
	Text               string
	Options            []string
	CorrectOptionIndex *int
	Explanation        string
	Difficulty         float64
	Summary            string
	AbstractHash       string
}

type choiceTemplate struct {
	question    string
	options     []string
	correct     int
	explanation string
}

// choice templates take (category, skill) in the question and
// (skill, category) in the explanation
var choiceTemplates = []choiceTemplate{
	{
		question: "In the field of %s, which of the following is the main characteristic of %s?",
		options: []string{
			"Consistency of its theoretical framework",
			"Breadth of its practical applications",
			"Uniqueness of its historical development",
			"High level of conceptual abstraction",
		},
		correct:     1,
		explanation: "%s stands out for the breadth of its practical applications in %s rather than for its theoretical basis. Its usefulness shows in how many real situations it is applied to.",
	},
	{
		question: "In %s, what is the most important concept for understanding %s?",
		options: []string{
			"Structural consistency",
			"Functional diversity",
			"Specificity of the target domain",
			"Flexibility of its scope of application",
		},
		correct:     3,
		explanation: "The most important aspect of %s is that it can be applied flexibly to many situations in %s. That flexibility is what makes it effective across different problem settings.",
	},
	{
		question: "In %s, which is the most effective approach to applying %s?",
		options: []string{
			"Step-by-step application with verification",
			"Comprehensive theoretical analysis",
			"Repeated trial and error",
			"Integrated system design",
		},
		correct:     0,
		explanation: "When applying %s to %s, a step-by-step approach works best. Checking the result of each step before moving on leads to the best outcome.",
	},
}

const (
	advancedQuestion = "From an advanced perspective in %s, which of the following is the most essential element of %s?"
	basicQuestion    = "At a basic level in %s, which of the following is the main purpose of %s?"
)

// open templates take (skill, category) in both places
var openTemplates = []struct{ question, guidance string }{
	{
		question: "Explain in your own words what %s means within %s, and give one example.",
		guidance: "A good answer defines %s clearly, relates it to %s and supports it with a concrete example.",
	},
	{
		question: "Describe a common mistake learners make with %s in %s and how to avoid it.",
		guidance: "A good answer names a specific misconception about %s, explains why it happens in %s and shows the correct approach.",
	},
	{
		question: "How would you teach the core idea of %s to someone new to %s?",
		guidance: "A good answer breaks %s into simple steps and connects each step to familiar ideas from %s.",
	},
}

// FallbackGenerator produces template questions when no provider is
// available. The structure is fixed; the template and option order come
// from the injected random source.
type FallbackGenerator struct {
	rng *Rand
}

func NewFallbackGenerator(rng *Rand) *FallbackGenerator {
	return &FallbackGenerator{rng: rng}
}

// Generate builds a question for the skill at the given difficulty.
// Summary and abstract hash come from the shared text heuristics.
func (g *FallbackGenerator) Generate(categoryName, skillName string, difficulty float64, mode model.QuestionMode) LocalQuestion {
	difficulty = irt.ClampDifficulty(difficulty)

	var q LocalQuestion
	if mode == model.ModeFreeText {
		q = g.openQuestion(categoryName, skillName)
	} else {
		q = g.choiceQuestion(categoryName, skillName, difficulty)
	}
	q.Difficulty = difficulty
	q.Summary = textanalysis.Summarize(q.Text)
	q.AbstractHash = textanalysis.AbstractHash(q.Text + " " + skillName)
	return q
}

func (g *FallbackGenerator) choiceQuestion(categoryName, skillName string, difficulty float64) LocalQuestion {
	t := choiceTemplates[g.rng.IntN(len(choiceTemplates))]

	text := fmt.Sprintf(t.question, categoryName, skillName)
	switch {
	case difficulty > advancedDifficulty:
		text = fmt.Sprintf(advancedQuestion, categoryName, skillName)
	case difficulty < basicDifficulty:
		text = fmt.Sprintf(basicQuestion, categoryName, skillName)
	}

	options := make([]string, len(t.options))
	correct := 0
	for to, from := range g.rng.Perm(len(t.options)) {
		options[to] = t.options[from]
		if from == t.correct {
			correct = to
		}
	}

	return LocalQuestion{
		Mode:               model.ModeMultipleChoice,
		Text:               text,
		Options:            options,
		CorrectOptionIndex: &correct,
		Explanation:        fmt.Sprintf(t.explanation, skillName, categoryName),
	}
}

func (g *FallbackGenerator) openQuestion(categoryName, skillName string) LocalQuestion {
	t := openTemplates[g.rng.IntN(len(openTemplates))]
	return LocalQuestion{
		Mode:        model.ModeFreeText,
		Text:        fmt.Sprintf(t.question, skillName, categoryName),
		Explanation: fmt.Sprintf(t.guidance, skillName, categoryName),
	}
}
