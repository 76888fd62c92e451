package model

// Answer is a learner's response to a question. It is implemented only by
// MultipleChoiceAnswer and FreeTextAnswer.
type Answer interface {
	Mode() QuestionMode
	isAnswer()
}

// MultipleChoiceAnswer selects one of the question's options.
type MultipleChoiceAnswer struct {
	SelectedOptionIndex int
}

func (MultipleChoiceAnswer) Mode() QuestionMode { return ModeMultipleChoice }
func (MultipleChoiceAnswer) isAnswer()          {}

// FreeTextAnswer is an open answer whose correctness is confirmed by the
// client.
type FreeTextAnswer struct {
	Text      string
	IsCorrect bool
}

func (FreeTextAnswer) Mode() QuestionMode { return ModeFreeText }
func (FreeTextAnswer) isAnswer()          {}
