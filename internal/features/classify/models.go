// Package classify реализует адаптер внешнего AI-классификатора контента.
// models.go описывает метку и результат классификации.
package classify

// Label — вердикт классификатора по сообщению.
type Label string

const (
	// LabelViolation — сообщение нарушает гайдлайны сообщества
	LabelViolation Label = "violation"
	// LabelPositive — благодарность, похвала, поддержка
	LabelPositive Label = "positive"
	// LabelNeutral — обычное сообщение без особенностей
	LabelNeutral Label = "neutral"
)

// Valid проверяет, что метка одна из известных.
func (l Label) Valid() bool {
	switch l {
	case LabelViolation, LabelPositive, LabelNeutral:
		return true
	}
	return false
}

// Result — результат классификации одного сообщения.
type Result struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"` // 0.0–1.0
	Reason     string  `json:"reason"`     // пояснение модели (для алертов)
}
