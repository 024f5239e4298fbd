package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"slack-moderation-bot/internal/features/classify"
)

func TestWeightsDelta(t *testing.T) {
	flat := Weights{MessageCredit: 1, PositiveBonus: 5, ViolationPenalty: 10, ReactionBonus: 2}
	weighted := Weights{MessageCredit: 1, PositiveBonus: 5, ViolationPenalty: 10, ReactionBonus: 2, ConfidenceWeighted: true}

	tests := []struct {
		name      string
		weights   Weights
		label     classify.Label
		conf      float64
		reactions int
		want      float64
	}{
		{"нейтральное — только кредит за сообщение", flat, classify.LabelNeutral, 0.5, 0, 1},
		{"позитив — кредит плюс бонус", flat, classify.LabelPositive, 0.9, 0, 6},
		{"нарушение — кредит минус штраф", flat, classify.LabelViolation, 0.95, 0, -9},
		{"реакции — плюс бонус за каждую", flat, classify.LabelNeutral, 0.5, 3, 7},
		{"позитив с реакциями", flat, classify.LabelPositive, 0.9, 2, 10},
		{"взвешенный позитив", weighted, classify.LabelPositive, 0.5, 0, 3.5},
		{"взвешенное нарушение", weighted, classify.LabelViolation, 0.8, 0, -7},
		{"взвешенное нейтральное — кредит не взвешивается", weighted, classify.LabelNeutral, 0.1, 0, 1},
		{"реакции не взвешиваются по confidence", weighted, classify.LabelNeutral, 0.1, 2, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, tt.weights.Delta(tt.label, tt.conf, tt.reactions), 1e-9)
		})
	}
}
