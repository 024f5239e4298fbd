// Package classify — prompt.go собирает промпт для модели и разбирает её ответ.
// Модель просят вернуть чистый JSON, но на практике она любит заворачивать
// его в markdown-заборы, поэтому парсер их снимает.
package classify

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `Ты — модератор Slack-сообщества. Анализируй сообщения строго и беспристрастно. Отвечай ТОЛЬКО валидным JSON без пояснений.`

// buildPrompt формирует запрос на классификацию одного сообщения.
func buildPrompt(text string) string {
	return fmt.Sprintf(`Проанализируй сообщение из Slack-сообщества:

Сообщение: %q

Определи ровно одну метку:
- "violation" — нарушение гайдлайнов (спам, оскорбления, реклама, токсичность)
- "positive" — благодарность, похвала, поддержка, помощь другим
- "neutral" — всё остальное

Верни JSON вида:
{"label": "violation|positive|neutral", "confidence": 0.0-1.0, "reason": "краткое пояснение"}`, text)
}

// parseResult разбирает ответ модели в Result.
// Снимает markdown-заборы вокруг JSON, проверяет метку
// и зажимает confidence в [0, 1].
func parseResult(raw string) (Result, error) {
	raw = stripFences(raw)

	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return Result{}, fmt.Errorf("ответ модели не является JSON: %w", err)
	}

	if !res.Label.Valid() {
		return Result{}, fmt.Errorf("неизвестная метка %q в ответе модели", res.Label)
	}

	if res.Confidence < 0 {
		res.Confidence = 0
	}
	if res.Confidence > 1 {
		res.Confidence = 1
	}

	return res, nil
}

// stripFences вырезает содержимое первого markdown-блока кода, если он есть.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+len("```"):]
	} else {
		return s
	}
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
