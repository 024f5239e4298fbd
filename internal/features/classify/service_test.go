package classify

import (
	"context"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"slack-moderation-bot/internal/common"
)

// fakeChatAPI проигрывает заранее заданный сценарий ответов.
type fakeChatAPI struct {
	calls int
	steps []fakeStep
}

type fakeStep struct {
	content string
	err     error
}

func (f *fakeChatAPI) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	step := f.steps[len(f.steps)-1] // последний шаг повторяется бесконечно
	if f.calls < len(f.steps) {
		step = f.steps[f.calls]
	}
	f.calls++

	if step.err != nil {
		return openai.ChatCompletionResponse{}, step.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: step.content}},
		},
	}, nil
}

func newTestService(api ChatAPI, maxRetries int) *Service {
	s := NewService(api, "gpt-4o-mini", NewGate(time.Millisecond), maxRetries, time.Second)
	s.backoff = time.Millisecond
	return s
}

func TestClassifyEmptyTextSkipsAPI(t *testing.T) {
	api := &fakeChatAPI{steps: []fakeStep{{content: `{"label":"positive","confidence":1}`}}}
	s := newTestService(api, 3)

	res, err := s.Classify(context.Background(), "   \n\t  ")
	require.NoError(t, err)
	require.Equal(t, Result{Label: LabelNeutral, Confidence: 0}, res)
	require.Equal(t, 0, api.calls, "пустой текст не должен ходить во внешний API")
}

func TestClassifySuccess(t *testing.T) {
	api := &fakeChatAPI{steps: []fakeStep{
		{content: `{"label": "positive", "confidence": 0.9, "reason": "благодарность"}`},
	}}
	s := newTestService(api, 3)

	res, err := s.Classify(context.Background(), "Thank you so much for your help!")
	require.NoError(t, err)
	require.Equal(t, LabelPositive, res.Label)
	require.InDelta(t, 0.9, res.Confidence, 1e-9)
	require.Equal(t, 1, api.calls)
}

func TestClassifyRetriesTransientError(t *testing.T) {
	api := &fakeChatAPI{steps: []fakeStep{
		{err: &openai.APIError{HTTPStatusCode: 500}},
		{err: &openai.APIError{HTTPStatusCode: 429}},
		{content: `{"label": "violation", "confidence": 0.95}`},
	}}
	s := newTestService(api, 3)

	res, err := s.Classify(context.Background(), "spam spam spam buy now")
	require.NoError(t, err)
	require.Equal(t, LabelViolation, res.Label)
	require.Equal(t, 3, api.calls)
}

func TestClassifyExhaustedRetries(t *testing.T) {
	api := &fakeChatAPI{steps: []fakeStep{
		{err: &openai.APIError{HTTPStatusCode: 503}},
	}}
	s := newTestService(api, 2)

	_, err := s.Classify(context.Background(), "какой-то текст")
	require.ErrorIs(t, err, common.ErrClassificationUnavailable)
	require.Equal(t, 3, api.calls, "исходная попытка + 2 ретрая")
}

func TestClassifyNonRetryableFailsFast(t *testing.T) {
	api := &fakeChatAPI{steps: []fakeStep{
		{err: &openai.APIError{HTTPStatusCode: 401}},
	}}
	s := newTestService(api, 3)

	_, err := s.Classify(context.Background(), "текст")
	require.ErrorIs(t, err, common.ErrClassificationRejected)
	require.NotErrorIs(t, err, common.ErrClassificationUnavailable,
		"невосстановимая ошибка не должна выглядеть как временная")
	require.Equal(t, 1, api.calls, "401 не ретраим")
}

func TestClassifyRetriesGarbageResponse(t *testing.T) {
	api := &fakeChatAPI{steps: []fakeStep{
		{content: "не могу классифицировать"},
		{content: `{"label": "neutral", "confidence": 0.6}`},
	}}
	s := newTestService(api, 3)

	res, err := s.Classify(context.Background(), "обычное сообщение")
	require.NoError(t, err)
	require.Equal(t, LabelNeutral, res.Label)
	require.Equal(t, 2, api.calls)
}

func TestGateEnforcesMinInterval(t *testing.T) {
	const interval = 40 * time.Millisecond
	g := NewGate(interval)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, g.Wait(ctx))
	require.NoError(t, g.Wait(ctx))
	require.NoError(t, g.Wait(ctx))
	elapsed := time.Since(start)

	// три вызова → минимум два полных интервала ожидания
	require.GreaterOrEqual(t, elapsed, 2*interval)
}

func TestGateWaitCancelled(t *testing.T) {
	g := NewGate(time.Hour)
	ctx := context.Background()
	require.NoError(t, g.Wait(ctx)) // первый вызов проходит сразу

	cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	require.Error(t, g.Wait(cancelCtx))
}
