package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slack-moderation-bot/internal/common"
	"slack-moderation-bot/internal/config"
	"slack-moderation-bot/internal/features/classify"
	"slack-moderation-bot/internal/features/notify"
	"slack-moderation-bot/internal/features/scoring"
)

// fakeClassifier возвращает заранее заданный результат или ошибку.
type fakeClassifier struct {
	res classify.Result
	err error
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) (classify.Result, error) {
	return f.res, f.err
}

// fakeLedger учитывает события в памяти с дедупликацией по message_id.
type fakeLedger struct {
	mu     sync.Mutex
	events []scoring.Event
	seen   map[string]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{seen: make(map[string]bool)}
}

func (f *fakeLedger) Record(_ context.Context, ev scoring.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[ev.MessageID] {
		return common.ErrDuplicateMessage
	}
	f.seen[ev.MessageID] = true
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// fakeNotifier считает уведомления по видам.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []notify.Kind
}

func (f *fakeNotifier) Notify(_ context.Context, kind notify.Kind, _, _ string) notify.DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind)
	return notify.DeliveryResult{Delivered: true, Attempts: 1}
}

func (f *fakeNotifier) alerts(kind notify.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.calls {
		if k == kind {
			n++
		}
	}
	return n
}

func pipelineConfig() *config.Config {
	return &config.Config{
		AdminChannelID:      "CADMIN",
		ViolationThreshold:  0.8,
		PositiveThreshold:   0.7,
		PipelineMaxInflight: 4,
		RetryQueueSize:      8,
	}
}

func testMessage(id string) Message {
	return Message{
		MessageID:     id,
		UserID:        "U1",
		UserName:      "Иван",
		ChannelID:     "C001",
		PostedAt:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Text:          "Thank you so much for your help!",
		ReactionCount: 2,
	}
}

func newTestPipeline(cl Classifier, ledger Ledger, n Notifier, cfg *config.Config) *Service {
	return NewService(cl, ledger, n, NewRetryQueue(cfg.RetryQueueSize), cfg, time.UTC)
}

func TestProcessPositiveNoAlert(t *testing.T) {
	ledger := newFakeLedger()
	notifier := &fakeNotifier{}
	cl := &fakeClassifier{res: classify.Result{Label: classify.LabelPositive, Confidence: 0.9}}
	s := newTestPipeline(cl, ledger, notifier, pipelineConfig())

	res, err := s.Process(context.Background(), testMessage("m1"))
	require.NoError(t, err)
	require.Equal(t, OutcomeRecorded, res.Outcome)
	require.Equal(t, classify.LabelPositive, res.Label)
	require.False(t, res.AlertSent)

	require.Equal(t, 1, ledger.count())
	require.Equal(t, classify.LabelPositive, ledger.events[0].Label)
	require.Equal(t, 2, ledger.events[0].ReactionCount, "реакции доезжают до леджера")
	require.Equal(t, 0, notifier.alerts(notify.KindViolationAlert), "позитив не триггерит violation_alert")
}

func TestProcessPositiveBelowThresholdCountsAsNeutral(t *testing.T) {
	ledger := newFakeLedger()
	cl := &fakeClassifier{res: classify.Result{Label: classify.LabelPositive, Confidence: 0.4}}
	s := newTestPipeline(cl, ledger, &fakeNotifier{}, pipelineConfig())

	res, err := s.Process(context.Background(), testMessage("m1"))
	require.NoError(t, err)
	require.Equal(t, OutcomeRecorded, res.Outcome)
	require.Equal(t, classify.LabelNeutral, res.Label)

	require.Equal(t, 1, ledger.count())
	require.Equal(t, classify.LabelNeutral, ledger.events[0].Label, "неуверенный позитив идёт как neutral")
}

func TestProcessViolationTriggersSingleAlert(t *testing.T) {
	ledger := newFakeLedger()
	notifier := &fakeNotifier{}
	cl := &fakeClassifier{res: classify.Result{Label: classify.LabelViolation, Confidence: 0.95, Reason: "спам"}}
	s := newTestPipeline(cl, ledger, notifier, pipelineConfig())

	msg := testMessage("m1")
	msg.Text = "spam spam spam buy now"

	res, err := s.Process(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, OutcomeRecorded, res.Outcome)
	require.True(t, res.AlertSent)
	require.Equal(t, 1, notifier.alerts(notify.KindViolationAlert), "ровно один алерт")
	require.Equal(t, 1, ledger.count())
}

func TestProcessViolationBelowThresholdNoAlert(t *testing.T) {
	ledger := newFakeLedger()
	notifier := &fakeNotifier{}
	cl := &fakeClassifier{res: classify.Result{Label: classify.LabelViolation, Confidence: 0.5}}
	s := newTestPipeline(cl, ledger, notifier, pipelineConfig())

	res, err := s.Process(context.Background(), testMessage("m1"))
	require.NoError(t, err)
	require.Equal(t, OutcomeRecorded, res.Outcome)
	require.False(t, res.AlertSent)
	require.Equal(t, 0, notifier.alerts(notify.KindViolationAlert))
	require.Equal(t, 1, ledger.count(), "нарушение ниже порога всё равно учитывается")
}

func TestProcessClassifierRejectedDrops(t *testing.T) {
	ledger := newFakeLedger()
	cl := &fakeClassifier{err: common.ErrClassificationRejected}
	s := newTestPipeline(cl, ledger, &fakeNotifier{}, pipelineConfig())

	res, err := s.Process(context.Background(), testMessage("m1"))
	require.NoError(t, err)
	require.Equal(t, OutcomeDropped, res.Outcome)
	require.Equal(t, 0, s.QueueLen(), "400/401 не откладываем: повтор бессмысленен")
	require.Equal(t, 0, ledger.count())
}

func TestProcessClassifierUnavailableQueues(t *testing.T) {
	ledger := newFakeLedger()
	notifier := &fakeNotifier{}
	cl := &fakeClassifier{err: common.ErrClassificationUnavailable}
	s := newTestPipeline(cl, ledger, notifier, pipelineConfig())

	res, err := s.Process(context.Background(), testMessage("m1"))
	require.NoError(t, err)
	require.Equal(t, OutcomeQueued, res.Outcome)
	require.Equal(t, 1, s.QueueLen(), "сообщение в очереди повтора")
	require.Equal(t, 0, ledger.count(), "очки не изменились")
}

func TestProcessDuplicateNoDoubleAlert(t *testing.T) {
	ledger := newFakeLedger()
	notifier := &fakeNotifier{}
	cl := &fakeClassifier{res: classify.Result{Label: classify.LabelViolation, Confidence: 0.95}}
	s := newTestPipeline(cl, ledger, notifier, pipelineConfig())
	ctx := context.Background()

	msg := testMessage("m1")

	first, err := s.Process(ctx, msg)
	require.NoError(t, err)
	require.Equal(t, OutcomeRecorded, first.Outcome)

	second, err := s.Process(ctx, msg)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, second.Outcome)
	require.False(t, second.AlertSent)

	require.Equal(t, 1, ledger.count())
	require.Equal(t, 1, notifier.alerts(notify.KindViolationAlert))
}

func TestProcessValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Message)
		wantErr error
	}{
		{"нет message_id", func(m *Message) { m.MessageID = "" }, common.ErrMissingField},
		{"нет user_id", func(m *Message) { m.UserID = "" }, common.ErrMissingField},
		{"нет channel_id", func(m *Message) { m.ChannelID = "" }, common.ErrMissingField},
		{"пустой текст", func(m *Message) { m.Text = "   " }, common.ErrEmptyMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newFakeLedger()
			cl := &fakeClassifier{res: classify.Result{Label: classify.LabelNeutral, Confidence: 1}}
			s := newTestPipeline(cl, ledger, &fakeNotifier{}, pipelineConfig())

			msg := testMessage("m1")
			tt.mutate(&msg)

			res, err := s.Process(context.Background(), msg)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, OutcomeDropped, res.Outcome)
			require.Equal(t, 0, ledger.count())
		})
	}
}

func TestProcessBatchConcurrent(t *testing.T) {
	ledger := newFakeLedger()
	cl := &fakeClassifier{res: classify.Result{Label: classify.LabelNeutral, Confidence: 0.6}}
	s := newTestPipeline(cl, ledger, &fakeNotifier{}, pipelineConfig())

	msgs := make([]Message, 20)
	for i := range msgs {
		msgs[i] = testMessage("m" + string(rune('a'+i)))
		msgs[i].Text = "обычное сообщение"
	}

	s.ProcessBatch(context.Background(), msgs)
	require.Equal(t, 20, ledger.count())
}

func TestDrainRetryQueueReprocesses(t *testing.T) {
	ledger := newFakeLedger()
	cl := &fakeClassifier{err: common.ErrClassificationUnavailable}
	s := newTestPipeline(cl, ledger, &fakeNotifier{}, pipelineConfig())
	ctx := context.Background()

	_, err := s.Process(ctx, testMessage("m1"))
	require.NoError(t, err)
	require.Equal(t, 1, s.QueueLen())

	// Классификатор «починился»
	cl.err = nil
	cl.res = classify.Result{Label: classify.LabelNeutral, Confidence: 0.7}

	s.DrainRetryQueue(ctx)
	require.Equal(t, 0, s.QueueLen())
	require.Equal(t, 1, ledger.count())
}

func TestUserLockStriped(t *testing.T) {
	cl := &fakeClassifier{res: classify.Result{Label: classify.LabelNeutral, Confidence: 0.5}}
	s := newTestPipeline(cl, newFakeLedger(), &fakeNotifier{}, pipelineConfig())

	require.Same(t, s.userLock("U1"), s.userLock("U1"), "один пользователь — один мьютекс")

	// число мьютексов ограничено числом полос, а не числом пользователей
	seen := make(map[*sync.Mutex]bool)
	for i := 0; i < 1000; i++ {
		seen[s.userLock(fmt.Sprintf("U%d", i))] = true
	}
	require.LessOrEqual(t, len(seen), len(s.userLocks))
}

func TestDrainRetryQueueRequeuesOnFailure(t *testing.T) {
	ledger := newFakeLedger()
	cl := &fakeClassifier{err: common.ErrClassificationUnavailable}
	s := newTestPipeline(cl, ledger, &fakeNotifier{}, pipelineConfig())
	ctx := context.Background()

	_, err := s.Process(ctx, testMessage("m1"))
	require.NoError(t, err)

	// Классификатор всё ещё лежит — сообщение возвращается в очередь
	s.DrainRetryQueue(ctx)
	require.Equal(t, 1, s.QueueLen())
	require.Equal(t, 0, ledger.count())
}
