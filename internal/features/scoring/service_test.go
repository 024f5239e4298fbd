package scoring

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slack-moderation-bot/internal/common"
	"slack-moderation-bot/internal/config"
	"slack-moderation-bot/internal/features/classify"
)

// memStore — хранилище в памяти, повторяющее контракт Store:
// дедупликация по message_id, окно по posted_at, порядок score DESC / user_id ASC,
// net_score пересчитывается переданными весами при чтении.
type memStore struct {
	events map[string]Event
	scores map[string]*UserScore
}

func newMemStore() *memStore {
	return &memStore{
		events: make(map[string]Event),
		scores: make(map[string]*UserScore),
	}
}

func (m *memStore) Record(_ context.Context, ev Event) (bool, error) {
	if _, ok := m.events[ev.MessageID]; ok {
		return false, nil
	}
	m.events[ev.MessageID] = ev

	s, ok := m.scores[ev.UserID]
	if !ok {
		s = &UserScore{UserID: ev.UserID}
		m.scores[ev.UserID] = s
	}
	s.UserName = ev.UserName
	s.MessageCount++
	s.ReactionCount += ev.ReactionCount
	switch ev.Label {
	case classify.LabelPositive:
		s.PositiveCount++
	case classify.LabelViolation:
		s.ViolationCount++
	}
	s.LastUpdated = time.Now()
	return true, nil
}

func (m *memStore) GetScore(_ context.Context, userID string, weights Weights) (*UserScore, error) {
	s, ok := m.scores[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	cp := *s
	cp.NetScore = 0
	for _, ev := range m.events {
		if ev.UserID == userID {
			cp.NetScore += weights.Delta(ev.Label, ev.Confidence, ev.ReactionCount)
		}
	}
	return &cp, nil
}

func (m *memStore) TopN(_ context.Context, w common.Window, weights Weights, n int) ([]RankedUser, error) {
	totals := make(map[string]float64)
	names := make(map[string]string)
	for _, ev := range m.events {
		if !w.Contains(ev.PostedAt) {
			continue
		}
		totals[ev.UserID] += weights.Delta(ev.Label, ev.Confidence, ev.ReactionCount)
		names[ev.UserID] = ev.UserName
	}

	out := make([]RankedUser, 0, len(totals))
	for id, score := range totals {
		out = append(out, RankedUser{UserID: id, UserName: names[id], Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > n {
		out = out[:n]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func testConfig() *config.Config {
	return &config.Config{
		ScoreMessageCredit:    1,
		ScorePositiveBonus:    5,
		ScoreViolationPenalty: 10,
		ScoreReactionBonus:    2,
	}
}

func testEvent(msgID, userID string, label classify.Label, conf float64) Event {
	return Event{
		MessageID:  msgID,
		UserID:     userID,
		UserName:   "user-" + userID,
		ChannelID:  "C001",
		PostedAt:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Text:       "текст",
		Label:      label,
		Confidence: conf,
	}
}

func TestRecordIdempotent(t *testing.T) {
	store := newMemStore()
	s := NewService(store, testConfig())
	ctx := context.Background()

	ev := testEvent("C001:1.000001", "U1", classify.LabelPositive, 0.9)

	require.NoError(t, s.Record(ctx, ev))
	// повторный вызов с теми же аргументами
	require.ErrorIs(t, s.Record(ctx, ev), common.ErrDuplicateMessage)

	score, err := s.GetScore(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, 1, score.MessageCount, "счётчики меняются ровно один раз")
	require.Equal(t, 1, score.PositiveCount)
	require.InDelta(t, 6, score.NetScore, 1e-9) // +1 сообщение +5 позитив
}

func TestRecordAccumulatesCounters(t *testing.T) {
	store := newMemStore()
	s := NewService(store, testConfig())
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, testEvent("m1", "U1", classify.LabelPositive, 0.9)))
	require.NoError(t, s.Record(ctx, testEvent("m2", "U1", classify.LabelViolation, 0.95)))
	require.NoError(t, s.Record(ctx, testEvent("m3", "U1", classify.LabelNeutral, 0.5)))

	score, err := s.GetScore(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, 3, score.MessageCount)
	require.Equal(t, 1, score.PositiveCount)
	require.Equal(t, 1, score.ViolationCount)
	// (1+5) + (1-10) + 1 = -2
	require.InDelta(t, -2, score.NetScore, 1e-9)
}

func TestRecordCountsReactions(t *testing.T) {
	store := newMemStore()
	s := NewService(store, testConfig())
	ctx := context.Background()

	ev := testEvent("m1", "U1", classify.LabelNeutral, 0.5)
	ev.ReactionCount = 3

	require.NoError(t, s.Record(ctx, ev))

	score, err := s.GetScore(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, 3, score.ReactionCount)
	// +1 сообщение +3*2 реакции
	require.InDelta(t, 7, score.NetScore, 1e-9)
}

func TestGetScoreUsesCurrentWeights(t *testing.T) {
	// Одно хранилище, два сервиса с разными весами: сводка пользователя
	// и рейтинг должны сходиться для КАЖДОГО набора весов.
	store := newMemStore()
	ctx := context.Background()

	old := NewService(store, testConfig())
	require.NoError(t, old.Record(ctx, testEvent("m1", "U1", classify.LabelPositive, 0.9)))

	cfg := testConfig()
	cfg.ScorePositiveBonus = 50
	current := NewService(store, cfg)

	score, err := current.GetScore(ctx, "U1")
	require.NoError(t, err)
	require.InDelta(t, 51, score.NetScore, 1e-9, "net_score считается текущими весами, не весами в момент записи")

	w := common.Window{
		From: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
	}
	ranked, err := current.TopN(ctx, w, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	require.InDelta(t, score.NetScore, ranked[0].Score, 1e-9, "сводка и рейтинг сходятся")
}

func TestRecordRejectsInvalidLabel(t *testing.T) {
	s := NewService(newMemStore(), testConfig())
	err := s.Record(context.Background(), testEvent("m1", "U1", classify.Label("spam"), 0.5))
	require.Error(t, err)
}

func TestGetScoreUnknownUser(t *testing.T) {
	s := NewService(newMemStore(), testConfig())
	_, err := s.GetScore(context.Background(), "U404")
	require.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestTopNDeterministicTieBreak(t *testing.T) {
	store := newMemStore()
	s := NewService(store, testConfig())
	ctx := context.Background()

	// Три пользователя с одинаковыми очками, один с большими
	require.NoError(t, s.Record(ctx, testEvent("m1", "UC", classify.LabelNeutral, 0.5)))
	require.NoError(t, s.Record(ctx, testEvent("m2", "UA", classify.LabelNeutral, 0.5)))
	require.NoError(t, s.Record(ctx, testEvent("m3", "UB", classify.LabelNeutral, 0.5)))
	require.NoError(t, s.Record(ctx, testEvent("m4", "UD", classify.LabelPositive, 0.9)))

	w := common.Window{
		From: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
	}

	first, err := s.TopN(ctx, w, 10)
	require.NoError(t, err)
	require.Len(t, first, 4)

	// лидер по очкам, дальше тай-брейк по user_id по возрастанию
	require.Equal(t, "UD", first[0].UserID)
	require.Equal(t, []string{"UA", "UB", "UC"},
		[]string{first[1].UserID, first[2].UserID, first[3].UserID})
	require.Equal(t, []int{1, 2, 3, 4},
		[]int{first[0].Rank, first[1].Rank, first[2].Rank, first[3].Rank})

	// одинаковое состояние леджера → одинаковый результат
	second, err := s.TopN(ctx, w, 10)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestTopNRespectsWindow(t *testing.T) {
	store := newMemStore()
	s := NewService(store, testConfig())
	ctx := context.Background()

	inside := testEvent("m1", "U1", classify.LabelPositive, 0.9)
	outside := testEvent("m2", "U2", classify.LabelPositive, 0.9)
	outside.PostedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, inside))
	require.NoError(t, s.Record(ctx, outside))

	w := common.Window{
		From: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
	}
	ranked, err := s.TopN(ctx, w, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	require.Equal(t, "U1", ranked[0].UserID)
}
