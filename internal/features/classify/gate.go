// Package classify — gate.go реализует общий ограничитель частоты вызовов
// внешнего API. Один Gate на процесс: все вызовы выстраиваются за ним
// в очередь, никто не отбрасывается.
package classify

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate пропускает не чаще одного вызова за minInterval.
// Внедряется явно, а не живёт глобальной переменной пакета.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate создаёт ограничитель с минимальным интервалом между вызовами.
// Дефолтные 4.5s подобраны под бесплатный лимит ~15 запросов/мин.
func NewGate(minInterval time.Duration) *Gate {
	return &Gate{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait блокирует до следующего разрешённого вызова или отмены контекста.
func (g *Gate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
