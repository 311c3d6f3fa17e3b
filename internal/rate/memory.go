package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter es la variante en proceso para dev y single-instance.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	max     int64
	window  time.Duration
	now     func() time.Time
}

type fixedWindow struct {
	start time.Time
	hits  int64
}

// NewMemoryLimiter crea el limiter en memoria.
func NewMemoryLimiter(max int64, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*fixedWindow),
		max:     max,
		window:  window,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now().UTC()
	start := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.start.Before(start) {
		w = &fixedWindow{start: start}
		l.windows[key] = w
	}
	w.hits++

	// Las ventanas vencidas de otras claves se purgan de paso; el mapa no
	// crece sin límite entre picos.
	if len(l.windows) > 1024 {
		for k, win := range l.windows {
			if win.start.Before(start) {
				delete(l.windows, k)
			}
		}
	}

	res := Result{
		Allowed:   w.hits <= l.max,
		Remaining: max(l.max-w.hits, 0),
	}
	if !res.Allowed {
		res.RetryAfter = w.start.Add(l.window).Sub(now)
	}
	return res, nil
}
