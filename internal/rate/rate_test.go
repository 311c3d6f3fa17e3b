package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 1, 0, time.UTC)
	l := NewMemoryLimiter(3, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("intento %d rechazado dentro del límite", i+1)
		}
		if want := int64(2 - i); res.Remaining != want {
			t.Fatalf("remaining = %d, quería %d", res.Remaining, want)
		}
	}

	res, err := l.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if res.Allowed {
		t.Fatal("el cuarto intento debía rechazarse")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
		t.Fatalf("retry-after fuera de rango: %v", res.RetryAfter)
	}

	// Otra clave no comparte la ventana.
	res, _ = l.Allow(ctx, "10.0.0.2")
	if !res.Allowed {
		t.Fatal("clave independiente rechazada")
	}

	// La ventana siguiente arranca limpia.
	now = now.Add(time.Minute)
	res, _ = l.Allow(ctx, "10.0.0.1")
	if !res.Allowed {
		t.Fatal("la ventana nueva debía admitir")
	}
}
