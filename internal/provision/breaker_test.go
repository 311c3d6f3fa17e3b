package provision

import (
	"testing"
	"time"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	b.RecordFailure("boom")
	b.RecordFailure("boom")
	if b.IsOpen() {
		t.Fatal("el breaker no debe abrirse antes del umbral")
	}
	if !b.Allow() {
		t.Fatal("cerrado debe admitir llamadas")
	}

	b.RecordFailure("boom")
	if !b.IsOpen() {
		t.Fatal("el breaker debe abrirse al alcanzar el umbral")
	}
	if b.Allow() {
		t.Fatal("abierto no debe admitir llamadas antes del cooldown")
	}
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	b.RecordFailure("boom")
	b.RecordFailure("boom")
	b.RecordSuccess()
	b.RecordFailure("boom")
	b.RecordFailure("boom")
	if b.IsOpen() {
		t.Fatal("el éxito debe resetear la racha de fallos")
	}
}

func TestBreakerHalfOpenAdmitsSingleTrial(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	b := NewBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	b.RecordFailure("boom")
	if !b.IsOpen() {
		t.Fatal("umbral 1: un fallo debe abrir el breaker")
	}

	now = base.Add(30 * time.Second)
	if b.Allow() {
		t.Fatal("el cooldown no venció todavía")
	}

	now = base.Add(2 * time.Minute)
	if !b.Allow() {
		t.Fatal("vencido el cooldown debe admitirse un trial")
	}
	if b.Allow() {
		t.Fatal("half-open admite exactamente un trial en vuelo")
	}

	b.RecordSuccess()
	if !b.Allow() {
		t.Fatal("el trial exitoso debe cerrar el breaker")
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	b := NewBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	b.RecordFailure("boom")
	now = base.Add(2 * time.Minute)
	if !b.Allow() {
		t.Fatal("debe pasar a half-open")
	}

	b.RecordFailure("boom otra vez")
	if !b.IsOpen() {
		t.Fatal("un fallo en half-open debe reabrir inmediatamente")
	}
	if b.Allow() {
		t.Fatal("reabierto no debe admitir llamadas")
	}

	snap := b.Snapshot()
	if snap.State != BreakerOpen {
		t.Fatalf("Snapshot.State = %v", snap.State)
	}
	if snap.LastError != "boom otra vez" {
		t.Fatalf("Snapshot.LastError = %q", snap.LastError)
	}
}
