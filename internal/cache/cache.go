// Package cache define la interfaz de caché usada para challenges MFA y
// estado compartible del breaker. Adapters: memory (proceso local) y redis
// (compartido entre instancias).
package cache

import "time"

type Cache interface {
	Get(key string) (value []byte, ok bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}
