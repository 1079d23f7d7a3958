package cache

import "time"

// BytesCache stores serialized API responses with a TTL. Reads return
// (nil, false, nil) on miss so handlers can fall through to the usecase.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
