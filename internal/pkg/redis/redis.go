package redis

import (
	"github.com/redis/go-redis/v9"
)

// Nil is the reply returned by Redis when a key does not exist.
const Nil = redis.Nil

// NewScript creates a new Lua script ready to be run on a Cache.
func NewScript(script string) *redis.Script {
	return redis.NewScript(script)
}
