package redis

const (
	// KeyPrefixReplay is the prefix for recorded import results
	KeyPrefixReplay = "tabstash:replay:"
	// KeyReplayExpiry is the sorted set of tokens scored by expiry (unix seconds)
	KeyReplayExpiry = "tabstash:replay:expiry"
)

// ReplayKey returns the Redis key for a recorded import result
func ReplayKey(token string) string {
	return KeyPrefixReplay + token
}

// ReplayExpiryKey returns the Redis key of the expiry index
func ReplayExpiryKey() string {
	return KeyReplayExpiry
}
