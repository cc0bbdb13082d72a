package calculatecreditscore

import "time"

type Config struct {
	Timeout      time.Duration
	CacheEnabled bool
	CacheTTL     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      5 * time.Second,
		CacheEnabled: true,
		CacheTTL:     time.Hour,
	}
}
