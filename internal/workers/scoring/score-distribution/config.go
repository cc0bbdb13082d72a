package scoredistribution

import "time"

type Config struct {
	Timeout    time.Duration
	ScoreIndex string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    15 * time.Second,
		ScoreIndex: "credit-scores",
	}
}
