package validateloanapplication

import "time"

type Config struct {
	Timeout           time.Duration
	RequiredDocuments []string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           5 * time.Second,
		RequiredDocuments: []string{"AADHAAR", "PAN", "ELECTRICITY", "MOBILE"},
	}
}
