package routeloanapplication

import "time"

type Config struct {
	Timeout              time.Duration
	AutoApproveMaxAmount float64
	HighPriorityAmount   float64
	OfficerQueueKey      string
	QueueBusyThreshold   int64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:              5 * time.Second,
		AutoApproveMaxAmount: 50000,
		HighPriorityAmount:   100000,
		OfficerQueueKey:      "loan:officer:queue",
		QueueBusyThreshold:   50,
	}
}
