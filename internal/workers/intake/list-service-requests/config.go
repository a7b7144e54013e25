// internal/workers/intake/list-service-requests/config.go
package listservicerequests

import "time"

type Config struct {
	Timeout      time.Duration
	DefaultLimit int
	MaxLimit     int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      15 * time.Second,
		DefaultLimit: 20,
		MaxLimit:     100,
	}
}
