// internal/workers/intake/handle-inbound-message/config.go
package handleinboundmessage

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
