// internal/workers/notifications/fan-out-group-notification/config.go
package fanoutgroupnotification

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
