package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 8002,

		"database.max_connections": 25,

		"redis.addr": "localhost:6379",
		"redis.db":   0,

		"auth.jwt_expiry": "24h",

		"media.upload_dir":    "/data/uploads",
		"media.processed_dir": "/data/processed",

		"queue.visibility_timeout": "5m",
		"queue.reaper_interval":    "30s",

		"worker.count":         4,
		"worker.max_retries":   1,
		"worker.retry_delay":   "60s",
		"worker.ffmpeg_binary": "ffmpeg",
		"worker.metrics_port":  9100,

		"cache.status_ttl": "120s",

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
	return nil
}
