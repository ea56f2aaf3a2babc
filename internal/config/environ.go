package config

import (
	"strconv"
	"strings"
)

// Environ renders c as FERMIA_* entries that Load reads back to the same
// values. Empty strings and lists are left out so they do not mask a file.
func (c *Config) Environ() []string {
	var env []string
	str := func(key, val string) {
		if val != "" {
			env = append(env, key+"="+val)
		}
	}
	str("FERMIA_VARIANT", c.Variant)
	str("FERMIA_HTTP_LISTEN_ADDR", c.HTTPListenAddr)
	str("FERMIA_ALLOWED_ORIGINS", strings.Join(c.AllowedOrigins, ","))
	str("FERMIA_STORE_BACKEND", c.StoreBackend)
	str("FERMIA_REDIS_ADDR", c.RedisAddr)
	str("FERMIA_REDIS_PASSWORD", c.RedisPassword)
	str("FERMIA_REDIS_DB", strconv.Itoa(c.RedisDB))
	str("FERMIA_PHOTOS_DIR", c.PhotosDir)
	str("FERMIA_VIDEOS_DIR", c.VideosDir)
	str("FERMIA_STREAM_FPS", strconv.Itoa(c.StreamFPS))
	str("FERMIA_JOIN_TIMEOUT", c.JoinTimeout.String())
	str("FERMIA_PUBLISHER_MODE", c.PublisherMode)
	str("FERMIA_PUBLISHER_COMMAND", c.PublisherCommand)
	str("FERMIA_DEVICE", c.Device)
	str("FERMIA_USE_SYNTHETIC", strconv.FormatBool(c.UseSynthetic))
	str("FERMIA_SYNTHETIC_PATTERN", strconv.Itoa(c.SyntheticPattern))
	str("FERMIA_ICE_SERVERS", strings.Join(c.ICEServers, ","))
	str("FERMIA_LOG_LEVEL", c.LogLevel)
	str("FERMIA_LOG_FORMAT", c.LogFormat)
	return env
}
