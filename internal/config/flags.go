package config

import (
	"github.com/spf13/pflag"
)

// Flags holds the command-line overrides shared by every binary. Flags the
// user did not set leave the file and environment values alone.
type Flags struct {
	fs *pflag.FlagSet

	configPath    string
	variant       string
	listen        string
	storeBackend  string
	redisAddr     string
	publisherMode string
	device        string
	synthetic     bool
	logLevel      string
	logFormat     string
}

// RegisterFlags defines the shared flags on fs.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.configPath, "config", "", "YAML config file (default $FERMIA_CONFIG)")
	fs.StringVar(&f.variant, "variant", "", "stream variant: color or depth")
	fs.StringVar(&f.listen, "listen", "", "HTTP listen address (default the variant's port)")
	fs.StringVar(&f.storeBackend, "store", "", "shared store backend: redis or memory")
	fs.StringVar(&f.redisAddr, "redis-addr", "", "Redis host:port")
	fs.StringVar(&f.publisherMode, "publisher-mode", "", "spawn, embedded or off")
	fs.StringVar(&f.device, "device", "", "capture device index, path, or unix:<socket>")
	fs.BoolVar(&f.synthetic, "synthetic", false, "use a generated test pattern instead of a device")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "", "json or console")
	return f
}

// Load runs the package Load with the --config path and applies every flag
// that was set on the command line.
func (f *Flags) Load() (*Config, error) {
	cfg, err := Load(f.configPath)
	if err != nil {
		return nil, err
	}
	f.apply(cfg)
	return cfg, nil
}

func (f *Flags) apply(cfg *Config) {
	set := func(name string, dst *string, val string) {
		if f.fs.Changed(name) {
			*dst = val
		}
	}
	set("variant", &cfg.Variant, f.variant)
	set("listen", &cfg.HTTPListenAddr, f.listen)
	set("store", &cfg.StoreBackend, f.storeBackend)
	set("redis-addr", &cfg.RedisAddr, f.redisAddr)
	set("publisher-mode", &cfg.PublisherMode, f.publisherMode)
	set("device", &cfg.Device, f.device)
	set("log-level", &cfg.LogLevel, f.logLevel)
	set("log-format", &cfg.LogFormat, f.logFormat)
	if f.fs.Changed("synthetic") {
		cfg.UseSynthetic = f.synthetic
	}
}
