// Package config resolves the flags in design §6 (External Interfaces)
// from the CLI, optionally overlaid with defaults from
// $HOME/.config/btfs/config.yaml.
package config

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/urfave/cli/v2"
)

// defaultBitrate is the spec's "5 Mbit/s ÷ 8" default, expressed in
// bytes/sec: 5*1024*1024/8.
const defaultBitrate = 5 * 1024 * 1024 / 8

// Config is the fully resolved set of knobs a mount run needs.
type Config struct {
	Metadata   string
	Mountpoint string

	ListenLow  int
	ListenHigh int

	DownloadRate float64
	UploadRate   float64
	ProxyURL     string

	AllowOther bool
	StatusAddr string

	LogLevel string
	LogFile  string
}

// fileDefaults mirrors the subset of Config a user may override via
// config.yaml. Flags set on the command line always win.
type fileDefaults struct {
	ListenLow    int     `yaml:"listen_low"`
	ListenHigh   int     `yaml:"listen_high"`
	DownloadRate float64 `yaml:"download_rate"`
	UploadRate   float64 `yaml:"upload_rate"`
	ProxyURL     string  `yaml:"proxy_url"`
	AllowOther   bool    `yaml:"allow_other"`
	StatusAddr   string  `yaml:"status_addr"`
	LogLevel     string  `yaml:"log_level"`
	LogFile      string  `yaml:"log_file"`
}

// Flags is the urfave/cli/v2 flag set for cmd/btfs. Defaults here are
// the spec's defaults; loadFile overrides them before cli.Context
// values (explicit flags) are applied on top.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "listen-low", Value: 6881, Usage: "first port to try when binding the peer listener"},
		&cli.IntFlag{Name: "listen-high", Value: 6889, Usage: "last port to try when binding the peer listener"},
		&cli.Float64Flag{Name: "download-rate", Value: defaultBitrate, Usage: "download rate limit in bytes/sec, 0 = unlimited"},
		&cli.Float64Flag{Name: "upload-rate", Value: defaultBitrate, Usage: "upload rate limit in bytes/sec, 0 = unlimited"},
		&cli.StringFlag{Name: "proxy-url", Usage: "optional HTTP(S) proxy URL for tracker announces"},
		&cli.BoolFlag{Name: "allow-other", Usage: "pass -o allow_other to the FUSE mount"},
		&cli.StringFlag{Name: "status-addr", Usage: "loopback address for the diagnostics endpoint, e.g. 127.0.0.1:8420 (empty disables it)"},
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn, error"},
		&cli.StringFlag{Name: "log-file", Usage: "optional rotating log file path; stderr is always written to as well"},
		&cli.StringFlag{Name: "config", Usage: "path to an optional YAML defaults file"},
	}
}

// FromContext resolves a Config from flags, positional args, and an
// optional YAML defaults file. Positional args are <metadata> <mountpoint>.
func FromContext(c *cli.Context) (Config, error) {
	if c.NArg() != 2 {
		return Config{}, cli.Exit("usage: btfs [options] <metadata> <mountpoint>", 1)
	}

	def := fileDefaults{
		ListenLow:    6881,
		ListenHigh:   6889,
		DownloadRate: defaultBitrate,
		UploadRate:   defaultBitrate,
		LogLevel:     "info",
	}

	if path := c.String("config"); path != "" {
		loaded, err := loadFile(path, def)
		if err != nil {
			return Config{}, err
		}
		def = loaded
	}

	cfg := Config{
		Metadata:     c.Args().Get(0),
		Mountpoint:   c.Args().Get(1),
		ListenLow:    overrideInt(c, "listen-low", def.ListenLow),
		ListenHigh:   overrideInt(c, "listen-high", def.ListenHigh),
		DownloadRate: overrideFloat(c, "download-rate", def.DownloadRate),
		UploadRate:   overrideFloat(c, "upload-rate", def.UploadRate),
		ProxyURL:     overrideString(c, "proxy-url", def.ProxyURL),
		AllowOther:   c.Bool("allow-other") || def.AllowOther,
		StatusAddr:   overrideString(c, "status-addr", def.StatusAddr),
		LogLevel:     overrideString(c, "log-level", def.LogLevel),
		LogFile:      overrideString(c, "log-file", def.LogFile),
	}

	return cfg, validateScheme(cfg.Metadata)
}

// loadFile decodes the YAML file at path over d, so keys the file omits
// keep the values d already holds.
func loadFile(path string, d fileDefaults) (fileDefaults, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	if err := yaml.Unmarshal(b, &d); err != nil {
		return d, err
	}
	return d, nil
}

// overrideInt/overrideFloat/overrideString apply "flag wins over file
// default" semantics: if the flag wasn't explicitly set, fall through
// to whatever config.yaml (or the spec's hardcoded default) provided.
func overrideInt(c *cli.Context, name string, fallback int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	return fallback
}

func overrideFloat(c *cli.Context, name string, fallback float64) float64 {
	if c.IsSet(name) {
		return c.Float64(name)
	}
	return fallback
}

func overrideString(c *cli.Context, name string, fallback string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	return fallback
}

func validateScheme(metadata string) error {
	u, err := urlScheme(metadata)
	if err != nil || u == "" {
		return nil
	}
	if u == "http" || u == "https" {
		return cli.Exit("unsupported scheme: "+u+":// (pass a metainfo file path or magnet: URI)", 1)
	}
	return nil
}

func urlScheme(s string) (string, error) {
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == ':':
			return s[:i], nil
		case s[i] == '/' || s[i] == '\\':
			return "", nil
		}
	}
	return "", nil
}

// DefaultConfigPath is where a user may drop YAML defaults; cmd/btfs
// doesn't require it to exist.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "btfs", "config.yaml")
}
