// Package config loads printer, logging and image settings from an optional
// file and ESCBUF_* environment variables.
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"

	imgInternal "github.com/AlexStarov/escbuf/image"
	logInternal "github.com/AlexStarov/escbuf/log"
	"github.com/AlexStarov/escbuf/printer"
)

const EnvPrefix = "ESCBUF"

// Config is the full program configuration.
type Config struct {
	Transport printer.TransportConfig `mapstructure:"transport"`
	Logging   logInternal.Config      `mapstructure:"logging"`
	Image     ImageConfig             `mapstructure:"image"`
}

// ImageConfig chooses how DrawImage reads files. Mode "raw" sends files as
// they are; "bitmap" decodes and converts them to a black and white BMP.
type ImageConfig struct {
	Mode      string  `mapstructure:"mode"`
	MaxWidth  int     `mapstructure:"max_width"` // dots
	Threshold float64 `mapstructure:"threshold"`
}

// Load reads path (if not empty) and the environment, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults matches the stock Epic setup: serial, 9600 8N1, no handshake.
func setDefaults(v *viper.Viper) {
	v.SetDefault("transport.kind", printer.KindSerial)
	v.SetDefault("transport.port", "/dev/ttyUSB0")
	v.SetDefault("transport.baud_rate", 9600)
	v.SetDefault("transport.parity", "none")
	v.SetDefault("transport.data_bits", 8)
	v.SetDefault("transport.stop_bits", 1)
	v.SetDefault("transport.handshake", "none")
	v.SetDefault("transport.vendor_id", 0)
	v.SetDefault("transport.product_id", 0)
	v.SetDefault("transport.address", "")
	v.SetDefault("transport.queue", "lp")
	v.SetDefault("transport.timeout", "5s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", false)

	v.SetDefault("image.mode", "raw")
	v.SetDefault("image.max_width", 512)
	v.SetDefault("image.threshold", 0.5)
}

func validate(cfg *Config) error {
	t := cfg.Transport

	kinds := []string{printer.KindSerial, printer.KindUSB, printer.KindTCP, printer.KindLPD, printer.KindSpooler}
	if !slices.Contains(kinds, t.Kind) {
		return fmt.Errorf("transport.kind must be one of: %v", kinds)
	}

	switch t.Kind {
	case printer.KindSerial:
		if t.Port == "" {
			return fmt.Errorf("transport.port is required")
		}
		if t.BaudRate <= 0 {
			return fmt.Errorf("transport.baud_rate must be positive")
		}
		if err := printer.ValidateSerial(t); err != nil {
			return fmt.Errorf("transport: %w", err)
		}
	case printer.KindTCP, printer.KindLPD, printer.KindSpooler:
		if t.Address == "" {
			return fmt.Errorf("transport.address is required for %s", t.Kind)
		}
	}

	if _, err := logInternal.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	switch cfg.Image.Mode {
	case "raw":
	case "bitmap":
		if cfg.Image.MaxWidth <= 0 {
			return fmt.Errorf("image.max_width must be positive")
		}
		if cfg.Image.Threshold < 0 || cfg.Image.Threshold > 1 {
			return fmt.Errorf("image.threshold must be between 0 and 1")
		}
	default:
		return fmt.Errorf("image.mode must be raw or bitmap")
	}

	return nil
}

// ImageSource returns the source selected by Image.Mode.
func (c *Config) ImageSource() printer.ImageSource {
	if c.Image.Mode == "bitmap" {
		return imgInternal.NewBitmapSource(c.Image.MaxWidth, c.Image.Threshold)
	}
	return imgInternal.FileSource{}
}
