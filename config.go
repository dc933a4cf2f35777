package bmesh

import (
	"fmt"
	"os"

	"github.com/go-playground/validator"
	"github.com/pelletier/go-toml/v2"
)

// Config drives an export run.
type Config struct {
	// Format is 1 (every object in one file) or 2 (one file per object).
	Format uint8 `toml:"format" validate:"oneof=1 2"`
	// Compress zlib-compresses v2 payloads.
	Compress bool `toml:"compress"`
	// CompressionLevel is a compress/zlib level, 0 means default.
	CompressionLevel int `toml:"compression_level" validate:"min=-2,max=9"`
	// Output is the container path for v1 and the target directory for v2.
	Output   string `toml:"output" validate:"required"`
	LogLevel string `toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

func DefaultConfig() *Config {
	return &Config{
		Format:   uint8(V1),
		Output:   "out" + BMESHEXT,
		LogLevel: "info",
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Compress && Format(c.Format) != V2 {
		return fmt.Errorf("config: %w", ErrCompressionFormat)
	}
	return nil
}

func (c *Config) EncodeOptions() EncodeOptions {
	return EncodeOptions{Format: Format(c.Format), Compress: c.Compress, Level: c.CompressionLevel}
}

// LoadConfig reads a TOML file on top of DefaultConfig and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
