package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "LEAF"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Model      ModelConfig      `mapstructure:"model"`
	Preprocess PreprocessConfig `mapstructure:"preprocess"`
	Upload     UploadConfig     `mapstructure:"upload"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ModelConfig struct {
	Path           string `mapstructure:"path"`
	LibraryPath    string `mapstructure:"library_path"`
	InputName      string `mapstructure:"input_name"`
	OutputName     string `mapstructure:"output_name"`
	IntraOpThreads int    `mapstructure:"intra_op_threads"`
	Preload        bool   `mapstructure:"preload"`
}

type PreprocessConfig struct {
	ImageSize     int    `mapstructure:"image_size"`
	Interpolation string `mapstructure:"interpolation"`
	MaxPixels     int    `mapstructure:"max_pixels"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// Load reads configPath if it exists, then applies LEAF_* environment
// overrides. PORT is honoured for the listen port.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("failed to bind port env: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Server.Port != "" && !strings.Contains(cfg.Server.Port, ":") {
		cfg.Server.Port = ":" + cfg.Server.Port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// New loads .env (if any) and the config file named by LEAF_CONFIG,
// defaulting to config.yaml.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	path := os.Getenv(EnvPrefix + "_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	return Load(path)
}

func (c *Config) Validate() error {
	switch {
	case c.Server.Mode != "debug" && c.Server.Mode != "release" && c.Server.Mode != "test":
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	case c.Model.Path == "":
		return errors.New("model.path must be set")
	case c.Preprocess.ImageSize <= 0:
		return fmt.Errorf("preprocess.image_size must be positive, got %d", c.Preprocess.ImageSize)
	case c.Upload.MaxSize <= 0:
		return fmt.Errorf("upload.max_size must be positive, got %d", c.Upload.MaxSize)
	case len(c.Upload.AllowedTypes) == 0:
		return errors.New("upload.allowed_types must not be empty")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("model.path", "models/plant_leaf_diseases_model.onnx")
	v.SetDefault("model.library_path", "")
	v.SetDefault("model.input_name", "")
	v.SetDefault("model.output_name", "")
	v.SetDefault("model.intra_op_threads", 0)
	v.SetDefault("model.preload", false)

	v.SetDefault("preprocess.image_size", 256)
	v.SetDefault("preprocess.interpolation", "bicubic")
	v.SetDefault("preprocess.max_pixels", 50_000_000)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/jpg", "image/png"})
}
