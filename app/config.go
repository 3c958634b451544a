package app

import (
	"fmt"
	"slices"

	"github.com/kbukum/captiongen/audio"
	"github.com/kbukum/captiongen/captions"
	"github.com/kbukum/captiongen/config"
	"github.com/kbukum/captiongen/database"
	"github.com/kbukum/captiongen/llm"
	"github.com/kbukum/captiongen/observability"
	"github.com/kbukum/captiongen/server"
	"github.com/kbukum/captiongen/storage"
	"github.com/kbukum/captiongen/transcription"
	"github.com/kbukum/captiongen/transcription/vosk"
	"github.com/kbukum/captiongen/transcription/whisper"
	"github.com/kbukum/captiongen/transliterate"
	"github.com/kbukum/captiongen/validation"
)

// ServiceName names the binary, its config file lookup and its telemetry.
const ServiceName = "captiongen"

// Config is the complete service configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server          server.Config        `yaml:"server" mapstructure:"server"`
	Audio           audio.Config         `yaml:"audio" mapstructure:"audio"`
	Recognizer      RecognizerConfig     `yaml:"recognizer" mapstructure:"recognizer"`
	LLM             llm.Config           `yaml:"llm" mapstructure:"llm"`
	Transliteration transliterate.Config `yaml:"transliteration" mapstructure:"transliteration"`
	Storage         storage.Config       `yaml:"storage" mapstructure:"storage"`
	Jobs            database.Config      `yaml:"jobs" mapstructure:"jobs"`
	Pipeline        captions.Config      `yaml:"pipeline" mapstructure:"pipeline"`
	Tracing         observability.Config `yaml:"tracing" mapstructure:"tracing"`
}

// RecognizerConfig selects a recognizer and carries each backend's settings.
type RecognizerConfig struct {
	transcription.Config `yaml:",inline" mapstructure:",squash"`

	Vosk    vosk.Config    `yaml:"vosk" mapstructure:"vosk"`
	Whisper whisper.Config `yaml:"whisper" mapstructure:"whisper"`
}

// Recognizers lists the backends a config may name.
var Recognizers = []string{vosk.ProviderName, whisper.ProviderName}

// ApplyDefaults fills unset fields.
func (c *RecognizerConfig) ApplyDefaults() {
	c.Config.ApplyDefaults()
	c.Vosk.ApplyDefaults()
	c.Whisper.ApplyDefaults()
}

// Validate checks that the named backends exist.
func (c *RecognizerConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	for _, name := range []string{c.Provider, c.Fallback} {
		if name != "" && !slices.Contains(Recognizers, name) {
			return fmt.Errorf("recognizer %q is not one of %v", name, Recognizers)
		}
	}
	return nil
}

// ApplyDefaults fills unset fields in every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Audio.ApplyDefaults()
	c.Recognizer.ApplyDefaults()
	c.LLM.ApplyDefaults()
	c.Transliteration.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Jobs.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Tracing.ApplyDefaults()
}

// Validate checks struct tags and then each section's own rules. The LLM
// section is only checked when transliteration is enabled.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	checks := []func() error{
		c.ServiceConfig.Validate,
		c.Server.Validate,
		c.Audio.Validate,
		c.Recognizer.Validate,
		c.Transliteration.Validate,
		c.Storage.Validate,
		c.Jobs.Validate,
		c.Pipeline.Validate,
		c.Tracing.Validate,
	}
	if c.Transliteration.Enabled {
		checks = append(checks, c.LLM.Validate)
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// Defaults are the loader defaults. They cover keys a zero value cannot
// express, such as transliteration being on unless disabled, and give every
// section a key so its environment overrides are picked up.
func Defaults() map[string]any {
	return map[string]any{
		"name":                               ServiceName,
		"environment":                        "development",
		"logging.format":                     "console",
		"server.port":                        8000,
		"audio.ffmpeg_path":                  "ffmpeg",
		"recognizer.provider":                vosk.ProviderName,
		"llm.dialect":                        llm.DefaultDialect,
		"transliteration.enabled":            true,
		"transliteration.fallback_to_source": false,
		"storage.provider":                   storage.ProviderLocal,
		"jobs.auto_migrate":                  true,
		"pipeline.max_concurrent":            2,
		"tracing.enabled":                    false,
	}
}

// EnvAliases maps the legacy environment variables onto config keys.
func EnvAliases() map[string]string {
	return map[string]string{
		"DEEPINFRA_API_KEY": "llm.api_key",
		"MODEL_NAME":        "llm.model",
	}
}

// Load reads the configuration from path (or the standard locations when
// empty), the environment and the defaults.
func Load(path string, opts ...config.LoaderOption) (*Config, error) {
	cfg := &Config{}
	all := []config.LoaderOption{
		config.WithDefaults(Defaults()),
		config.WithEnvAliases(EnvAliases()),
	}
	if path != "" {
		all = append(all, config.WithConfigFile(path))
	}
	all = append(all, opts...)
	if err := config.LoadConfig(ServiceName, cfg, all...); err != nil {
		return nil, err
	}
	return cfg, nil
}
