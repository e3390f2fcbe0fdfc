package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Name    string  `yaml:"name" json:"name" env:"NAME" env-default:"zendmn"` // used for OTEL as an application identifier
	Log     Log     `yaml:"log" json:"log"`
	Dmn     Dmn     `yaml:"dmn" json:"dmn"`
	Script  Script  `yaml:"script" json:"script"`
	Tracing Tracing `yaml:"tracing" json:"tracing"`
}

type Log struct {
	// Level is one of trace, debug, info, warn, error. Empty picks a level by profile.
	Level string `yaml:"level" json:"level" env:"LOG_LEVEL"`
	JSON  bool   `yaml:"json" json:"json" env:"LOG_JSON"`
}

// Dmn configures the default expression languages of the decision engine.
// Empty languages fall back to FEEL.
type Dmn struct {
	DefaultInputExpressionLanguage   string `yaml:"defaultInputExpressionLanguage" json:"defaultInputExpressionLanguage" env:"DMN_DEFAULT_INPUT_EXPRESSION_LANGUAGE"`
	DefaultInputEntryLanguage        string `yaml:"defaultInputEntryLanguage" json:"defaultInputEntryLanguage" env:"DMN_DEFAULT_INPUT_ENTRY_LANGUAGE"`
	DefaultOutputEntryLanguage       string `yaml:"defaultOutputEntryLanguage" json:"defaultOutputEntryLanguage" env:"DMN_DEFAULT_OUTPUT_ENTRY_LANGUAGE"`
	DefaultLiteralExpressionLanguage string `yaml:"defaultLiteralExpressionLanguage" json:"defaultLiteralExpressionLanguage" env:"DMN_DEFAULT_LITERAL_EXPRESSION_LANGUAGE"`
	// FeelLegacyBehavior switches input expressions, output entries and
	// literal expressions to JUEL unless a language is configured.
	FeelLegacyBehavior bool `yaml:"feelLegacyBehavior" json:"feelLegacyBehavior" env:"DMN_FEEL_LEGACY_BEHAVIOR"`
}

type Script struct {
	MinPoolSize      int `yaml:"minPoolSize" json:"minPoolSize" env:"SCRIPT_MIN_POOL_SIZE" env-default:"2"`
	MaxPoolSize      int `yaml:"maxPoolSize" json:"maxPoolSize" env:"SCRIPT_MAX_POOL_SIZE" env-default:"10"`
	ProgramCacheSize int `yaml:"programCacheSize" json:"programCacheSize" env:"SCRIPT_PROGRAM_CACHE_SIZE" env-default:"1024"`
}

type Tracing struct {
	Enabled  bool   `yaml:"enabled" json:"enabled" env:"OTEL_ENABLED" env-default:"false"`
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4318"`
	Name     string `yaml:"-" json:"-"`
}

func (c Config) defaults() Config {
	c.Tracing.Name = c.Name
	return c
}

func (c Config) validate() error {
	var errJoin error
	if c.Script.MaxPoolSize < 1 {
		errJoin = errors.Join(errJoin, fmt.Errorf("script.maxPoolSize must be positive, got %d", c.Script.MaxPoolSize))
	}
	if c.Script.MinPoolSize < 0 || c.Script.MinPoolSize > c.Script.MaxPoolSize {
		errJoin = errors.Join(errJoin, fmt.Errorf("script.minPoolSize must be between 0 and %d, got %d", c.Script.MaxPoolSize, c.Script.MinPoolSize))
	}
	if c.Script.ProgramCacheSize < 1 {
		errJoin = errors.Join(errJoin, fmt.Errorf("script.programCacheSize must be positive, got %d", c.Script.ProgramCacheSize))
	}
	return errJoin
}

// InitConfig reads the configuration from CONFIG_FILE (./conf.yaml by
// default) or from the environment when the file does not exist.
func InitConfig() (Config, error) {
	fileName := os.Getenv("CONFIG_FILE")
	if fileName == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, err
		}
		fileName = fmt.Sprintf("%s/conf.yaml", wd)
	}
	return ReadConfig(fileName)
}

// ReadConfig reads fileName, falling back to the environment when the file
// does not exist.
func ReadConfig(fileName string) (Config, error) {
	c := Config{}
	var err error
	if _, perr := os.Stat(fileName); errors.Is(perr, os.ErrNotExist) {
		err = cleanenv.ReadEnv(&c)
	} else {
		err = cleanenv.ReadConfig(fileName, &c)
	}
	if err != nil {
		return Config{}, fmt.Errorf("error occurred while reading the configuration: %w", err)
	}
	c = c.defaults()
	return c, c.validate()
}
