// Package config loads the YAML bot configuration and applies
// environment-variable overrides by dotted path: every leaf value named
// a.b.c can be overridden by the variable BOT_A_B_C.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/astra-lab/astra-trading/pkg/errors"
)

// EnvPrefix is the prefix for environment-variable overrides.
const EnvPrefix = "bot"

// Config is the root of the nested bot configuration.
type Config struct {
	LogLevel         string                 `yaml:"logLevel"`
	Binance          BinanceConfig          `yaml:"binance"`
	Backtest         BacktestConfig         `yaml:"backtest"`
	BinanceSimulator BinanceSimulatorConfig `yaml:"binanceSimulator"`
	SerialTrader     SerialTraderConfig     `yaml:"serialTrader"`
	ParallelTrader   ParallelTraderConfig   `yaml:"parallelTrader"`
	Bollinger        BollingerConfig        `yaml:"bollinger"`
	PeriodMax        PeriodMaxConfig        `yaml:"periodMax"`
	Redis            RedisConfig            `yaml:"redis"`
}

type BinanceAPIConfig struct {
	Key    string `yaml:"key"`
	Secret string `yaml:"secret"`
}

type BinanceConfig struct {
	TaxPerTransaction float64          `yaml:"taxPerTransaction" validate:"gte=0"`
	IntervalInMinutes int              `yaml:"intervalInMinutes" validate:"gt=0"`
	API               BinanceAPIConfig `yaml:"api"`
}

type BacktestConfig struct {
	TaxPerTransaction      float64 `yaml:"taxPerTransaction" validate:"gte=0"`
	IntervalInMinutes      int     `yaml:"intervalInMinutes" validate:"gt=0"`
	TotalNumberOfIntervals int     `yaml:"totalNumberOfIntervals" validate:"gt=0"`
	StartIntervalIndex     int     `yaml:"startIntervalIndex" validate:"gte=0"`
}

type BinanceSimulatorConfig struct {
	IntervalInMinutes int `yaml:"intervalInMinutes" validate:"gt=0"`
	NumberOfIntervals int `yaml:"numberOfIntervals" validate:"gt=0"`
}

type SerialTraderConfig struct {
	AssetToTrade             string  `yaml:"assetToTrade" validate:"required"`
	BaseAsset                string  `yaml:"baseAsset" validate:"required"`
	CycleTimeInSeconds       int     `yaml:"cycleTimeInSeconds" validate:"gt=0"`
	StopLossPercentage       float64 `yaml:"stopLossPercentage" validate:"gt=0"`
	StopGainPercentage       float64 `yaml:"stopGainPercentage" validate:"gt=0"`
	BaseAssetUsagePercentage float64 `yaml:"baseAssetUsagePercentage" validate:"gt=0,lte=100"`
}

type ParallelTraderConfig struct {
	BaseAsset               string  `yaml:"baseAsset" validate:"required"`
	CycleTimeInSeconds      int     `yaml:"cycleTimeInSeconds" validate:"gt=0"`
	StopLossPercentage      float64 `yaml:"stopLossPercentage" validate:"gt=0"`
	StopGainPercentage      float64 `yaml:"stopGainPercentage" validate:"gt=0"`
	BaseAssetAmountPerTrade float64 `yaml:"baseAssetAmountPerTrade" validate:"gt=0"`
}

type BollingerConfig struct {
	MinRelativeBandsDelta float64 `yaml:"minRelativeBandsDelta" validate:"gte=0"`
}

type PeriodMaxConfig struct {
	PeriodUsedInDays     int `yaml:"periodUsedInDays" validate:"gt=0"`
	SecondsToUpdateCache int `yaml:"secondsToUpdateCache" validate:"gt=0"`
	// MaxConcurrentFetches caps in-flight historical fetches per refresh
	// cycle. The venue drops connections above 8.
	MaxConcurrentFetches int `yaml:"maxConcurrentFetches" validate:"gte=0,lte=8"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load reads, overrides, and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	return Parse(data)
}

// Parse unmarshals raw YAML, applies environment overrides, and validates.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	applyEnvOverrides(reflect.ValueOf(cfg).Elem(), EnvPrefix)

	if cfg.PeriodMax.MaxConcurrentFetches == 0 {
		cfg.PeriodMax.MaxConcurrentFetches = 8
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return cfg, nil
}

// applyEnvOverrides walks the config struct and replaces any leaf whose
// dotted path has a matching environment variable. The variable name is the
// dotted path upper-cased with dots replaced by underscores, e.g.
// binance.api.key -> BOT_BINANCE_API_KEY.
func applyEnvOverrides(v reflect.Value, path string) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}

		name := t.Field(i).Tag.Get("yaml")
		if name == "" || name == "-" {
			continue
		}

		fieldPath := path + "." + name

		if field.Kind() == reflect.Struct {
			applyEnvOverrides(field, fieldPath)

			continue
		}

		envName := strings.ToUpper(strings.ReplaceAll(fieldPath, ".", "_"))

		raw, ok := os.LookupEnv(envName)
		if !ok || raw == "" {
			continue
		}

		setFromString(field, raw)
	}
}

func setFromString(field reflect.Value, raw string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64:
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			field.SetInt(parsed)
		}
	case reflect.Float64:
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			field.SetFloat(parsed)
		}
	case reflect.Bool:
		if parsed, err := strconv.ParseBool(raw); err == nil {
			field.SetBool(parsed)
		}
	default:
	}
}
