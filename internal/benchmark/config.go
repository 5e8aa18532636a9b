package benchmark

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/huggingduck/huggingduck/internal/store"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	Dataset       string
	Passengers    int
	Discrepancies int
	Seed          int64
	Formats       []store.Format
}

func DefaultConfig() Config {
	return Config{
		Dataset:       "mjboothaus/titanic-databooth",
		Passengers:    DefaultPassengers,
		Discrepancies: DefaultDiscrepancies,
		Seed:          1912,
		Formats:       []store.Format{store.FormatCSV},
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "HUGGINGDUCK_SEED_DATASET", &cfg.Dataset); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "HUGGINGDUCK_SEED_PASSENGERS", &cfg.Passengers); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "HUGGINGDUCK_SEED_DISCREPANCIES", &cfg.Discrepancies); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "HUGGINGDUCK_SEED_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyFormats(lookup, "HUGGINGDUCK_SEED_FORMATS", &cfg.Formats); err != nil {
		return Config{}, err
	}

	cfg.Dataset = strings.Trim(strings.TrimSpace(cfg.Dataset), "/")
	if cfg.Dataset == "" {
		return Config{}, fmt.Errorf("HUGGINGDUCK_SEED_DATASET is required")
	}
	if cfg.Passengers <= 0 {
		return Config{}, fmt.Errorf("HUGGINGDUCK_SEED_PASSENGERS must be > 0")
	}
	if cfg.Discrepancies < 0 || cfg.Discrepancies > cfg.Passengers {
		return Config{}, fmt.Errorf("HUGGINGDUCK_SEED_DISCREPANCIES must be between 0 and HUGGINGDUCK_SEED_PASSENGERS")
	}
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyFormats(lookup LookupFunc, key string, dst *[]store.Format) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	formats := make([]store.Format, 0, 2)
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		switch store.Format(part) {
		case "":
			continue
		case store.FormatCSV, store.FormatParquet:
			formats = append(formats, store.Format(part))
		default:
			return fmt.Errorf("invalid %s: unsupported format %q", key, part)
		}
	}
	if len(formats) == 0 {
		return fmt.Errorf("%s must name at least one format", key)
	}
	*dst = formats
	return nil
}
