package benchmark

import (
	"reflect"
	"strings"
	"testing"

	"github.com/huggingduck/huggingduck/internal/store"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.Dataset != "mjboothaus/titanic-databooth" {
		t.Fatalf("Dataset = %q", cfg.Dataset)
	}
	if cfg.Passengers != 891 || cfg.Discrepancies != 143 {
		t.Fatalf("Passengers/Discrepancies = %d/%d", cfg.Passengers, cfg.Discrepancies)
	}
	if !reflect.DeepEqual(cfg.Formats, []store.Format{store.FormatCSV}) {
		t.Fatalf("Formats = %v", cfg.Formats)
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"HUGGINGDUCK_SEED_DATASET":       "/acme/passengers/",
		"HUGGINGDUCK_SEED_PASSENGERS":    "100",
		"HUGGINGDUCK_SEED_DISCREPANCIES": "7",
		"HUGGINGDUCK_SEED_SEED":          "12345",
		"HUGGINGDUCK_SEED_FORMATS":       "parquet, CSV",
	}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.Dataset != "acme/passengers" {
		t.Fatalf("Dataset = %q", cfg.Dataset)
	}
	if cfg.Passengers != 100 || cfg.Discrepancies != 7 {
		t.Fatalf("Passengers/Discrepancies = %d/%d", cfg.Passengers, cfg.Discrepancies)
	}
	if cfg.Seed != 12345 {
		t.Fatalf("Seed = %d", cfg.Seed)
	}
	if !reflect.DeepEqual(cfg.Formats, []store.Format{store.FormatParquet, store.FormatCSV}) {
		t.Fatalf("Formats = %v", cfg.Formats)
	}
}

func TestLoadConfigFromEnvRejectsInvalidValues(t *testing.T) {
	tests := map[string]map[string]string{
		"HUGGINGDUCK_SEED_PASSENGERS":    {"HUGGINGDUCK_SEED_PASSENGERS": "0"},
		"HUGGINGDUCK_SEED_DISCREPANCIES": {"HUGGINGDUCK_SEED_PASSENGERS": "10", "HUGGINGDUCK_SEED_DISCREPANCIES": "11"},
		"HUGGINGDUCK_SEED_FORMATS":       {"HUGGINGDUCK_SEED_FORMATS": "xlsx"},
		"HUGGINGDUCK_SEED_DATASET":       {"HUGGINGDUCK_SEED_DATASET": " / "},
	}
	for key, env := range tests {
		_, err := LoadConfigFromEnv(mapLookup(env))
		if err == nil || !strings.Contains(err.Error(), key) {
			t.Fatalf("%s: error = %v", key, err)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}
