package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every certify environment variable.
const EnvPrefix = "CERTIFY_"

// legacyEnv maps the unprefixed variable names used by existing
// deployments onto config keys. Prefixed variables win over these.
var legacyEnv = map[string]string{
	"SUPABASE_URL":  "store_url",
	"SUPABASE_KEY":  "store_key",
	"SMTP_HOST":     "smtp_host",
	"SMTP_PORT":     "smtp_port",
	"SMTP_USER":     "smtp_user",
	"SMTP_PASSWORD": "smtp_password",
}

// Load builds a Config by layering sources. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CERTIFY_CONFIG is set
//  3. legacy unprefixed env vars (SUPABASE_URL, SMTP_HOST, ...)
//  4. env (prefix CERTIFY_)
//
// A .env file in the working directory (or CERTIFY_ENV_FILE) is read into
// the process environment first; variables already set are not overwritten.
func Load(ctx context.Context) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	base := New()
	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, wrapLoad("config file", err)
		}
	}

	legacy := env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	})
	if err := k.Load(legacy, nil); err != nil {
		return nil, wrapLoad("legacy env", err)
	}

	// CERTIFY_SMTP_HOST -> smtp_host; underscores are preserved to match koanf tags.
	prefixed := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, wrapLoad("env", err)
	}

	// Env values for list and map keys arrive as one comma-separated
	// string; they are parsed here and kept out of the unmarshal.
	rawLabels, labelsFromEnv := k.Get("metrics_labels").(string)
	rawBuckets, bucketsFromEnv := k.Get("metrics_buckets_ms").(string)
	if labelsFromEnv {
		k.Delete("metrics_labels")
	}
	if bucketsFromEnv {
		k.Delete("metrics_buckets_ms")
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, wrapLoad("unmarshal", err)
	}
	if raw, ok := k.Get("cors_origins").(string); ok {
		cfg.CORSOrigins = splitCSV(raw)
	}
	if labelsFromEnv {
		labels, err := parseLabels(rawLabels)
		if err != nil {
			return nil, err
		}
		cfg.MetricsLabels = labels
	}
	if bucketsFromEnv {
		buckets, err := parseBuckets(rawBuckets)
		if err != nil {
			return nil, err
		}
		cfg.MetricsBucketsMS = buckets
	}

	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUser
	}

	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv(EnvPrefix + "ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return wrapLoad("dotenv", err)
	}
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseLabels reads "k=v,k2=v2".
func parseLabels(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range splitCSV(s) {
		key, val, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, wrapInvalid("metrics_labels entry " + strconv.Quote(pair) + " is not key=value")
		}
		out[key] = strings.TrimSpace(val)
	}
	return out, nil
}

func parseBuckets(s string) ([]float64, error) {
	parts := splitCSV(s)
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, wrapInvalid("metrics_buckets_ms entry " + strconv.Quote(p) + " is not a number")
		}
		out = append(out, f)
	}
	return out, nil
}
