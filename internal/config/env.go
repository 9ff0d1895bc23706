package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nao1215/bankrotscan/internal/model"
)

// EnvPrefix prefixes every environment variable read by bankrotscan.
const EnvPrefix = "BANKROTSCAN_"

// DefaultEnvFile is read when present and no env file is given.
const DefaultEnvFile = ".env"

// Env holds BANKROTSCAN_* variables by their full name.
type Env map[string]string

// LoadEnv collects BANKROTSCAN_* variables from the dotenv file and the
// process environment; the process environment wins. An empty envFile
// reads .env when it exists. The process environment is not modified.
func LoadEnv(envFile string) (Env, error) {
	env := Env{}

	path := envFile
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); err == nil {
			path = DefaultEnvFile
		}
	}
	if path != "" {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && envFile == "" {
				values = nil
			} else {
				return nil, fmt.Errorf("read env file %s: %w", path, err)
			}
		}
		for k, v := range values {
			if strings.HasPrefix(k, EnvPrefix) {
				env[k] = v
			}
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}
	return env, nil
}

// ApplyEnv copies the recognized variables of env into c.
func ApplyEnv(c *Config, env Env) error {
	var errs []error
	get := func(name string) (string, bool) {
		v, ok := env[EnvPrefix+name]
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	setInt := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w %s%s=%q: %w", ErrInvalidEnv, EnvPrefix, name, v, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w %s%s=%q: %w", ErrInvalidEnv, EnvPrefix, name, v, err))
				return
			}
			*dst = d
		}
	}
	setString := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	setInt("TARGET", &c.Target)
	setInt("PAGE_SIZE", &c.PageSize)
	setDuration("PACE", &c.Pace)
	setString("OUTPUT", &c.Output)
	setDuration("TIMEOUT", &c.Timeout)
	setInt("ATTEMPTS", &c.MaxAttempts)
	setDuration("BACKOFF", &c.BaseBackoff)
	setDuration("JITTER", &c.MaxJitter)
	setInt("KIND_CONCURRENCY", &c.KindConcurrency)
	setString("PROXY", &c.ProxyAddress)
	setString("USER_AGENT", &c.UserAgent)
	setString("COOKIE", &c.Cookie)
	setString("DB_DIR", &c.DBDir)
	setString("LOG_FORMAT", &c.LogFormat)

	if v, ok := get("KINDS"); ok {
		kinds, err := model.ParseKinds(strings.Split(v, ","))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w %sKINDS=%q: %w", ErrInvalidEnv, EnvPrefix, v, err))
		} else {
			c.Kinds = kinds
		}
	}
	return errors.Join(errs...)
}
