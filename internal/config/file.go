package config

import (
	"time"

	"github.com/nao1215/bankrotscan/internal/model"
	"github.com/nao1215/bankrotscan/internal/registry"
)

// File represents the structure of the .bankrotscan configuration file.
// Zero values mean "not set" and leave the current value alone; Pace is a
// pointer because zero is a meaningful pace.
type File struct {
	Target          int                `yaml:"target,omitempty"`
	PageSize        int                `yaml:"pageSize,omitempty"`
	Pace            *time.Duration     `yaml:"pace,omitempty"`
	Output          string             `yaml:"output,omitempty"`
	Kinds           []string           `yaml:"kinds,omitempty"`
	Timeout         time.Duration      `yaml:"timeout,omitempty"`
	Attempts        int                `yaml:"attempts,omitempty"`
	Backoff         time.Duration      `yaml:"backoff,omitempty"`
	Jitter          time.Duration      `yaml:"jitter,omitempty"`
	KindConcurrency int                `yaml:"kindConcurrency,omitempty"`
	MaxBodySize     int64              `yaml:"maxBodySize,omitempty"`
	Proxy           string             `yaml:"proxy,omitempty"`
	UserAgent       string             `yaml:"userAgent,omitempty"`
	Cookie          string             `yaml:"cookie,omitempty"`
	Headers         map[string]string  `yaml:"headers,omitempty"`
	Endpoints       registry.Endpoints `yaml:"endpoints,omitempty"`
	DBDir           string             `yaml:"dbDir,omitempty"`
	LogFormat       string             `yaml:"logFormat,omitempty"`
}

// Apply copies every set field of f into c. Headers are merged, with f
// winning on conflicts.
func (f *File) Apply(c *Config) error {
	if f.Target != 0 {
		c.Target = f.Target
	}
	if f.PageSize != 0 {
		c.PageSize = f.PageSize
	}
	if f.Pace != nil {
		c.Pace = *f.Pace
	}
	if f.Output != "" {
		c.Output = f.Output
	}
	if len(f.Kinds) > 0 {
		kinds, err := model.ParseKinds(f.Kinds)
		if err != nil {
			return err
		}
		c.Kinds = kinds
	}
	if f.Timeout != 0 {
		c.Timeout = f.Timeout
	}
	if f.Attempts != 0 {
		c.MaxAttempts = f.Attempts
	}
	if f.Backoff != 0 {
		c.BaseBackoff = f.Backoff
	}
	if f.Jitter != 0 {
		c.MaxJitter = f.Jitter
	}
	if f.KindConcurrency != 0 {
		c.KindConcurrency = f.KindConcurrency
	}
	if f.MaxBodySize != 0 {
		c.MaxBodySize = f.MaxBodySize
	}
	if f.Proxy != "" {
		c.ProxyAddress = f.Proxy
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.Cookie != "" {
		c.Cookie = f.Cookie
	}
	if len(f.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			c.Headers[k] = v
		}
	}
	c.Endpoints = mergeEndpoints(c.Endpoints, f.Endpoints)
	if f.DBDir != "" {
		c.DBDir = f.DBDir
	}
	if f.LogFormat != "" {
		c.LogFormat = f.LogFormat
	}
	return nil
}

func mergeEndpoints(base, over registry.Endpoints) registry.Endpoints {
	if over.ListBase != "" {
		base.ListBase = over.ListBase
	}
	if over.ListReferer != "" {
		base.ListReferer = over.ListReferer
	}
	if over.DetailBase != "" {
		base.DetailBase = over.DetailBase
	}
	if over.SiteBase != "" {
		base.SiteBase = over.SiteBase
	}
	return base
}
