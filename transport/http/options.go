package http

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kochabx/dbguard/core/tag"
)

type Options struct {
	Metrics MetricsOption
	Health  HealthOption
}

type MetricsOption struct {
	Enabled                   bool   `json:"enabled"`
	Path                      string `json:"path" default:"/metrics"`
	EnabledGoCollector        bool   `json:"enabled_go_collector"`
	EnabledBuildInfoCollector bool   `json:"enabled_build_info_collector"`

	// Registry 暴露的注册表，通常为 Manager.Registry()
	Registry *prometheus.Registry `json:"-"`
}

func (m *MetricsOption) init() error {
	return tag.ApplyDefaults(m)
}

type HealthOption struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path" default:"/health"`

	// DefaultLimit 与 MaxLimit 约束 /queries 的 limit 参数
	DefaultLimit int `json:"default_limit" default:"50"`
	MaxLimit     int `json:"max_limit" default:"1000"`

	Reporter HealthReporter `json:"-"`
}

func (h *HealthOption) init() error {
	if h.Reporter == nil {
		return ErrNoReporter
	}
	return tag.ApplyDefaults(h)
}
