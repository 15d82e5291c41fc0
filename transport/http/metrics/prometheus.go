package metrics

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus 对一个注册表的暴露包装
type Prometheus struct {
	registry *prometheus.Registry
}

// New 包装 reg，为空时新建注册表
func New(reg *prometheus.Registry) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Prometheus{registry: reg}
}

func (p *Prometheus) WithGoCollectorRuntimeMetrics() {
	p.register(collectors.NewGoCollector(
		collectors.WithGoCollectorRuntimeMetrics(collectors.GoRuntimeMetricsRule{Matcher: regexp.MustCompile("/.*")}),
	))
}

func (p *Prometheus) WithBuildInfoCollector() {
	p.register(collectors.NewBuildInfoCollector())
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler 以 OpenMetrics 格式输出注册表
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// register 同一注册表被多个服务器共享时忽略重复注册
func (p *Prometheus) register(c prometheus.Collector) {
	if err := p.registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			panic(err)
		}
	}
}
