package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type DebugModule struct {
	Registry *prometheus.Registry
}

func NewDebugModule(reg *prometheus.Registry) *DebugModule { return &DebugModule{Registry: reg} }

// Register exposes the Prometheus registry at /debug/metrics.
func (m *DebugModule) Register(rg *gin.RouterGroup) {
	h := promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
	rg.GET("/debug/metrics", gin.WrapH(h))
}
