// Package metrics Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agentchat"

var (
	// ToolCallsTotal 工具调用次数，status: ok|error
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total tool invocations",
		},
		[]string{"tool", "status"},
	)

	// ModelTokensTotal token 消耗，direction: input|output
	ModelTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Total model tokens consumed",
		},
		[]string{"model", "direction"},
	)

	// IngestFilesTotal 入库文件数，status: success|failed
	IngestFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_files_total",
			Help:      "Total ingested knowledge files",
		},
		[]string{"status"},
	)

	// RetrievalSeconds 检索各阶段耗时，stage: search|rerank|total
	RetrievalSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_seconds",
			Help:      "Retrieval stage duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)
)

// ObserveSince 记录从 start 开始的阶段耗时
func ObserveSince(stage string, start time.Time) {
	RetrievalSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// ToolCall 记录一次工具调用结果
func ToolCall(tool string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ToolCallsTotal.WithLabelValues(tool, status).Inc()
}

// Handler /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
