package manager

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nowcast",
			Subsystem: "manager",
			Name:      "messages_total",
			Help:      "Worker messages handled.",
		},
		[]string{"source", "msg_type", "error"},
	)
	handleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nowcast",
			Subsystem: "manager",
			Name:      "handle_duration_seconds",
			Help:      "Message handle duration in seconds, reply and follow-up included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source", "msg_type"},
	)
	launchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nowcast",
			Subsystem: "manager",
			Name:      "worker_launches_total",
			Help:      "Worker processes launched as next pipeline steps.",
		},
		[]string{"worker", "success"},
	)
)

func registerMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(messagesTotal, handleDuration, launchesTotal)
	})
}

func recordMessage(source, msgType string, isError bool, duration time.Duration) {
	registerMetrics()
	messagesTotal.WithLabelValues(source, msgType, strconv.FormatBool(isError)).Inc()
	handleDuration.WithLabelValues(source, msgType).Observe(duration.Seconds())
}

func recordLaunch(worker string, success bool) {
	registerMetrics()
	launchesTotal.WithLabelValues(worker, strconv.FormatBool(success)).Inc()
}
