package cloner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/clrmeta/pkg/util"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

type metrics struct {
	membersCloned   *prometheus.CounterVec
	operations      *prometheus.CounterVec
	duration        prometheus.Histogram
	identityLookups *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		membersCloned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clrmeta_cloner_members_cloned_total",
			Help: "Number of members committed to a target module by the cloner.",
		}, []string{"kind"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clrmeta_cloner_operations_total",
			Help: "Number of clone operations by outcome.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:                            "clrmeta_cloner_duration_seconds",
			Help:                            "Duration of clone operations.",
			Buckets:                         prometheus.ExponentialBucketsRange(0.0001, 10, 30),
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  50,
			NativeHistogramMinResetDuration: time.Hour,
		}),
		identityLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clrmeta_cloner_identity_lookups_total",
			Help: "Number of identity map lookups performed while importing members.",
		}, []string{"result"}),
	}
	if reg != nil {
		m.membersCloned = util.RegisterOrGet(reg, m.membersCloned)
		m.operations = util.RegisterOrGet(reg, m.operations)
		m.duration = util.RegisterOrGet(reg, m.duration)
		m.identityLookups = util.RegisterOrGet(reg, m.identityLookups)
	}
	return m
}
