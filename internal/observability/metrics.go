package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// AuthEvents counts register/login/logout/authenticate attempts by outcome.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circles_auth_events_total",
		Help: "Total number of authentication events by event and outcome",
	}, []string{"event", "outcome"})

	// AuthzDenials counts role-rule denials by guarded action.
	AuthzDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circles_authz_denials_total",
		Help: "Total number of authorization denials by action",
	}, []string{"action"})

	// SessionsSwept counts expired sessions removed by the sweeper.
	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "circles_sessions_swept_total",
		Help: "Total number of expired sessions deleted",
	})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circles_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "circles_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// RecordAuthEvent increments the auth counter; outcome is "success" or an error code.
func RecordAuthEvent(event, outcome string) {
	AuthEvents.WithLabelValues(event, outcome).Inc()
}

const queryStartKey = "circles:query_start"

// RegisterQueryMetrics installs GORM callbacks that observe every statement's
// latency into DatabaseQueryLatency.
func RegisterQueryMetrics(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			table := tx.Statement.Table
			if table == "" {
				table = "unknown"
			}
			DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
		}
	}

	cb := db.Callback()
	steps := []struct {
		op     string
		before func(string) error
		after  func(string) error
	}{
		{"create", func(n string) error { return cb.Create().Before("gorm:create").Register(n, before) }, func(n string) error { return cb.Create().After("gorm:create").Register(n, after("create")) }},
		{"query", func(n string) error { return cb.Query().Before("gorm:query").Register(n, before) }, func(n string) error { return cb.Query().After("gorm:query").Register(n, after("query")) }},
		{"update", func(n string) error { return cb.Update().Before("gorm:update").Register(n, before) }, func(n string) error { return cb.Update().After("gorm:update").Register(n, after("update")) }},
		{"delete", func(n string) error { return cb.Delete().Before("gorm:delete").Register(n, before) }, func(n string) error { return cb.Delete().After("gorm:delete").Register(n, after("delete")) }},
		{"raw", func(n string) error { return cb.Raw().Before("gorm:raw").Register(n, before) }, func(n string) error { return cb.Raw().After("gorm:raw").Register(n, after("raw")) }},
	}
	for _, s := range steps {
		if err := s.before("circles:metrics_before_" + s.op); err != nil {
			return err
		}
		if err := s.after("circles:metrics_after_" + s.op); err != nil {
			return err
		}
	}
	return nil
}
