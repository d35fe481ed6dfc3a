package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcrm_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartcrm_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	authzDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcrm_authz_decisions_total",
		Help: "Authorization decisions by role, action, resource and outcome",
	}, []string{"role", "action", "resource", "decision"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcrm_login_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	storageRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcrm_storage_retries_total",
		Help: "Storage operations retried after a transient failure",
	}, []string{"operation", "result"})

	emailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcrm_emails_total",
		Help: "Outbound emails by result",
	}, []string{"result"})

	leadScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "smartcrm_lead_score",
		Help:    "Distribution of computed lead scores",
		Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	complaintClassifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcrm_complaint_classifications_total",
		Help: "Complaint classifications by label",
	}, []string{"classification"})

	leadsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smartcrm_leads",
		Help: "Leads currently stored, by status",
	}, []string{"status"})

	complaintsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smartcrm_complaints",
		Help: "Complaints currently stored, by status",
	}, []string{"status"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartcrm_rate_limited_requests_total",
		Help: "Requests rejected by the per-user rate limiter",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveAuthz counts one authorization decision ("allow" or "deny").
func ObserveAuthz(role, action, resource, decision string) {
	authzDecisions.WithLabelValues(role, action, resource, decision).Inc()
}

// ObserveLogin counts a login attempt by result.
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// ObserveStorageRetry records a retried storage operation and whether the retry helped.
func ObserveStorageRetry(operation, result string) {
	storageRetries.WithLabelValues(operation, result).Inc()
}

func ObserveEmail(result string) {
	emailsSent.WithLabelValues(result).Inc()
}

func ObserveLeadScore(score float64) {
	leadScores.Observe(score)
}

func ObserveClassification(classification string) {
	complaintClassifications.WithLabelValues(classification).Inc()
}

func IncrementRateLimited() {
	rateLimited.Inc()
}

// SetLeadCount publishes the number of leads in a status
func SetLeadCount(status string, n int) {
	leadsByStatus.WithLabelValues(status).Set(float64(n))
}

// SetComplaintCount publishes the number of complaints in a status
func SetComplaintCount(status string, n int) {
	complaintsByStatus.WithLabelValues(status).Set(float64(n))
}
