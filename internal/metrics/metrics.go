package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "payboard"

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	votes             *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	reportsCreated    prometheus.Counter
	reviews           *prometheus.CounterVec
	submissions       prometheus.Counter
	httpRequests      *prometheus.HistogramVec
}

// New creates the collectors and registers them with registry. A nil
// registry leaves them unregistered.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		votes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "vote ledger mutations by operation and vote type",
		}, []string{"op", "vote_type"}),
		statusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_status_transitions_total",
			Help:      "submission status changes by resulting status",
		}, []string{"status"}),
		reportsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_created_total",
			Help:      "abuse reports filed",
		}),
		reviews: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_reviews_total",
			Help:      "report reviews by resulting status and moderation action",
		}, []string{"status", "action"}),
		submissions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_created_total",
			Help:      "salary submissions received",
		}),
		httpRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status code",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
}

func (m *Metrics) VoteCast(voteType string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues("cast", strings.ToLower(voteType)).Inc()
}

func (m *Metrics) VoteRemoved(voteType string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues("remove", strings.ToLower(voteType)).Inc()
}

func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(strings.ToLower(status)).Inc()
}

func (m *Metrics) ReportCreated() {
	if m == nil {
		return
	}
	m.reportsCreated.Inc()
}

func (m *Metrics) ReportReviewed(status, action string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(strings.ToLower(status), strings.ToLower(action)).Inc()
}

func (m *Metrics) SubmissionCreated() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Observe(elapsed.Seconds())
}
