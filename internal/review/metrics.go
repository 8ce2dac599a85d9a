package review

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/conorfennell/recall/internal/fsrs"
)

var (
	metricReviews = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recall",
		Name:      "reviews_total",
		Help:      "Number of committed card reviews by rating and state transition.",
	}, []string{"rating", "from", "to"})
	metricConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recall",
		Name:      "review_conflicts_total",
		Help:      "Number of review attempts that lost a race on the same card.",
	})
	metricReviewDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "recall",
		Name:      "review_duration_seconds",
		Help:      "Time taken to apply a review, retries included.",
		Buckets:   prometheus.DefBuckets,
	})
)

func recordReview(r fsrs.Rating, from, to fsrs.State, took time.Duration) {
	metricReviews.WithLabelValues(r.String(), from.String(), to.String()).Inc()
	metricReviewDuration.Observe(took.Seconds())
}

func recordConflict() {
	metricConflicts.Inc()
}
