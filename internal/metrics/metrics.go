package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Analysis metrics
var (
	// AnalysesTotal tracks completed analyses by resulting alert level
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stressvision_analyses_total",
			Help: "Total number of scene analyses by outcome",
		},
		[]string{"alert_level", "status"},
	)

	// StageDuration tracks the duration of each pipeline stage
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stressvision_stage_duration_seconds",
			Help:    "Duration of analysis pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// PixelsClassified counts pixels passed through the classifier
	PixelsClassified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stressvision_pixels_classified_total",
			Help: "Total number of pixels scored by the stress classifier",
		},
	)

	// StressPercentage records the stressed share of each analysed scene
	StressPercentage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stressvision_stress_percentage",
			Help:    "Percentage of stressed pixels per analysed scene",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	// QueueDepth tracks analyses waiting for a worker
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stressvision_queue_depth",
			Help: "Number of analyses waiting for a pipeline worker",
		},
	)
)

// Model metrics
var (
	// ModelLoadsTotal counts artifact load attempts
	ModelLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stressvision_model_loads_total",
			Help: "Total number of model artifact loads",
		},
		[]string{"store", "status"},
	)

	// ModelLoadDuration tracks how long the artifact took to load and decode
	ModelLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stressvision_model_load_duration_seconds",
			Help:    "Duration of model artifact load and decode in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ModelLoaded is 1 once a model is held in memory
	ModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stressvision_model_loaded",
			Help: "Whether a trained model is loaded (1) or not (0)",
		},
	)

	// TrainingRunsTotal counts offline training runs
	TrainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stressvision_training_runs_total",
			Help: "Total number of training runs",
		},
		[]string{"status"},
	)
)

// Database metrics
var (
	// DBQueriesTotal tracks the total number of database queries
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"query_type", "table", "status"},
	)

	// DBQueryDuration tracks the duration of database queries
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type", "table"},
	)
)

var (
	// AppInfo provides static information about the application
	AppInfo = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stressvision_app_info",
			Help: "Application information (always 1)",
		},
	)

	// AppStartTime records when the application started
	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stressvision_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

func init() {
	AppInfo.Set(1)
	AppStartTime.SetToCurrentTime()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveStage records how long a pipeline stage took
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordAnalysis records the outcome of one analysis
func RecordAnalysis(alertLevel string, stressPct float64, err error) {
	if err != nil {
		AnalysesTotal.WithLabelValues("none", "error").Inc()
		return
	}
	AnalysesTotal.WithLabelValues(alertLevel, "success").Inc()
	StressPercentage.Observe(stressPct)
}

// RecordModelLoad records a model artifact load
func RecordModelLoad(store string, duration time.Duration, err error) {
	ModelLoadsTotal.WithLabelValues(store, status(err)).Inc()
	ModelLoadDuration.Observe(duration.Seconds())
	if err == nil {
		ModelLoaded.Set(1)
	}
}

// RecordTrainingRun records the outcome of a training run
func RecordTrainingRun(err error) {
	TrainingRunsTotal.WithLabelValues(status(err)).Inc()
}

// RecordDBQuery records a database query execution
func RecordDBQuery(queryType, table string, duration time.Duration, err error) {
	DBQueriesTotal.WithLabelValues(queryType, table, status(err)).Inc()
	DBQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
}
