package shared

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ServiceMetrics tracks request outcomes and named counters for a service
type ServiceMetrics struct {
	serviceName         string
	totalRequests       int64
	successfulRequests  int64
	failedRequests      int64
	totalProcessingTime time.Duration
	lastUpdated         time.Time
	counters            map[string]int64
	mutex               sync.RWMutex
}

// MetricsSnapshot is a point-in-time copy of ServiceMetrics.
type MetricsSnapshot struct {
	ServiceName           string           `json:"service_name"`
	TotalRequests         int64            `json:"total_requests"`
	SuccessfulRequests    int64            `json:"successful_requests"`
	FailedRequests        int64            `json:"failed_requests"`
	SuccessRate           float64          `json:"success_rate"`
	AverageProcessingTime time.Duration    `json:"average_processing_time"`
	LastUpdated           time.Time        `json:"last_updated"`
	Counters              map[string]int64 `json:"counters"`
}

// NewServiceMetrics creates a new metrics tracker for a service
func NewServiceMetrics(serviceName string) *ServiceMetrics {
	return &ServiceMetrics{
		serviceName: serviceName,
		lastUpdated: time.Now(),
		counters:    make(map[string]int64),
	}
}

// RecordRequest records a request with its success status and processing time
func (m *ServiceMetrics) RecordRequest(success bool, processingTime time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.totalRequests++
	m.totalProcessingTime += processingTime
	if success {
		m.successfulRequests++
	} else {
		m.failedRequests++
	}
	m.lastUpdated = time.Now()
}

// AddToCounter adds delta to a named counter
func (m *ServiceMetrics) AddToCounter(key string, delta int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.counters[key] += delta
	m.lastUpdated = time.Now()
}

// IncrementCustomCounter increments a named counter by one
func (m *ServiceMetrics) IncrementCustomCounter(key string) {
	m.AddToCounter(key, 1)
}

// GetSnapshot returns a thread-safe snapshot of current metrics
func (m *ServiceMetrics) GetSnapshot() MetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}

	snapshot := MetricsSnapshot{
		ServiceName:        m.serviceName,
		TotalRequests:      m.totalRequests,
		SuccessfulRequests: m.successfulRequests,
		FailedRequests:     m.failedRequests,
		LastUpdated:        m.lastUpdated,
		Counters:           counters,
	}
	if m.totalRequests > 0 {
		snapshot.SuccessRate = float64(m.successfulRequests) / float64(m.totalRequests) * 100.0
		snapshot.AverageProcessingTime = time.Duration(int64(m.totalProcessingTime) / m.totalRequests)
	}
	return snapshot
}

// LogSummary logs a metrics summary
func (m *ServiceMetrics) LogSummary() {
	snapshot := m.GetSnapshot()

	logrus.WithFields(logrus.Fields{
		"service_name":            snapshot.ServiceName,
		"total_requests":          snapshot.TotalRequests,
		"successful_requests":     snapshot.SuccessfulRequests,
		"failed_requests":         snapshot.FailedRequests,
		"success_rate":            snapshot.SuccessRate,
		"average_processing_time": snapshot.AverageProcessingTime,
		"counters":                snapshot.Counters,
	}).Info("Service metrics summary")
}

// DatabaseMetrics tracks database operation performance and success rates
type DatabaseMetrics struct {
	totalQueries      int64
	successfulQueries int64
	failedQueries     int64
	slowQueries       int64
	totalQueryTime    time.Duration
	slowThreshold     time.Duration
	mutex             sync.RWMutex
}

// DatabaseMetricsSnapshot is a point-in-time copy of DatabaseMetrics.
type DatabaseMetricsSnapshot struct {
	TotalQueries      int64         `json:"total_queries"`
	SuccessfulQueries int64         `json:"successful_queries"`
	FailedQueries     int64         `json:"failed_queries"`
	SlowQueries       int64         `json:"slow_queries"`
	AverageQueryTime  time.Duration `json:"average_query_time"`
}

// NewDatabaseMetrics creates a new database metrics tracker
func NewDatabaseMetrics(slowThreshold time.Duration) *DatabaseMetrics {
	if slowThreshold <= 0 {
		slowThreshold = time.Second
	}
	return &DatabaseMetrics{slowThreshold: slowThreshold}
}

// RecordQuery records a database query with its success status and execution time
func (dm *DatabaseMetrics) RecordQuery(success bool, queryTime time.Duration) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.totalQueries++
	dm.totalQueryTime += queryTime
	if success {
		dm.successfulQueries++
	} else {
		dm.failedQueries++
	}

	if queryTime > dm.slowThreshold {
		dm.slowQueries++
		logrus.WithField("duration", queryTime).Warn("Slow database query detected")
	}
}

func (dm *DatabaseMetrics) GetSnapshot() DatabaseMetricsSnapshot {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	snapshot := DatabaseMetricsSnapshot{
		TotalQueries:      dm.totalQueries,
		SuccessfulQueries: dm.successfulQueries,
		FailedQueries:     dm.failedQueries,
		SlowQueries:       dm.slowQueries,
	}
	if dm.totalQueries > 0 {
		snapshot.AverageQueryTime = time.Duration(int64(dm.totalQueryTime) / dm.totalQueries)
	}
	return snapshot
}
