package prometheus

import (
	"strconv"
	"sync"
	"time"

	"shop-service/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal     *prometheus.CounterVec
	HttpRequestDuration   *prometheus.HistogramVec
	HttpStatusCategoryTot *prometheus.CounterVec

	// Authentication metrics
	AuthAttemptsCounter *prometheus.CounterVec

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Catalog metrics
	CatalogOperationsCounter *prometheus.CounterVec
	ProductInventoryGauge    *prometheus.GaugeVec

	// Cart and coupon metrics
	CartOperationsCounter *prometheus.CounterVec
	CouponApplyCounter    *prometheus.CounterVec

	// Order metrics
	OrderStatusCounter *prometheus.CounterVec
	OrderTotalAmount   prometheus.Histogram

	// Cache metrics
	CacheLookupsCounter *prometheus.CounterVec

	// Event delivery metrics
	EventPublishCounter *prometheus.CounterVec

	initOnce    sync.Once
	initialized bool
)

// InitMetrics registers all metrics with the default registry using the configured prefix.
// Calling it more than once is a no-op.
func InitMetrics(cfg *config.Config) {
	initOnce.Do(func() {
		register(cfg.Metrics.Prefix)
		initialized = true
	})
}

func register(prefix string) {
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HttpStatusCategoryTot = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_status_category_total",
			Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
		},
		[]string{"category"},
	)

	AuthAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Total number of register and login attempts",
		},
		[]string{"action", "result"},
	)

	DbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	CatalogOperationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_catalog_operations_total",
			Help: "Total number of catalog write operations",
		},
		[]string{"entity", "operation"},
	)

	ProductInventoryGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_product_inventory",
			Help: "Current stock level for products",
		},
		[]string{"product_id"},
	)

	CartOperationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_cart_operations_total",
			Help: "Total number of cart operations",
		},
		[]string{"operation"},
	)

	CouponApplyCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_coupon_apply_total",
			Help: "Coupon apply attempts by result",
		},
		[]string{"result"},
	)

	OrderStatusCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_orders_total",
			Help: "Orders entering each status",
		},
		[]string{"status"},
	)

	OrderTotalAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_order_total_amount",
			Help:    "Order totals at placement time",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		},
	)

	CacheLookupsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_cache_lookups_total",
			Help: "Cache lookups by result",
		},
		[]string{"result"},
	)

	EventPublishCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_event_publish_total",
			Help: "Published domain events by sink and result",
		},
		[]string{"sink", "result"},
	)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if !initialized {
			return
		}
		DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

// RecordHTTPRequest records count, latency and status category for a handled request
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if !initialized {
		return
	}
	statusStr := strconv.Itoa(status)
	HttpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	HttpRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())

	switch {
	case status >= 500:
		HttpStatusCategoryTot.WithLabelValues("5xx").Inc()
	case status >= 400:
		HttpStatusCategoryTot.WithLabelValues("4xx").Inc()
	case status >= 200 && status < 300:
		HttpStatusCategoryTot.WithLabelValues("2xx").Inc()
	}
}

// RecordAuthAttempt counts a register or login attempt
func RecordAuthAttempt(action string, success bool) {
	if !initialized {
		return
	}
	AuthAttemptsCounter.WithLabelValues(action, result(success)).Inc()
}

// RecordCatalogOperation counts a write against a catalog entity
func RecordCatalogOperation(entity, operation string) {
	if !initialized {
		return
	}
	CatalogOperationsCounter.WithLabelValues(entity, operation).Inc()
}

// UpdateProductInventory sets the stock gauge for a product
func UpdateProductInventory(productID uint, stock int) {
	if !initialized {
		return
	}
	ProductInventoryGauge.WithLabelValues(strconv.FormatUint(uint64(productID), 10)).Set(float64(stock))
}

// RemoveProductInventory drops the gauge series of a deleted product
func RemoveProductInventory(productID uint) {
	if !initialized {
		return
	}
	ProductInventoryGauge.DeleteLabelValues(strconv.FormatUint(uint64(productID), 10))
}

// RecordCartOperation counts a cart mutation
func RecordCartOperation(operation string) {
	if !initialized {
		return
	}
	CartOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordCouponApply counts a coupon apply attempt by outcome
func RecordCouponApply(outcome string) {
	if !initialized {
		return
	}
	CouponApplyCounter.WithLabelValues(outcome).Inc()
}

// RecordOrderStatus counts an order entering status
func RecordOrderStatus(status string) {
	if !initialized {
		return
	}
	OrderStatusCounter.WithLabelValues(status).Inc()
}

// RecordOrderTotal observes the total of a newly placed order
func RecordOrderTotal(total float64) {
	if !initialized {
		return
	}
	OrderTotalAmount.Observe(total)
}

// RecordCacheLookup counts a cache hit or miss
func RecordCacheLookup(hit bool) {
	if !initialized {
		return
	}
	if hit {
		CacheLookupsCounter.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsCounter.WithLabelValues("miss").Inc()
}

// RecordEventPublish counts an event delivery attempt to a sink
func RecordEventPublish(sink string, success bool) {
	if !initialized {
		return
	}
	EventPublishCounter.WithLabelValues(sink, result(success)).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
