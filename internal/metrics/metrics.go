// Package metrics はPrometheusメトリクスを提供します。
//
// 全てのメトリクスはNewに渡されたRegistererに登録されるため、
// テストでは独立したレジストリを使用できます。
// nilの*Metricsに対する呼び出しは何もしません。
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kanshi"

// Metrics はサービス全体のメトリクスを保持する構造体
type Metrics struct {
	UploadsTotal       *prometheus.CounterVec
	UploadBytes        prometheus.Counter
	BroadcastsTotal    prometheus.Counter
	SubscribersDropped prometheus.Counter
	Subscribers        prometheus.Gauge
	SettingsUpdates    *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

// New はメトリクスを作成してregに登録する
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Image uploads by result.",
		}, []string{"result"}),
		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes of image data written to the asset directory.",
		}),
		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Notification events broadcast to subscribers.",
		}),
		SubscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers disconnected because their send buffer was full.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Currently connected notification subscribers.",
		}),
		SettingsUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_updates_total",
			Help:      "Device settings updates by result.",
		}, []string{"result"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.UploadsTotal,
		m.UploadBytes,
		m.BroadcastsTotal,
		m.SubscribersDropped,
		m.Subscribers,
		m.SettingsUpdates,
		m.RequestDuration,
	)

	return m
}

// ObserveUpload はアップロード結果を記録する
func (m *Metrics) ObserveUpload(result string, size int64) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(result).Inc()
	if size > 0 {
		m.UploadBytes.Add(float64(size))
	}
}

// ObserveBroadcast はブロードキャストを記録する
func (m *Metrics) ObserveBroadcast() {
	if m == nil {
		return
	}
	m.BroadcastsTotal.Inc()
}

// SubscriberConnected は購読者の接続を記録する
func (m *Metrics) SubscriberConnected() {
	if m == nil {
		return
	}
	m.Subscribers.Inc()
}

// SubscriberDisconnected は購読者の切断を記録する
// dropped はバッファ溢れによる強制切断かどうか
func (m *Metrics) SubscriberDisconnected(dropped bool) {
	if m == nil {
		return
	}
	m.Subscribers.Dec()
	if dropped {
		m.SubscribersDropped.Inc()
	}
}

// ObserveSettingsUpdate は設定更新の結果を記録する
func (m *Metrics) ObserveSettingsUpdate(result string) {
	if m == nil {
		return
	}
	m.SettingsUpdates.WithLabelValues(result).Inc()
}

// ObserveRequest はHTTPリクエストの処理時間を記録する
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
