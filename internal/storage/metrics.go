package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for object store operations.
type Observer interface {
	RecordUpload(duration time.Duration, sizeBytes uint64, err error)
	RecordExists(duration time.Duration, err error)
	RecordDelete(duration time.Duration, err error)
}

// PrometheusObserver exports object store metrics to Prometheus.
type PrometheusObserver struct {
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	uploadBytes       prometheus.Counter
}

// NewPrometheusObserver registers upload/exists/delete metrics.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "media_sync_storage"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	observer := &PrometheusObserver{
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency for object store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Count of object store failures.",
		}, []string{"operation"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Cumulative payload size successfully uploaded to object storage.",
		}),
	}
	if err := register(reg, observer.operationDuration, func(c prometheus.Collector) bool {
		existing, ok := c.(*prometheus.HistogramVec)
		if ok {
			observer.operationDuration = existing
		}
		return ok
	}); err != nil {
		return nil, err
	}
	if err := register(reg, observer.operationErrors, func(c prometheus.Collector) bool {
		existing, ok := c.(*prometheus.CounterVec)
		if ok {
			observer.operationErrors = existing
		}
		return ok
	}); err != nil {
		return nil, err
	}
	if err := register(reg, observer.uploadBytes, func(c prometheus.Collector) bool {
		existing, ok := c.(prometheus.Counter)
		if ok {
			observer.uploadBytes = existing
		}
		return ok
	}); err != nil {
		return nil, err
	}
	return observer, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector, adopt func(prometheus.Collector) bool) error {
	err := reg.Register(c)
	if err == nil {
		return nil
	}
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok && adopt(are.ExistingCollector) {
		return nil
	}
	return fmt.Errorf("register storage metric: %w", err)
}

// RecordUpload tracks upload duration, size, and failures.
func (o *PrometheusObserver) RecordUpload(duration time.Duration, sizeBytes uint64, err error) {
	if o == nil {
		return
	}
	o.record("upload", duration, err)
	if err == nil {
		o.uploadBytes.Add(float64(sizeBytes))
	}
}

func (o *PrometheusObserver) RecordExists(duration time.Duration, err error) {
	o.record("exists", duration, err)
}

func (o *PrometheusObserver) RecordDelete(duration time.Duration, err error) {
	o.record("delete", duration, err)
}

func (o *PrometheusObserver) record(op string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		o.operationErrors.WithLabelValues(op).Inc()
	}
}

// InstrumentedStorage reports every call on the wrapped store to an Observer.
type InstrumentedStorage struct {
	ObjectStorage
	observer Observer
}

func Instrument(s ObjectStorage, o Observer) ObjectStorage {
	if o == nil {
		return s
	}
	return &InstrumentedStorage{ObjectStorage: s, observer: o}
}

// InstrumentOpener wraps every store produced by open.
func InstrumentOpener(open Opener, o Observer) Opener {
	if o == nil {
		return open
	}
	return func(ctx context.Context) (ObjectStorage, error) {
		s, err := open(ctx)
		if err != nil {
			return nil, err
		}
		return Instrument(s, o), nil
	}
}

func (s *InstrumentedStorage) PutObject(ctx context.Context, key string, data []byte, opts PutOptions) error {
	start := time.Now()
	err := s.ObjectStorage.PutObject(ctx, key, data, opts)
	s.observer.RecordUpload(time.Since(start), uint64(len(data)), err)
	return err
}

func (s *InstrumentedStorage) ObjectExists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := s.ObjectStorage.ObjectExists(ctx, key)
	s.observer.RecordExists(time.Since(start), err)
	return ok, err
}

func (s *InstrumentedStorage) DeleteObject(ctx context.Context, key string) error {
	start := time.Now()
	err := s.ObjectStorage.DeleteObject(ctx, key)
	s.observer.RecordDelete(time.Since(start), err)
	return err
}
