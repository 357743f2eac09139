package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	ScrapedSaved   prometheus.Counter
	ScrapedSkipped prometheus.Counter
	APISaved       prometheus.Counter
	Passes         prometheus.Counter
	StoreErrors    prometheus.Counter
	SyncRunning    prometheus.Gauge
	SyncDuration   prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	scrapedSaved := prometheus.NewCounter(prometheus.CounterOpts{Name: "tracker_scraped_saved_total"})
	scrapedSkipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "tracker_scraped_skipped_total"})
	apiSaved := prometheus.NewCounter(prometheus.CounterOpts{Name: "tracker_api_saved_total"})
	passes := prometheus.NewCounter(prometheus.CounterOpts{Name: "tracker_extract_passes_total"})
	storeErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "tracker_store_errors_total"})
	syncRunning := prometheus.NewGauge(prometheus.GaugeOpts{Name: "tracker_fullsync_running"})
	syncDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_fullsync_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(scrapedSaved, scrapedSkipped, apiSaved, passes, storeErrors, syncRunning, syncDuration)
	return &Registry{
		reg:            r,
		ScrapedSaved:   scrapedSaved,
		ScrapedSkipped: scrapedSkipped,
		APISaved:       apiSaved,
		Passes:         passes,
		StoreErrors:    storeErrors,
		SyncRunning:    syncRunning,
		SyncDuration:   syncDuration,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
