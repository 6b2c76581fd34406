package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names shared by the services.
const (
	NumRegistrations  = "NumRegistrations"
	NumLogins         = "NumLogins"
	NumGuestLogins    = "NumGuestLogins"
	NumFailedLogins   = "NumFailedLogins"
	NumMessagesPosted = "NumMessagesPosted"
	NumFriendRequests = "NumFriendRequests"
	NumServerJoins    = "NumServerJoins"
	NumActiveClients  = "NumActiveClients"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

type StatsUpdater struct {
	vars       *expvar.Map
	gauges     *prometheus.GaugeVec
	registry   *prometheus.Registry
	updateChan chan *metricsUpdateReq
	stopOnce   sync.Once
}

type metricsUpdateReq struct {
	name  string
	value int
}

var (
	expvarOnce sync.Once
	expvarMap  *expvar.Map
)

// expvar names are process-global, so the map is created only once.
func statsMap() *expvar.Map {
	expvarOnce.Do(func() {
		expvarMap = expvar.NewMap("portal-stats")
	})
	return expvarMap
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	expvarData := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		expvarData[kv.Key] = value
	})

	json.NewEncoder(w).Encode(expvarData)
}

// NewStatsUpdater creates a new stats updater instance and mounts the
// expvar and Prometheus endpoints on mux.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	registry := prometheus.NewRegistry()
	gauges := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "portal",
		Name:      "stat",
		Help:      "Portal counters and gauges by name.",
	}, []string{"name"})
	registry.MustRegister(gauges)

	su := &StatsUpdater{
		vars:       statsMap(),
		gauges:     gauges,
		registry:   registry,
		updateChan: make(chan *metricsUpdateReq, 512),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	su.initializeMetrics()

	return su
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))
}

func (su *StatsUpdater) updateMetrics() {
	for req := range su.updateChan {
		metric, ok := su.vars.Get(req.name).(*expvar.Int)
		if !ok {
			panic("metric not found: " + req.name)
		}

		metric.Add(int64(req.value))
		su.gauges.WithLabelValues(req.name).Add(float64(req.value))
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.updateChan <- &metricsUpdateReq{name: name, value: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.updateChan <- &metricsUpdateReq{name: name, value: -1}
}

func (su *StatsUpdater) RegisterMetric(name string) {
	if _, ok := su.vars.Get(name).(*expvar.Int); !ok {
		su.vars.Set(name, new(expvar.Int))
	}
	su.gauges.WithLabelValues(name).Set(float64(su.vars.Get(name).(*expvar.Int).Value()))
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

func (su *StatsUpdater) Stop() {
	su.stopOnce.Do(func() {
		close(su.updateChan)
	})
}
