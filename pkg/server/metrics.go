package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/crystal-mush/chroniclemush/pkg/events"
	"github.com/crystal-mush/chroniclemush/pkg/mystery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the game server. Each
// instance has its own registry so tests can build several.
type Metrics struct {
	game      *Game
	startTime time.Time
	registry  *prometheus.Registry

	playersConnected *prometheus.GaugeVec
	objectsTotal     prometheus.Gauge
	mysteries        *prometheus.GaugeVec
	discoveries      *prometheus.CounterVec
	revelations      prometheus.Counter
	rolls            prometheus.Counter
	revokes          prometheus.Counter
	uptimeSeconds    prometheus.Gauge
	memoryHeapBytes  prometheus.Gauge
	goroutines       prometheus.Gauge
}

// NewMetrics creates the metrics, registers them and subscribes to the
// game's event bus for investigation counters.
func NewMetrics(game *Game, startTime time.Time) *Metrics {
	m := &Metrics{
		game:      game,
		startTime: startTime,
		registry:  prometheus.NewRegistry(),
		playersConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chroniclemush_players_connected",
			Help: "Number of currently connected players by transport.",
		}, []string{"transport"}),
		objectsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chroniclemush_objects_total",
			Help: "Total number of objects in the database.",
		}),
		mysteries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chroniclemush_mysteries",
			Help: "Number of mysteries by status.",
		}, []string{"status"}),
		discoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chroniclemush_discoveries_total",
			Help: "Clue discoveries since server start by method.",
		}, []string{"method"}),
		revelations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chroniclemush_revelations_total",
			Help: "Revelation triggers fired since server start.",
		}),
		rolls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chroniclemush_investigation_rolls_total",
			Help: "Investigation rolls made since server start.",
		}),
		revokes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chroniclemush_revokes_total",
			Help: "Clues revoked by staff since server start.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chroniclemush_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chroniclemush_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chroniclemush_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.registry.MustRegister(
		m.playersConnected,
		m.objectsTotal,
		m.mysteries,
		m.discoveries,
		m.revelations,
		m.rolls,
		m.revokes,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)
	game.EventBus.SubscribeGlobal(m, events.Investigation...)
	return m
}

// Receive implements events.Subscriber.
func (m *Metrics) Receive(ev events.Event) {
	switch ev.Type {
	case events.EvDiscovery:
		method, _ := ev.Data["method"].(string)
		if method == "" {
			method = "unknown"
		}
		m.discoveries.WithLabelValues(method).Inc()
	case events.EvRevelation:
		m.revelations.Inc()
	case events.EvRoll:
		m.rolls.Inc()
	case events.EvRevoke:
		m.revokes.Inc()
	}
}

// Closed implements events.Subscriber.
func (m *Metrics) Closed() bool { return false }

var _ events.Subscriber = (*Metrics)(nil)

// Update refreshes all gauge metrics from current game state.
func (m *Metrics) Update() {
	g := m.game
	g.mu.Lock()
	sessions := g.Conns.ByTransport()
	objects := len(g.DB.Objects)
	counts := g.Mysteries.Count()
	g.mu.Unlock()

	for _, t := range []TransportType{TransportTCP, TransportWebSocket} {
		m.playersConnected.WithLabelValues(t.String()).Set(float64(sessions[t]))
	}
	m.objectsTotal.Set(float64(objects))
	for _, st := range mystery.Statuses {
		m.mysteries.WithLabelValues(string(st)).Set(float64(counts[st]))
	}

	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		inner.ServeHTTP(w, r)
	})
}
