package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idlecity.ai/internal/sim/world"
)

// CityCollector bundles the city's Prometheus metrics. It receives tick summaries as a
// world.TickLogger and command outcomes from the command socket.
type CityCollector struct {
	gatherer prometheus.Gatherer

	Ticks      *prometheus.CounterVec
	Transports *prometheus.CounterVec
	Commands   *prometheus.CounterVec

	Happiness   prometheus.Gauge
	WorkersBusy prometheus.Gauge
	WorkersIdle prometheus.Gauge
	Science     prometheus.Gauge
}

// NewCityCollector registers city metrics against the provided registerer, defaulting to
// the global Prometheus registry when nil.
func NewCityCollector(reg prometheus.Registerer) (*CityCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "city_ticks_total",
		Help: "Simulation ticks run, labeled by mode (online or offline).",
	}, []string{"mode"}), "city_ticks_total")
	if err != nil {
		return nil, err
	}
	transports, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "city_transports_total",
		Help: "Transport job events, labeled by outcome (completed, stalled, aborted).",
	}, []string{"outcome"}), "city_transports_total")
	if err != nil {
		return nil, err
	}
	commands, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "city_commands_total",
		Help: "Commands received on the command socket, labeled by command and result code.",
	}, []string{"command", "code"}), "city_commands_total")
	if err != nil {
		return nil, err
	}

	gauge := func(name, help string) (prometheus.Gauge, error) {
		return registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help}), name)
	}
	happiness, err := gauge("city_happiness", "Happiness value of the last tick.")
	if err != nil {
		return nil, err
	}
	busy, err := gauge("city_workers_busy", "Workers assigned to producing buildings in the last tick.")
	if err != nil {
		return nil, err
	}
	idle, err := gauge("city_workers_idle", "Idle workers in the last tick.")
	if err != nil {
		return nil, err
	}
	science, err := gauge("city_science_from_workers", "Science produced by workers in the last tick.")
	if err != nil {
		return nil, err
	}

	return &CityCollector{
		gatherer:    gatherer,
		Ticks:       ticks,
		Transports:  transports,
		Commands:    commands,
		Happiness:   happiness,
		WorkersBusy: busy,
		WorkersIdle: idle,
		Science:     science,
	}, nil
}

// WriteTick implements world.TickLogger.
func (c *CityCollector) WriteTick(e world.TickLogEntry) error {
	if c == nil {
		return nil
	}
	mode := "online"
	if e.Offline {
		mode = "offline"
	}
	c.Ticks.WithLabelValues(mode).Inc()
	c.Transports.WithLabelValues("completed").Add(float64(e.Completed))
	c.Transports.WithLabelValues("stalled").Add(float64(e.Stalled))
	c.Transports.WithLabelValues("aborted").Add(float64(e.Aborted))
	c.Happiness.Set(float64(e.Happiness))
	c.WorkersBusy.Set(float64(e.Busy))
	c.WorkersIdle.Set(float64(e.Idle))
	c.Science.Set(e.Science)
	return nil
}

// RecordCommand counts one command result. An empty code means success.
func (c *CityCollector) RecordCommand(command, code string) {
	if c == nil {
		return
	}
	if code == "" {
		code = "OK"
	}
	c.Commands.WithLabelValues(command, code).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *CityCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RegisterWorldGauges exposes a world's metrics snapshot through gauge functions that
// read it at scrape time.
func RegisterWorldGauges(reg prometheus.Registerer, snapshot func() world.WorldMetrics) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	fns := []struct {
		name, help string
		counter    bool
		fn         func(world.WorldMetrics) float64
	}{
		{"city_tick", "Current tick.", false, func(m world.WorldMetrics) float64 { return float64(m.Tick) }},
		{"city_tick_step_seconds", "Wall time of the last tick.", false, func(m world.WorldMetrics) float64 { return m.StepMS / 1000 }},
		{"city_buildings", "Buildings in the city.", false, func(m world.WorldMetrics) float64 { return float64(m.Buildings) }},
		{"city_transport_jobs", "Queued transport jobs.", false, func(m world.WorldMetrics) float64 { return float64(m.Jobs) }},
		{"city_command_inbox", "Commands waiting for the next tick.", false, func(m world.WorldMetrics) float64 { return float64(m.Inbox) }},
		{"city_halted", "1 when the world refused to tick.", false, func(m world.WorldMetrics) float64 {
			if m.Halted {
				return 1
			}
			return 0
		}},
		{"city_save_errors_total", "Failed saves.", true, func(m world.WorldMetrics) float64 { return float64(m.SaveErrors) }},
		{"city_heartbeat_errors_total", "Failed heartbeats.", true, func(m world.WorldMetrics) float64 { return float64(m.HeartbeatErrors) }},
		{"city_tick_log_errors_total", "Failed tick log writes.", true, func(m world.WorldMetrics) float64 { return float64(m.TickLogErrors) }},
	}
	for _, f := range fns {
		f := f
		read := func() float64 { return f.fn(snapshot()) }
		var col prometheus.Collector
		if f.counter {
			col = prometheus.NewCounterFunc(prometheus.CounterOpts{Name: f.name, Help: f.help}, read)
		} else {
			col = prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: f.name, Help: f.help}, read)
		}
		if err := reg.Register(col); err != nil {
			return fmt.Errorf("register %s: %w", f.name, err)
		}
	}
	return nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
