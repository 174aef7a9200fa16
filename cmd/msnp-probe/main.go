// Command msnp-probe is a small example binary demonstrating msnp11go: it
// logs into a notification server, prints roster/presence/message events,
// exposes Prometheus metrics for command throughput and switchboard
// count, and optionally dumps a logrus wire trace under -debug, the way
// the teacher's cmd/proxysip wires a metrics HTTP server next to the
// protocol server it runs.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	msnp11go "github.com/msnp11/msnp11go"
	"github.com/msnp11/msnp11go/msnp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sirupsen/logrus"
)

// trace is a second, logrus-backed logger for raw wire-level events
// (every command verb sent/received), kept separate from the zerolog
// logger that carries the human-facing operational log, the same split
// the teacher's example/proxysip TestMain sets up between its zerolog
// and logrus loggers.
var trace = logrus.New()

// configureLogging sets up the zerolog operational logger and the logrus
// trace logger, flipping both to their verbose level together under
// -debug, the way the teacher's TestMain flips its zerolog and logrus
// loggers together under its own -debug flag.
func configureLogging(debug bool) {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05.000",
	}).With().Timestamp().Logger().Level(zerolog.InfoLevel)

	trace.Formatter = &logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	}
	trace.SetOutput(os.Stderr)
	trace.SetLevel(logrus.PanicLevel)

	if debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
		trace.SetLevel(logrus.TraceLevel)
	}
}

func main() {
	addr := flag.String("addr", "messenger.hotmail.com:1863", "notification server host:port")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	configureLogging(*debug)

	if *email == "" || *password == "" {
		log.Fatal().Msg("-email and -password are required")
	}

	msnp11go.Init()

	registry := prometheus.NewRegistry()
	m := newProbeMetrics(registry)

	metricsAddr := os.Getenv("MSNP_PROBE_METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9116"
	}
	go serveMetrics(metricsAddr, registry)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := msnp11go.Dial(ctx, *addr, *email, *password)
	if err != nil {
		log.Fatal().Err(err).Msg("dial failed")
	}
	log.Info().Str("email", client.Email()).Msg("logged in")

	client.SetOnCommandSent(func(verb string) {
		m.commandsSent.WithLabelValues(verb).Inc()
		trace.Tracef("-> %s", verb)
	})
	client.SetOnKeepAliveRoundTrip(func(d time.Duration) {
		m.keepAliveLatency.Observe(d.Seconds())
		trace.Tracef("keepalive round trip %s", d)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case ev, ok := <-client.Events():
			if !ok {
				log.Info().Msg("event channel closed, exiting")
				return
			}
			handleEvent(ev, m)
		case <-sigCh:
			log.Info().Msg("shutting down")
			client.Disconnect()
			return
		}
	}
}

type probeMetrics struct {
	commandsSent     *prometheus.CounterVec
	commandsReceived *prometheus.CounterVec
	liveSwitchboards prometheus.Gauge
	keepAliveLatency prometheus.Histogram
}

func newProbeMetrics(reg *prometheus.Registry) *probeMetrics {
	m := &probeMetrics{
		commandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "msnp_probe_commands_sent_total",
			Help: "Commands sent to the notification server, by verb.",
		}, []string{"verb"}),
		commandsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "msnp_probe_commands_received_total",
			Help: "Events received from the notification server, by kind.",
		}, []string{"kind"}),
		liveSwitchboards: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "msnp_probe_live_switchboards",
			Help: "Number of switchboard sessions currently open.",
		}),
		keepAliveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "msnp_probe_keepalive_round_trip_seconds",
			Help:    "PNG/QNG keep-alive round-trip latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.commandsSent, m.commandsReceived, m.liveSwitchboards, m.keepAliveLatency)
	return m
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}

func handleEvent(ev msnp.Event, m *probeMetrics) {
	trace.Tracef("<- %T", ev)
	switch e := ev.(type) {
	case msnp.EventPresenceUpdate:
		m.commandsReceived.WithLabelValues("presence").Inc()
		log.Info().Str("email", e.Email).Str("status", e.Presence.Status).Msg("presence update")
	case msnp.EventTextMessage:
		m.commandsReceived.WithLabelValues("message").Inc()
		log.Info().Str("session", e.SessionID).Str("from", e.Email).Str("text", e.Message).Msg("message")
	case msnp.EventSessionAnswered:
		m.liveSwitchboards.Inc()
		log.Info().Str("session", e.Session.SessionID()).Msg("switchboard answered")
	case msnp.EventParticipantLeftSwitchboard:
		m.commandsReceived.WithLabelValues("participant_left").Inc()
	case msnp.EventDisconnected:
		m.commandsReceived.WithLabelValues("disconnected").Inc()
		log.Warn().Msg("disconnected")
	default:
		m.commandsReceived.WithLabelValues("other").Inc()
	}
}
