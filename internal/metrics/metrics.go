package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Count of market ticks ingested"},
		[]string{"instrument"},
	)
	InvalidTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "invalid_ticks_total", Help: "Ticks rejected by validation"},
		[]string{"instrument"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Trading signals synthesized"},
		[]string{"instrument", "action"},
	)
	CrossedBooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "crossed_books_total", Help: "Quote updates observed with ask below bid"},
		[]string{"instrument"},
	)
	PersistErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "persist_errors_total", Help: "Storage write failures by record stream"},
		[]string{"stream"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, InvalidTicksTotal, SignalsTotal, CrossedBooksTotal, PersistErrorsTotal)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
