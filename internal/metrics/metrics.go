package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "volumebot_cycles_total", Help: "Trade cycles by outcome"},
		[]string{"result"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "volumebot_orders_total", Help: "Orders submitted by side and result"},
		[]string{"side", "result"},
	)
	VolumeTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "volumebot_volume_total", Help: "Notional volume credited by completed cycles"},
	)
	TradesExecuted = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "volumebot_trades_executed", Help: "Completed buy+sell cycles since start"},
	)
	RunState = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "volumebot_run_state", Help: "0 idle, 1 initializing, 2 running, 3 stopping, 4 stopped"},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal, OrdersTotal, VolumeTotal, TradesExecuted, RunState)
}

// Handler exposes /metrics and /healthz.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Server builds the metrics server without starting it.
func Server(addr string) *http.Server {
	return &http.Server{Addr: addr, Handler: Handler()}
}
