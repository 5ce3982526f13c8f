package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestServerExposesMetrics(t *testing.T) {
	srv := Server(":9108")
	if srv.Addr != ":9108" || srv.Handler == nil {
		t.Fatalf("unexpected server %+v", srv)
	}

	CyclesTotal.WithLabelValues("completed").Inc()
	OrdersTotal.WithLabelValues("BUY", "accepted").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{"volumebot_cycles_total": false, "volumebot_orders_total": false}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("%s metric not found", name)
		}
	}

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "volumebot_cycles_total") {
		t.Fatalf("metrics endpoint missing cycle counter")
	}
}

func TestHandlerHealthz(t *testing.T) {
	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || strings.TrimSpace(string(body)) != "ok" {
		t.Fatalf("unexpected healthz response %d %q", resp.StatusCode, body)
	}
}
