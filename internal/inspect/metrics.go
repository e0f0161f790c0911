// Package inspect exposes the kernel's diagnostic state: a plain-text
// metrics exposition and JSON snapshot endpoints, optionally served over
// HTTP/3 as well.
package inspect

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/orizon-lang/orizon-kernel/internal/kernel"
)

// MetricFunc returns a map of metric name -> value (float64 for
// compatibility). Names should be simple tokens using [a-zA-Z0-9_:] to ease
// exposition.
type MetricFunc func() map[string]float64

// Collectors returns the kernel's standard metric collectors.
func Collectors(k *kernel.Kernel) map[string]MetricFunc {
	return map[string]MetricFunc{
		"sched": func() map[string]float64 {
			st := k.Scheduler().ReadStats()
			return map[string]float64{
				"context_switches": float64(st.ContextSwitches),
				"preemptions":      float64(st.Preemptions),
				"migrations":       float64(st.Migrations),
				"wakeups":          float64(st.Wakeups),
				"sleepers":         float64(st.Sleepers),
				"threads":          float64(st.Threads),
			}
		},
		"cpu": func() map[string]float64 {
			out := make(map[string]float64)
			for _, c := range k.Scheduler().SnapshotCPUs() {
				out[fmt.Sprintf("%d_queued", c.ID)] = float64(c.Queued)
				out[fmt.Sprintf("%d_idle_dispatches", c.ID)] = float64(c.IdleDispatches)
				out[fmt.Sprintf("%d_idle_ticks", c.ID)] = float64(c.IdleTicks)
			}
			return out
		},
		"irq": func() map[string]float64 {
			delivered, unhandled, spurious := k.Registry().Stats()
			return map[string]float64{
				"delivered": float64(delivered),
				"unhandled": float64(unhandled),
				"spurious":  float64(spurious),
			}
		},
		"timer": func() map[string]float64 {
			return map[string]float64{"ticks": float64(k.Ticks())}
		},
	}
}

// MetricsHandler renders all collectors in deterministic text exposition
// format, one "name value" line per metric.
func MetricsHandler(collectors map[string]MetricFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		names := make([]string, 0, len(collectors))
		for name := range collectors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fn := collectors[name]
			if fn == nil {
				continue
			}
			snapshot := fn()
			keys := make([]string, 0, len(snapshot))
			for k := range snapshot {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "%s %g\n", sanitizeMetricToken(name+"_"+k), snapshot[k])
			}
		}
	})
}

// StartMetricsServer serves the exposition under "/metrics" on addr. It
// returns the bound address (which may differ if port 0 was used) and a
// shutdown function.
func StartMetricsServer(addr string, collectors map[string]MetricFunc) (string, func(ctx context.Context) error, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(collectors))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 3 * time.Second}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}
	bound := ln.Addr().String()
	go func() {
		_ = srv.Serve(ln)
	}()
	stop := func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}
	return bound, stop, nil
}

func sanitizeMetricToken(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == ':' {
			b[i] = c
		} else {
			b[i] = '_'
		}
	}
	if len(b) > 0 && b[0] >= '0' && b[0] <= '9' {
		return "_" + string(b)
	}
	return strings.ReplaceAll(string(b), "__", "_")
}
