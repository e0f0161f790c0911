package inspect

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/orizon-lang/orizon-kernel/internal/kernel"
)

// NewDebugMux builds the JSON diagnostic endpoints:
//
//	GET /snapshot       -> full kernel.Snapshot
//	GET /sched/threads  -> thread table
//	GET /sched/cpus     -> per-CPU state
//	GET /procs          -> process table
func NewDebugMux(k *kernel.Kernel) *http.ServeMux {
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(v)
	}

	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, k.Snapshot())
	})
	mux.HandleFunc("/sched/threads", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, k.Scheduler().SnapshotThreads())
	})
	mux.HandleFunc("/sched/cpus", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, k.Scheduler().SnapshotCPUs())
	})
	mux.HandleFunc("/procs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, k.Processes().Snapshot())
	})
	return mux
}

// StartDebugHTTP serves the debug mux on addr and returns the bound address
// and a shutdown function.
func StartDebugHTTP(k *kernel.Kernel, addr string) (string, func(ctx context.Context) error, error) {
	srv := &http.Server{Addr: addr, Handler: NewDebugMux(k), ReadHeaderTimeout: 3 * time.Second}
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
