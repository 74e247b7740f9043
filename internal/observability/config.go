package observability

import (
	"net/http/pprof"

	"github.com/gorilla/mux"
)

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprofTrace bool
}

// Mount registers the pprof endpoints under /debug/pprof when profiling is
// enabled. It reports whether anything was mounted.
func Mount(router *mux.Router, cfg Config) bool {
	if router == nil || !cfg.EnablePprofTrace {
		return false
	}
	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.PathPrefix("/").HandlerFunc(pprof.Index)
	return true
}
