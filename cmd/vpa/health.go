package main

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voltix/vpa-engine/internal/monitoring"
)

// runHealth serves /healthz and /metrics over HTTP until the listener
// fails, then returns 1. Its exit code does not follow the reported health
// status; the status is available only from the /healthz response.
// Used by process supervisors as a liveness probe.
func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	port := fs.Int("port", 8080, "HTTP port for /healthz and /metrics")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	checker := monitoring.NewHealthChecker()
	checker.RecordCycle(checker.Status().Timestamp)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.ServeHTTP)
	mux.Handle("/metrics", promhttp.Handler())

	fmt.Printf("Serving /healthz and /metrics on :%d\n", *port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", *port), mux); err != nil {
		fmt.Println(err)
		return 1
	}
	return 0
}
