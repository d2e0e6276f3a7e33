package service

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessions_issued_total", Help: "Bearer sessions issued",
	})
	sessionsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessions_swept_total", Help: "Expired sessions removed by the sweeper",
	})
)

func init() { prometheus.MustRegister(sessionsIssued, sessionsSwept) }
