package freshservice

import "github.com/prometheus/client_golang/prometheus"

var requests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "freshservice_requests_total",
	Help: "Freshservice API calls by endpoint and outcome",
}, []string{"endpoint", "outcome"})

func init() { prometheus.MustRegister(requests) }
