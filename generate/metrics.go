package generate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rulesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mapspec",
	Subsystem: "generate",
	Name:      "rules_total",
	Help:      "Bulk-generated rule creations by outcome.",
}, []string{"outcome"})

const (
	outcomeCreated = "created"
	outcomeFailed  = "failed"
)
