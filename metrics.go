package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medimind_uploads_total",
		Help: "Successfully processed report uploads.",
	})

	uploadsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medimind_uploads_rejected_total",
		Help: "Uploads rejected before processing, by reason.",
	}, []string{"reason"})

	processingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medimind_processing_failures_total",
		Help: "Hard failures in the upload pipeline, by stage.",
	}, []string{"stage"})
)
