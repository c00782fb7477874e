// Package metrics exposes the daemon's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReceiptsPrinted counts successfully completed print jobs.
	ReceiptsPrinted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "receiptd_receipts_printed_total",
		Help: "Completed receipt print jobs.",
	})

	// PrintFailures counts failed jobs by the stage that broke.
	PrintFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receiptd_print_failures_total",
		Help: "Failed receipt print jobs by stage.",
	}, []string{"stage"})

	// QRFallbacks counts code renders that degraded below the native tier.
	QRFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receiptd_qr_fallbacks_total",
		Help: "QR renders that used a fallback tier.",
	}, []string{"tier"})

	// OrdersStored counts order store writes by source tag.
	OrdersStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receiptd_orders_stored_total",
		Help: "Order payloads upserted into the store by source.",
	}, []string{"source"})
)
