// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the safety core. Exposed on /metrics by the server service.
var (
	denialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talentflow",
		Subsystem: "safety",
		Name:      "denials_total",
		Help:      "Write and read requests denied by policy, by cause.",
	}, []string{"cause"})

	confirmationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "talentflow",
		Subsystem: "safety",
		Name:      "confirmations_created_total",
		Help:      "Pending confirmations registered in the ledger.",
	})

	confirmationsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "talentflow",
		Subsystem: "safety",
		Name:      "confirmations_completed_total",
		Help:      "Confirmations approved and handed back for execution.",
	})

	confirmationsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "talentflow",
		Subsystem: "safety",
		Name:      "confirmations_cancelled_total",
		Help:      "Confirmations explicitly rejected by a human.",
	})

	confirmationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "talentflow",
		Subsystem: "safety",
		Name:      "confirmations_expired_total",
		Help:      "Confirmations dropped by the expiry sweep without execution.",
	})

	confirmationsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "talentflow",
		Subsystem: "safety",
		Name:      "confirmations_pending",
		Help:      "Confirmations currently held in the ledger.",
	})
)

const (
	denialCauseBatchLimit = "batch_limit"
	denialCauseProtected  = "protected"
	denialCauseTransition = "stage_transition"
)
