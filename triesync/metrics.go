package triesync

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/attestate/leafsync/metrics"
)

const namespace = "triesync"

var (
	sessions = metrics.NewCounter(
		"sessions",
		namespace,
		"Sync sessions by role and result",
		[]string{"role", "result"},
	)
	sessionLevels = metrics.NewHistogramWithBuckets(
		"session_levels",
		namespace,
		"Levels compared by a finished session",
		[]string{},
		prometheus.LinearBuckets(1, 2, 10),
	).WithLabelValues()
	leaves = metrics.NewCounter(
		"leaves",
		namespace,
		"Leaves pushed to and received from peers",
		[]string{"direction", "result"},
	)
	advertisements = metrics.NewCounter(
		"advertisements",
		namespace,
		"Root advertisements by direction and result",
		[]string{"direction", "result"},
	)

	initiatedOK       = sessions.WithLabelValues("initiator", "ok")
	initiatedFailed   = sessions.WithLabelValues("initiator", "failed")
	initiatedRejected = sessions.WithLabelValues("initiator", "rejected")
	respondedOK       = sessions.WithLabelValues("responder", "ok")
	respondedRejected = sessions.WithLabelValues("responder", "rejected")

	leavesPushed   = leaves.WithLabelValues("out", "ok")
	leavesAdded    = leaves.WithLabelValues("in", "ok")
	leavesDropped  = leaves.WithLabelValues("in", "dropped")
	advertisedOK   = advertisements.WithLabelValues("out", "ok")
	advertisedFail = advertisements.WithLabelValues("out", "failed")
	rootsReceived  = advertisements.WithLabelValues("in", "ok")
	rootsDivergent = advertisements.WithLabelValues("in", "divergent")
)
