package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_http_requests_total",
			Help: "HTTP requests by route and status class",
		},
		[]string{"route", "status"},
	)
	Actions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_actions_total",
			Help: "Player actions by kind and result",
		},
		[]string{"action", "result"},
	)
	ReconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_reconcile_runs_total",
			Help: "Reconcile sweeps by trigger and whether they changed state",
		},
		[]string{"trigger", "changed"},
	)
	RoundsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_rounds_resolved_total",
			Help: "Resolved rounds by reason (play, forfeit_commit, forfeit_reveal)",
		},
		[]string{"reason"},
	)
	MatchesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rps_matches_created_total",
			Help: "Matches created from paired intents",
		},
	)
	MatchesDecided = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_matches_decided_total",
			Help: "Decided matches by result (win, draw)",
		},
		[]string{"result"},
	)
	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_settlements_total",
			Help: "Settlement handoffs by result",
		},
		[]string{"result"},
	)
	LobbyWaiting = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rps_lobby_waiting",
			Help: "Intents waiting for an opponent by stake tier",
		},
		[]string{"stake"},
	)
	RLRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_ratelimit_requests_total",
			Help: "Requests admitted by the rate limiter",
		},
		[]string{"route"},
	)
	RLBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_ratelimit_blocked_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rps_ws_clients",
			Help: "Connected websocket clients",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(Actions)
	prometheus.MustRegister(ReconcileRuns)
	prometheus.MustRegister(RoundsResolved)
	prometheus.MustRegister(MatchesCreated)
	prometheus.MustRegister(MatchesDecided)
	prometheus.MustRegister(Settlements)
	prometheus.MustRegister(LobbyWaiting)
	prometheus.MustRegister(RLRequests)
	prometheus.MustRegister(RLBlocked)
	prometheus.MustRegister(WSClients)
}
