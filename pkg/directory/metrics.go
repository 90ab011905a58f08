package directory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	referralsFollowed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zapauth_directory_referrals_followed_total",
		Help: "Directory search referrals chased to another server",
	})

	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zapauth_directory_searches_total",
		Help: "Directory searches by kind",
	}, []string{"kind"})
)
