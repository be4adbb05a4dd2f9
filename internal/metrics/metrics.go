package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var MenuItemsHidden = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "adminka_menu_items_hidden_total",
	Help: "Menu items left out of a menu, by reason",
}, []string{"reason"})

var FiltersSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "adminka_filters_skipped_total",
	Help: "Datagrid filters not registered because the actor lacks the required role",
})

var ListDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "adminka_list_duration_seconds",
	Help:    "Duration of datagrid list queries",
	Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
}, []string{"driver"})
