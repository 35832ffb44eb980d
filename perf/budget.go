package perf

import "nmafoods/api/models"

// Budgets are the targets each headline metric is checked against. Units
// follow the metric: milliseconds, except CLS which is a unitless score.
var Budgets = map[string]float64{
	"LCP":                2500,
	"FID":                100,
	"CLS":                0.1,
	"TTFB":               800,
	"page_load_complete": 3000,
}

// CheckBudget reports the budget for name and whether value exceeds it.
func CheckBudget(name string, value float64) (budget float64, over, ok bool) {
	budget, ok = Budgets[name]
	if !ok {
		return 0, false, false
	}
	return budget, value > budget, true
}

// ApplyBudget fills the budget fields of in from its p95.
func ApplyBudget(in *models.PerformanceInsight) {
	budget, over, ok := CheckBudget(in.MetricName, in.P95)
	if !ok {
		return
	}
	in.Budget = &budget
	in.OverBudget = over
}
