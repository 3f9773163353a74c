package pipeline

import (
	"fmt"
	"strings"

	"problem-radar/internal/metrics"
)

var nicheQueries = map[string][]string{
	"career": {
		"job search frustration",
		"why is finding a job so hard",
		"career change advice",
		"toxic workplace help",
		"interview tips nobody tells you",
		"burnout at work",
	},
	"fitness": {
		"gym motivation struggles",
		"can't lose weight help",
		"workout routine confusion",
		"home workout problems",
		"fitness plateau advice",
	},
	"finance": {
		"can't save money",
		"budgeting struggles",
		"paycheck to paycheck help",
		"credit card debt advice",
		"investing for beginners confused",
	},
	"productivity": {
		"procrastination help",
		"can't focus working from home",
		"too many apps productivity",
		"time management struggles",
		"adhd productivity tips",
	},
	"relationships": {
		"dating app frustration",
		"communication problems couple",
		"making friends as an adult",
		"long distance relationship struggles",
	},
	"parenting": {
		"toddler tantrum help",
		"screen time kids struggle",
		"working parent burnout",
		"baby sleep problems",
	},
	"health": {
		"chronic fatigue help",
		"trouble sleeping tips",
		"anxiety coping struggles",
		"meal prep is too hard",
		"doctor appointment frustration",
	},
	"business": {
		"small business struggles",
		"getting first customers",
		"freelance client problems",
		"ecommerce store no sales",
		"marketing on a budget",
	},
	"education": {
		"studying tips that actually work",
		"student loan stress",
		"online course dropout",
		"learning to code struggles",
	},
	"tech": {
		"tech support nightmare",
		"too many subscriptions",
		"phone battery problems",
		"smart home setup frustration",
	},
}

var genericQueries = []string{
	"%s problems",
	"%s struggles",
	"%s frustration",
	"why is %s so hard",
	"%s advice needed",
	"%s tips nobody tells you",
}

// QueriesFor returns the query table of niche, or the generic templates
// filled with niche.
func QueriesFor(niche string) []string {
	key := strings.ToLower(strings.TrimSpace(niche))
	if qs, ok := nicheQueries[key]; ok {
		out := make([]string, len(qs))
		copy(out, qs)
		return out
	}
	out := make([]string, len(genericQueries))
	for i, tmpl := range genericQueries {
		out[i] = fmt.Sprintf(tmpl, key)
	}
	return out
}

// SampleQueries draws n distinct queries for niche.
func SampleQueries(niche string, n int, r metrics.Rand) []string {
	pool := QueriesFor(niche)
	if n > len(pool) {
		n = len(pool)
	}
	for i := 0; i < n; i++ {
		j := i + r.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
