package notifier

import "github.com/roman-kripton/pw-twin-tools/internal/storage"

// GroupReport accumulates one group's batch results
type GroupReport struct {
	Success []string
	Errors  []string
	Changes []string
}

func (g *GroupReport) empty() bool {
	return len(g.Success) == 0 && len(g.Errors) == 0 && len(g.Changes) == 0
}

// Report is the outcome of one batch check, bucketed by group
type Report struct {
	Total         int
	Groups        map[string]*GroupReport
	GroupOrder    []string
	ExpiringGifts map[string][]storage.Gift
}

// NewReport creates an empty batch report
func NewReport() *Report {
	return &Report{
		Groups:        make(map[string]*GroupReport),
		ExpiringGifts: make(map[string][]storage.Gift),
	}
}

// Group returns the bucket for a group name, creating it on first use
// and remembering insertion order.
func (r *Report) Group(name string) *GroupReport {
	if g, ok := r.Groups[name]; ok {
		return g
	}
	g := &GroupReport{}
	r.Groups[name] = g
	r.GroupOrder = append(r.GroupOrder, name)
	return g
}

// Successes counts successful accounts across all groups
func (r *Report) Successes() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Success)
	}
	return n
}

// Failures counts errored accounts across all groups
func (r *Report) Failures() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Errors)
	}
	return n
}
