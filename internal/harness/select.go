package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/apiprobe/internal/suite"
)

// Select filters plan by name without reordering it. An empty only keeps
// every suite. Unknown names are an error so typos do not silently shrink a
// run.
func Select(plan []suite.Suite, only, skip []string) ([]suite.Suite, error) {
	known := make(map[string]bool, len(plan))
	for _, s := range plan {
		known[s.Name] = true
	}

	var unknown []string
	check := func(names []string) map[string]bool {
		set := make(map[string]bool, len(names))
		for _, n := range names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n == "" {
				continue
			}
			if !known[n] {
				unknown = append(unknown, n)
			}
			set[n] = true
		}
		return set
	}
	onlySet := check(only)
	skipSet := check(skip)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown suite(s) %s: known suites are %s",
			strings.Join(unknown, ", "), strings.Join(Names(plan), ", "))
	}

	selected := make([]suite.Suite, 0, len(plan))
	for _, s := range plan {
		if len(onlySet) > 0 && !onlySet[s.Name] {
			continue
		}
		if skipSet[s.Name] {
			continue
		}
		selected = append(selected, s)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no suites selected")
	}
	return selected, nil
}

// Names lists suite names in order.
func Names(plan []suite.Suite) []string {
	names := make([]string, len(plan))
	for i, s := range plan {
		names[i] = s.Name
	}
	return names
}
