package main

import (
	"fmt"
	"strconv"
	"strings"

	"echostrata/domain/survey"
	"echostrata/internal/analysis"
)

// parseTransects reads a comma separated transect list; blank means all
func parseTransects(raw string) ([]survey.TransectID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []survey.TransectID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid transect %q: %w", part, err)
		}
		out = append(out, survey.TransectID(n))
	}
	return out, nil
}

// parseSubset reads name=1,2,3
func parseSubset(raw string) (analysis.Selection, error) {
	name, list, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return analysis.Selection{}, fmt.Errorf("subset %q must look like name=1,2,3", raw)
	}
	transects, err := parseTransects(list)
	if err != nil {
		return analysis.Selection{}, fmt.Errorf("subset %s: %w", name, err)
	}
	if len(transects) == 0 {
		return analysis.Selection{}, fmt.Errorf("subset %s lists no transects", name)
	}
	return analysis.Selection{Name: name, Transects: transects}, nil
}

// selections builds the run list from --transects and repeated --subset
func selections(transects string, subsets []string) ([]analysis.Selection, error) {
	if len(subsets) == 0 {
		ts, err := parseTransects(transects)
		if err != nil {
			return nil, err
		}
		name := "all"
		if len(ts) > 0 {
			name = "selection"
		}
		return []analysis.Selection{{Name: name, Transects: ts}}, nil
	}
	if strings.TrimSpace(transects) != "" {
		return nil, fmt.Errorf("--transects and --subset cannot be combined")
	}

	seen := make(map[string]bool, len(subsets))
	out := make([]analysis.Selection, 0, len(subsets))
	for _, raw := range subsets {
		sel, err := parseSubset(raw)
		if err != nil {
			return nil, err
		}
		if seen[sel.Name] {
			return nil, fmt.Errorf("subset %s given twice", sel.Name)
		}
		seen[sel.Name] = true
		out = append(out, sel)
	}
	return out, nil
}
