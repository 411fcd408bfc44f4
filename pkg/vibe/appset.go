package vibe

import "strings"

// AppSets holds the three tracked application name sets. Direct apps
// count as tracked on membership alone; IDE and terminal apps count only
// while the companion process shows sustained CPU. Membership is
// case-insensitive.
type AppSets struct {
	direct   map[string]struct{}
	ideTerms map[string]struct{}
}

// NewAppSets builds normalized lookup sets from the configured names.
func NewAppSets(direct, ides, terminals []string) AppSets {
	sets := AppSets{
		direct:   make(map[string]struct{}, len(direct)),
		ideTerms: make(map[string]struct{}, len(ides)+len(terminals)),
	}
	for _, name := range direct {
		if key := normalizeAppName(name); key != "" {
			sets.direct[key] = struct{}{}
		}
	}
	for _, name := range ides {
		if key := normalizeAppName(name); key != "" {
			sets.ideTerms[key] = struct{}{}
		}
	}
	for _, name := range terminals {
		if key := normalizeAppName(name); key != "" {
			sets.ideTerms[key] = struct{}{}
		}
	}
	return sets
}

// IsDirect reports whether name belongs to the direct AI app set.
func (s AppSets) IsDirect(name string) bool {
	_, ok := s.direct[normalizeAppName(name)]
	return ok
}

// IsIDEOrTerminal reports whether name belongs to the IDE or terminal
// sets, which additionally require companion CPU activity to count as
// tracked.
func (s AppSets) IsIDEOrTerminal(name string) bool {
	_, ok := s.ideTerms[normalizeAppName(name)]
	return ok
}

func normalizeAppName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
