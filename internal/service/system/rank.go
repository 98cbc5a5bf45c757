package system

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// RankByRisk returns the non-archived groups ordered by risk score, highest
// first. Ties are broken by open CAT I findings, then by name.
func (s *Service) RankByRisk(ctx context.Context) ([]RiskEntry, error) {
	groups, err := s.systems.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]RiskEntry, 0, len(groups))
	for _, g := range groups {
		if g.State() == domain.StateArchived {
			continue
		}
		entries = append(entries, RiskEntry{System: g, RiskScore: g.RiskScore()})
	}

	slices.SortFunc(entries, func(a, b RiskEntry) int {
		if c := cmp.Compare(b.RiskScore, a.RiskScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.System.Stats().Cat1Open, a.System.Stats().Cat1Open); c != 0 {
			return c
		}
		return strings.Compare(a.System.Name(), b.System.Name())
	})
	return entries, nil
}
