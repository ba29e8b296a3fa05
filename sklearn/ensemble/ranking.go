package ensemble

import (
	"fmt"
	"sort"

	"github.com/befresh/phmodel/metrics"
	"github.com/befresh/phmodel/pkg/errors"
)

// RankedFeature is one line of a feature ranking.
type RankedFeature struct {
	Rank       int // 1-based
	Index      int // column index in the feature matrix
	Name       string
	Importance float64
}

// String formats the feature as "1. feature 'gas' (0.41)".
func (r RankedFeature) String() string {
	return fmt.Sprintf("%d. feature '%s' (%s)", r.Rank, r.Name, metrics.FormatFloat(r.Importance))
}

// RankImportances orders features by descending importance. The order is a
// stable ascending sort reversed, so among equal importances the later
// column comes first.
func RankImportances(names []string, importances []float64) ([]RankedFeature, error) {
	if len(names) != len(importances) {
		return nil, errors.NewDimensionError("RankImportances", len(names), len(importances), 0)
	}

	ranked := make([]RankedFeature, len(names))
	for i := range names {
		ranked[i] = RankedFeature{Index: i, Name: names[i], Importance: importances[i]}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Importance < ranked[b].Importance
	})
	for i, j := 0, len(ranked)-1; i < j; i, j = i+1, j-1 {
		ranked[i], ranked[j] = ranked[j], ranked[i]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}
