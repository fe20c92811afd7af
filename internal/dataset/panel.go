package dataset

import (
	"sort"

	"github.com/profitpulse/backend/internal/contracts"
)

// BuildPanel aligns each scored firm-year t with the outcome label of
// year t+1 for the same firm. Rows without a matching t+1 observation
// are excluded — they stay available in the scored set for
// point-in-time display but cannot bear a forward label.
func BuildPanel(scored []contracts.ScoredRow) []contracts.PanelRow {
	next := make(map[panelKey]int, len(scored))
	for _, row := range scored {
		next[panelKey{row.FirmID, row.Year}] = row.Label
	}

	panel := make([]contracts.PanelRow, 0, len(scored))
	for _, row := range scored {
		label, ok := next[panelKey{row.FirmID, row.Year + 1}]
		if !ok {
			continue
		}
		panel = append(panel, contracts.PanelRow{
			ScoredRow:  row,
			TargetYear: row.Year + 1,
			LabelT1:    label,
		})
	}

	sort.Slice(panel, func(i, j int) bool {
		if panel[i].FirmID != panel[j].FirmID {
			return panel[i].FirmID < panel[j].FirmID
		}
		return panel[i].Year < panel[j].Year
	})

	return panel
}

type panelKey struct {
	firm string
	year int
}

// Split partitions the panel by label (target) year: training rows have
// target year <= trainTargetEnd, test rows have target year in
// testTargetYears. The two sets never overlap.
func Split(panel []contracts.PanelRow, trainTargetEnd int, testTargetYears []int) (train, test []contracts.PanelRow) {
	testSet := make(map[int]struct{}, len(testTargetYears))
	for _, y := range testTargetYears {
		testSet[y] = struct{}{}
	}

	for _, row := range panel {
		if row.TargetYear <= trainTargetEnd {
			train = append(train, row)
			continue
		}
		if _, ok := testSet[row.TargetYear]; ok {
			test = append(test, row)
		}
	}
	return train, test
}

// FitWindow selects the proxy rows used to fit preprocessing and PCA:
// predictor years up to and including fitPredYear. This is the only
// slice of data any fit operation ever sees.
func FitWindow(rows []contracts.ProxyRow, fitPredYear int) []contracts.ProxyRow {
	out := make([]contracts.ProxyRow, 0, len(rows))
	for _, r := range rows {
		if r.Year <= fitPredYear {
			out = append(out, r)
		}
	}
	return out
}
