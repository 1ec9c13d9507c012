package stats

import (
	"math"
	"sort"
)

// pairAcc accumulates exact pairwise Pearson terms, counting only rows where
// both columns carry a value.
type pairAcc struct {
	n     float64
	sumX  float64
	sumY  float64
	sumXX float64
	sumYY float64
	sumXY float64
}

func (p *pairAcc) add(x, y float64) {
	p.n++
	p.sumX += x
	p.sumY += y
	p.sumXX += x * x
	p.sumYY += y * y
	p.sumXY += x * y
}

func (p *pairAcc) r() float64 {
	if p.n < 2 {
		return 0
	}
	denom := math.Sqrt((p.n*p.sumXX - p.sumX*p.sumX) * (p.n*p.sumYY - p.sumY*p.sumY))
	if denom == 0 {
		return 0
	}
	r := (p.n*p.sumXY - p.sumX*p.sumY) / denom
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// correlate computes the full Pearson matrix over numeric columns and splits
// off-diagonal pairs into strong and moderate lists by |r| threshold. Columns
// are addressed by index into names; series[i] aligns with names[i] and may
// contain NaN for missing cells.
func correlate(names []string, series [][]float64, strong, moderate float64) *Correlation {
	k := len(names)
	if k < 2 {
		return nil
	}
	accs := make([][]pairAcc, k)
	for i := range accs {
		accs[i] = make([]pairAcc, k)
	}
	rows := 0
	for _, s := range series {
		if len(s) > rows {
			rows = len(s)
		}
	}
	for row := 0; row < rows; row++ {
		for i := 0; i < k; i++ {
			if row >= len(series[i]) || math.IsNaN(series[i][row]) {
				continue
			}
			for j := i + 1; j < k; j++ {
				if row >= len(series[j]) || math.IsNaN(series[j][row]) {
					continue
				}
				accs[i][j].add(series[i][row], series[j][row])
			}
		}
	}

	corr := &Correlation{Columns: names, Matrix: make([][]float64, k)}
	for i := 0; i < k; i++ {
		corr.Matrix[i] = make([]float64, k)
		corr.Matrix[i][i] = 1
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			r := accs[i][j].r()
			corr.Matrix[i][j] = r
			corr.Matrix[j][i] = r
			pair := Pair{ColumnA: names[i], ColumnB: names[j], R: r}
			switch {
			case math.Abs(r) > strong:
				corr.Strong = append(corr.Strong, pair)
			case math.Abs(r) > moderate:
				corr.Moderate = append(corr.Moderate, pair)
			}
		}
	}
	sortPairs(corr.Strong)
	sortPairs(corr.Moderate)
	return corr
}

// sortPairs orders by descending |r|, then column names for determinism.
func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(a, b int) bool {
		ra, rb := math.Abs(pairs[a].R), math.Abs(pairs[b].R)
		if ra != rb {
			return ra > rb
		}
		if pairs[a].ColumnA != pairs[b].ColumnA {
			return pairs[a].ColumnA < pairs[b].ColumnA
		}
		return pairs[a].ColumnB < pairs[b].ColumnB
	})
}
