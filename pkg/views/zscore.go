package views

import "math"

// ZScores standardizes values using the sample mean and Bessel-corrected
// sample standard deviation (divide by n-1) of exactly the given values.
// A standard deviation of zero, or fewer than two values, yields zeros
// rather than a division error.
func ZScores(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) < 2 {
		return out
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	stdev := math.Sqrt(ss / float64(len(values)-1))
	if stdev == 0 {
		return out
	}

	for i, v := range values {
		out[i] = (v - mean) / stdev
	}
	return out
}

// ZScoreTable standardizes each gene row of a table across the selected
// sites' valid cells. Mean and standard deviation are computed over only
// the currently selected sites, not the full dataset. No-data cells stay
// no-data and are excluded from the statistics.
func ZScoreTable(t *Table) *Table {
	out := &Table{
		Metric:   t.Metric,
		Sites:    append([]string(nil), t.Sites...),
		Genes:    append([]string(nil), t.Genes...),
		Cells:    make([][]Cell, len(t.Cells)),
		Warnings: append([]string(nil), t.Warnings...),
	}

	for i, row := range t.Cells {
		values := make([]float64, 0, len(row))
		for _, cell := range row {
			if cell.Valid {
				values = append(values, cell.Value)
			}
		}
		scores := ZScores(values)

		newRow := make([]Cell, len(row))
		k := 0
		for j, cell := range row {
			if !cell.Valid {
				continue
			}
			newRow[j] = Cell{Value: scores[k], Valid: true}
			k++
		}
		out.Cells[i] = newRow
	}

	return out
}
