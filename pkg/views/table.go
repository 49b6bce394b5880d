// Package views builds view-ready projections from cached result
// payloads. Every function is pure: the cache entry is never mutated and
// identical inputs yield identical outputs, so consumers can memoize
// independently of the cache.
package views

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/depthlab/noisecache/pkg/params"
	"github.com/depthlab/noisecache/pkg/statsapi"
)

// Metric selects which aggregate a wide table projects.
type Metric string

const (
	MetricMeanTumor  Metric = "mean_tumor"
	MetricMeanNormal Metric = "mean_normal"
	MetricCVTumor    Metric = "cv_tumor"
	MetricCVNormal   Metric = "cv_normal"
	MetricLogFC      Metric = "logfc"
)

// Cell is one wide-table value. Valid is false for a gene/site combination
// the service has no data for; a missing value is never rendered as a
// fabricated zero.
type Cell struct {
	Value float64
	Valid bool
}

// Table is a gene x site projection of one metric.
type Table struct {
	Metric Metric

	// Sites are the column labels in caller-given order.
	Sites []string

	// Genes are the row labels in caller-given order.
	Genes []string

	// Cells is indexed [gene][site].
	Cells [][]Cell

	// Warnings carries non-blocking advisory messages, e.g. sites with
	// zero normal samples.
	Warnings []string
}

// WideTable projects one metric of a gene-noise result onto a gene x site
// table for the given transform and normalization method.
//
// Sites with zero normal samples are a statistical edge case, not an
// error: cv_normal and logfc for such a site are defined as zero and a
// warning is attached to the table.
func WideTable(res *statsapi.GeneNoiseResult, transform params.Transform, method params.Method, metric Metric, genes, sites []string) (*Table, error) {
	if res == nil {
		return nil, &statsapi.QueryError{
			Kind:    statsapi.ErrorKindDataShape,
			Message: "nil gene-noise result",
		}
	}
	if transform == "" {
		transform = params.TransformRaw
	}

	stats, ok := res.StatsFor(transform, method)
	if !ok {
		return nil, &statsapi.QueryError{
			Kind:    statsapi.ErrorKindDataShape,
			Message: fmt.Sprintf("result has no %s/%s block", transform, method),
		}
	}

	table := &Table{
		Metric: metric,
		Sites:  append([]string(nil), sites...),
		Genes:  append([]string(nil), genes...),
		Cells:  make([][]Cell, len(genes)),
	}

	for i, gene := range genes {
		row := make([]Cell, len(sites))
		siteStats := stats[gene]
		for j, site := range sites {
			ss, ok := siteStats[strings.ToLower(site)]
			if !ok {
				continue // no data sentinel, not zero
			}
			row[j] = Cell{Value: metricValue(ss, metric), Valid: true}
		}
		table.Cells[i] = row
	}

	table.Warnings = zeroNormalWarnings(res, metric, sites)
	if len(table.Warnings) > 0 {
		zeroOutAffectedSites(table, res)
	}

	return table, nil
}

// metricValue extracts one aggregate from a site's stats.
func metricValue(ss statsapi.SiteStats, metric Metric) float64 {
	switch metric {
	case MetricMeanTumor:
		return ss.MeanTumor
	case MetricMeanNormal:
		return ss.MeanNormal
	case MetricCVTumor:
		return ss.CVTumor
	case MetricCVNormal:
		return ss.CVNormal
	case MetricLogFC:
		return ss.LogFC
	default:
		return 0
	}
}

// zeroNormalWarnings lists the selected sites whose normal-derived metrics
// are undefined because the site has no normal samples.
func zeroNormalWarnings(res *statsapi.GeneNoiseResult, metric Metric, sites []string) []string {
	if metric != MetricCVNormal && metric != MetricLogFC && metric != MetricMeanNormal {
		return nil
	}

	var warnings []string
	for _, site := range sites {
		counts, ok := res.SampleCounts[strings.ToLower(site)]
		if ok && counts.Normal == 0 {
			warnings = append(warnings,
				fmt.Sprintf("site %s has no normal samples; %s is reported as zero", site, metric))
		}
	}
	return warnings
}

// zeroOutAffectedSites forces cv_normal and logfc to zero for sites
// without normal samples, matching the service's definition of the
// statistic for that case.
func zeroOutAffectedSites(t *Table, res *statsapi.GeneNoiseResult) {
	if t.Metric != MetricCVNormal && t.Metric != MetricLogFC {
		return
	}
	for j, site := range t.Sites {
		counts, ok := res.SampleCounts[strings.ToLower(site)]
		if !ok || counts.Normal != 0 {
			continue
		}
		for i := range t.Cells {
			if t.Cells[i][j].Valid {
				t.Cells[i][j].Value = 0
			}
		}
	}
}

// WriteCSV serializes the table as CSV: a header row of "gene" plus site
// columns, then one row per gene. No-data cells render empty.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append([]string{"gene"}, t.Sites...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for i, gene := range t.Genes {
		record := make([]string, 0, len(t.Sites)+1)
		record = append(record, gene)
		for _, cell := range t.Cells[i] {
			if !cell.Valid {
				record = append(record, "")
				continue
			}
			record = append(record, strconv.FormatFloat(cell.Value, 'g', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %q: %w", gene, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
