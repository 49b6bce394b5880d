package views

import (
	"reflect"
	"strings"
	"testing"

	"github.com/depthlab/noisecache/pkg/params"
	"github.com/depthlab/noisecache/pkg/statsapi"
)

// testResult builds a gene-noise result with TP53/EGFR over lung and
// liver under raw/tpm. normalByLung sets the lung normal sample count.
func testResult(lungNormal int) *statsapi.GeneNoiseResult {
	lungStats := func(logfc float64) statsapi.SiteStats {
		ss := statsapi.SiteStats{
			MeanTumor:  12.0,
			MeanNormal: 9.0,
			CVTumor:    0.55,
			CVNormal:   0.31,
			LogFC:      logfc,
		}
		if lungNormal == 0 {
			ss.CVNormal = 0
			ss.LogFC = 0
		}
		return ss
	}

	return &statsapi.GeneNoiseResult{
		Transforms: map[params.Transform]map[params.Method]statsapi.MethodStats{
			params.TransformRaw: {
				params.MethodTPM: {
					GeneStats: statsapi.GeneStats{
						"TP53": {
							"lung":  lungStats(0.74),
							"liver": {MeanTumor: 8.0, MeanNormal: 7.5, CVTumor: 0.40, CVNormal: 0.28, LogFC: 0.52},
						},
						"EGFR": {
							"lung": lungStats(-1.20),
							// no liver data for EGFR
						},
					},
				},
			},
		},
		SampleCounts: map[string]statsapi.SampleCounts{
			"lung":  {Tumor: 50, Normal: lungNormal},
			"liver": {Tumor: 40, Normal: 12},
		},
		AvailableSites: []string{"lung", "liver"},
	}
}

func TestWideTable_MissingDataIsSentinelNotZero(t *testing.T) {
	res := testResult(10)

	table, err := WideTable(res, params.TransformRaw, params.MethodTPM, MetricCVTumor,
		[]string{"TP53", "EGFR"}, []string{"Lung", "Liver"})
	if err != nil {
		t.Fatalf("WideTable failed: %v", err)
	}

	if !table.Cells[0][0].Valid || table.Cells[0][0].Value != 0.55 {
		t.Errorf("TP53/Lung = %+v, want valid 0.55", table.Cells[0][0])
	}
	if !table.Cells[1][0].Valid {
		t.Errorf("EGFR/Lung should be valid")
	}
	if table.Cells[1][1].Valid {
		t.Errorf("EGFR/Liver has no data and must be a no-data sentinel, got %+v", table.Cells[1][1])
	}
	if len(table.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", table.Warnings)
	}
}

func TestWideTable_ZeroNormalSamples(t *testing.T) {
	res := testResult(0)

	for _, metric := range []Metric{MetricCVNormal, MetricLogFC} {
		t.Run(string(metric), func(t *testing.T) {
			table, err := WideTable(res, params.TransformRaw, params.MethodTPM, metric,
				[]string{"TP53", "EGFR"}, []string{"Lung", "Liver"})
			if err != nil {
				t.Fatalf("WideTable failed: %v", err)
			}

			for i, gene := range table.Genes {
				cell := table.Cells[i][0]
				if !cell.Valid {
					t.Errorf("%s/Lung should stay valid", gene)
				}
				if cell.Value != 0 {
					t.Errorf("%s/Lung %s = %v, want 0 for a zero-normal site", gene, metric, cell.Value)
				}
			}

			if len(table.Warnings) != 1 || !strings.Contains(table.Warnings[0], "Lung") {
				t.Errorf("warnings = %v, want one warning naming Lung", table.Warnings)
			}
		})
	}
}

func TestWideTable_TumorMetricsHaveNoZeroNormalWarning(t *testing.T) {
	res := testResult(0)

	table, err := WideTable(res, params.TransformRaw, params.MethodTPM, MetricMeanTumor,
		[]string{"TP53"}, []string{"Lung"})
	if err != nil {
		t.Fatalf("WideTable failed: %v", err)
	}
	if len(table.Warnings) != 0 {
		t.Errorf("tumor metric carries zero-normal warnings: %v", table.Warnings)
	}
	if table.Cells[0][0].Value != 12.0 {
		t.Errorf("TP53/Lung mean_tumor = %v, want 12.0", table.Cells[0][0].Value)
	}
}

func TestWideTable_MissingBlockIsDataShapeError(t *testing.T) {
	res := testResult(10)

	_, err := WideTable(res, params.TransformLog2, params.MethodTPM, MetricLogFC,
		[]string{"TP53"}, []string{"Lung"})
	if err == nil {
		t.Fatal("expected error for missing transform block")
	}
	if statsapi.KindOf(err) != statsapi.ErrorKindDataShape {
		t.Errorf("error kind = %s, want %s", statsapi.KindOf(err), statsapi.ErrorKindDataShape)
	}
}

func TestWideTable_Idempotent(t *testing.T) {
	res := testResult(0)

	first, err := WideTable(res, params.TransformRaw, params.MethodTPM, MetricLogFC,
		[]string{"TP53", "EGFR"}, []string{"Lung", "Liver"})
	if err != nil {
		t.Fatalf("WideTable failed: %v", err)
	}
	second, err := WideTable(res, params.TransformRaw, params.MethodTPM, MetricLogFC,
		[]string{"TP53", "EGFR"}, []string{"Lung", "Liver"})
	if err != nil {
		t.Fatalf("WideTable failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("same inputs produced different tables")
	}
}

func TestTable_WriteCSV(t *testing.T) {
	table := &Table{
		Metric: MetricLogFC,
		Sites:  []string{"Lung", "Liver"},
		Genes:  []string{"TP53", "EGFR"},
		Cells: [][]Cell{
			{{Value: 0.74, Valid: true}, {Valid: false}},
			{{Value: 1.5, Valid: true}, {Value: -0.5, Valid: true}},
		},
	}

	var sb strings.Builder
	if err := table.WriteCSV(&sb); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	want := "gene,Lung,Liver\nTP53,0.74,\nEGFR,1.5,-0.5\n"
	if sb.String() != want {
		t.Errorf("csv = %q, want %q", sb.String(), want)
	}
}
