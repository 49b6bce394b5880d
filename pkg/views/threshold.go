package views

import (
	"math"
	"sort"
	"strings"

	"github.com/depthlab/noisecache/pkg/statsapi"
)

// MinGenesPerSite is the minimum number of threshold-passing genes a site
// needs to contribute to downstream pathway matching.
const MinGenesPerSite = 3

// FilterByLogFC returns, per selected site, the genes whose absolute log2
// fold-change meets or exceeds threshold. Sites with fewer than
// MinGenesPerSite passing genes are dropped entirely. Gene lists are
// sorted for deterministic output.
func FilterByLogFC(stats statsapi.GeneStats, sites []string, threshold float64) map[string][]string {
	passing := make(map[string][]string)

	for _, site := range sites {
		lower := strings.ToLower(site)
		var genes []string
		for gene, siteStats := range stats {
			ss, ok := siteStats[lower]
			if !ok {
				continue
			}
			if math.Abs(ss.LogFC) >= threshold {
				genes = append(genes, gene)
			}
		}
		if len(genes) < MinGenesPerSite {
			continue
		}
		sort.Strings(genes)
		passing[site] = genes
	}

	return passing
}
