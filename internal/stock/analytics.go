package stock

import (
	"math"
	"sort"
)

// timelineLayout keys the upload timeline by UTC calendar day.
const timelineLayout = "2006-01-02"

// ComputeFileStats aggregates active file rows. An empty input yields zeroes.
func ComputeFileStats(rows []FileStatRow) FileStats {
	stats := FileStats{
		FilesByCategory: map[string]CategoryTotals{},
		UploadTimeline:  map[string]int64{},
	}

	for _, row := range rows {
		stats.TotalFiles++
		stats.TotalSize += row.Size

		totals := stats.FilesByCategory[row.Category]
		totals.Count++
		totals.TotalSize += row.Size
		stats.FilesByCategory[row.Category] = totals

		stats.UploadTimeline[row.UploadedAt.UTC().Format(timelineLayout)]++
	}

	if stats.TotalFiles > 0 {
		stats.AverageFileSize = int64(math.Round(float64(stats.TotalSize) / float64(stats.TotalFiles)))
	}

	return stats
}

// ComputeCategoryUsage annotates every category with its active file count and
// its rounded share of all active files, ordered by name.
func ComputeCategoryUsage(categories []Category, activeFileCategories []string) []CategoryUsage {
	counts := make(map[string]int64, len(categories))
	for _, name := range activeFileCategories {
		counts[name]++
	}
	total := int64(len(activeFileCategories))

	usage := make([]CategoryUsage, 0, len(categories))
	for _, category := range categories {
		count := counts[category.Name]
		var percentage int64
		if total > 0 {
			percentage = int64(math.Round(float64(count) / float64(total) * 100))
		}
		usage = append(usage, CategoryUsage{
			Category:        category,
			FileCount:       count,
			UsagePercentage: percentage,
		})
	}

	sort.SliceStable(usage, func(i, j int) bool {
		return usage[i].Name < usage[j].Name
	})
	return usage
}
