// Package merge consolidates all batch artifacts of a finished run into one
// table: artifacts are read in sequence order, columns are unioned with
// empty fill, and rows are deduplicated by their identifying column.
package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/musecrawl/harvester/pkg/artifact"
)

// Stats summarizes one merge.
type Stats struct {
	Artifacts  int
	Columns    int
	Rows       int
	Duplicates int
	Path       string
}

// Merge reads every artifact matching prefix under dir and writes the
// consolidated table to out. Batches may carry different column sets; the
// result holds their union in first-seen order, with empty cells where a
// batch lacked a column. Rows are deduplicated by the "url" column when
// present, else "id", else by full row identity, keeping the first seen.
func Merge(dir, prefix, out string) (Stats, error) {
	if prefix == "" {
		prefix = artifact.DefaultPrefix
	}
	logger := log.With().Str("component", "merge").Logger()

	paths, err := filepath.Glob(filepath.Join(dir, prefix+"*.csv"))
	if err != nil {
		return Stats{}, fmt.Errorf("list artifacts: %w", err)
	}
	if len(paths) == 0 {
		return Stats{}, fmt.Errorf("no batch artifacts under %s", dir)
	}

	// Sequence order, not lexicographic: once a run outgrows the 4-digit
	// padding, "batch_10000" would otherwise sort before "batch_2000".
	sort.Slice(paths, func(i, j int) bool {
		si, iok := artifactSequence(paths[i], prefix)
		sj, jok := artifactSequence(paths[j], prefix)
		if iok && jok && si != sj {
			return si < sj
		}
		if iok != jok {
			return iok
		}
		return paths[i] < paths[j]
	})

	var (
		columns []string
		index   = make(map[string]int)
		merged  [][]string
	)

	for _, path := range paths {
		header, rows, err := artifact.ReadTable(path)
		if err != nil {
			return Stats{}, err
		}

		// Map this artifact's columns into the union.
		positions := make([]int, len(header))
		for i, column := range header {
			pos, ok := index[column]
			if !ok {
				pos = len(columns)
				index[column] = pos
				columns = append(columns, column)
			}
			positions[i] = pos
		}

		for _, row := range rows {
			wide := make([]string, len(columns))
			for i, cell := range row {
				if i < len(positions) {
					wide[positions[i]] = cell
				}
			}
			merged = append(merged, wide)
		}

		logger.Info().
			Str("artifact", filepath.Base(path)).
			Int("rows", len(rows)).
			Int("columns", len(header)).
			Msg("Artifact loaded")
	}

	// Late artifacts may have introduced columns; pad earlier rows.
	for i, row := range merged {
		if len(row) < len(columns) {
			wide := make([]string, len(columns))
			copy(wide, row)
			merged[i] = wide
		}
	}

	deduped, duplicates := dedupe(columns, merged)

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return Stats{}, fmt.Errorf("create merge output directory: %w", err)
	}
	if err := artifact.WriteTable(out, columns, deduped); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Artifacts:  len(paths),
		Columns:    len(columns),
		Rows:       len(deduped),
		Duplicates: duplicates,
		Path:       out,
	}
	logger.Info().
		Int("artifacts", stats.Artifacts).
		Int("rows", stats.Rows).
		Int("columns", stats.Columns).
		Int("duplicates_removed", stats.Duplicates).
		Str("path", out).
		Msg("Merge complete")

	return stats, nil
}

// artifactSequence parses the batch sequence number out of an artifact
// file name.
func artifactSequence(path, prefix string) (int, bool) {
	base := strings.TrimSuffix(filepath.Base(path), ".csv")
	n, err := strconv.Atoi(strings.TrimPrefix(base, prefix))
	if err != nil {
		return 0, false
	}
	return n, true
}

// dedupe removes duplicate rows, keyed by the identifying column when one
// exists, keeping the first occurrence.
func dedupe(columns []string, rows [][]string) ([][]string, int) {
	keyCol := -1
	for _, name := range []string{"url", "id"} {
		for i, column := range columns {
			if column == name {
				keyCol = i
				break
			}
		}
		if keyCol >= 0 {
			break
		}
	}

	seen := make(map[string]bool, len(rows))
	kept := rows[:0:0]
	for _, row := range rows {
		var key string
		if keyCol >= 0 && keyCol < len(row) && row[keyCol] != "" {
			key = row[keyCol]
		} else {
			key = strings.Join(row, "\x1f")
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, row)
	}
	return kept, len(rows) - len(kept)
}
