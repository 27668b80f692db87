package dpor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gookit/color"

	"github.com/concheck/sct/conc"
)

// Summary is the aggregate view over a finished exploration, the
// equivalent of the teacher's ModelStatistics for this engine's own
// result shape.
type Summary struct {
	Executions     int
	DistinctShapes int
	FailureCounts  map[conc.FailureKind]int
}

// Summarize folds a completed exploration's executions into a Summary.
func Summarize(executions []Execution, shapes tracehashDistinctCounter) Summary {
	s := Summary{Executions: len(executions), FailureCounts: make(map[conc.FailureKind]int)}
	if shapes != nil {
		s.DistinctShapes = shapes.DistinctCount()
	}
	for _, e := range executions {
		s.FailureCounts[e.Result.Failure]++
	}
	return s
}

// tracehashDistinctCounter is the minimal surface report.go needs from
// tracehash.ShapeSet, kept as an interface so this package doesn't need
// to import tracehash just to shape a summary.
type tracehashDistinctCounter interface {
	DistinctCount() int
}

// FormatSummary renders a Summary for the CLI, styled on the teacher's
// model.FormatStatistics (gookit/color section headers, bold labels).
func FormatSummary(s Summary) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(color.Cyan.Sprint("=== Exploration statistics ==="))
	b.WriteString("\n")
	b.WriteString(color.Bold.Sprint("Executions explored: "))
	b.WriteString(fmt.Sprintf("%d\n", s.Executions))
	b.WriteString(color.Bold.Sprint("Distinct result shapes: "))
	b.WriteString(fmt.Sprintf("%d\n", s.DistinctShapes))

	var kinds []conc.FailureKind
	for k := range s.FailureCounts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		n := s.FailureCounts[k]
		b.WriteString(color.Bold.Sprintf("  %s: ", k))
		if k == conc.FailureNone {
			b.WriteString(color.Green.Sprintf("%d\n", n))
		} else {
			b.WriteString(color.Yellow.Sprintf("%d\n", n))
		}
	}
	return b.String()
}
