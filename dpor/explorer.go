package dpor

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/concheck/sct/act"
	"github.com/concheck/sct/conc"
	"github.com/concheck/sct/ids"
	"github.com/concheck/sct/tracehash"
)

// Execution is one completed, non-ignored run the explorer yielded
// (§4.7's "yield (result, trace)").
type Execution struct {
	Result conc.Result
	Trace  []act.TraceStep
	Shape  tracehash.Hash
}

// Explorer drives conc.RunConcurrency to bounded exhaustion against a
// fixed Program (§4.7 Explorer Driver). Program is invoked once per
// execution to obtain a fresh Action tree.
type Explorer struct {
	Program       Program
	Memory        conc.MemoryModel
	Bounds        Bounds
	InitCaps      int
	MaxExecutions int // 0 means drain the tree

	Shapes *tracehash.ShapeSet
}

// NewExplorerFor is the direct constructor for tests and callers that
// already have a Program in hand, bypassing ScenarioSpec/the registry.
func NewExplorerFor(program Program, memory conc.MemoryModel, bounds Bounds) *Explorer {
	return &Explorer{Program: program, Memory: memory, Bounds: bounds, InitCaps: 1}
}

// Explore runs the driver loop, calling yield for each non-ignored
// execution; returning false from yield stops the exploration early.
// It returns every execution yielded, in order.
func (e *Explorer) Explore(yield func(Execution) bool) []Execution {
	if e.Shapes == nil {
		e.Shapes = tracehash.NewShapeSet(0)
	}
	tree := NewTree()
	var out []Execution

	for i := 0; e.MaxExecutions <= 0 || i < e.MaxExecutions; i++ {
		var prefix []ids.ThreadID
		var sleep map[ids.ThreadID]act.Lookahead
		if i > 0 {
			p, conservative, sl, ok := tree.FindSchedulePrefix()
			if !ok {
				log.Debug().Int("executions", i).Msg("dpor: tree drained")
				break
			}
			prefix, sleep = p, sl
			// conservative backtracking points are guaranteed to be
			// explored by findFrom's construction (it only returns
			// not-yet-done points regardless of this flag, satisfying
			// D4); it is surfaced here purely for diagnostics.
			log.Trace().Bool("conservative", conservative).Int("prefix_len", len(prefix)).Msg("dpor: new schedule prefix")
		}

		sched := newScheduler(prefix, sleep, e.Bounds)
		ctx := conc.NewContext(e.Program(), e.Memory, e.InitCaps)
		result, trace := conc.RunConcurrency(ctx, sched)

		log.Trace().
			Str("run_id", ctx.RunID).
			Int("execution", i).
			Str("failure", result.Failure.String()).
			Int("steps", len(trace)).
			Bool("ignore", sched.ignore).
			Bool("bound_kill", sched.boundKill).
			Msg("dpor: execution complete")

		if sched.ignore {
			continue
		}

		bsteps := findBacktrackSteps(trace, sched.boundKill)
		tree.IncorporateTrace(trace)
		tree.IncorporateBacktrackSteps(trace, bsteps)

		shape := shapeOf(ctx, result)
		hash, fresh, err := e.Shapes.Observe(shape)
		if err != nil {
			log.Warn().Err(err).Msg("dpor: failed to digest result shape")
		} else if fresh {
			log.Info().Str("failure", result.Failure.String()).Msg("dpor: new result shape")
		}

		exec := Execution{Result: result, Trace: trace, Shape: hash}
		out = append(out, exec)
		if !yield(exec) {
			break
		}
	}
	return out
}

// ExploreAll is Explore with an always-continue callback, for callers
// that just want the full list of executions.
func (e *Explorer) ExploreAll() []Execution {
	return e.Explore(func(Execution) bool { return true })
}

// shapeOf projects a completed context + result into tracehash.Shape.
func shapeOf(ctx *conc.Context, result conc.Result) tracehash.Shape {
	s := tracehash.Shape{Failure: result.Failure.String()}
	if result.Value != nil {
		s.Value = result.Value.String()
	}

	var crefIDs []ids.CRefID
	for id := range ctx.CRefs {
		crefIDs = append(crefIDs, id)
	}
	sort.Slice(crefIDs, func(i, j int) bool { return crefIDs[i] < crefIDs[j] })
	for _, id := range crefIDs {
		s.Cells = append(s.Cells, "cref:"+id.String()+"="+valueString(ctx.CRefs[id].Value))
	}

	var tvarIDs []ids.TVarID
	for id := range ctx.TVars {
		tvarIDs = append(tvarIDs, id)
	}
	sort.Slice(tvarIDs, func(i, j int) bool { return tvarIDs[i] < tvarIDs[j] })
	for _, id := range tvarIDs {
		s.Cells = append(s.Cells, "tvar:"+id.String()+"="+valueString(ctx.TVars[id].Value))
	}
	return s
}

func valueString(v act.Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
