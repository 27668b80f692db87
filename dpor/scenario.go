package dpor

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/concheck/sct/act"
	"github.com/concheck/sct/conc"
)

// Program builds one fresh Action tree for a scenario. It is called
// once per execution so no state leaks between runs; scenario authors
// should close over nothing mutable.
type Program func() act.Action

var (
	registryMu sync.Mutex
	registry   = make(map[string]Program)
)

// Register names a Program builder so a ScenarioSpec loaded from TOML
// can refer to it without embedding Go source (§6: scenario
// configuration names a bound pair, memory model and expected error;
// thread bodies come from this registry, mirroring the role the
// teacher's model.Spec plays for its .star programs, minus any
// code-construction syntax).
func Register(name string, builder Program) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = builder
}

// Lookup returns the builder registered under name.
func Lookup(name string) (Program, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	b, ok := registry[name]
	return b, ok
}

// ScenarioSpec is the TOML-loadable exploration configuration (§6
// [AMBIENT] Scenario configuration), mirroring the shape of the
// teacher's model.Spec/SpecDetails.
type ScenarioSpec struct {
	Scenario ScenarioDetails `toml:"scenario"`
}

type ScenarioDetails struct {
	Program          string `toml:"program"`
	MemoryModel      string `toml:"memory_model,omitempty"`       // "sc" | "tso" | "pso", default "sc"
	PreemptionBound  uint32 `toml:"preemption_bound,omitempty"`   // default 2
	FairBound        uint32 `toml:"fair_bound,omitempty"`         // default 5
	InitCaps         int    `toml:"init_caps,omitempty"`          // default 1
	MaxExecutions    int    `toml:"max_executions,omitempty"`     // 0 means unbounded (drain the tree)
	ExpectedError    string `toml:"expected_error,omitempty"`     // substring match against a Failure's Kind, like the teacher's Spec.ExpectedError
}

func parseScenario(r io.Reader) (*ScenarioSpec, error) {
	var out ScenarioSpec
	if _, err := toml.NewDecoder(r).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadScenarioFromFile mirrors the teacher's model.LoadSpecFromFile.
func LoadScenarioFromFile(path string) (*ScenarioSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseScenario(f)
}

func (s *ScenarioSpec) memoryModel() (conc.MemoryModel, error) {
	switch strings.ToLower(s.Scenario.MemoryModel) {
	case "", "sc", "sequentialconsistency":
		return conc.SequentialConsistency, nil
	case "tso", "totalstoreorder":
		return conc.TotalStoreOrder, nil
	case "pso", "partialstoreorder":
		return conc.PartialStoreOrder, nil
	default:
		return 0, fmt.Errorf("unknown memory model %q", s.Scenario.MemoryModel)
	}
}

func (s *ScenarioSpec) bounds() Bounds {
	b := DefaultBounds()
	if s.Scenario.PreemptionBound > 0 {
		b.Preemption = s.Scenario.PreemptionBound
	}
	if s.Scenario.FairBound > 0 {
		b.Fair = s.Scenario.FairBound
	}
	return b
}

func (s *ScenarioSpec) initCaps() int {
	if s.Scenario.InitCaps > 0 {
		return s.Scenario.InitCaps
	}
	return 1
}

// MatchesExpectedResult mirrors the teacher's Spec.MatchesExpectedResult:
// with no ExpectedError, a run is expected to succeed; with one set, at
// least one execution must fail with a matching Kind substring.
func (s *ScenarioSpec) MatchesExpectedResult(executions []Execution) bool {
	if s.Scenario.ExpectedError == "" {
		for _, e := range executions {
			if e.Result.Failure != conc.FailureNone {
				return false
			}
		}
		return true
	}
	want := strings.ToLower(s.Scenario.ExpectedError)
	for _, e := range executions {
		if e.Result.Failure != conc.FailureNone && strings.Contains(strings.ToLower(e.Result.Failure.String()), want) {
			return true
		}
	}
	return false
}

// NewExplorer builds an Explorer from a loaded ScenarioSpec, looking up
// its program in the registry.
func NewExplorer(spec *ScenarioSpec) (*Explorer, error) {
	builder, ok := Lookup(spec.Scenario.Program)
	if !ok {
		return nil, fmt.Errorf("no scenario program registered under %q", spec.Scenario.Program)
	}
	model, err := spec.memoryModel()
	if err != nil {
		return nil, err
	}
	return &Explorer{
		Program:       builder,
		Memory:        model,
		Bounds:        spec.bounds(),
		InitCaps:      spec.initCaps(),
		MaxExecutions: spec.Scenario.MaxExecutions,
	}, nil
}
