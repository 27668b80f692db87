package act

import "github.com/concheck/sct/ids"

// The helpers below are not part of the engine's contract — §1 places
// "the specific user-facing API through which computations are
// constructed" out of scope. They exist only so this repository's own
// tests can build small Action trees without hand-writing continuation
// closures at every call site.

// Do sequences two single-result primitives: run first, feed its result
// into next.
func Do(first func(func(Value) Action) Action, next func(Value) Action) Action {
	return first(next)
}

// Seq runs a list of value-producing steps in order for side effect,
// then continues with final, discarding intermediate results.
func Seq(steps []func(func(Value) Action) Action, final func() Action) Action {
	if len(steps) == 0 {
		return final()
	}
	return steps[0](func(Value) Action {
		return Seq(steps[1:], final)
	})
}

// Fin builds a Return action, conventionally used as a chain's terminal
// continuation.
func Fin(v Value) func(Value) Action {
	return func(Value) Action { return &Return{Value: v} }
}

// ForkN builds a Fork action forking body and resuming parent via k.
func ForkN(name string, body func(Umask) Action, k func(ids.ThreadID) Action) Action {
	return &Fork{Name: name, Body: body, K: k}
}
