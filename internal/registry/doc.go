// Package registry builds strategies by name from a flat parameter map, for
// callers that receive their configuration as data: the CLI, the MCP tools
// and stored runs.
//
// Every strategy has a full set of defaults, so an empty map is valid.
// Unknown names and unknown parameter keys are rejected with
// types.ErrInvalidArgument; out-of-range values surface the constructor's
// own error.
//
//	s, err := registry.Numeric("variance", map[string]float64{"window": 8})
//
//	multi, err := registry.NumericSpec(registry.Spec{
//	    Name:     "multi",
//	    Combine:  "any",
//	    Children: []registry.Spec{{Name: "variance"}, {Name: "wavelet"}},
//	})
package registry
