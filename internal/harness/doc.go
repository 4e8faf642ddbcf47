// Package harness runs fusion scenarios: small YAML files that name source
// fragments, the targets to emit and what the run must produce.
//
// # Scenario Format
//
//	name: shapes
//	description: "python and go fuse into one program"
//	sources:
//	  - path: geometry.py          # relative to the scenario file
//	  - code: |
//	      function banner() { return "shapes"; }
//	    lang: javascript
//	    module: util
//	targets: [go, python]
//	golden: true                   # compare artifacts with golden files
//	expect:
//	  status: ok                   # ok, error or failed
//	  diagnostics:
//	    - code: W101
//	      severity: warning
//	      contains: "shadows"
//	  contains:
//	    go: ["func area("]
//
// # Status
//
//   - ok: the run produced artifacts and no error diagnostics
//   - error: the run stopped on error diagnostics
//   - failed: the pipeline returned an internal error (for example a pass
//     that does not converge)
//
// # Golden Files
//
// Golden artifacts live at <golden dir>/<scenario>.<target>.golden. Tests use
// RunWithGolden, which stores them under testdata/golden through goldie;
// `rift test --update` rewrites them from the command line.
package harness
