// Package harness runs the fixed pipeline of suites against one target
// service and turns the per-suite outcomes into a readiness verdict.
//
// # Pipeline
//
// Suites execute strictly one after another, in the order given:
//
//	health → auth → profile → tasks → skills → challenges → pomodoro → moods → oauth → security
//
// Every suite receives the same *suite.Env, so the token acquired by the auth
// suite and the fixture ids recorded by CRUD suites flow forward. Nothing
// flows backward.
//
// # Fault Isolation
//
// A failing check never stops its suite, and a failing or panicking suite
// never stops the run. When a suite panics, the session is restored to the
// snapshot taken before the suite started, so later suites see the same state
// they would have seen had the suite never run.
//
// # Readiness
//
// The readiness score is the percentage of suites that fully passed:
//
//	score = successful / total * 100
//
// It maps to a verdict band:
//
//   - score ≥ 90: ready
//   - score ≥ 75: minor issues
//   - otherwise: needs work
//
// The band only drives the printed verdict. Process exit status depends on
// whether every suite passed.
//
// # Deterministic Testing
//
// The orchestrator takes its clock and run-id generator as fields. Tests use
// testutil.StepClock and testutil.FixedIDGenerator so summaries are
// reproducible.
package harness
