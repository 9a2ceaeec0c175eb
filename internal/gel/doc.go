// Package gel implements the gel run controller.
//
// A Gel moves through a fixed life cycle:
//
//	Configured → Running → Stopped → Rendered
//
// New validates and copies the configuration. Run advances a simulated clock
// until the fastest fragment has covered TillLen of the gel or TillTime has
// elapsed, whichever comes first in simulated time (a tie counts as
// distance). Render turns the stopped run into bands and an intensity field.
//
// THREAD SAFETY:
//
// A Gel is owned by one goroutine. Run is single-threaded; the simulated
// clock and run state are only touched by it. Render fans out one goroutine
// per lane, and each goroutine writes only its own row of the field. A
// Result is read-only once returned.
//
// FAILURE SEMANTICS:
//
// Every precondition is checked before state changes. A failed or cancelled
// Run leaves the Gel Configured with no partial run state.
package gel
