// Package synthetic generates plausible roadside sensor observations.
//
// A Generator draws speeds from a normal distribution (gonum distuv) around
// a per-type mean, picks vehicle types by weight and reuses plates from an
// explicit Registry to model repeat offenders. Everything is seeded, so a
// fixed seed yields a reproducible stream.
package synthetic
