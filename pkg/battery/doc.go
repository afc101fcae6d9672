// Package battery holds the normalized vocabulary every backend is mapped
// into: charger type, charging state, level status and the numeric metrics.
//
// Integer metrics a backend cannot produce read as Unsupported (-1) and an
// unavailable temperature reads as NaN. Neither is an error.
package battery
