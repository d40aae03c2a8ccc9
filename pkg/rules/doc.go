// Package rules holds the speed thresholds and fine schedule, and the pure
// evaluation function that turns one vehicle observation into a CheckResult.
//
// A RuleConfig is built once from Settings, validated, and never mutated
// afterwards, so it can be shared by every worker without locking.
//
// # Classification
//
// A vehicle is TOO_SLOW when its speed is strictly below the minimum limit
// and SPEEDING when it is strictly above the limit for its type. A speed equal
// to either limit is legal.
//
// # Fines
//
// The base fine comes from a tiered band table, one table per violation kind.
// The matching band is the last band whose lower bound is at or below the
// speed. Speeds below the first band use the first band and speeds past the
// last band use the last one. The base fine is multiplied by
//
//	1 + STNKPenalty (registration inactive) + SIMPenalty (licence inactive)
//
// and the result is capped at MaxFine. All money arithmetic uses decimals.
package rules
