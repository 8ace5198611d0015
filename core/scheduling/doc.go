// Package scheduling implements the pluggable planning layer. A Scheduler
// computes a time-indexed power series for a flexible asset given prices and
// constraints. The storage scheduler formulates a linear program over
// charge/discharge power per slot and solves it with the simplex method,
// falling back to a greedy heuristic when the LP is infeasible or the solver
// fails. Process assets are placed with inflexible, shiftable or breakable
// policies. Schedulers are registered by name so plugins can supply their
// own.
package scheduling
