// Package twin implements the in-memory digital-twin data model and state
// store for the planning pipeline: the node/cluster/job/plan value types and
// the StateStore that exclusively owns them. Behavioural subsystems built on
// top of this package (cluster latency, resiliency scoring, predictive
// scoring, placement policies) live in sibling sub-packages.
package twin
