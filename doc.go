// Package noetcore is the module root for noet-core: a belief-graph core
// for compiling a tree of Markdown documents into a queryable network of
// typed nodes and relations.
//
// The module has no root-level API; each concern lives in its own
// subpackage:
//
//	ident/          — Bid/Bref/NodeKey identifier model
//	weight/         — edge-kind payload bundles (Section/Epistemic/Pragmatic)
//	bidgraph/       — directed multigraph over Bid nodes with WeightSet edges
//	pathmap/        — per-network ordered path derivation
//	belief/         — BeliefBase: node states, relations, event processing
//	graphbuilder/   — five-phase proto-node reconciliation
//	compiler/       — two-queue fixed-point scheduler, watch/serve surface
//	mdcodec/        — Markdown+TOML Codec implementation
//	internal/config — CLI session state (known networks, focus)
//	cmd/noet/       — CLI entry point (init/parse/watch)
//
// See SPEC_FULL.md and DESIGN.md at the module root for the full
// specification and grounding ledger.
package noetcore
