// Package finding provides the normalized vulnerability finding types
// consumed by the policy gate.
//
// Upstream scanner adapters normalize their native report formats into
// this shape before the gate ever sees them; the gate itself depends on
// nothing but the severity tier and passes the rest through to reports.
//
// Usage:
//
//	doc, err := input.Load("findings.json")
//	counts, err := scoring.Aggregate(doc.Findings)
package finding
