// Package mcpserver exposes riskgate as a Model Context Protocol (MCP) server,
// enabling AI assistants (Claude, VS Code Copilot, Cursor, etc.) to judge scan
// findings against gate policies through natural conversation.
//
// # Architecture
//
// The server is built on the official MCP Go SDK and exposes the gate's
// operations as tools:
//
//   - evaluate_findings: judge a findings document against a policy
//   - check_regression:  compare a risk score against the stored baseline
//   - policy_health:     verify a policy still pins the canonical verdicts
//   - get_baseline:      read the stored baseline for an application
//
// # Tool Design Principles
//
// Every tool follows the same conventions:
//
//   - Detailed markdown descriptions with usage guidance and examples
//   - Complete JSON schemas with enums, defaults, min/max bounds
//   - Proper annotations (readOnlyHint, idempotentHint, openWorldHint)
//   - Actionable errors that suggest the correct next step
//
// # Transport
//
// The server communicates over stdin/stdout (stdio), the transport IDE
// integrations use. Tools never touch the network: evaluation, guard
// comparison and health checks all run in-process against local files.
//
// # Usage
//
//	cfg := &mcpserver.Config{BaselineDir: ".riskgate/baselines"}
//	srv := mcpserver.New(cfg)
//	err := srv.RunStdio(ctx)
package mcpserver
