package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/mcpserver"
)

// runMCP starts the MCP (Model Context Protocol) server on stdio, the
// transport IDE integrations (VS Code, Claude Desktop, Cursor) use.
func runMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)

	baselineDir := fs.String("baseline-dir", envOrDefault("RISKGATE_BASELINE_DIR", defaults.BaselineDir), "Baseline directory")
	policyFile := fs.String("policy", os.Getenv("RISKGATE_POLICY"), "Policy file applied when tool calls name none")
	fs.StringVar(policyFile, "p", *policyFile, "Policy file (alias)")
	preset := fs.String("preset", os.Getenv("RISKGATE_PRESET"), "Built-in policy preset applied when tool calls name none")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: riskgate mcp [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Start an MCP server exposing the gate's evaluation, guard, and\n")
		fmt.Fprintf(os.Stderr, "baseline tools over stdio.\n\n")
		fmt.Fprintf(os.Stderr, "Environment variables:\n")
		fmt.Fprintf(os.Stderr, "  RISKGATE_BASELINE_DIR  Baseline directory (default: %s)\n", defaults.BaselineDir)
		fmt.Fprintf(os.Stderr, "  RISKGATE_POLICY        Default policy file (same as -policy)\n")
		fmt.Fprintf(os.Stderr, "  RISKGATE_PRESET        Default policy preset (same as -preset)\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  riskgate mcp\n")
		fmt.Fprintf(os.Stderr, "  riskgate mcp -preset strict\n")
		fmt.Fprintf(os.Stderr, "  RISKGATE_BASELINE_DIR=/data/baselines riskgate mcp\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	// Fail fast on a bad policy instead of erroring on the first tool call.
	pol, err := resolvePolicy(*policyFile, *preset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fmt.Fprintf(os.Stderr, "hint: point -policy or RISKGATE_POLICY at a readable policy file\n")
		os.Exit(int(exitcode.Configuration))
	}
	fmt.Fprintf(os.Stderr, "riskgate MCP server: policy %s, baselines in %s\n", pol.Reference(), *baselineDir)

	srv := mcpserver.New(&mcpserver.Config{
		BaselineDir: *baselineDir,
		PolicyFile:  *policyFile,
		Preset:      *preset,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintf(os.Stderr, "riskgate MCP server listening on stdio\n")
	if err := srv.RunStdio(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(int(exitcode.Internal))
	}
}
