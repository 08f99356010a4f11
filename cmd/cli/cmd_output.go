package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/riskgate/riskgate/pkg/cicd"
	"github.com/riskgate/riskgate/pkg/config"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/hooks"
	"github.com/riskgate/riskgate/pkg/output/writers"
	"github.com/riskgate/riskgate/pkg/ui"
)

// artifactNames maps formats to their file names under -output-dir.
var artifactNames = map[string]string{
	"json":     "riskgate-report.json",
	"jsonl":    "riskgate-events.jsonl",
	"md":       "riskgate-report.md",
	"markdown": "riskgate-report.md",
	"sarif":    "riskgate.sarif",
	"junit":    "riskgate-junit.xml",
	"csv":      "riskgate-findings.csv",
	"pdf":      "riskgate-report.pdf",
	"template": "riskgate-report.txt",
}

// artifactName returns the output file name for a format.
func artifactName(format string) string {
	if name, ok := artifactNames[strings.ToLower(format)]; ok {
		return name
	}
	return "riskgate-report." + strings.ToLower(format)
}

// buildDispatcher assembles the event dispatcher for a run: one writer
// per requested format plus the hooks the config enables. The returned
// cleanup closes output files and the hooks the dispatcher does not
// own (metrics and trace exporters stay open across Flush), and must
// run after dispatcher.Close.
func buildDispatcher(cfg *config.Config) (*dispatcher.Dispatcher, func(), error) {
	disp := dispatcher.New(dispatcher.Config{})

	var files []*os.File
	var hookClosers []io.Closer
	cleanup := func() {
		for _, h := range hookClosers {
			h.Close()
		}
		for _, f := range files {
			f.Close()
		}
	}
	fail := func(err error) (*dispatcher.Dispatcher, func(), error) {
		cleanup()
		return nil, nil, err
	}

	if cfg.OutputFile != "" && fileFormats(cfg.Formats) > 1 {
		return fail(fmt.Errorf("-output holds a single format, use -output-dir for %d formats", fileFormats(cfg.Formats)))
	}

	for _, format := range cfg.Formats {
		out, err := formatOutput(cfg, format, &files)
		if err != nil {
			return fail(err)
		}
		w, err := newWriter(format, out, cfg)
		if err != nil {
			return fail(err)
		}
		disp.RegisterWriter(w)
	}

	if cfg.Verbose {
		disp.RegisterHook(hooks.NewLoggerHook(slog.Default()))
	}
	if !cfg.NoHistory && cfg.HistoryDir != "" {
		hook, err := hooks.NewHistoryHook(hooks.HistoryHookOptions{
			StorePath: cfg.HistoryDir,
			Tags:      cfg.Tags,
		})
		if err != nil {
			return fail(fmt.Errorf("opening history store: %w", err))
		}
		disp.RegisterHook(hook)
	}
	if cfg.CI {
		annotator, err := cicd.NewAnnotator(cicd.Options{AddSummary: true})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v, skipping CI annotations\n", err)
		} else {
			disp.RegisterHook(annotator)
		}
	}
	if cfg.MetricsAddr != "" {
		hook, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{Addr: cfg.MetricsAddr})
		if err != nil {
			return fail(fmt.Errorf("starting metrics endpoint: %w", err))
		}
		disp.RegisterHook(hook)
		hookClosers = append(hookClosers, hook)
	}
	if cfg.OTelEndpoint != "" {
		hook, err := hooks.NewOTelHook(hooks.OTelOptions{
			Endpoint: cfg.OTelEndpoint,
			Insecure: true,
		})
		if err != nil {
			return fail(fmt.Errorf("starting otel exporter: %w", err))
		}
		disp.RegisterHook(hook)
		hookClosers = append(hookClosers, hook)
	}
	registerNotificationHooks(disp, cfg)

	return disp, cleanup, nil
}

// registerNotificationHooks wires the outbound notification targets.
// A misconfigured target warns and is skipped: notifications never
// abort a gate run that is otherwise ready to evaluate.
func registerNotificationHooks(disp *dispatcher.Dispatcher, cfg *config.Config) {
	if cfg.WebhookURL != "" {
		disp.RegisterHook(hooks.NewWebhookHook(cfg.WebhookURL, hooks.WebhookOptions{
			AllEvents: cfg.WebhookAll,
		}))
	}
	if cfg.SlackWebhook != "" {
		disp.RegisterHook(hooks.NewSlackHook(cfg.SlackWebhook, hooks.SlackOptions{
			OnlyFailures: cfg.NotifyOnlyFailures,
		}))
	}
	if cfg.TeamsWebhook != "" {
		disp.RegisterHook(hooks.NewTeamsHook(cfg.TeamsWebhook, hooks.TeamsOptions{
			OnlyFailures: cfg.NotifyOnlyFailures,
		}))
	}
	if cfg.PagerDutyKey != "" {
		disp.RegisterHook(hooks.NewPagerDutyHook(cfg.PagerDutyKey, hooks.PagerDutyOptions{
			AutoResolve: true,
		}))
	}
	if cfg.JiraURL != "" {
		hook, err := hooks.NewJiraHook(cfg.JiraURL, hooks.JiraOptions{
			ProjectKey: cfg.JiraProject,
			Username:   os.Getenv("JIRA_EMAIL"),
			APIToken:   os.Getenv("JIRA_API_TOKEN"),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v, skipping Jira notifications\n", err)
		} else {
			disp.RegisterHook(hook)
		}
	}
	if cfg.GitHubIssues != "" {
		owner, repo, _ := strings.Cut(cfg.GitHubIssues, "/")
		hook, err := hooks.NewGitHubIssuesHook(hooks.GitHubIssuesOptions{
			Token: os.Getenv("GITHUB_TOKEN"),
			Owner: owner,
			Repo:  repo,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v, skipping GitHub issue creation\n", err)
		} else {
			disp.RegisterHook(hook)
		}
	}
}

// fileFormats counts the formats that write to a file rather than the
// terminal.
func fileFormats(formats []string) int {
	n := 0
	for _, f := range formats {
		if !strings.EqualFold(f, "console") {
			n++
		}
	}
	return n
}

// formatOutput resolves the destination for one format: console always
// goes to stdout, file formats go to -output-dir, then -output, then
// stdout.
func formatOutput(cfg *config.Config, format string, files *[]*os.File) (io.Writer, error) {
	if strings.EqualFold(format, "console") {
		return os.Stdout, nil
	}

	path := ""
	switch {
	case cfg.OutputDir != "":
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output dir: %w", err)
		}
		path = filepath.Join(cfg.OutputDir, artifactName(format))
	case cfg.OutputFile != "":
		path = cfg.OutputFile
	default:
		return os.Stdout, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s output: %w", format, err)
	}
	*files = append(*files, f)
	return f, nil
}

// newWriter constructs the writer for a format.
func newWriter(format string, w io.Writer, cfg *config.Config) (dispatcher.Writer, error) {
	switch strings.ToLower(format) {
	case "console":
		mode := "summary"
		if cfg.Verbose {
			mode = "detailed"
		}
		return writers.NewConsoleWriter(w, writers.ConsoleConfig{
			Mode:           mode,
			DisableUnicode: !ui.UnicodeTerminal(),
		}), nil
	case "json":
		return writers.NewJSONWriter(w, writers.JSONOptions{Pretty: true}), nil
	case "jsonl":
		return writers.NewJSONLWriter(w, writers.JSONLOptions{}), nil
	case "md", "markdown":
		return writers.NewMarkdownWriter(w, writers.MarkdownConfig{Flavor: "github"}), nil
	case "sarif":
		return writers.NewSARIFWriter(w, writers.SARIFOptions{}), nil
	case "junit":
		return writers.NewJUnitWriter(w, writers.JUnitOptions{}), nil
	case "csv":
		return writers.NewCSVWriter(w, writers.CSVOptions{IncludeHeader: true}), nil
	case "pdf":
		return writers.NewPDFWriter(w, writers.PDFConfig{}), nil
	case "template":
		return writers.NewTemplateWriter(w, writers.TemplateConfig{TemplatePath: cfg.Template})
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
