package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/logging"
	"jobscout/internal/sources"
	"jobscout/pkg/utils"
)

// configFault marks errors that should fail the process
type configFault struct{ err error }

func (e *configFault) Error() string { return e.err.Error() }
func (e *configFault) Unwrap() error { return e.err }

type discoverOptions struct {
	role       string
	skills     []string
	companies  []string
	queries    []string
	experience string
	configPath string
	outFile    string
	pretty     bool
}

func newDiscoverCmd(stdout io.Writer) *cobra.Command {
	opts := &discoverOptions{}
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover job postings across the configured sources",
		Long: "Runs one bounded discovery across company career pages, web search and the remote job boards, " +
			"then prints the aggregation report as JSON. Source failures only shape the report; " +
			"the command fails only when the configuration cannot support a run.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd.Context(), opts, stdout)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.role, "role", "", "Target role, e.g. \"backend engineer\"")
	f.StringArrayVar(&opts.skills, "skill", nil, "Skill keyword (repeatable)")
	f.StringArrayVar(&opts.companies, "company", nil, "Company name or domain, in rank order (repeatable)")
	f.StringArrayVar(&opts.queries, "query", nil, "Web search query (repeatable)")
	f.StringVar(&opts.experience, "experience", "", "Experience level, e.g. \"5 years\"")
	f.StringVar(&opts.configPath, "config", "configs/config.yaml", "Path to the YAML configuration")
	f.StringVarP(&opts.outFile, "out", "o", "", "Write the report to this file instead of stdout")
	f.BoolVar(&opts.pretty, "pretty", false, "Indent the JSON output")
	return cmd
}

// input builds the run input from the flags
func (o *discoverOptions) input() discovery.RunInput {
	in := discovery.RunInput{
		Companies: o.companies,
		Profile: discovery.Profile{
			Role:       strings.TrimSpace(o.role),
			Experience: o.experience,
		},
	}
	for _, s := range o.skills {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				in.Profile.Skills = append(in.Profile.Skills, part)
			}
		}
	}
	for _, q := range o.queries {
		if q = strings.TrimSpace(q); q != "" {
			in.Queries = append(in.Queries, discovery.SearchQuery{Platform: discovery.SourceWebSearch, Text: q})
		}
	}
	return in
}

func runDiscover(ctx context.Context, opts *discoverOptions, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := opts.input()
	if in.Profile.Role == "" && len(in.Profile.Skills) == 0 && len(in.Queries) == 0 && len(in.Companies) == 0 {
		return fmt.Errorf("nothing to search for: pass at least one of --role, --skill, --company or --query")
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return &configFault{fmt.Errorf("failed to load configuration: %w", err)}
	}
	// stdout carries the report
	cfg.Logging.Output = "stderr"
	cfg.Logging.Adapters = nil
	if err := logging.InitializeLogging(cfg); err != nil {
		return &configFault{fmt.Errorf("failed to initialize logging: %w", err)}
	}
	defer logging.CloseLogging()
	logger := logging.GetGlobalLogger()

	rt := sources.NewRuntime(cfg, logger)
	defer rt.Close()

	orch, err := rt.NewOrchestrator()
	if err != nil {
		return &configFault{err}
	}

	report, err := orch.Run(ctx, in)
	if err != nil {
		if utils.IsConfigurationError(err) {
			return &configFault{err}
		}
		return err
	}

	return writeReport(report, opts, stdout)
}

func writeReport(report *discovery.AggregationReport, opts *discoverOptions, stdout io.Writer) error {
	var (
		data []byte
		err  error
	)
	if opts.pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	if opts.outFile != "" {
		if err := os.WriteFile(opts.outFile, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.outFile, err)
		}
		return nil
	}
	_, err = stdout.Write(data)
	return err
}
