// Package main provides the mapspec binary entry point: a command line
// client for editing hierarchical schema-mapping rules on a remote
// transform task.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/mapspec/config"
	"github.com/c360studio/mapspec/editor"
	"github.com/c360studio/mapspec/gateway"
	"github.com/c360studio/mapspec/rules"
	"github.com/c360studio/mapspec/suggest"
)

const (
	// Version of the mapspec binary.
	Version = "0.1.0"
	appName = "mapspec"
)

var (
	flagConfig  string
	flagVerbose bool
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Edit hierarchical schema-mapping rules of a transform task",
		Version:      Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file (default: mapspec.yaml lookup)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		treeCommand(),
		ruleCommand(),
		suggestCommand(),
		generateCommand(),
		prefixesCommand(),
		validateCommand(),
		completeCommand(),
		completePathCommand(),
		vocabCommand(),
		watchCommand(),
		configCommand(),
	)
	return root
}

// newLogger builds the process logger honoring --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// setup loads config and builds the app. Callers must Close the returned
// app.
func setup() (*App, error) {
	logger := newLogger()

	var cfg *config.Config
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFromFile(flagConfig)
		if err == nil {
			err = cfg.Validate()
		}
	} else {
		cfg, err = config.NewLoader(logger).Load()
	}
	if err != nil {
		return nil, err
	}

	return NewApp(cfg, logger)
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func treeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Fetch the whole mapping rule tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, cancel := signalContext()
			defer cancel()

			tree, err := app.session.Hierarchy(ctx)
			if err != nil {
				return err
			}
			return printJSON(tree)
		},
	}
}

func ruleCommand() *cobra.Command {
	rule := &cobra.Command{
		Use:   "rule",
		Short: "Inspect and modify single mapping rules",
	}

	var objectContext bool
	get := &cobra.Command{
		Use:   "get [id]",
		Short: "Locate a rule by id, breadcrumbs included",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, cancel := signalContext()
			defer cancel()

			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			match, err := app.session.Rule(ctx, id, objectContext)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"rule":        match.Rule,
				"breadcrumbs": match.Breadcrumbs,
			})
		},
	}
	get.Flags().BoolVar(&objectContext, "object-context", false, "resolve to the enclosing object rule")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, cancel := signalContext()
			defer cancel()

			return app.session.RemoveRule(ctx, args[0])
		},
	}

	var appendTo string
	cp := &cobra.Command{
		Use:   "copy [id]",
		Short: "Copy a rule (defaults to the root rule)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, cancel := signalContext()
			defer cancel()

			req := gateway.CopyRequest{AppendTo: appendTo}
			if len(args) == 1 {
				req.RuleID = args[0]
			}
			id, err := app.session.CopyRule(ctx, req)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	cp.Flags().StringVar(&appendTo, "append-to", "", "rule the copy is appended to")

	reorder := &cobra.Command{
		Use:   "reorder <id> <child-id>...",
		Short: "Reorder the children of an object rule",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, cancel := signalContext()
			defer cancel()

			return app.session.OrderRules(ctx, args[0], args[1:])
		},
	}

	peek := &cobra.Command{
		Use:   "peek <id>",
		Short: "Preview the transformation output of a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, cancel := signalContext()
			defer cancel()

			preview, err := app.session.RulePeek(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(preview)
		},
	}

	rule.AddCommand(get, rm, cp, reorder, peek)
	return rule
}

func suggestCommand() *cobra.Command {
	var (
		ruleID         string
		targetClasses  []string
		fromDataset    bool
		nrCandidates   int
		skipVocabulary bool
	)
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Propose mapping rule candidates for a rule scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, cancel := signalContext()
			defer cancel()

			if nrCandidates <= 0 {
				nrCandidates = app.cfg.Suggest.NrCandidates
			}
			result, err := app.session.Suggest(ctx, suggest.Request{
				RuleID:                 ruleID,
				TargetClassURIs:        targetClasses,
				MatchFromDataset:       fromDataset,
				NrCandidates:           nrCandidates,
				SkipVocabularyMatching: skipVocabulary,
				IgnorePaths:            app.cfg.Suggest.IgnorePaths,
			})
			if err != nil {
				return err
			}
			for _, warning := range result.Warnings {
				app.logger.Warn("suggestion source degraded", "warning", warning.String())
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&ruleID, "rule", "", "root or object rule id (default: tree root)")
	cmd.Flags().StringSliceVar(&targetClasses, "target-class", nil, "restrict matching to target class URIs")
	cmd.Flags().BoolVar(&fromDataset, "from-dataset", false, "match from the source dataset view")
	cmd.Flags().IntVar(&nrCandidates, "candidates", 0, "max candidates per source item")
	cmd.Flags().BoolVar(&skipVocabulary, "skip-vocabulary", false, "skip the vocabulary matching branch")
	return cmd
}

func generateCommand() *cobra.Command {
	var (
		parentID  string
		uriPrefix string
	)
	cmd := &cobra.Command{
		Use:   "generate <sourcePath=targetProperty>...",
		Short: "Generate and persist rules from accepted correspondences",
		Long: strings.TrimSpace(`
Generate and persist mapping rules from accepted correspondences.
Each argument pairs a source path with a target property, e.g.

  mapspec generate /person/name=foaf:name /person/mail=foaf:mbox

Creation is not atomic: rules created before a failure are kept and the
failed subset is reported for retry.`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			correspondences := make([]gateway.Correspondence, 0, len(args))
			for _, arg := range args {
				sourcePath, targetProperty, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid correspondence %q: want sourcePath=targetProperty", arg)
				}
				correspondences = append(correspondences, gateway.Correspondence{
					SourcePath:     sourcePath,
					TargetProperty: targetProperty,
					Type:           string(rules.TypeDirect),
				})
			}

			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, cancel := signalContext()
			defer cancel()

			created, err := app.session.GenerateRules(ctx, correspondences, parentID, uriPrefix)
			if len(created) > 0 {
				printJSON(map[string]any{"created": created}) //nolint:errcheck
			}
			return err
		},
	}
	cmd.Flags().StringVar(&parentID, "parent", "", "parent rule id (default: tree root)")
	cmd.Flags().StringVar(&uriPrefix, "uri-prefix", "", "URI prefix for generated rules")
	return cmd
}

func prefixesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prefixes",
		Short: "List the project's namespace prefixes",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, cancel := signalContext()
			defer cancel()

			prefixes, err := app.session.Prefixes(ctx)
			if err != nil {
				return err
			}
			return printJSON(prefixes)
		},
	}
}

func validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path-expression>",
		Short: "Validate a source path expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, cancel := signalContext()
			defer cancel()

			result, err := app.session.ValidatePath(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func completeCommand() *cobra.Command {
	var ruleID string
	cmd := &cobra.Command{
		Use:   "complete <entity> [term]",
		Short: "Autocomplete property types, target properties, entity types or source paths",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, cancel := signalContext()
			defer cancel()

			term := ""
			if len(args) == 2 {
				term = args[1]
			}
			options, err := app.session.Autocomplete(ctx, editor.Entity(args[0]), term, ruleID)
			if err != nil {
				return err
			}
			return printJSON(options)
		},
	}
	cmd.Flags().StringVar(&ruleID, "rule", "", "rule id scope (default: tree root)")
	return cmd
}

func completePathCommand() *cobra.Command {
	var (
		ruleID string
		cursor int
	)
	cmd := &cobra.Command{
		Use:   "complete-path <expression>",
		Short: "Auto-complete a partial source path expression at a cursor position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, cancel := signalContext()
			defer cancel()

			if cursor < 0 {
				cursor = len(args[0])
			}
			completion, err := app.session.SuggestPathCompletion(ctx, ruleID, args[0], cursor)
			if err != nil {
				return err
			}
			return printJSON(completion)
		},
	}
	cmd.Flags().StringVar(&ruleID, "rule", "", "rule id scope (default: tree root)")
	cmd.Flags().IntVar(&cursor, "cursor", -1, "cursor offset (default: end of expression)")
	return cmd
}

func watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Hot-reload the config file, pushing connection details until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()

			path := flagConfig
			if path == "" {
				path = config.NewLoader(app.logger).FindProjectConfig()
			}
			if path == "" {
				return fmt.Errorf("no config file to watch: pass --config or create %s", config.ProjectConfigFile)
			}

			ctx, cancel := signalContext()
			defer cancel()

			if err := app.WatchConfig(ctx, path); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func configCommand() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage mapspec configuration",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user config file with defaults if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Deliberately no setup(): init must work before any valid
			// config exists.
			return config.NewLoader(newLogger()).EnsureUserConfig()
		},
	}

	cfg.AddCommand(initCmd)
	return cfg
}

func vocabCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vocab <uri> <field>",
		Short: "Look up a vocabulary term's metadata field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, cancel := signalContext()
			defer cancel()

			fmt.Println(app.session.VocabularyInfo(ctx, args[0], args[1]))
			return nil
		},
	}
}
