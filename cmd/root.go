// Package cmd provides the root command and CLI setup for nginline.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"nginline.dev/pkg/nginline/internal/adapter"
	"nginline.dev/pkg/nginline/internal/controller"
	"nginline.dev/pkg/nginline/internal/domain"
	m "nginline.dev/pkg/nginline/internal/model"
)

var fsAdapter adapter.SourceFSAdapter
var outputStore adapter.OutputStore
var watcher adapter.Watcher
var ui controller.UI

// workflow is built from the effective configuration before a command runs
// unless it has already been set.
var workflow domain.Workflow

var (
	outputDirFlag       string
	excludePatterns     []string
	includePatterns     []string
	parallelFlag        int
	sourceMapFlag       string
	verboseFlag         bool
	baseDirectoryFlag   string
	relativePathsFlag   bool
	tolerateMissingFlag bool
)

func init() {
	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	outputStore = adapter.NewOutputStore(fsAdapter)
	watcher = adapter.NewFSNotifyWatcher(adapter.DefaultDebounce)
}

const pathPatternsHelp = `Supports Go-style path patterns:
  - ./...          recursively scan current directory
  - ./src/...      recursively scan src directory
  - ./src ./lib    scan multiple directories (without sub-directories)
  - ./src/app.ts   a single document`

const rootLongDescription = `nginline rewrites Angular-style component metadata, replacing
templateUrl/styleUrls/styleUrl references with the inlined file contents
(template/styles), and emits a source map for every rewritten document.

` + pathPatternsHelp

const inlineLongDescription = `Inline referenced templates and styles into the given documents
(default: current directory, recursively).

` + pathPatternsHelp

const listLongDescription = `List documents and their reference properties without rewriting them.

` + pathPatternsHelp

const watchLongDescription = `Inline the given documents and re-inline them whenever they or one of
the files they reference change.

` + pathPatternsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nginline",
		Short:         "Inline component templates and styles",
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return prepare()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	configureRootFlags(cmd)

	return cmd
}

// prepare loads env files, configures logging and builds the workflow.
func prepare() error {
	loadEnvFiles(configFolderPath)
	configureLogger("", viper.GetBool(logVerboseKey))

	if workflow != nil {
		return nil
	}

	wf, err := newWorkflow()
	if err != nil {
		return err
	}

	workflow = wf

	return nil
}

func newWorkflow() (domain.Workflow, error) {
	opts, err := buildOptions()
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	return domain.NewWorkflow(fsAdapter, outputStore, watcher, ui, domain.NewInliner(fsAdapter, opts)), nil
}

func configureRootFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringVarP(&outputDirFlag, outputFlagName, "o", viper.GetString(outputConfigKey), "output directory for rewritten documents (default: rewrite in place)")
	bindFlagToConfig(flags.Lookup(outputFlagName), outputConfigKey)

	flags.StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude documents matching regex (can be repeated)")
	bindFlagToConfig(flags.Lookup(excludeFlagName), excludeConfigKey)

	flags.StringArrayVarP(&includePatterns, includeFlagName, "i", viper.GetStringSlice(includeConfigKey), "document file name glob (can be repeated)")
	bindFlagToConfig(flags.Lookup(includeFlagName), includeConfigKey)

	flags.IntVarP(&parallelFlag, runParallelFlagName, "p", viper.GetInt(runParallelConfigKey), "number of documents processed in parallel")
	bindFlagToConfig(flags.Lookup(runParallelFlagName), runParallelConfigKey)

	flags.StringVar(&sourceMapFlag, sourceMapFlagName, viper.GetString(sourceMapConfigKey), "source map output: none, external or inline")
	bindFlagToConfig(flags.Lookup(sourceMapFlagName), sourceMapConfigKey)

	flags.StringVar(&baseDirectoryFlag, baseDirectoryFlagName, viper.GetString(baseDirectoryKey), "directory referenced paths are resolved against")
	bindFlagToConfig(flags.Lookup(baseDirectoryFlagName), baseDirectoryKey)

	flags.BoolVar(&relativePathsFlag, relativePathsFlagName, viper.GetBool(useRelativePathsKey), "resolve references relative to the document")
	bindFlagToConfig(flags.Lookup(relativePathsFlagName), useRelativePathsKey)

	flags.BoolVar(&tolerateMissingFlag, tolerateMissingFlagName, viper.GetBool(tolerateMissingFilesKey), "leave references to missing files untouched instead of failing")
	bindFlagToConfig(flags.Lookup(tolerateMissingFlagName), tolerateMissingFilesKey)

	flags.BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(flags.Lookup(verboseFlagName), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}

func parseSourceMapMode(value string) (domain.SourceMapMode, error) {
	switch mode := domain.SourceMapMode(value); mode {
	case "", domain.SourceMapNone:
		return domain.SourceMapNone, nil
	case domain.SourceMapExternal, domain.SourceMapInline:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid --%s %q: expected none, external or inline", sourceMapFlagName, value)
	}
}

func listArgs(args []string) domain.ListArgs {
	return domain.ListArgs{
		Paths:   parsePaths(args),
		Include: viper.GetStringSlice(includeConfigKey),
		Exclude: viper.GetStringSlice(excludeConfigKey),
	}
}

func inlineArgs(args []string) (domain.InlineArgs, error) {
	mode, err := parseSourceMapMode(viper.GetString(sourceMapConfigKey))
	if err != nil {
		return domain.InlineArgs{}, err
	}

	return domain.InlineArgs{
		ListArgs:  listArgs(args),
		Out:       m.Path(viper.GetString(outputConfigKey)),
		Root:      m.Path(viper.GetString(rootConfigKey)),
		Threads:   viper.GetInt(runParallelConfigKey),
		SourceMap: mode,
	}, nil
}
