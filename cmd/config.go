package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"nginline.dev/pkg/nginline/internal/adapter"
	"nginline.dev/pkg/nginline/internal/domain"
	m "nginline.dev/pkg/nginline/internal/model"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "nginline"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName          = "out"
	excludeFlagName         = "exclude"
	includeFlagName         = "include"
	runParallelFlagName     = "parallel"
	sourceMapFlagName       = "source-map"
	verboseFlagName         = "verbose"
	dryRunFlagName          = "dry-run"
	baseDirectoryFlagName   = "base-dir"
	relativePathsFlagName   = "relative"
	tolerateMissingFlagName = "tolerate-missing"

	outputConfigKey          = "output"
	runParallelConfigKey     = "run.parallel"
	resolveParallelConfigKey = "run.resolve_parallel"
	excludeConfigKey         = "paths.exclude"
	includeConfigKey         = "paths.include"
	rootConfigKey            = "paths.root"
	sourceMapConfigKey       = "source_map"
	baseDirectoryKey         = "base_directory"
	useRelativePathsKey      = "use_relative_paths"
	removeLineBreaksKey      = "remove_line_breaks"
	templateExtensionKey     = "template_extension"
	styleExtensionKey        = "style_extension"
	removeReferenceIDKey     = "remove_reference_id"
	referenceIDPropertyKey   = "reference_id_property"
	tolerateMissingFilesKey  = "tolerate_missing_files"
	literalStyleKey          = "literal_style"
	indentKey                = "indent"
	mergeStylesKey           = "merge_styles"
	processorsKey            = "processors"
	templateProcessorKey     = "template_processor"
	styleProcessorKey        = "style_processor"
	defaultRunParallel       = 1
	defaultResolveParallel   = 8
	defaultSourceMap         = string(domain.SourceMapNone)
	defaultRoot              = "."
	defaultIndent            = 0
	defaultLiteralStyle      = string(m.StyleTemplate)
	defaultUseRelativePaths  = false
	defaultTolerateMissing   = false
	defaultRemoveLineBreaks  = false
	defaultRemoveReferenceID = false
	defaultMergeStyles       = false
	defaultReferenceIDProp   = m.DefaultReferenceIDProperty
	defaultTemplateExtension = m.DefaultTemplateExtension
	defaultStyleExtension    = m.DefaultStyleExtension
	envPrefix                = "NGINLINE"
	envFileName              = ".env"
	localEnvFileName         = ".env.local"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".nginline.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	setConfigDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return
		}

		slog.Warn("Failed to read config file", "file", configFileName, "error", err)
	}
}

func setConfigDefaults() {
	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputConfigKey, "")
	viper.SetDefault(runParallelConfigKey, defaultRunParallel)
	viper.SetDefault(resolveParallelConfigKey, defaultResolveParallel)
	viper.SetDefault(excludeConfigKey, []string{})
	viper.SetDefault(includeConfigKey, domain.DefaultInclude)
	viper.SetDefault(rootConfigKey, defaultRoot)
	viper.SetDefault(sourceMapConfigKey, defaultSourceMap)

	viper.SetDefault(baseDirectoryKey, "")
	viper.SetDefault(useRelativePathsKey, defaultUseRelativePaths)
	viper.SetDefault(removeLineBreaksKey, defaultRemoveLineBreaks)
	viper.SetDefault(templateExtensionKey, defaultTemplateExtension)
	viper.SetDefault(styleExtensionKey, defaultStyleExtension)
	viper.SetDefault(removeReferenceIDKey, defaultRemoveReferenceID)
	viper.SetDefault(referenceIDPropertyKey, defaultReferenceIDProp)
	viper.SetDefault(tolerateMissingFilesKey, defaultTolerateMissing)
	viper.SetDefault(literalStyleKey, defaultLiteralStyle)
	viper.SetDefault(indentKey, defaultIndent)
	viper.SetDefault(mergeStylesKey, defaultMergeStyles)
	viper.SetDefault(processorsKey, map[string]string{})
	viper.SetDefault(templateProcessorKey, "")
	viper.SetDefault(styleProcessorKey, "")

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)
}

// loadEnvFiles loads .env and then .env.local, which takes precedence.
// Variables already set in the process environment are kept for .env.
func loadEnvFiles(dir string) {
	envFile := filepath.Join(dir, envFileName)
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("Failed to load env file", "file", envFile, "error", err)
		}
	}

	localFile := filepath.Join(dir, localEnvFileName)
	if _, err := os.Stat(localFile); err == nil {
		if err := godotenv.Overload(localFile); err != nil {
			slog.Warn("Failed to load env file", "file", localFile, "error", err)
		}
	}
}

// buildOptions turns the effective configuration into inliner options.
func buildOptions() (m.Options, error) {
	opts := m.DefaultOptions()

	root, err := homedir.Expand(viper.GetString(rootConfigKey))
	if err != nil {
		return opts, fmt.Errorf("expand %s: %w", rootConfigKey, err)
	}

	base, err := homedir.Expand(viper.GetString(baseDirectoryKey))
	if err != nil {
		return opts, fmt.Errorf("expand %s: %w", baseDirectoryKey, err)
	}

	style := m.LiteralStyle(strings.ToLower(strings.TrimSpace(viper.GetString(literalStyleKey))))
	switch style {
	case m.StyleTemplate, m.StyleLegacy:
	default:
		return opts, fmt.Errorf("invalid %s %q: expected %q or %q", literalStyleKey, style, m.StyleTemplate, m.StyleLegacy)
	}

	indent := viper.GetInt(indentKey)
	if indent < 0 {
		return opts, fmt.Errorf("invalid %s %d: must not be negative", indentKey, indent)
	}

	opts.Root = m.Path(root)
	opts.BaseDirectory = m.Path(base)
	opts.UseRelativePaths = viper.GetBool(useRelativePathsKey)
	opts.RemoveLineBreaks = viper.GetBool(removeLineBreaksKey)
	opts.LiteralStyle = style
	opts.Indent = indent
	opts.MergeStyles = viper.GetBool(mergeStylesKey)
	opts.TemplateExtension = viper.GetString(templateExtensionKey)
	opts.StyleExtension = viper.GetString(styleExtensionKey)
	opts.RemoveReferenceIDProperty = viper.GetBool(removeReferenceIDKey)
	opts.ReferenceIDProperty = viper.GetString(referenceIDPropertyKey)
	opts.TolerateMissingFiles = viper.GetBool(tolerateMissingFilesKey)
	opts.ResolveParallelism = viper.GetInt(resolveParallelConfigKey)

	if command := strings.TrimSpace(viper.GetString(templateProcessorKey)); command != "" {
		opts.TemplateProcessor = adapter.NewCommandProcessor(command).Processor()
	}

	if command := strings.TrimSpace(viper.GetString(styleProcessorKey)); command != "" {
		opts.StyleProcessor = adapter.NewCommandProcessor(command).Processor()
	}

	opts.Processors = buildProcessors(viper.GetStringMapString(processorsKey))

	return opts, nil
}

// buildProcessors maps extensions to shell command processors. Keys may omit the leading dot.
func buildProcessors(commands map[string]string) map[string]m.Processor {
	if len(commands) == 0 {
		return nil
	}

	exts := make([]string, 0, len(commands))
	for ext := range commands {
		exts = append(exts, ext)
	}

	sort.Strings(exts)

	processors := make(map[string]m.Processor, len(commands))

	for _, ext := range exts {
		command := strings.TrimSpace(commands[ext])
		if command == "" {
			continue
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		slog.Debug("Configured processor", "ext", ext, "command", command)

		processors[ext] = adapter.NewCommandProcessor(command).Processor()
	}

	return processors
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	if expanded, err := homedir.Expand(logPath); err == nil {
		logPath = expanded
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
