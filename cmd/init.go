package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// initCmd represents the init command.
var initCmd = newInitCmd()

// initKeys are the settings worth editing after init, in help order.
var initKeys = []struct {
	key  string
	help string
}{
	{literalStyleKey, "template (backtick literals) or legacy (single quotes)"},
	{useRelativePathsKey, "resolve templateUrl/styleUrls next to the document"},
	{baseDirectoryKey, "directory non-relative references are resolved against"},
	{templateExtensionKey + ", " + styleExtensionKey, "extension for extensionless references"},
	{removeLineBreaksKey, "collapse whitespace in inlined content"},
	{indentKey, "re-indent multi-line templates by this many spaces"},
	{mergeStylesKey, "join every style file into one styles element"},
	{removeReferenceIDKey, "drop the " + defaultReferenceIDProp + " property of inlined blocks"},
	{tolerateMissingFilesKey, "leave references to missing files untouched"},
	{processorsKey, "shell command per extension, e.g. .scss: sass --stdin"},
	{sourceMapConfigKey, "none, external or inline"},
	{outputConfigKey, "output directory, empty rewrites in place"},
}

func initLongDescription() string {
	var b strings.Builder

	b.WriteString("Create " + configFileName + " in the current working directory with every\n")
	b.WriteString("setting at its default. An existing file is never overwritten.\n\nKeys to look at first:\n")

	for _, k := range initKeys {
		fmt.Fprintf(&b, "  %-44s %s\n", k.key, k.help)
	}

	return strings.TrimRight(b.String(), "\n")
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate a default nginline.yaml configuration file",
		Long:  initLongDescription(),
		Args:  cobra.NoArgs,
		// init must work before a valid configuration exists.
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			targetPath := filepath.Join(configFolderPath, configFileName)

			err := viper.SafeWriteConfigAs(targetPath)
			if err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			cmd.Printf("wrote %s\n", targetPath)
			cmd.Println("run `nginline list ./...` to see which references would be inlined")

			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
}
