// Package cli implements the syllabusctl operator commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/config"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

const envPrefix = "SYLLABUS"

// env holds the flag and environment bindings shared by every command.
// Flags win over SYLLABUS_* variables, which win over defaults.
type env struct {
	conf *viper.Viper
}

func (e *env) logger() (*logger.Logger, error) {
	return logger.New(e.conf.GetString("log-mode"))
}

func (e *env) pipelineConfig(log *logger.Logger) (config.Config, error) {
	return config.Load(log)
}

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	e := &env{conf: viper.New()}
	e.conf.SetEnvPrefix(envPrefix)
	e.conf.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	e.conf.AutomaticEnv()
	e.conf.SetDefault("log-mode", "development")
	e.conf.SetDefault("format", "json")

	root := &cobra.Command{
		Use:           "syllabusctl",
		Short:         "Operate the syllabus pipeline from a terminal",
		Long:          "Extract document text, structure raw generation output, run a full generation, or watch the live progress channel.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-mode", "development", "Logger mode: development or production")
	root.PersistentFlags().StringP("format", "f", "json", "Output format: json or text")
	_ = e.conf.BindPFlag("log-mode", root.PersistentFlags().Lookup("log-mode"))
	_ = e.conf.BindPFlag("format", root.PersistentFlags().Lookup("format"))

	root.AddCommand(
		newExtractCmd(e),
		newStructureCmd(e),
		newGenerateCmd(e),
		newWatchCmd(e),
	)
	return root
}

func (e *env) textOutput() bool {
	return strings.EqualFold(strings.TrimSpace(e.conf.GetString("format")), "text")
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
