package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bimmerbailey/ctxlens/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ctxlens",
	Short: "Measure how much request context a gateway strips",
	Long: `ctxlens reads an LLM gateway's log and reports how much request context
its input-reduction layer removed, per technique and per request.

It correlates request, reduction and context-usage lines by proximity,
then prints a report, a structured summary, or a flat per-request table.

Examples:
  ctxlens analyze gateway.log
  ctxlens analyze --top 10 --model sonnet --csv out.csv gateway.log
  ctxlens analyze --watch --debounce 2s gateway.log
  ctxlens stats gateway.log rotated-*.log
  kubectl logs deploy/gateway | ctxlens events --kind rejection -`,
	SilenceUsage: true,
}

// Execute is called by main.main(). It runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ctxlens.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".ctxlens")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CTXLENS")
	viper.AutomaticEnv()

	setDefaults(config.Default())

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func setDefaults(d config.Config) {
	viper.SetDefault("format", d.Format)
	viper.SetDefault("verbose", d.Verbose)
	viper.SetDefault("debug", false)
	viper.SetDefault("log_level", d.LogLevel)
	viper.SetDefault("workers", d.Workers)
	viper.SetDefault("analysis.top", d.Analysis.Top)
	viper.SetDefault("analysis.min_tokens", d.Analysis.MinTokens)
	viper.SetDefault("analysis.model", d.Analysis.Model)
	viper.SetDefault("correlation.reduction_window", d.Correlation.ReductionWindow)
	viper.SetDefault("correlation.usage_window", d.Correlation.UsageWindow)
	viper.SetDefault("correlation.bytes_per_token", d.Correlation.BytesPerToken)
	viper.SetDefault("watch.debounce", d.Watch.Debounce)
}

// loadConfig decodes viper's merged settings over the built-in defaults.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// newLogger returns a text logger on w. Verbose raises the level to info;
// verbose plus CTXLENS_DEBUG=true raises it to debug.
func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	level := config.ParseLevel(cfg.LogLevel).Slog()
	if cfg.Verbose {
		level = min(level, slog.LevelInfo)
		if viper.GetBool("debug") {
			level = slog.LevelDebug
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
