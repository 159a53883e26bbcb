package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/epiworks/episeek/internal/log"
	"github.com/epiworks/episeek/internal/model"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var (
	userConfigPath string // /default/config/path/episeek on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag

	flagInput  string // value of run --input flag
	flagOutput string // value of run --output flag
	flagWindow bool   // value of run --window flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "episeek")
}

func main() {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is episeek.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	for _, c := range []*cobra.Command{runCmd, enrichCmd} {
		c.Flags().StringVar(&flagInput, "input", "", "peptide input file, overrides input.path from config")
		c.Flags().StringVarP(&flagOutput, "output", "o", "results.tsv", "report file, format by extension: .tsv, .json or .xlsx")
		c.Flags().BoolVar(&flagWindow, "window", false, "cut input sequences into all peptides inside the length window")
	}

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initEpiseek

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("episeek failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "episeek",
	Short:        "Batch epitope enrichment against remote prediction services",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run reads the peptide input, enriches it and writes the ranked report",
	RunE:  doRun,
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "enrich runs only the remote services, without derived columns or ranking",
	RunE:  doEnrich,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "runs lists archived enrichment runs",
	RunE:  doRuns,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides version of episeek",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("episeek: version info not available")
		}

		if configPath != "" {
			fmt.Printf("config:  %s\n", configPath)
		}
		fmt.Printf("episeek: %s\n", info.Main.Version)
		fmt.Printf("go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:    %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:   %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func initEpiseek(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("EPISEEKCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, "episeek.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.DefaultConfig()
		configPath = filepath.Join(userConfigPath, "episeek.yaml")
		err := os.MkdirAll(filepath.Dir(configPath), 0755)
		if err != nil {
			return fmt.Errorf("creating directory %s: %w", filepath.Dir(configPath), err)
		}

		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("creating file %s: %w", configPath, err)
		}
		defer func() {
			_ = f.Close()
		}()
		enc := yaml.NewEncoder(f)
		err = enc.Encode(config)
		if err != nil {
			return fmt.Errorf("storing configuration: %w", err)
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		loaded, err := model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error(d)
			}
			return fmt.Errorf("parsing config: %w", err)
		}
		config = *loaded
	}

	// --verbose has a precedence over config file
	verbose := flagVerbose
	if !verbose && config.Log != nil && config.Log.Verbose != nil {
		verbose = *config.Log.Verbose
	}
	slog.SetDefault(log.New(verbose))

	slog.Debug("episeek run", "configPath", configPath)
	slog.Debug("episeek run", "config", config)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
