package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/igem-tools/wikipub/publish"
	"github.com/igem-tools/wikipub/tracing"
	"github.com/igem-tools/wikipub/wiki"
)

var (
	cfgFile   string
	verbosity int
	quiet     bool
	stripDirs bool
	comment   string

	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errorColor.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wikipub",
		Short:         "Publish web assets to an iGEM team wiki",
		Long:          "wikipub uploads HTML, CSS, JS, and binary assets to an iGEM wiki,\nrewriting local references into wiki URLs as it goes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			return loadSettings(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./wikipub.ini)")
	pf.CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress progress output and prompts")
	pf.String("team", "", "team name, with or without the Team: prefix")
	pf.Int("year", 0, "wiki edition year (default: current year)")
	pf.String("prefix", "", "extra title prefix after the team namespace")
	pf.String("username", "", "wiki login username")
	pf.String("password", "", "wiki login password")
	pf.Bool("dry-run", false, "plan the run without touching the wiki")
	pf.Int64("chunk-size", wiki.DefaultChunkSize, "chunked-upload threshold and chunk length in bytes")

	viper.BindPFlag("igem.team", pf.Lookup("team"))
	viper.BindPFlag("igem.year", pf.Lookup("year"))
	viper.BindPFlag("igem.prefix", pf.Lookup("prefix"))
	viper.BindPFlag("igem.username", pf.Lookup("username"))
	viper.BindPFlag("igem.password", pf.Lookup("password"))
	viper.BindPFlag("igem.dry_run", pf.Lookup("dry-run"))
	viper.BindPFlag("igem.chunk_size", pf.Lookup("chunk-size"))

	root.AddCommand(newUploadCmd(), newSearchCmd(), newDeleteCmd())
	return root
}

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <pattern>...",
		Short: "Publish files matching the given glob patterns",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runUpload,
	}
	cmd.Flags().BoolVar(&stripDirs, "strip-dirs", false, "drop each pattern's directory from remote titles")
	cmd.Flags().StringVarP(&comment, "comment", "m", "Uploaded with wikipub", "edit summary for published pages")
	return cmd
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [prefix]",
		Short: "List wiki pages under the team namespace",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSearch,
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <prefix>...",
		Short: "Delete wiki pages matching the given title prefixes",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDelete,
	}
}

func setupLogging() {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadSettings layers flags over the ini file over IGEM_* environment
// variables, lowest first
func loadSettings(cmd *cobra.Command) error {
	viper.SetConfigType("ini")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("wikipub")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("igem")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return fmt.Errorf("cannot read config %s: %w", cfgFile, err)
		}
	} else {
		slog.Debug("Loaded config file", "path", viper.ConfigFileUsed())
	}
	return nil
}

func buildConfig() (*wiki.Config, error) {
	cfg := &wiki.Config{
		Year:       viper.GetInt("igem.year"),
		Team:       viper.GetString("igem.team"),
		Prefix:     viper.GetString("igem.prefix"),
		Username:   viper.GetString("igem.username"),
		Password:   viper.GetString("igem.password"),
		DryRun:     viper.GetBool("igem.dry_run"),
		ChunkSize:  viper.GetInt64("igem.chunk_size"),
		MaxRetries: viper.GetInt("igem.max_retries"),
	}
	if t := viper.GetString("igem.timeout"); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", t, err)
		}
		cfg.Timeout = d
	}
	cfg.Normalize()

	if cfg.Team == "" {
		return nil, fmt.Errorf("a team name is required (--team, config, or IGEM_TEAM)")
	}
	if !cfg.DryRun && !cfg.HasCredentials() {
		return nil, fmt.Errorf("username and password are required unless --dry-run is set")
	}
	return cfg, nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	shutdown, err := tracing.Setup(cmd.Context(), tracing.DefaultConfig())
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdown(context.Background())
	}

	catalog := publish.NewCatalog(stripDirs, logger)
	assets := catalog.Collect(args)
	if len(assets) == 0 {
		return fmt.Errorf("no files matched the given patterns")
	}

	if !quiet {
		headerColor.Printf("Publishing %d assets to %s as %s\n", len(assets), cfg.BaseHost(), cfg.Team)
		for _, a := range assets {
			fmt.Println("  ", a)
		}
		if !cfg.DryRun && !confirm("Proceed?") {
			return fmt.Errorf("aborted")
		}
	}

	client := wiki.NewClient(cfg, logger)
	registry := publish.NewRegistry(assets)
	pub := publish.NewPublisher(client, registry, cfg.Namespace(), comment, logger)
	if !quiet {
		pub.Progress = func(format string, a ...interface{}) {
			headerColor.Printf(format+"\n", a...)
		}
	}

	summary := pub.Run(cmd.Context())
	if summary.Failed > 0 {
		errorColor.Printf("%d published, %d failed\n", summary.Published, summary.Failed)
		return fmt.Errorf("%d assets failed to publish", summary.Failed)
	}
	successColor.Printf("%d assets published\n", summary.Published)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	client := wiki.NewClient(cfg, slog.Default())

	prefix := cfg.Team
	if len(args) == 1 {
		prefix = cfg.Namespace().Title(args[0])
	}

	pages, err := client.AllPages(cmd.Context(), prefix, wiki.DefaultMaxPages)
	if err != nil {
		return err
	}
	for i, p := range pages {
		fmt.Printf("%3d. %s\n", i+1, p.Title)
	}
	if !quiet {
		headerColor.Fprintf(os.Stderr, "%d pages under %s\n", len(pages), prefix)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	client := wiki.NewClient(cfg, slog.Default())
	ns := cfg.Namespace()

	var failed int
	for _, raw := range args {
		prefix := ns.Title(raw)
		pages, err := client.AllPages(cmd.Context(), prefix, wiki.DefaultMaxPages)
		if err != nil {
			return err
		}
		if len(pages) == 0 {
			fmt.Printf("No pages under %s\n", prefix)
			continue
		}

		for _, page := range pages {
			if !quiet && !confirm(fmt.Sprintf("Delete %s?", page.Title)) {
				continue
			}
			err := client.DeletePage(cmd.Context(), wiki.DeleteArgs{Title: page.Title, Reason: "Deleted with wikipub"})
			if err != nil {
				slog.Error("Delete failed", "title", page.Title, "error", err)
				failed++
				continue
			}
			successColor.Println("Deleted", page.Title)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d pages failed to delete", failed)
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
