package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aerissecure/certgen/auth"
	"github.com/aerissecure/certgen/batch"
	"github.com/aerissecure/certgen/config"
	"github.com/aerissecure/certgen/pack"
	"github.com/aerissecure/certgen/roster"
	"github.com/aerissecure/certgen/stats"
	"github.com/aerissecure/certgen/web"
)

var generateFlags struct {
	template  string
	font      string
	out       string
	naming    string
	policy    string
	noArchive bool
	noFolders bool
	identity  string
}

var generateCmd = &cobra.Command{
	Use:   "generate ROSTER",
	Short: "Generate certificates for every student in a results workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	f := generateFlags
	if f.template != "" {
		cfg.Assets.Template = f.template
	}
	if f.font != "" {
		cfg.Assets.Font = f.font
	}
	if f.out != "" {
		cfg.Output.Dir = f.out
	}
	if f.naming != "" {
		cfg.Output.Naming = f.naming
	}
	if f.policy != "" {
		cfg.Output.Policy = f.policy
	}
	if f.noArchive {
		cfg.Output.Archive = false
	}
	if f.noFolders {
		cfg.Output.Folders = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	naming, err := pack.ParseNaming(cfg.Output.Naming)
	if err != nil {
		return err
	}
	policy, err := batch.ParsePolicy(cfg.Output.Policy)
	if err != nil {
		return err
	}

	res, err := batch.Run(batch.Job{
		TemplatePath: cfg.Assets.Template,
		FontPath:     cfg.Assets.Font,
		FontName:     cfg.Assets.FontName,
		RosterPath:   args[0],
		OutputDir:    cfg.Output.Dir,
		Folders:      cfg.Output.Folders,
		Archive:      cfg.Output.Archive,
		Options:      batch.Options{Policy: policy, Naming: naming, Logger: logger},
	})
	if res == nil {
		return err
	}
	recordRun(f.identity, res)

	out := cmd.OutOrStdout()
	dir := cfg.Output.Dir
	if dir == "" {
		dir = batch.DefaultOutputDir(cfg.Assets.Template)
	}
	fmt.Fprintf(out, "Certificates generated for %d of %d students (%d qualified, %d not qualified).\n",
		res.Issued(), res.Summary.Appeared, res.Summary.Qualified, res.Summary.NotQualified)
	fmt.Fprintf(out, "Output: %s\n", dir)
	for _, fail := range res.Failures {
		fmt.Fprintf(out, "  failed: %v\n", fail)
	}
	return err
}

func recordRun(identity string, res *batch.Result) {
	if !cfg.Stats.Enabled {
		return
	}
	ledger, err := stats.Open(cfg.Stats.Dir, stats.WithLogger(logger))
	if err != nil {
		logger.Warn("stats unavailable", zap.Error(err))
		return
	}
	_, err = ledger.Record(stats.Run{
		Identity:     identity,
		Appeared:     res.Summary.Appeared,
		Qualified:    res.Summary.Qualified,
		NotQualified: res.Summary.NotQualified,
		Issued:       res.Issued(),
		Failed:       len(res.Failures),
	})
	if err != nil {
		logger.Warn("stats not recorded", zap.Error(err))
	}
}

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the certificate generator over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveListen != "" {
			cfg.Server.Listen = serveListen
		}
		if err := cfg.ValidateServer(); err != nil {
			return err
		}
		policy, err := batch.ParsePolicy(cfg.Output.Policy)
		if err != nil {
			return err
		}

		gate, err := auth.NewGate(cfg.Auth.Passphrase, cfg.Auth.EmailDomain, []byte(cfg.Auth.JWTSecret),
			auth.WithSessionTTL(config.Duration(cfg.Auth.SessionTTL, auth.DefaultSessionTTL)))
		if err != nil {
			return err
		}
		var ledger *stats.Ledger
		if cfg.Stats.Enabled {
			if ledger, err = stats.Open(cfg.Stats.Dir, stats.WithLogger(logger)); err != nil {
				return err
			}
		}

		// fail at startup rather than on the first request
		if _, err := batch.Prepare(cfg.Assets.Template, cfg.Assets.Font, cfg.Assets.FontName); err != nil {
			return err
		}

		srv := web.New(web.Settings{
			TemplatePath:   cfg.Assets.Template,
			FontPath:       cfg.Assets.Font,
			FontName:       cfg.Assets.FontName,
			Policy:         policy,
			MaxUploadBytes: cfg.MaxUploadBytes(),
			PreviewRows:    cfg.Server.PreviewRows,
			ReadTimeout:    config.Duration(cfg.Server.ReadTimeout, 30*time.Second),
			WriteTimeout:   config.Duration(cfg.Server.WriteTimeout, 5*time.Minute),
		}, gate, ledger, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, cfg.Server.Listen)
	},
}

var statsRuns int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show certificate totals and recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, err := stats.Open(cfg.Stats.Dir)
		if err != nil {
			return err
		}
		c, err := ledger.Counters()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Runs:          %d\n", c.Runs)
		fmt.Fprintf(out, "Appeared:      %d\n", c.Appeared)
		fmt.Fprintf(out, "Qualified:     %d\n", c.Qualified)
		fmt.Fprintf(out, "Not qualified: %d\n", c.NotQualified)
		fmt.Fprintf(out, "Issued:        %d\n", c.Issued)
		for id, n := range c.ByIdentity {
			fmt.Fprintf(out, "  %s: %d\n", id, n)
		}

		runs, err := ledger.Runs(statsRuns)
		if err != nil {
			return err
		}
		if len(runs) > 0 {
			fmt.Fprintln(out, "\nRecent runs:")
		}
		for _, r := range runs {
			fmt.Fprintf(out, "  %s  %s  issued %d of %d  %s\n",
				r.Time.Local().Format(time.DateTime), shortID(r.ID), r.Issued, r.Appeared, r.Identity)
		}
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var rosterTemplateCmd = &cobra.Command{
	Use:   "roster-template FILE",
	Short: "Write a blank results workbook with the expected layout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := os.Create(args[0])
		if err != nil {
			return err
		}
		if err := roster.WriteTemplate(out); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	},
}

var hashPassphraseCmd = &cobra.Command{
	Use:   "hash-passphrase PASSPHRASE",
	Short: "Print a bcrypt hash to use as auth.passphrase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashPassphrase(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the default configuration to --config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgPath); err == nil {
			return fmt.Errorf("%s already exists", cfgPath)
		}
		if err := config.DefaultConfig().Save(cfgPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfgPath)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateFlags.template, "template", "", "Certificate template PDF (default from config)")
	generateCmd.Flags().StringVar(&generateFlags.font, "font", "", "Name font TTF (default from config)")
	generateCmd.Flags().StringVarP(&generateFlags.out, "out", "o", "", "Output directory (default: template name without extension)")
	generateCmd.Flags().StringVar(&generateFlags.naming, "naming", "", "File naming: folder or interactive")
	generateCmd.Flags().StringVar(&generateFlags.policy, "policy", "", "On a failed certificate: fail-fast or isolate")
	generateCmd.Flags().BoolVar(&generateFlags.noArchive, "no-archive", false, "Do not write certificates.zip")
	generateCmd.Flags().BoolVar(&generateFlags.noFolders, "no-folders", false, "Do not write the Qualified/Not_Qualified folders")
	generateCmd.Flags().StringVar(&generateFlags.identity, "identity", os.Getenv("USER"), "Identity recorded in the stats ledger")

	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (default from config)")
	statsCmd.Flags().IntVarP(&statsRuns, "runs", "n", 10, "Number of recent runs to show")
}
