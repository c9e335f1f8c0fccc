package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dicom-deidentifier/internal/anonymizer"
	"dicom-deidentifier/internal/cli"
	"dicom-deidentifier/internal/config"
	"dicom-deidentifier/internal/gui"
	"dicom-deidentifier/internal/logger"
)

func main() {
	modality := flag.String("modality", "", "Dataset to de-identify: CT or MRI")
	modalityShort := flag.String("m", "", "Modality (shorthand)")

	configPath := flag.String("config", "", "YAML config file")
	configShort := flag.String("c", "", "Config (shorthand)")

	workDir := flag.String("work-dir", "", "Folder holding the original dataset folders")
	workDirShort := flag.String("w", "", "Work dir (shorthand)")

	uidRoot := flag.String("uid-root", "", "Organization UID root for new identifiers")
	reportDir := flag.String("report-dir", "", "Folder for errors.log and manifest.json (\"off\" disables)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")

	failFast := flag.Bool("fail-fast", false, "Stop at the first failed file")
	noVerify := flag.Bool("no-verify", false, "Skip the source fingerprint check")

	dryRun := flag.Bool("dry-run", false, "Preview only, no files written")
	dryRunShort := flag.Bool("n", false, "Dry run (shorthand)")

	useGUI := flag.Bool("gui", false, "Launch the desktop window")

	help := flag.Bool("help", false, "Show help message")
	helpShort := flag.Bool("h", false, "Help (shorthand)")

	flag.Usage = func() {
		cli.PrintUsage(os.Stderr)
	}

	flag.Parse()

	if *help || *helpShort {
		cli.PrintUsage(os.Stdout)
		return
	}

	if err := run(runFlags{
		modality:  firstNonEmpty(*modality, *modalityShort, os.Getenv("DEID_MODALITY")),
		config:    firstNonEmpty(*configPath, *configShort),
		workDir:   firstNonEmpty(*workDir, *workDirShort),
		uidRoot:   *uidRoot,
		reportDir: *reportDir,
		logLevel:  *logLevel,
		failFast:  *failFast,
		noVerify:  *noVerify,
		dryRun:    *dryRun || *dryRunShort,
		gui:       *useGUI,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type runFlags struct {
	modality  string
	config    string
	workDir   string
	uidRoot   string
	reportDir string
	logLevel  string
	failFast  bool
	noVerify  bool
	dryRun    bool
	gui       bool
}

func run(f runFlags) error {
	// Directories left at their defaults follow the work dir, so it goes in
	// before the config is resolved.
	if f.workDir != "" {
		if err := os.Setenv("DEID_WORK_DIR", f.workDir); err != nil {
			return err
		}
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}

	// Remaining flags win over file and environment.
	if f.uidRoot != "" {
		cfg.UIDRoot = f.uidRoot
	}
	if f.reportDir != "" {
		cfg.ReportDir = f.reportDir
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.failFast {
		cfg.FailFast = true
	}
	if f.noVerify {
		cfg.VerifySources = false
	}

	log, err := logger.New(cfg.LogLevel, os.Stderr, false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.gui {
		gui.NewApp(cfg, log).Run(ctx)
		return nil
	}

	var m anonymizer.Modality
	if f.modality != "" {
		m, err = anonymizer.ParseSelection(f.modality)
	} else {
		m, err = cli.PromptModality(os.Stdin, os.Stdout)
	}
	if err != nil {
		return err
	}

	return cli.Run(ctx, cli.Options{
		Config:   cfg,
		Modality: m,
		DryRun:   f.dryRun,
		Logger:   log,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
