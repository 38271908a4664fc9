package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gonuts/commander"

	"bovw-classifier/internal/artifact"
	"bovw-classifier/internal/config"
	"bovw-classifier/internal/dataset"
	"bovw-classifier/internal/experiment"
	"bovw-classifier/internal/logger"
	"bovw-classifier/internal/shutdown"
	"bovw-classifier/internal/timing"
)

// addPathFlags registers the flags shared by every command. Non-empty
// values override the configuration file.
func addPathFlags(cmd *commander.Command) {
	cmd.Flag.String("config", "", "YAML configuration file")
	cmd.Flag.String("images", "", "image root holding the train and test directories")
	cmd.Flag.String("cache", "", "artifact cache directory")
	cmd.Flag.String("out", "", "submission and report directory")
}

func flagValue(cmd *commander.Command, name string) string {
	f := cmd.Flag.Lookup(name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}

func loadConfig(cmd *commander.Command) (config.Config, error) {
	cfg, err := config.Load(flagValue(cmd, "config"))
	if err != nil {
		return config.Config{}, err
	}
	if v := flagValue(cmd, "images"); v != "" {
		cfg.Paths.Images = v
	}
	if v := flagValue(cmd, "cache"); v != "" {
		cfg.Paths.Cache = v
	}
	if v := flagValue(cmd, "out"); v != "" {
		cfg.Paths.Output = v
	}
	return cfg, nil
}

// session is the per-invocation state shared by the commands.
type session struct {
	cfg      config.Config
	log      logger.Logger
	timing   *timing.Tracker
	shutdown *shutdown.Manager
}

func newSession(cmd *commander.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	sm := shutdown.NewManager(log)
	sm.Listen()
	return &session{
		cfg:      cfg,
		log:      log,
		timing:   timing.NewTracker(log),
		shutdown: sm,
	}, nil
}

func (s *session) close() {
	if err := s.shutdown.Close(); err != nil {
		s.log.Error("Main", err, nil)
	}
}

func (s *session) experiment() (*experiment.Experiment, error) {
	c, err := buildComponents(s.cfg, s.log)
	if err != nil {
		return nil, err
	}
	for name, closer := range c.closers {
		s.shutdown.Register(name, closer)
	}
	return experiment.New(s.cfg, experiment.Deps{
		Extractor: c.extractor,
		Fitter:    c.fitter,
		Logger:    s.log,
		Timing:    s.timing,
	})
}

func runCommand() *commander.Command {
	cmd := &commander.Command{
		Run:       runExperiment,
		UsageLine: "run [options]",
		Short:     "extract features, cross-validate every variant and write submissions",
		Long: `
run the whole experiment: features for both splits (cached), a grid search
per feature variant, one submission per variant and the appended report

	$ bovw-classifier run -config experiment.yaml -images imgs -out submissions
`,
		Flag: *flag.NewFlagSet("run", flag.ExitOnError),
	}
	addPathFlags(cmd)
	return cmd
}

func runExperiment(cmd *commander.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	exp, err := s.experiment()
	if err != nil {
		return err
	}
	results, err := exp.Run(s.shutdown.Context())
	s.timing.Summary()
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%-14s accuracy %.1f%%  C=%g\n", r.Variant, 100*r.Accuracy, r.BestC)
	}
	return nil
}

func featuresCommand() *commander.Command {
	cmd := &commander.Command{
		Run:       computeFeatures,
		UsageLine: "features [options]",
		Short:     "compute or refresh the cached features of a split",
		Long: `
compute the texture, pattern and visual-word features of a split without
training any classifier

	$ bovw-classifier features -split train
`,
		Flag: *flag.NewFlagSet("features", flag.ExitOnError),
	}
	addPathFlags(cmd)
	cmd.Flag.String("split", "all", "train, test or all")
	return cmd
}

func parseSplits(name string) ([]dataset.Split, error) {
	if strings.EqualFold(name, "all") {
		return []dataset.Split{dataset.Train, dataset.Test}, nil
	}
	split, err := dataset.ParseSplit(name)
	if err != nil {
		return nil, err
	}
	return []dataset.Split{split}, nil
}

func computeFeatures(cmd *commander.Command, args []string) error {
	splits, err := parseSplits(flagValue(cmd, "split"))
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	exp, err := s.experiment()
	if err != nil {
		return err
	}
	for _, split := range splits {
		f, _, err := exp.Features(s.shutdown.Context(), split)
		if err != nil {
			return err
		}
		fmt.Printf("%-5s %d images, texture %d, pattern %d, histogram %d\n",
			split, f.Rows(), f.Texture.Cols, f.Pattern.Cols, f.Histograms.Cols)
	}
	s.timing.Summary()
	return nil
}

func cacheCommand() *commander.Command {
	return &commander.Command{
		UsageLine: "cache <command>",
		Short:     "inspect or clear the artifact cache",
		Subcommands: []*commander.Command{
			cacheStatusCommand(),
			cacheClearCommand(),
		},
		Flag: *flag.NewFlagSet("cache", flag.ExitOnError),
	}
}

func cacheStatusCommand() *commander.Command {
	cmd := &commander.Command{
		Run:       cacheStatus,
		UsageLine: "status [options]",
		Short:     "list the cached artifacts of both splits",
		Flag:      *flag.NewFlagSet("status", flag.ExitOnError),
	}
	addPathFlags(cmd)
	return cmd
}

func cacheStatus(cmd *commander.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store := artifact.NewStore(cfg.Paths.Cache, nil)
	for _, split := range []dataset.Split{dataset.Train, dataset.Test} {
		entries, err := store.Entries(split)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d artifacts)\n", split, len(entries))
		for _, kind := range artifact.SortedKinds(entries) {
			e := entries[kind]
			line := fmt.Sprintf("  %-16s %6d x %-6d %10d bytes  %s", kind, e.Rows, e.Cols, e.Bytes, e.Written.Format("2006-01-02 15:04:05"))
			if e.Vocabulary != "" {
				line += "  vocabulary " + shortFingerprint(e.Vocabulary)
			}
			fmt.Println(line)
		}
	}
	return nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func cacheClearCommand() *commander.Command {
	cmd := &commander.Command{
		Run:       cacheClear,
		UsageLine: "clear [options]",
		Short:     "remove the cached artifacts of a split",
		Flag:      *flag.NewFlagSet("clear", flag.ExitOnError),
	}
	addPathFlags(cmd)
	cmd.Flag.String("split", "", "train, test or all")
	return cmd
}

func cacheClear(cmd *commander.Command, args []string) error {
	name := flagValue(cmd, "split")
	if name == "" {
		return errors.New("cache clear needs -split train|test|all")
	}
	splits, err := parseSplits(name)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store := artifact.NewStore(cfg.Paths.Cache, nil)
	for _, split := range splits {
		if err := store.Clear(split); err != nil {
			return err
		}
		fmt.Printf("cleared %s\n", filepath.Dir(store.Path(split, artifact.Texture)))
	}
	return nil
}
