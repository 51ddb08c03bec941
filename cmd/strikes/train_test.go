package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"github.com/Noofbiz/strikes/train"
)

// newTrainFlags registers the train flags on a fresh set so tests don't share
// parse state.
func newTrainFlags(o *trainOptions) *pflag.FlagSet {
	def := train.DefaultConfig()
	f := pflag.NewFlagSet("train", pflag.ContinueOnError)
	f.StringVar(&o.configPath, "config", "", "")
	f.IntVar(&o.epochs, "epochs", def.Training.MaxEpochs, "")
	f.IntVar(&o.hiddenSize, "hidden-size", def.Model.HiddenSize, "")
	f.StringVar(&o.out, "out", def.Output.Dir, "")
	f.BoolVar(&o.noAlignCheck, "no-align-check", false, "")
	return f
}

func TestEffectiveConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"training": {"max_epochs": 7}, "model": {"hidden_size": 32}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	var o trainOptions
	f := newTrainFlags(&o)
	if err := f.Parse([]string{"--config", path, "--hidden-size", "16", "--no-align-check"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := effectiveConfig(f, &o)
	if err != nil {
		t.Fatalf("effectiveConfig: %v", err)
	}
	if cfg.Training.MaxEpochs != 7 {
		t.Errorf("MaxEpochs = %d, want 7 from the config file", cfg.Training.MaxEpochs)
	}
	if cfg.Model.HiddenSize != 16 {
		t.Errorf("HiddenSize = %d, want 16 from the flag", cfg.Model.HiddenSize)
	}
	if cfg.Output.Dir != train.DefaultConfig().Output.Dir {
		t.Errorf("Output.Dir = %q, want the default", cfg.Output.Dir)
	}
	if cfg.Validation.CheckAlignment {
		t.Error("--no-align-check should disable the alignment check")
	}
}

func TestEffectiveConfigRejectsInvalid(t *testing.T) {
	var o trainOptions
	f := newTrainFlags(&o)
	if err := f.Parse([]string{"--epochs", "0"}); err != nil {
		t.Fatal(err)
	}
	if _, err := effectiveConfig(f, &o); err == nil {
		t.Fatal("expected an error for zero epochs")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"train", "evaluate", "compare", "agreement", "runs"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
