// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestFlagsFromParams_BasicTypes(t *testing.T) {
	type params struct {
		Output  string        `flag:"output,o" desc:"output file"`
		Digest  bool          `flag:"digest"   desc:"print digest" default:"true"`
		Depth   int           `flag:"depth"    default:"3"`
		Size    uint64        `flag:"size"`
		Wait    time.Duration `flag:"wait"     default:"5s"`
		Labels  []string      `flag:"label"`
		Ignored string
	}

	var p params
	flagSet := FlagsFromParams("test", &p)

	if err := flagSet.Parse([]string{
		"-o", "out.img", "--digest=false", "--depth", "7",
		"--size", "4096", "--wait", "250ms", "--label", "a", "--label", "b",
	}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Output != "out.img" {
		t.Errorf("Output = %q", p.Output)
	}
	if p.Digest {
		t.Error("Digest should have been overridden to false")
	}
	if p.Depth != 7 {
		t.Errorf("Depth = %d", p.Depth)
	}
	if p.Size != 4096 {
		t.Errorf("Size = %d", p.Size)
	}
	if p.Wait != 250*time.Millisecond {
		t.Errorf("Wait = %v", p.Wait)
	}
	if len(p.Labels) != 2 || p.Labels[0] != "a" || p.Labels[1] != "b" {
		t.Errorf("Labels = %v", p.Labels)
	}
}

func TestFlagsFromParams_Defaults(t *testing.T) {
	type params struct {
		Digest bool          `flag:"digest" default:"true"`
		Depth  int           `flag:"depth"  default:"3"`
		Wait   time.Duration `flag:"wait"   default:"5s"`
	}

	var p params
	flagSet := FlagsFromParams("test", &p)
	if err := flagSet.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !p.Digest || p.Depth != 3 || p.Wait != 5*time.Second {
		t.Errorf("defaults not applied: %+v", p)
	}
}

func TestFlagsFromParams_EmbeddedJSONOutput(t *testing.T) {
	type params struct {
		JSONOutput
		Long bool `flag:"long,l"`
	}

	var p params
	flagSet := FlagsFromParams("test", &p)
	if err := flagSet.Parse([]string{"--json", "-l"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.OutputJSON || !p.Long {
		t.Errorf("parsed: %+v", p)
	}
}

// ConnParams implements FlagBinder. Exported so embedded-field
// reflection in bindStructFields can see it.
type ConnParams struct {
	Socket string
}

func (c *ConnParams) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.Socket, "socket", "/default.sock", "socket path")
}

func TestBindFlags_FlagBinder(t *testing.T) {
	type params struct {
		ConnParams
		Long bool `flag:"long"`
	}

	var p params
	flagSet := FlagsFromParams("test", &p)
	if err := flagSet.Parse([]string{"--socket", "/custom.sock", "--long"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Socket != "/custom.sock" {
		t.Errorf("Socket = %q", p.Socket)
	}
	if !p.Long {
		t.Error("Long not set")
	}
}

func TestBindFlags_RejectsNonPointer(t *testing.T) {
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(struct{}{}, flagSet); err == nil {
		t.Error("expected error for non-pointer params")
	}
}

func TestBindFlags_RejectsUnsupportedType(t *testing.T) {
	type params struct {
		Bad map[string]string `flag:"bad"`
	}
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&params{}, flagSet); err == nil {
		t.Error("expected error for unsupported field type")
	}
}

func TestBindFlags_BadDefault(t *testing.T) {
	type params struct {
		Depth int `flag:"depth" default:"seven"`
	}
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&params{}, flagSet); err == nil {
		t.Error("expected error for unparseable default")
	}
}
