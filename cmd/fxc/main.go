// Command fxc compiles a shader preset and prints the reflected interface of
// every pass.
//
// Usage:
//
//	fxc [-target all|spirv|glsl|glsl-es|hlsl|msl] [-out dir] [-json] [-v] preset.toml
//
// The summary is a table when stdout is a terminal and JSON otherwise.
// With -out, the generated sources of every pass are written to
// dir/<target>/<pass>-<name>.<stage><ext>.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/gogpu/fxchain"
	"github.com/gogpu/fxchain/codegen"
	"github.com/gogpu/fxchain/preset"
)

func main() {
	tty := term.IsTerminal(int(os.Stdout.Fd()))
	if err := run(os.Args[1:], os.Stdout, os.Stderr, tty); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "fxc: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer, tty bool) error {
	fs := flag.NewFlagSet("fxc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		targetList = fs.String("target", "all", "comma separated targets: all, "+targetNames())
		outDir     = fs.String("out", "", "write generated sources to this directory")
		asJSON     = fs.Bool("json", false, "print JSON even on a terminal")
		verbose    = fs.Bool("v", false, "log compilation details to stderr")
	)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: fxc [flags] preset\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected one preset file")
	}

	targets, err := parseTargets(*targetList)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	p, err := preset.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	compiled, err := fxchain.Compile(p, targets, fxchain.WithLogger(logger))
	if err != nil {
		return err
	}

	if *outDir != "" {
		files, err := writeSources(*outDir, compiled)
		if err != nil {
			return err
		}
		logger.Info("sources written", "dir", *outDir, "files", files)
	}

	rep := newReport(fs.Arg(0), compiled)
	if tty && !*asJSON {
		return rep.writeTable(stdout)
	}
	return rep.writeJSON(stdout)
}

func targetNames() string {
	names := make([]string, 0, len(codegen.Targets()))
	for _, t := range codegen.Targets() {
		names = append(names, t.String())
	}
	return strings.Join(names, ", ")
}

func parseTargets(s string) ([]codegen.Target, error) {
	if s == "" || strings.EqualFold(s, "all") {
		return codegen.Targets(), nil
	}
	var out []codegen.Target
	for name := range strings.SplitSeq(s, ",") {
		t, err := codegen.ParseTarget(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
