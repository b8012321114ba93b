package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/fxchain"
	"github.com/gogpu/fxchain/codegen"
	"github.com/gogpu/fxchain/preset"
	"github.com/gogpu/fxchain/reflection"
)

type report struct {
	Preset       string             `json:"preset"`
	HistoryDepth int                `json:"history_depth"`
	Parameters   []preset.Parameter `json:"parameters"`
	Passes       []passReport       `json:"passes"`
}

type passReport struct {
	Index      int                                `json:"index"`
	Name       string                             `json:"name"`
	Alias      string                             `json:"alias,omitempty"`
	SPIRVWords int                                `json:"spirv_words"`
	Removed    []uint32                           `json:"removed_inputs,omitempty"`
	Reflection *reflection.ShaderReflection       `json:"reflection"`
	Targets    map[codegen.Target]codegen.Context `json:"targets"`
}

func newReport(name string, c *fxchain.Compiled) *report {
	r := &report{
		Preset:       name,
		HistoryDepth: c.HistoryDepth,
		Parameters:   c.Preset.ShaderParameters(),
	}
	for _, p := range c.Passes {
		pr := passReport{
			Index:      p.Index,
			Name:       p.Pass.Source.Name,
			Alias:      p.Pass.Config.Alias,
			SPIRVWords: len(p.Linked.Vertex) + len(p.Linked.Fragment),
			Removed:    p.Linked.Removed,
			Reflection: p.Reflection,
			Targets:    make(map[codegen.Target]codegen.Context, len(p.Outputs)),
		}
		for t, out := range p.Outputs {
			pr.Targets[t] = out.Context
		}
		r.Passes = append(r.Passes, pr)
	}
	return r
}

func (r *report) writeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func (r *report) writeTable(w io.Writer) error {
	pr := message.NewPrinter(language.English)
	pr.Fprintf(w, "%s: %d passes, history depth %d\n\n", r.Preset, len(r.Passes), r.HistoryDepth)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PASS\tNAME\tALIAS\tUBO\tPUSH\tSPIR-V\tTEXTURES")
	for _, p := range r.Passes {
		ubo, push := "-", "-"
		if p.Reflection.UBO != nil {
			ubo = pr.Sprintf("%d B @%d", p.Reflection.UBO.Size, p.Reflection.UBO.Binding)
		}
		if p.Reflection.PushConstant != nil {
			push = pr.Sprintf("%d B", p.Reflection.PushConstant.Size)
		}
		var textures []string
		for _, k := range p.Reflection.SortedTextures() {
			tb := p.Reflection.Meta.Textures[k]
			textures = append(textures, fmt.Sprintf("%s@%d", tb.Name, tb.Binding))
		}
		alias := p.Alias
		if alias == "" {
			alias = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Index, p.Name, alias, ubo, push,
			pr.Sprintf("%d words", p.SPIRVWords),
			strings.Join(textures, " "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Parameters) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PARAMETER\tINITIAL\tRANGE\tDESCRIPTION")
		for _, p := range r.Parameters {
			pr.Fprintf(tw, "%s\t%.3f\t%.3f..%.3f\t%s\n", p.ID, p.Initial, p.Minimum, p.Maximum, p.Description)
		}
		return tw.Flush()
	}
	return nil
}

// writeSources writes the generated program of every pass and target. It
// returns the number of files written.
func writeSources(dir string, c *fxchain.Compiled) (int, error) {
	n := 0
	for _, p := range c.Passes {
		targets := make([]codegen.Target, 0, len(p.Outputs))
		for t := range p.Outputs {
			targets = append(targets, t)
		}
		slices.Sort(targets)
		for _, t := range targets {
			out := p.Outputs[t]
			tdir := filepath.Join(dir, t.String())
			if err := os.MkdirAll(tdir, 0o755); err != nil {
				return n, err
			}
			base := fmt.Sprintf("%d-%s", p.Index, fileName(p.Pass.Source.Name))
			stages := []struct {
				stage string
				data  []byte
			}{
				{"vert", stageBytes(out.Vertex, out.VertexSPIRV)},
				{"frag", stageBytes(out.Fragment, out.FragmentSPIRV)},
			}
			for _, s := range stages {
				name := filepath.Join(tdir, base+"."+s.stage+t.Extension())
				if err := os.WriteFile(name, s.data, 0o644); err != nil {
					return n, err
				}
				n++
			}
		}
	}
	return n, nil
}

func stageBytes(text string, words []uint32) []byte {
	if words == nil {
		return []byte(text)
	}
	out := make([]byte, 0, len(words)*4)
	for _, w := range words {
		out = binary.LittleEndian.AppendUint32(out, w)
	}
	return out
}

func fileName(name string) string {
	if name == "" {
		return "pass"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, name)
}
