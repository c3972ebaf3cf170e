package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/soothill/powerlogger/internal/reconcile"
	"github.com/soothill/powerlogger/internal/topology"
)

func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render [task-name...]",
		Short: "Print the generated downsampling task definitions",
		Long: `Prints the Flux definitions reconcile would submit, without contacting
the server. With task names, prints only those tasks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			return renderTasks(cc.Out, cc.Cfg.Desired, args, cc.Flags.JSON)
		},
	}
}

type renderedTaskJSON struct {
	Name       string `json:"name"`
	Source     string `json:"source"`
	Dest       string `json:"dest"`
	Every      string `json:"every"`
	Offset     string `json:"offset"`
	Lookback   string `json:"lookback"`
	Definition string `json:"definition"`
}

func renderTasks(w io.Writer, desired *topology.Desired, names []string, asJSON bool) error {
	defs, err := reconcile.RenderDefinitions(desired)
	if err != nil {
		return err
	}

	for _, name := range names {
		if !slices.ContainsFunc(desired.Tasks[:], func(t topology.DownsampleTask) bool { return t.Name == name }) {
			return fmt.Errorf("unknown task %q", name)
		}
	}

	var (
		out     []renderedTaskJSON
		printed int
	)

	for i, t := range desired.Tasks {
		if len(names) > 0 && !slices.Contains(names, t.Name) {
			continue
		}

		if asJSON {
			out = append(out, renderedTaskJSON{
				Name: t.Name, Source: t.Source, Dest: t.Dest,
				Every: t.Every.String(), Offset: t.Offset.String(), Lookback: t.Lookback.String(),
				Definition: defs[i],
			})

			continue
		}

		if printed > 0 {
			fmt.Fprintln(w)
		}

		fmt.Fprintf(w, "// %s: %s -> %s\n%s", t.Name, t.Source, t.Dest, defs[i])
		printed++
	}

	if !asJSON {
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}
