package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/plangraph/internal/depgraph"
	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/presence"
	"github.com/alfredjeanlab/plangraph/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func validateFormat(f string) error {
	switch f {
	case "text", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown format %q (must be text, json or yaml)", f)
}

// emit writes v as JSON or YAML, or hands w to text for the text format.
func emit(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		return writeYAML(w, v)
	}
	return text(w)
}

// writeYAML encodes v through its JSON form so that the YAML keys match the
// JSON field names.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshaling: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

func printDependency(w io.Writer, d *model.Dependency) error {
	fmt.Fprintf(w, "ID:          %s\n", d.ID)
	fmt.Fprintf(w, "From:        %s\n", d.From)
	fmt.Fprintf(w, "To:          %s\n", d.To)
	fmt.Fprintf(w, "Kind:        %s (%s)\n", d.Kind, d.Kind.Long())
	fmt.Fprintf(w, "Lag:         %s\n", formatLag(d.LagDays))
	if d.Note != "" {
		fmt.Fprintf(w, "Note:        %s\n", d.Note)
	}
	if d.CreatedBy != "" {
		fmt.Fprintf(w, "Created By:  %s\n", d.CreatedBy)
	}
	if !d.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created At:  %s\n", d.CreatedAt.Format(timeLayout))
	}
	if !d.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated At:  %s\n", d.UpdatedAt.Format(timeLayout))
	}
	return nil
}

func printDependencyList(w io.Writer, deps []*model.Dependency, noteWidth int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFROM\tKIND\tTO\tLAG\tNOTE")
	for _, d := range deps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.From, d.Kind, d.To, formatLag(d.LagDays), ui.Truncate(d.Note, noteWidth))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d dependencies\n", len(deps))
	return nil
}

// formatLag renders lag days with an explicit sign; negative lag is lead.
func formatLag(days int) string {
	switch {
	case days == 0:
		return "0d"
	case days > 0:
		return fmt.Sprintf("+%dd", days)
	}
	return fmt.Sprintf("%dd", days)
}

func printStats(w io.Writer, s *model.DependencyStats) error {
	fmt.Fprintf(w, "Total:  %d\n", s.Total)
	fmt.Fprintln(w, "\nBy kind:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range model.DependencyKinds {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", k, ui.RenderMuted(k.Long()), s.ByKind[k])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w, "\nBy endpoints:")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, key := range sortedKeys(s.ByEndpoints) {
		fmt.Fprintf(tw, "  %s\t%d\n", key, s.ByEndpoints[key])
	}
	return tw.Flush()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printGraph(w io.Writer, snap *model.GraphSnapshot) error {
	fmt.Fprintf(w, "%d nodes, %d edges\n", len(snap.Nodes), len(snap.Edges))
	if len(snap.Order) > 0 {
		fmt.Fprintln(w, "\nOrder:")
		for i, n := range snap.Order {
			fmt.Fprintf(w, "  %3d  %s\n", i+1, n)
		}
	}
	if len(snap.Edges) > 0 {
		fmt.Fprintln(w, "\nEdges:")
		for _, e := range snap.Edges {
			fmt.Fprintf(w, "  %s -%s-> %s  %s\n", e.Source, e.Kind, e.Target, ui.RenderMuted(formatLag(e.LagDays)))
		}
	}
	return nil
}

func printEvents(w io.Writer, evs []*model.Event) error {
	if len(evs) == 0 {
		fmt.Fprintln(w, "no events")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tACTOR\tPAYLOAD")
	for _, e := range evs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format(timeLayout), e.Action, e.Actor, string(e.Payload))
	}
	return tw.Flush()
}

func printReport(w io.Writer, r *depgraph.Report) error {
	if r.OK() {
		fmt.Fprintf(w, "%s %d dependencies checked, no problems found\n", ui.RenderPass("ok"), r.Checked)
		return nil
	}
	fmt.Fprintf(w, "%s %d dependencies checked\n", ui.RenderFail("problems found"), r.Checked)
	if len(r.Cycle) > 0 {
		fmt.Fprintf(w, "  cycle:      %s\n", model.FormatPath(r.Cycle))
	}
	for _, ids := range r.Duplicates {
		fmt.Fprintf(w, "  duplicate:  %s\n", strings.Join(ids, ", "))
	}
	for _, inv := range r.Invalid {
		for _, fe := range inv.Errors {
			fmt.Fprintf(w, "  invalid:    %s %s: %s\n", inv.ID, fe.Field, fe.Message)
		}
	}
	for _, d := range r.Dangling {
		names := make([]string, len(d.Missing))
		for i, m := range d.Missing {
			names[i] = m.String()
		}
		fmt.Fprintf(w, "  dangling:   %s (missing %s)\n", d.ID, strings.Join(names, ", "))
	}
	return nil
}

func printActors(w io.Writer, actors []*presence.Entry) error {
	if len(actors) == 0 {
		fmt.Fprintln(w, "no actors seen")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTOR\tWRITES\tCREATED\tDELETED\tLAST EVENT\tIDLE")
	for _, a := range actors {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%.0fs\n",
			a.Actor, a.Writes, a.Created, a.Deleted, a.LastEvent, a.IdleSecs)
	}
	return tw.Flush()
}

// describeError renders an error for the terminal, expanding the typed
// rejections the server returns.
func describeError(err error) string {
	var (
		ve *model.ValidationError
		re *model.ReferentialError
		de *model.DuplicateError
		ce *model.CycleError
		nf *model.NotFoundError
	)
	prefix := ui.RenderFail("Error:")
	switch {
	case errors.As(err, &ve):
		var b strings.Builder
		b.WriteString(prefix + " invalid dependency")
		for _, fe := range ve.Errors {
			fmt.Fprintf(&b, "\n  %s: %s", fe.Field, fe.Message)
		}
		return b.String()
	case errors.As(err, &re):
		return prefix + " " + re.Error()
	case errors.As(err, &de):
		if de.ExistingID != "" {
			return prefix + " dependency already exists as " + de.ExistingID
		}
		return prefix + " dependency already exists"
	case errors.As(err, &ce):
		return prefix + " " + ce.Error()
	case errors.As(err, &nf):
		return prefix + " " + nf.Error()
	}
	return prefix + " " + err.Error()
}
