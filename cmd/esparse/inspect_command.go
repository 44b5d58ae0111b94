package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"esparse/internal/diag"
	"esparse/internal/formid"
	"esparse/internal/plugin"
)

type inspectTypeCount struct {
	Type       string `json:"type"`
	Records    int    `json:"records"`
	Compressed int    `json:"compressed"`
}

type inspectRecord struct {
	Type       string `json:"type"`
	FormID     string `json:"form_id"`
	Offset     int64  `json:"offset"`
	Size       uint32 `json:"size"`
	Compressed bool   `json:"compressed"`
	EditorID   string `json:"editor_id,omitempty"`
}

type inspectOutput struct {
	Path        string             `json:"path"`
	Digest      string             `json:"digest"`
	Header      plugin.FileHeader  `json:"header"`
	Types       []inspectTypeCount `json:"types"`
	Groups      int                `json:"groups"`
	Records     []inspectRecord    `json:"records,omitempty"`
	Diagnostics []diag.Diagnostic  `json:"diagnostics,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var listRecords bool
	var types []string

	cmd := &cobra.Command{
		Use:         "inspect <file>",
		Short:       "Show the header, record counts and groups of one plugin file",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			for i, t := range types {
				types[i] = strings.ToUpper(strings.TrimSpace(t))
			}
			res, digest, err := plugin.ReadFile(cmd.Context(), path, plugin.Options{
				Plugin:      filepath.Base(path),
				RecordTypes: types,
			})
			if err != nil {
				return err
			}

			out := summarizeInspect(path, digest, res, listRecords)
			if jsonOutput {
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
			} else {
				renderInspect(cmd.OutOrStdout(), out, shouldColorize(cmd.OutOrStdout()))
			}
			return res.Err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the summary as JSON")
	cmd.Flags().BoolVar(&listRecords, "records", false, "List every record")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "Only read these record types (repeatable)")
	return cmd
}

func summarizeInspect(path string, digest plugin.Digest, res plugin.Result, listRecords bool) inspectOutput {
	out := inspectOutput{
		Path:        path,
		Digest:      digest.String(),
		Header:      res.Header,
		Groups:      len(res.Groups),
		Diagnostics: res.Diagnostics,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}

	counts := make(map[string]*inspectTypeCount)
	for i := range res.Records {
		rec := &res.Records[i]
		c, ok := counts[rec.Header.Type]
		if !ok {
			c = &inspectTypeCount{Type: rec.Header.Type}
			counts[rec.Header.Type] = c
		}
		c.Records++
		if rec.Compressed {
			c.Compressed++
		}
		if listRecords {
			out.Records = append(out.Records, inspectRecord{
				Type:       rec.Header.Type,
				FormID:     formid.Format(rec.Header.FormID),
				Offset:     rec.Offset,
				Size:       rec.Header.DataSize,
				Compressed: rec.Compressed,
				EditorID:   rec.EditorID(),
			})
		}
	}
	for _, c := range counts {
		out.Types = append(out.Types, *c)
	}
	sort.Slice(out.Types, func(i, j int) bool { return out.Types[i].Type < out.Types[j].Type })
	return out
}

func renderInspect(w io.Writer, out inspectOutput, colorize bool) {
	h := out.Header
	printLines(w, renderSectionHeader(filepath.Base(out.Path), colorize)...)

	var flags []string
	if h.IsMaster {
		flags = append(flags, "master")
	}
	if h.IsLight {
		flags = append(flags, "light")
	}
	if h.IsLocalized {
		flags = append(flags, "localized")
	}
	if len(flags) == 0 {
		flags = append(flags, "none")
	}
	masters := "none"
	if len(h.Masters) > 0 {
		masters = strings.Join(h.Masters, ", ")
	}

	printLines(w,
		renderField("Version", strconv.FormatFloat(float64(h.Version), 'f', 2, 32)),
		renderField("Flags", fmt.Sprintf("%s (0x%08X)", strings.Join(flags, ", "), h.Flags)),
		renderField("Declared records", strconv.Itoa(int(h.RecordCount))),
		renderField("Next object ID", formid.Format(h.NextObjectID)),
		renderField("Masters", masters),
	)
	if h.Author != "" {
		printLines(w, renderField("Author", h.Author))
	}
	if h.Description != "" {
		printLines(w, renderField("Description", h.Description))
	}
	printLines(w,
		renderField("Groups", strconv.Itoa(out.Groups)),
		renderField("Digest", out.Digest),
	)
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(out.Types))
	for _, c := range out.Types {
		rows = append(rows, []string{c.Type, strconv.Itoa(c.Records), strconv.Itoa(c.Compressed)})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, renderTable([]string{"Type", "Records", "Compressed"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignRight}))
	}

	if len(out.Records) > 0 {
		recRows := make([][]string, 0, len(out.Records))
		for _, r := range out.Records {
			recRows = append(recRows, []string{
				r.Type, r.FormID, strconv.FormatInt(r.Offset, 10), strconv.FormatUint(uint64(r.Size), 10), yesNo(r.Compressed), r.EditorID,
			})
		}
		fmt.Fprintln(w, renderTable([]string{"Type", "FormID", "Offset", "Size", "Compressed", "Editor ID"}, recRows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}))
	}

	for _, d := range out.Diagnostics {
		kind := statusWarn
		if d.Severity == diag.SeverityError {
			kind = statusError
		}
		fmt.Fprintln(w, renderStatusLine(string(d.Code), kind, d.Message, colorize))
	}
	if out.Error == "" {
		fmt.Fprintln(w, renderStatusLine("Parse", statusOK, "complete", colorize))
	}
}
