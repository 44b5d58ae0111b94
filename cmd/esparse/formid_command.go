package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"esparse/internal/formid"
	"esparse/internal/loadorder"
)

type formIDOutput struct {
	Raw     string `json:"raw"`
	Plugin  string `json:"plugin"`
	Target  string `json:"target"`
	Global  string `json:"global"`
	Slot    int    `json:"slot"`
	IsLight bool   `json:"is_light"`
}

func newFormIDCommand(ctx *commandContext) *cobra.Command {
	var pluginName string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "formid <id>",
		Short: "Resolve a plugin-local FormID to its load-order-wide id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := formid.Parse(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateInputs(); err != nil {
				return err
			}
			metas, _, err := loadorder.FromConfig(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("build load order: %w", err)
			}
			registry, err := formid.NewRegistry(metas)
			if err != nil {
				return fmt.Errorf("build formid registry: %w", err)
			}

			res := registry.Resolve(raw, pluginName)
			if !res.OK {
				return fmt.Errorf("%s: %s", res.Diagnostic.Code, res.Diagnostic.Message)
			}
			target, _ := registry.Lookup(res.Target)
			out := formIDOutput{
				Raw:     formid.Format(raw),
				Plugin:  pluginName,
				Target:  res.Target,
				Global:  formid.Format(res.Global),
				Slot:    target.Slot(),
				IsLight: target.IsESL,
			}
			if jsonOutput {
				return writeJSON(cmd, out)
			}
			w := cmd.OutOrStdout()
			printLines(w,
				renderField("FormID", out.Raw),
				renderField("Context plugin", out.Plugin),
				renderField("Defined by", out.Target),
				renderField("Global", out.Global),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&pluginName, "plugin", "p", "", "Plugin whose master table interprets the id")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("plugin")
	return cmd
}
