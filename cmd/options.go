package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/conflict-dash/internal/filter"
	"github.com/sells-group/conflict-dash/internal/model"
	"github.com/sells-group/conflict-dash/internal/options"
)

var optionsSel selectionFlags

var optionsCmd = &cobra.Command{
	Use:   "options <field>",
	Short: "Print the option list of a filter control",
	Long:  "Prints the values a control offers given the upstream selection. Region depends on --year; country on --year and --region.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		field, err := model.ParseField(args[0])
		if err != nil {
			return err
		}
		sel, err := optionsSel.selection()
		if err != nil {
			return err
		}

		ds, _, err := loadDataset(cmd.Context(), nil)
		if err != nil {
			return err
		}
		printOptions(cmd.OutOrStdout(), options.NewResolver(ds), field, sel)
		return nil
	},
}

func printOptions(w io.Writer, r *options.Resolver, field model.Field, sel filter.Selection) {
	for _, v := range r.Options(field, sel) {
		if field != model.FieldViolenceType {
			fmt.Fprintln(w, v)
			continue
		}
		if d, ok := options.Define(model.ViolenceType(v)); ok {
			fmt.Fprintf(w, "%s\n    %s\n", v, d.Text)
		} else {
			fmt.Fprintln(w, v)
		}
	}
}

func init() {
	optionsSel.register(optionsCmd, model.FieldYear, model.FieldRegion)
	rootCmd.AddCommand(optionsCmd)
}
