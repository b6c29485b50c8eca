package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jyl/universe/internal/catalog"
	"github.com/jyl/universe/internal/domain"
)

func newCollectionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the collections and record sets this build manages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := catalog.Default()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTABLE\tTITLE\tTOGGLE\tSCOPES")
			for _, coll := range cat.All() {
				toggle, scopes := "-", "-"
				if coll.ToggleField != "" {
					toggle = coll.ToggleField
				}
				if coll.Scope != nil {
					scopes = strings.Join(coll.Scope.Values, ",")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", coll.Name, coll.Table, coll.TitleField, toggle, scopes)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout())
			tw = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RECORD SET\tTABLE\tKEY\tFIELDS")
			for _, set := range cat.RecordSets() {
				key := domain.SingletonKey
				if !set.Singleton() {
					key = set.Key.Column
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", set.Name, set.Table, key, strings.Join(set.FieldNames(), ","))
			}
			return tw.Flush()
		},
	}
}
