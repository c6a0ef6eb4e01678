package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/staple-duck/snh/models"
	"github.com/staple-duck/snh/services"
)

func newCreateCmd(a *app) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "create <label>",
		Short: "Create a node, as a root unless --parent is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.hierarchy(cmd)
			if err != nil {
				return err
			}
			var parentID *string
			if parent != "" {
				parentID = models.StringPtr(parent)
			}
			node, err := svc.Create(cmd.Context(), args[0], parentID)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), node)
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "Parent node id")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "tree"},
		Short:   "Print the whole forest",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.hierarchy(cmd)
			if err != nil {
				return err
			}
			forest, err := svc.FindAll(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), forest)
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a single node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.hierarchy(cmd)
			if err != nil {
				return err
			}
			node, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), node)
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		label  string
		parent string
		root   bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Relabel and/or reparent a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch models.NodePatch
			if cmd.Flags().Changed("label") {
				patch.Label = models.StringPtr(label)
			}
			switch {
			case root && parent != "":
				return fmt.Errorf("--parent and --root are mutually exclusive")
			case root:
				patch.SetParent = true
			case parent != "":
				patch.SetParent = true
				patch.ParentID = models.StringPtr(parent)
			}

			svc, err := a.hierarchy(cmd)
			if err != nil {
				return err
			}
			node, err := svc.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), node)
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", "", "New label")
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "New parent node id")
	cmd.Flags().BoolVar(&root, "root", false, "Detach the node to a root")
	return cmd
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> [parent-id]",
		Short: "Reparent a node; without a parent the node becomes a root",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := models.NodePatch{SetParent: true}
			if len(args) == 2 {
				patch.ParentID = models.StringPtr(args[1])
			}

			svc, err := a.hierarchy(cmd)
			if err != nil {
				return err
			}
			node, err := svc.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), node)
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a node and all of its descendants",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.hierarchy(cmd)
			if err != nil {
				return err
			}
			resp, err := svc.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), resp)
		},
	}
}

func newCloneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clone <id> <target-parent-id>",
		Short: "Deep-copy a subtree under another node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.hierarchy(cmd)
			if err != nil {
				return err
			}
			resp, err := svc.Clone(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), resp)
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the forest as JSON or YAML",
		Long: `Write the forest in the --output format (json unless yaml is chosen)
to stdout or to --file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.hierarchy(cmd)
			if err != nil {
				return err
			}
			forest, err := svc.FindAll(cmd.Context())
			if err != nil {
				return err
			}

			format := a.output
			if format == outputText {
				format = outputJSON
			}

			out := cmd.OutOrStdout()
			if file != "" {
				f, err := os.Create(file)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", file, err)
				}
				defer f.Close()
				out = f
			}
			if err := encode(out, format, forest); err != nil {
				return err
			}
			if file != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d node(s) to %s\n", services.CountNodes(forest), file)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Write to this file instead of stdout")
	return cmd
}
