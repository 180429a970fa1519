package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iammorganparry/clive/apps/sessions/internal/hierarchy"
	"github.com/iammorganparry/clive/apps/sessions/internal/models"
	"github.com/iammorganparry/clive/apps/sessions/internal/render"
)

// treeJSON converts the subtree below id for --json output.
func treeJSON(t *hierarchy.Tree, id hierarchy.NodeID) *models.TreeNode {
	e := t.Entry(id)
	n := &models.TreeNode{Key: e.Key(), Name: e.Display()}
	switch v := e.(type) {
	case *models.Folder:
		n.Kind, n.Path = "folder", v.Path
		for _, c := range t.Children(id) {
			n.Children = append(n.Children, treeJSON(t, c))
		}
	case *models.Session:
		n.Kind, n.Path, n.Session = "session", v.FolderPath, v
	}
	return n
}

func newTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show sessions grouped by folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), treeJSON(a.mgr.Tree(), hierarchy.RootID))
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Tree(a.mgr.Tree()))
			return nil
		},
	}
}

func newMvCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mv NODE... FOLDER",
		Short: "Move sessions or folders into a folder",
		Long: `Move sessions or folders into FOLDER. Every moved session has its folder
path written back to the store. Folders left empty are removed.

Folders are named by path, with or without the root folder in front.
Use "" for the root folder.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := a.resolveNode(args[len(args)-1])
			if err != nil {
				return err
			}
			for _, arg := range args[:len(args)-1] {
				node, err := a.resolveNode(arg)
				if err != nil {
					return err
				}
				ev, err := a.mgr.Move(node, target)
				if err != nil {
					return fmt.Errorf("move %s: %w", arg, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", arg, render.Event(ev))
			}
			return nil
		},
	}
}

func newMkdirCmd(a *app) *cobra.Command {
	var (
		parent string
		wrap   string
	)
	cmd := &cobra.Command{
		Use:   "mkdir NAME [NODE...]",
		Short: "Create a folder and move nodes into it",
		Long: `Create folder NAME under --parent and move the listed sessions or folders
into it. A folder that ends up empty is not stored and disappears on the next
run. With --wrap the folder is created next to the wrapped node, which is
moved into it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				folder hierarchy.NodeID
				ev     models.Event
			)
			if wrap != "" {
				node, err := a.resolveNode(wrap)
				if err != nil {
					return err
				}
				folder, ev, err = a.mgr.WrapInFolder(node, args[0])
				if err != nil {
					return err
				}
			} else {
				p, err := a.resolveNode(parent)
				if err != nil {
					return err
				}
				folder, ev, err = a.mgr.CreateFolder(p, args[0])
				if err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", a.mgr.Tree().Folder(folder).Path, render.Event(ev))

			for _, arg := range args[1:] {
				node, err := a.resolveNode(arg)
				if err != nil {
					return err
				}
				if ev, err = a.mgr.Move(node, folder); err != nil {
					return fmt.Errorf("move %s: %w", arg, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", arg, render.Event(ev))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "folder to create NAME in (default: root)")
	cmd.Flags().StringVar(&wrap, "wrap", "", "session or folder to wrap in the new folder")
	return cmd
}

func newRenameFolderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename-folder FOLDER NEW-NAME",
		Short: "Rename a folder and update every session below it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := a.resolveNode(args[0])
			if err != nil {
				return err
			}
			if a.mgr.Tree().Folder(node) == nil {
				return fmt.Errorf("%s is not a folder: %w", args[0], models.ErrNotFound)
			}
			ev, err := a.mgr.RenameFolder(node, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Event(ev))
			return nil
		},
	}
}

func newLaunchCmd(a *app) *cobra.Command {
	var (
		recursive bool
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "launch FOLDER",
		Short: "List the sessions a folder launch would open",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := a.resolveNode(args[0])
			if err != nil {
				return err
			}
			plan, err := a.mgr.FolderLaunchPlan(node, recursive)
			if err != nil {
				return err
			}
			if plan.Warn && !yes {
				return fmt.Errorf("folder holds %d sessions, more than the warning threshold of %d; pass --yes to confirm",
					len(plan.Sessions), a.cfg.FolderLaunchWarning)
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), plan)
			}
			for _, s := range plan.Sessions {
				fmt.Fprintln(cmd.OutOrStdout(), s.DisplayText)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "include sessions in subfolders")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm launching a large folder")
	return cmd
}
