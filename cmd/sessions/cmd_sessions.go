package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
	"github.com/iammorganparry/clive/apps/sessions/internal/render"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := a.mgr.GetSessionList()
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), list)
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Sessions(list))
			return nil
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show SESSION",
		Short: "Show every stored attribute of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.resolveSession(args[0])
			if err != nil {
				return err
			}
			attrs, err := a.mgr.SessionAttributes(s)
			if err != nil {
				return err
			}
			if a.asJSON {
				views := make(map[string]models.AttributeView, len(attrs))
				for n, v := range attrs {
					views[n] = v.View()
				}
				return printJSON(cmd.OutOrStdout(), models.SessionDetail{Session: s, Attributes: views})
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Attributes(s, attrs))
			return nil
		},
	}
}

// parseOverrides reads NAME=VALUE or NAME:dword=VALUE pairs.
func parseOverrides(pairs []string) (models.Attributes, error) {
	out := make(models.Attributes, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("override %q: want NAME=VALUE", p)
		}
		kind := "string"
		if n, k, typed := strings.Cut(name, ":"); typed {
			name, kind = n, k
		}
		v, err := models.ParseValue(kind, raw)
		if err != nil {
			return nil, fmt.Errorf("override %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func newNewCmd(a *app) *cobra.Command {
	var (
		template     string
		folder       string
		hostname     string
		set          []string
		copyUsername bool
	)
	cmd := &cobra.Command{
		Use:   "new NAME",
		Short: "Create a session from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl := a.mgr.FindDefaultSession()
			if template != "" {
				var err error
				if tmpl, err = a.resolveSession(template); err != nil {
					return fmt.Errorf("template %q: %w", template, models.ErrTemplateMissing)
				}
			}
			overrides, err := parseOverrides(set)
			if err != nil {
				return err
			}
			s, ev, err := a.mgr.CreateNewSession(models.NewSessionRequest{
				Template:            tmpl,
				SessionName:         args[0],
				SessionFolder:       folder,
				Hostname:            hostname,
				Overrides:           overrides,
				CopyDefaultUsername: copyUsername,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n%s\n", s.DisplayText, render.Event(ev))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&template, "template", "t", "", "session to copy settings from (default: the default session)")
	f.StringVarP(&folder, "folder", "f", "", "folder path for the new session")
	f.StringVarP(&hostname, "host", "H", "", "host name")
	f.StringArrayVar(&set, "set", nil, "extra attribute NAME=VALUE or NAME:dword=VALUE (repeatable)")
	f.BoolVar(&copyUsername, "copy-username", false, "keep the template's user name")
	return cmd
}

func newRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename SESSION NEW-NAME",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.resolveSession(args[0])
			if err != nil {
				return err
			}
			renamed, ev, err := a.mgr.RenameSession(s, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n%s\n", s.DisplayText, renamed.DisplayText, render.Event(ev))
			return nil
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm SESSION...",
		Aliases: []string{"delete"},
		Short:   "Delete sessions",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.resolveSessions(args)
			if err != nil {
				return err
			}
			ev, err := a.mgr.DeleteSessions(list)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d session(s)\n%s\n", len(list), render.Event(ev))
			return nil
		},
	}
}

func newCopyAttrsCmd(a *app) *cobra.Command {
	var (
		policy string
		attrs  []string
	)
	cmd := &cobra.Command{
		Use:   "copy-attrs TEMPLATE TARGET...",
		Short: "Copy attributes from one session onto others",
		Long: `Copy attributes from TEMPLATE onto every TARGET.

Policies:
  ALL      copy everything
  EXCLUDE  copy everything except --attr
  INCLUDE  copy only --attr

Host name and folder are never copied.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := models.ParseCopyPolicy(policy)
			if err != nil {
				return err
			}
			tmpl, err := a.resolveSession(args[0])
			if err != nil {
				return fmt.Errorf("template %q: %w", args[0], models.ErrTemplateMissing)
			}
			targets, err := a.resolveSessions(args[1:])
			if err != nil {
				return err
			}
			ev, err := a.mgr.CopySessionAttributes(models.CopySessionRequest{
				Template:           tmpl,
				TargetSessions:     targets,
				Policy:             p,
				SelectedAttributes: attrs,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Event(ev))
			return nil
		},
	}
	cmd.Flags().StringVarP(&policy, "policy", "p", string(models.CopyAll), "ALL, EXCLUDE or INCLUDE")
	cmd.Flags().StringSliceVarP(&attrs, "attr", "a", nil, "attribute names for EXCLUDE/INCLUDE")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		output string
		format string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "export [SESSION...]",
		Short: "Export sessions as a .reg or YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			list := a.mgr.GetSessionList()
			if !all {
				if len(args) == 0 {
					return fmt.Errorf("name sessions to export or pass --all")
				}
				var err error
				if list, err = a.resolveSessions(args); err != nil {
					return err
				}
			}

			if output == "" || output == "-" {
				e, err := a.mgr.Exporter(format)
				if err != nil {
					return err
				}
				_, err = e.Export(cmd.OutOrStdout(), list)
				return err
			}

			n, err := a.mgr.BackupSessionsToFile(list, output, format)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), render.SuccessStyle.Render(fmt.Sprintf("exported %d session(s) to %s", n, output)))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "file to write (default: stdout)")
	f.StringVar(&format, "format", "reg", "reg or yaml")
	f.BoolVar(&all, "all", false, "export every session")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Restore sessions from a YAML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}
			ev, err := a.mgr.RestoreFromFile(args[0], overwrite)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Event(ev))
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace sessions that already exist")
	return cmd
}
