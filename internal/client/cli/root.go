package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/petcommunity/internal/client/guard"
	"github.com/sakif/petcommunity/internal/client/session"
	"github.com/sakif/petcommunity/internal/config"
	"github.com/sakif/petcommunity/internal/model"
)

const (
	annotationAuth = "requiresAuth"
	// annotationKindArg marks commands whose first argument is a listing
	// kind. Private kinds need a session even on otherwise public commands.
	annotationKindArg = "kindArg"
)

// authRequired marks cmd for the route guard.
func authRequired(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationAuth] = "true"
	return cmd
}

// kindCommand marks cmd as taking a listing kind as its first argument.
func kindCommand(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationKindArg] = "true"
	return cmd
}

// routeRequiresAuth reports whether this invocation needs a session.
func routeRequiresAuth(cmd *cobra.Command, args []string) bool {
	if cmd.Annotations[annotationAuth] == "true" {
		return true
	}
	if cmd.Annotations[annotationKindArg] != "true" || len(args) == 0 {
		return false
	}
	kind, err := model.ParseKind(args[0])
	return err == nil && kind == model.KindDiary
}

// routePath names a command invocation the way return-to reports it,
// e.g. "edit board 12".
func routePath(cmd *cobra.Command, args []string) string {
	parts := strings.Fields(cmd.CommandPath())[1:]
	return strings.Join(append(parts, args...), " ")
}

// NewRootCommand builds the petctl command tree.
func NewRootCommand(a *App) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "petctl",
		Short:         "Pet adoption community client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(configPath); err != nil {
				return err
			}
			_, loggedIn := a.store.Current()
			route := guard.Route{
				Path:         routePath(cmd, args),
				RequiresAuth: routeRequiresAuth(cmd, args),
			}
			d := guard.Decide(loggedIn, route)
			if d.Outcome == guard.Redirect {
				if err := a.store.SetReturnTo(d.ReturnTo); err != nil {
					a.logger.Warn("remembering return path failed", slog.String("error", err.Error()))
				}
				return ErrLoginRequired
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", DefaultConfigPath(), "config file")

	root.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		authRequired(a.whoamiCmd()),
		kindCommand(a.listCmd()),
		kindCommand(a.showCmd()),
		authRequired(a.createCmd()),
		authRequired(a.editCmd()),
		authRequired(a.deleteCmd()),
		authRequired(a.statusCmd()),
		authRequired(a.uploadCmd()),
		a.configCmd(&configPath),
	)
	return root
}

func (a *App) registerCmd() *cobra.Command {
	var nickname string
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.readPassword()
			if err != nil {
				return err
			}
			res, err := a.api.Register(cmd.Context(), args[0], string(pw), nickname)
			if err != nil {
				return err
			}
			return a.startSession(res.User.ID, res.User.Username, res.User.Nickname, res.Token)
		},
	}
	cmd.Flags().StringVarP(&nickname, "nickname", "n", "", "display name (defaults to the username)")
	return cmd
}

func (a *App) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log in",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var username string
			if len(args) == 1 {
				username = args[0]
			} else {
				var err error
				if username, err = a.prompt("Username"); err != nil {
					return err
				}
			}
			pw, err := a.readPassword()
			if err != nil {
				return err
			}
			res, err := a.api.Login(cmd.Context(), username, string(pw))
			if err != nil {
				return err
			}
			return a.startSession(res.User.ID, res.User.Username, res.User.Nickname, res.Token)
		},
	}
}

// startSession stores the new session and points the user at where they
// were headed before the guard sent them to log in.
func (a *App) startSession(id int64, username, nickname, token string) error {
	err := a.store.Login(session.User{ID: id, Username: username, Nickname: nickname, Token: token})
	if err != nil {
		return err
	}
	a.printf("Logged in as %s (%s)\n", nickname, username)
	if next := guard.AfterLogin(a.store.TakeReturnTo()); next != guard.HomePath {
		a.printf("Continue with: petctl %s\n", next)
	}
	return nil
}

func (a *App) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := a.store.Current(); !ok {
				a.printf("Not logged in\n")
				return nil
			}
			// The local session is cleared even if the server is unreachable.
			if err := a.api.Logout(cmd.Context()); err != nil {
				a.logger.Warn("server logout failed", slog.String("error", err.Error()))
			}
			if err := a.store.Logout(); err != nil {
				return err
			}
			a.printf("Logged out\n")
			return nil
		},
	}
}

func (a *App) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.api.Me(cmd.Context())
			if err != nil {
				return err
			}
			a.printf("%s (%s), id %d\n", u.Nickname, u.Username, u.ID)
			return nil
		},
	}
}

func (a *App) configCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(*configPath, config.Default()); err != nil {
				return err
			}
			a.printf("Configuration initialized at %s\n", *configPath)
			return nil
		},
	})
	return cmd
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, a *App, args []string) error {
	root := NewRootCommand(a)
	root.SetArgs(args)
	root.SetOut(a.out)
	if err := root.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("petctl: %w", err)
	}
	return nil
}
