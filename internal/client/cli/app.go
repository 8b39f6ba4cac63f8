// Package cli implements petctl, the command-line client.
//
// Every command goes through the same PersistentPreRunE: load config, open
// the session store, then ask the route guard whether the command may run.
// Commands that need a logged-in user carry the requiresAuth annotation.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/sakif/petcommunity/internal/client/api"
	"github.com/sakif/petcommunity/internal/client/session"
	"github.com/sakif/petcommunity/internal/config"
)

// ErrLoginRequired is returned when the guard redirects a command to login.
var ErrLoginRequired = errors.New("you need to log in first: run `petctl login`")

// App holds what every command needs.
type App struct {
	logger *slog.Logger
	in     *bufio.Reader
	out    io.Writer

	// readPassword reads a password without echo. Tests replace it.
	readPassword func() ([]byte, error)

	cfg   *config.Config
	store *session.Store
	api   *api.Client
}

// NewApp returns an App reading from in and writing to out. Config and
// session are loaded when the first command runs.
func NewApp(logger *slog.Logger, in io.Reader, out io.Writer) *App {
	a := &App{
		logger: logger,
		in:     bufio.NewReader(in),
		out:    out,
	}
	a.readPassword = a.terminalPassword
	return a
}

// DefaultConfigPath is ~/.petctl/config.toml, or $PETCTL_CONFIG when set.
func DefaultConfigPath() string {
	if p := os.Getenv("PETCTL_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(config.Default().Client.Home, "config.toml")
}

// setup loads config and the persisted session. It is a no-op once wired.
func (a *App) setup(configPath string) error {
	if a.store != nil {
		return nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	storage, err := session.NewFileStorage(cfg.Client.Home)
	if err != nil {
		return err
	}
	a.wire(cfg, storage)
	return nil
}

func (a *App) wire(cfg *config.Config, storage session.Storage, opts ...api.Option) {
	a.cfg = cfg
	a.store = session.NewStore(storage, a.logger)
	a.store.Initialize()

	opts = append([]api.Option{api.WithOwnerResolver(a.resolveOwner)}, opts...)
	a.api = api.New(cfg.Client.ServerURL, cfg.Client.Timeout, a.store.Token, opts...)
}

// resolveOwner lets legacy listings that name their author by username count
// as owned by the current user.
func (a *App) resolveOwner(username string) (int64, bool) {
	u, ok := a.store.Current()
	if !ok || u.Username != username {
		return 0, false
	}
	return u.ID, true
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// prompt prints label and reads one trimmed line.
func (a *App) prompt(label string) (string, error) {
	a.printf("%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// terminalPassword reads without echo from a terminal, or a plain line when
// stdin is piped.
func (a *App) terminalPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := a.prompt("Password")
		return []byte(line), err
	}
	a.printf("Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(a.out)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return pw, nil
}
