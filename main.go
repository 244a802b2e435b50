package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"commandset/app"
	"commandset/cmd"
	"commandset/cmd/help"
	"commandset/config"
	"commandset/log"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configPath     string
	storageBackend string
	noColor        bool

	rootCmd = &cobra.Command{
		Use:   "commandset",
		Short: "Player commands whose state and hotkeys survive restarts",
		Long: `commandset keeps a small set of media player commands (Play, Mute, Shuffle,
Repeat, Theme). Their on/off state and selections are saved after every change
and restored on the next run; each command can be bound to a hotkey.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				fmt.Println(newGenerator().Render("Player", a.Commands()))
				return nil
			})
		},
	}

	listCmd = &cobra.Command{
		Use:   "list [query]",
		Short: "List commands, optionally fuzzy-filtered by name or description",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return withApp(c, func(ctx context.Context, a *app.App) error {
				matches := help.Filter(a.Commands(), query)
				if len(matches) == 0 {
					return fmt.Errorf("no command matches %q", query)
				}
				commands := make([]*cmd.Command, len(matches))
				for i, m := range matches {
					commands[i] = m.Command
				}
				fmt.Println(newGenerator().Render("Player", commands))
				return nil
			})
		},
	}

	toggleCmd = &cobra.Command{
		Use:   "toggle <command>",
		Short: "Flip a command's on/off state",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				on, err := a.Toggle(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s: %s\n", args[0], onOff(on))
				return nil
			})
		},
	}

	selectCmd = &cobra.Command{
		Use:   "select <command> <value>",
		Short: "Choose an option of Repeat or Theme",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				return a.Select(args[0], args[1])
			})
		},
	}

	bindCmd = &cobra.Command{
		Use:   "bind <command> <chord|none>",
		Short: "Bind a command to a hotkey such as ctrl+p, or unbind it with none",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				return a.Bind(ctx, args[0], args[1])
			})
		},
	}

	pressCmd = &cobra.Command{
		Use:   "press <chord>",
		Short: "Run the command bound to a hotkey",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				return a.Press(ctx, args[0])
			})
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print a one-line summary of the bound hotkeys",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				fmt.Println(newGenerator().StatusLine(a.Commands(), terminalWidth()))
				return nil
			})
		},
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Forget all saved state and hotkey bindings",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				return a.Reset(ctx)
			})
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Print the command states whenever another process changes them",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				changed := make(chan struct{}, 1)
				w, err := a.Watch(ctx, func() {
					select {
					case changed <- struct{}{}:
					default:
					}
				})
				if err != nil {
					return err
				}
				defer w.Close()

				fmt.Println(stateSummary(a.Commands()))
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-changed:
						fmt.Println(stateSummary(a.Commands()))
					}
				}
			})
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to the config file (default ~/.commandset/config.json, or $COMMANDSET_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&storageBackend, "storage", "",
		"Storage backend to use: file, redis or sqlite (overrides the config file)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")

	rootCmd.AddCommand(listCmd, toggleCmd, selectCmd, bindCmd, pressCmd, statusCmd, resetCmd, watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// withApp loads config, starts logging and opens the player for the
// duration of fn.
func withApp(c *cobra.Command, fn func(ctx context.Context, a *app.App) error) (err error) {
	ctx := c.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.InitializeWithConfig(cfg.LogConfig())
	defer log.Close()

	a, err := app.New(ctx, cfg, app.WithReporter(log.NewErrorReporter(app.StorageKey, os.Stderr, 0)))
	if err != nil {
		log.ErrorLog.Printf("failed to start: %v", err)
		return err
	}
	defer func() {
		// The signal context may already be done; saves still need to land.
		if closeErr := a.Close(context.WithoutCancel(ctx)); closeErr != nil {
			log.ErrorLog.Printf("failed to close: %v", closeErr)
			err = errors.Join(err, closeErr)
		}
	}()

	return fn(ctx, a)
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfigFrom(configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, err
	}

	if storageBackend != "" {
		cfg.Storage.Backend = strings.ToLower(storageBackend)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newGenerator() *help.Generator {
	return help.NewGenerator(os.Stdout, helpOptions()...)
}

func helpOptions() []help.Option {
	opts := []help.Option{help.WithWidth(terminalWidth())}
	if noColor || !term.IsTerminal(int(os.Stdout.Fd())) {
		opts = append(opts, help.WithProfile(termenv.Ascii))
	}
	return opts
}

func terminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return help.DefaultWidth
}

// stateSummary renders commands as "Play=on Repeat=all ...".
func stateSummary(commands []*cmd.Command) string {
	parts := make([]string, 0, len(commands))
	for _, c := range commands {
		value := onOff(c.Flag())
		if sel := c.Selection(); sel != "" {
			value = sel
		}
		parts = append(parts, c.Name+"="+value)
	}
	return strings.Join(parts, " ")
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
