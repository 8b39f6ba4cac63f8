// Command petctl is the command-line client for the pet community.
//
//	petctl login mina
//	petctl list adoptions --species dog --age young
//	petctl show board 12
//	petctl create board --title "Lost cat" --category lost
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/sakif/petcommunity/internal/apperror"
	"github.com/sakif/petcommunity/internal/client/cli"
)

func main() {
	// Diagnostics go to stderr so command output stays pipeable.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := cli.NewApp(logger, os.Stdin, os.Stdout)
	if err := cli.Execute(ctx, app, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", apperror.Message(err, err.Error()))
		stop()
		os.Exit(1)
	}
}
