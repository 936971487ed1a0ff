package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"vigil/internal/intake"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, intake.ErrValidation) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
