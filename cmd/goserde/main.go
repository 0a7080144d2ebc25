// Command goserde compiles type signatures into JSON programs, warms the
// persistent program store and transcodes JSON through a type.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	goserde "github.com/reoring/goserde"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = goserde.Logger().Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
