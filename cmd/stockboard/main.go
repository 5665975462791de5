// cmd/stockboard/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dalemusser/waffle/app"

	"github.com/stockboard/stockboard/internal/app/bootstrap"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		fmt.Fprintln(os.Stderr, "stockboard:", err)
		os.Exit(1)
	}
}
