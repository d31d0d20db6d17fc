// Command tablero はタスクボードのサーバー・ワーカー・マイグレーションを起動する。
//
//	tablero [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/tablero/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "tablero: %v\n", err)
		os.Exit(1)
	}
}
