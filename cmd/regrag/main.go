// Package main is the entry point for the RegRAG compliance API server.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/gregorizeidler-cw/RegRAG/cmd/regrag/app"
)

func main() {
	app.NewApp().Run()
}
