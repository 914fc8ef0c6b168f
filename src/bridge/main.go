package main

import (
	"github.com/uber/dbg-bridge/src/bridge/app"
	"go.uber.org/fx"
)

const _version = "(to be added by Bazel)"

func opts() fx.Option {
	return fx.Options(
		app.Module,
	)
}

func main() {
	fx.New(opts()).Run()
}
