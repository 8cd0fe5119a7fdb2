//go:build !unix

package main

import (
	"github.com/kimhsiao/lifelog/backend/internal/app"
	"github.com/kimhsiao/lifelog/backend/internal/logging"
)

func bindLifecycleSignals(a *app.App) func() {
	logging.Warn("Lifecycle signals are not supported on this platform")
	return func() {}
}
