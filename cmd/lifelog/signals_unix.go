//go:build unix

package main

import (
	"syscall"

	"github.com/kimhsiao/lifelog/backend/internal/app"
)

func bindLifecycleSignals(a *app.App) func() {
	return a.Trigger.BindSignals(syscall.SIGUSR1, syscall.SIGUSR2)
}
