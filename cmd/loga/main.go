package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/4thel00z/loga/internal"
	"github.com/charmbracelet/fang"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp()
	rootCmd := NewRootCmd(version, app)
	if err := fang.Execute(ctx, rootCmd); err != nil {
		os.Exit(1)
	}
}

type app struct {
	resolver   *internal.ScopeResolver
	memorySvc  *internal.MemoryService
	historySvc *internal.HistoryService
	taskSvc    *internal.TaskService
}

func newApp() *app {
	return newAppWithResolver(internal.NewScopeResolver())
}

func newAppWithResolver(resolver *internal.ScopeResolver) *app {
	return &app{
		resolver:   resolver,
		memorySvc:  internal.NewMemoryService(resolver, internal.ManagerForScope),
		historySvc: internal.NewHistoryService(resolver, internal.EvolutionForScope),
		taskSvc:    internal.NewTaskService(resolver, internal.ConfigForScope),
	}
}
