package app

import (
	"context"
	"errors"

	"github.com/vk/matrixflow/internal/ctxlog"
	"github.com/vk/matrixflow/internal/schedule"
	"github.com/vk/matrixflow/internal/trigger"
)

// watch blocks and fires scheduled workflow runs until the context is
// cancelled. A failing scheduled run is logged and the loop keeps going.
func (a *App) watch(ctx context.Context) error {
	loop := schedule.New(a.model, func(ctx context.Context, ev trigger.Event) {
		logger := ctxlog.FromContext(ctx)
		if _, err := a.executeEvent(ctx, ev); err != nil {
			logger.Error("Scheduled run failed", "error", err)
		}
	})

	if !loop.HasSchedules() {
		return errors.New("watch mode requires at least one workflow with a schedule trigger")
	}

	a.logger.Info("👀 Watch mode started, waiting for schedules...")
	return loop.Run(ctx)
}
