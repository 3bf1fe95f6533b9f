package app

import (
	"context"
	"log/slog"

	"github.com/user/clawbridge/internal/db"
	"github.com/user/clawbridge/internal/freshness"
	"github.com/user/clawbridge/internal/menu"
)

const taskCheck = "freshness_check"

// CheckFreshness runs a package check off the loop. Checks never overlap;
// a second caller waits for the first and the wait is reported as queued
// progress. The outcome is also sent as a notification, carrying the
// Install or Update action when one applies.
func (a *App) CheckFreshness(ctx context.Context) (freshness.Result, error) {
	res := a.checker.Check(ctx)

	if a.history != nil {
		rec := &db.FreshnessCheck{
			Package:   res.Package,
			Outcome:   string(res.Outcome),
			Installed: res.Installed,
			Latest:    res.Latest,
			Reason:    res.Reason,
			CheckedAt: res.CheckedAt,
		}
		if err := a.history.Checks.Create(context.WithoutCancel(ctx), rec); err != nil {
			slog.Warn("failed to record freshness check", "error", err)
		}
	}

	n := Notification{Level: LevelInfo, Text: res.Message()}
	if res.Outcome == freshness.CheckFailed {
		n.Level = LevelError
	}
	if action := menu.OfferLabel(res); action != "" {
		n.Actions = []string{action}
	}
	a.notify(n)
	return res, nil
}

// Install dispatches the install or update command res calls for.
func (a *App) Install(ctx context.Context, res freshness.Result) error {
	cmd, ok := a.checker.Offer(res)
	if !ok {
		return ErrNothingToInstall
	}
	return a.Run(ctx, cmd)
}

// checkProgress mirrors checker progress onto the indicator and progress
// listeners. A queued check reports Begin(true) and then Begin(false) once
// it starts running.
type checkProgress struct{ a *App }

func (p checkProgress) Begin(queued bool) {
	a := p.a
	_ = a.loop.Submit(func() {
		switch {
		case queued:
			a.checkWaiting++
			a.beginCheck()
		case a.checkWaiting > 0:
			a.checkWaiting--
		default:
			a.beginCheck()
		}
		a.indicator.SetChecking(queued)
	})
	a.progress(Progress{Task: taskCheck, State: "begin", Title: "Checking for updates...", Queued: queued})
}

func (p checkProgress) End() {
	a := p.a
	_ = a.loop.Submit(func() {
		if a.checking > 0 {
			a.checking--
		}
		if a.checking == 0 {
			a.indicator.Restore(a.preCheck)
		}
	})
	a.progress(Progress{Task: taskCheck, State: "end"})
}

// beginCheck runs on the loop.
func (a *App) beginCheck() {
	if a.checking == 0 {
		a.preCheck = a.indicator.Snapshot()
	}
	a.checking++
}
