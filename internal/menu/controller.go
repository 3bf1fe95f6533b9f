package menu

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/clawbridge/internal/command"
	"github.com/user/clawbridge/internal/freshness"
)

// ErrDismissed is returned when the user closes a prompt without choosing.
var ErrDismissed = errors.New("menu dismissed")

// Prompter shows modal prompts. Choose returns ok=false when dismissed.
type Prompter interface {
	Choose(ctx context.Context, title string, options []string) (choice string, ok bool, err error)
	Input(ctx context.Context, title, placeholder string) (value string, ok bool, err error)
	Message(ctx context.Context, text string) error
}

// Backend carries out what the menu selects.
type Backend interface {
	Run(ctx context.Context, cmd command.Command) error
	CheckFreshness(ctx context.Context) (freshness.Result, error)
	Install(ctx context.Context, res freshness.Result) error
}

type Controller struct {
	prompter Prompter
	backend  Backend
	root     Node
}

func NewController(p Prompter, b Backend) *Controller {
	return &Controller{prompter: p, backend: b, root: Tree()}
}

// Run walks the menu from the root until a leaf is chosen and executes it.
// Dismissing any prompt ends the walk with ErrDismissed.
func (c *Controller) Run(ctx context.Context) error {
	n := c.root
	var path []string
	for !n.IsLeaf() {
		choice, ok, err := c.prompter.Choose(ctx, n.Prompt, n.Labels())
		if err != nil {
			return err
		}
		if !ok {
			return ErrDismissed
		}
		path = append(path, choice)
		if n, err = Find(c.root, path); err != nil {
			return err
		}
	}
	return c.Execute(ctx, n.Leaf)
}

// Execute carries out one resolved selection.
func (c *Controller) Execute(ctx context.Context, sel Selection) error {
	switch s := sel.(type) {
	case Run:
		return c.backend.Run(ctx, s.Command)
	case PairPrompt:
		return c.pair(ctx, s.App)
	case CheckUpdates:
		return c.checkUpdates(ctx)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownSelection, sel)
	}
}

func (c *Controller) pair(ctx context.Context, app command.App) error {
	code, ok, err := c.prompter.Input(ctx, "Pairing code for "+app.Label(), "code shown by "+app.Label())
	if err != nil {
		return err
	}
	if !ok {
		return ErrDismissed
	}
	cmd, err := command.NewPair(string(app), code)
	if err != nil {
		return err
	}
	return c.backend.Run(ctx, cmd)
}

func (c *Controller) checkUpdates(ctx context.Context) error {
	res, err := c.backend.CheckFreshness(ctx)
	if err != nil {
		return err
	}

	action := OfferLabel(res)
	if action == "" {
		return c.prompter.Message(ctx, res.Message())
	}
	choice, ok, err := c.prompter.Choose(ctx, res.Message(), []string{action})
	if err != nil {
		return err
	}
	if !ok || choice != action {
		return nil
	}
	return c.backend.Install(ctx, res)
}

// OfferLabel names the action a check result offers, or "" for none.
func OfferLabel(res freshness.Result) string {
	switch res.Outcome {
	case freshness.NotInstalled:
		return "Install"
	case freshness.UpdateAvailable:
		return "Update"
	default:
		return ""
	}
}
