// Package menu maps the hierarchical menu to commands.
package menu

import (
	"errors"
	"fmt"
	"strings"

	"github.com/user/clawbridge/internal/command"
)

const Title = "Connect to Claw? Make sure your claw is ready."

var (
	ErrUnknownSelection = errors.New("unknown menu selection")
	ErrIncomplete       = errors.New("menu selection is not a leaf")
)

// Selection is what a leaf of the menu resolves to: Run, PairPrompt or
// CheckUpdates.
type Selection interface {
	selection()
}

// Run dispatches a fixed command.
type Run struct {
	Command command.Command
}

// PairPrompt asks for a pairing code for App, then dispatches the pairing
// command.
type PairPrompt struct {
	App command.App
}

// CheckUpdates runs a freshness check and offers install or update.
type CheckUpdates struct{}

func (Run) selection()          {}
func (PairPrompt) selection()   {}
func (CheckUpdates) selection() {}

// Node is one menu entry. Leaves carry a Selection, inner nodes Children.
type Node struct {
	Label    string    `json:"label"`
	Prompt   string    `json:"prompt,omitempty"`
	Children []Node    `json:"children,omitempty"`
	Leaf     Selection `json:"-"`
}

func (n Node) IsLeaf() bool { return n.Leaf != nil }

func (n Node) Labels() []string {
	out := make([]string, len(n.Children))
	for i, c := range n.Children {
		out[i] = c.Label
	}
	return out
}

func gatewayLabel(a command.GatewayAction) string {
	s := string(a)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Tree returns the full menu.
func Tree() Node {
	gateway := Node{Label: "Gateway", Prompt: "Gateway action"}
	for _, a := range command.GatewayActions {
		gateway.Children = append(gateway.Children, Node{
			Label: gatewayLabel(a),
			Leaf:  Run{Command: command.Gateway{Action: a}},
		})
	}

	pairing := Node{Label: "Pairing", Prompt: "Select the app to pair"}
	for _, a := range command.Apps {
		pairing.Children = append(pairing.Children, Node{
			Label: a.Label(),
			Leaf:  PairPrompt{App: a},
		})
	}

	return Node{
		Label:  "Claw",
		Prompt: Title,
		Children: []Node{
			{Label: "Status", Leaf: Run{Command: command.Status{}}},
			{Label: "Onboard", Leaf: Run{Command: command.Onboard{}}},
			gateway,
			{Label: "Terminal", Leaf: Run{Command: command.TUI{}}},
			{Label: "Dashboard", Leaf: Run{Command: command.Dashboard{}}},
			pairing,
			{Label: "Check for Updates", Leaf: CheckUpdates{}},
		},
	}
}

// Find walks path from root. Labels match case-insensitively.
func Find(root Node, path []string) (Node, error) {
	n := root
	for i, label := range path {
		next, ok := child(n, label)
		if !ok {
			return Node{}, fmt.Errorf("%w: %q", ErrUnknownSelection, strings.Join(path[:i+1], " > "))
		}
		n = next
	}
	return n, nil
}

// Resolve maps a label path from the root to its leaf selection.
func Resolve(path []string) (Selection, error) {
	n, err := Find(Tree(), path)
	if err != nil {
		return nil, err
	}
	if !n.IsLeaf() {
		return nil, fmt.Errorf("%w: %q", ErrIncomplete, strings.Join(path, " > "))
	}
	return n.Leaf, nil
}

func child(n Node, label string) (Node, bool) {
	label = strings.TrimSpace(label)
	for _, c := range n.Children {
		if strings.EqualFold(c.Label, label) {
			return c, true
		}
	}
	return Node{}, false
}
