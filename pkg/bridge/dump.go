package bridge

import (
	"context"

	"github.com/devicelab-dev/autopilot/pkg/uidump"
)

// ShellFindByID dumps the UI through sh and returns the first node whose
// resource-id equals id, or nil.
func ShellFindByID(ctx context.Context, sh ShellBackend, id string) (*uidump.Node, error) {
	nodes, err := dumpNodes(ctx, sh)
	if err != nil {
		return nil, err
	}
	if n, ok := uidump.FindByID(nodes, id); ok {
		return &n, nil
	}
	return nil, nil
}

// ShellFindByText dumps the UI through sh and returns the first node whose
// text or content-desc equals text, or nil.
func ShellFindByText(ctx context.Context, sh ShellBackend, text string) (*uidump.Node, error) {
	nodes, err := dumpNodes(ctx, sh)
	if err != nil {
		return nil, err
	}
	if n, ok := uidump.FindByText(nodes, text); ok {
		return &n, nil
	}
	return nil, nil
}

func dumpNodes(ctx context.Context, sh ShellBackend) ([]uidump.Node, error) {
	xml, err := sh.DumpUITree(ctx)
	if err != nil {
		return nil, err
	}
	return uidump.Parse(xml), nil
}
