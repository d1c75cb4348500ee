package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/devicelab-dev/autopilot/pkg/core"
	"github.com/devicelab-dev/autopilot/pkg/logger"
	"github.com/devicelab-dev/autopilot/pkg/uiautomator2"
)

// TreeClient is the subset of the UIAutomator2 client the tree backend uses.
type TreeClient interface {
	HasSession() bool
	FindElementIn(ctx context.Context, contextID, strategy, selector string) (*uiautomator2.Element, error)
	Back(ctx context.Context) error
	CurrentPackage(ctx context.Context) (string, error)
	Source(ctx context.Context) (string, error)
}

// Accessibility implements Tree on top of a UIAutomator2 session.
type Accessibility struct {
	mu     sync.RWMutex
	client TreeClient
	log    zerolog.Logger
}

// NewAccessibility creates a tree backend. client may be nil; lookups
// report ErrUnavailable until Connect is called.
func NewAccessibility(client TreeClient) *Accessibility {
	return &Accessibility{
		client: client,
		log:    logger.For("tree"),
	}
}

// Connect swaps in a new client.
func (a *Accessibility) Connect(client TreeClient) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.client = client
}

// Disconnect drops the client.
func (a *Accessibility) Disconnect() {
	a.Connect(nil)
}

// Connected reports whether a session is available.
func (a *Accessibility) Connected() bool {
	_, err := a.session()
	return err == nil
}

func (a *Accessibility) session() (TreeClient, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil || !a.client.HasSession() {
		return nil, ErrUnavailable
	}
	return a.client, nil
}

// FindByResourceID looks up a node by its resource id.
func (a *Accessibility) FindByResourceID(ctx context.Context, id string) (Handle, error) {
	return a.find(ctx, "", uiautomator2.StrategyID, id)
}

// FindByText looks up a node whose text equals text.
func (a *Accessibility) FindByText(ctx context.Context, root Handle, text string) (Handle, error) {
	contextID := ""
	if h, ok := root.(*element); ok && h != nil {
		contextID = h.el.ID()
	}
	return a.find(ctx, contextID, uiautomator2.StrategyUIAutomator, uiautomator2.TextSelector(text))
}

// Root returns the top node of the active window.
func (a *Accessibility) Root(ctx context.Context) (Handle, error) {
	return a.find(ctx, "", uiautomator2.StrategyXPath, "/hierarchy/*[1]")
}

func (a *Accessibility) find(ctx context.Context, contextID, strategy, selector string) (Handle, error) {
	c, err := a.session()
	if err != nil {
		return nil, err
	}
	el, err := c.FindElementIn(ctx, contextID, strategy, selector)
	if errors.Is(err, uiautomator2.ErrNoSuchElement) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &element{el: el}, nil
}

// GlobalBack presses back. It reports false when unavailable or when the
// server rejects the action.
func (a *Accessibility) GlobalBack(ctx context.Context) bool {
	c, err := a.session()
	if err != nil {
		return false
	}
	if err := c.Back(ctx); err != nil {
		a.log.Debug().Err(err).Msg("global back failed")
		return false
	}
	return true
}

// CurrentPackage returns the foreground package or "" when unknown.
func (a *Accessibility) CurrentPackage(ctx context.Context) string {
	c, err := a.session()
	if err != nil {
		return ""
	}
	pkg, err := c.CurrentPackage(ctx)
	if err != nil {
		a.log.Debug().Err(err).Msg("current package failed")
		return ""
	}
	return pkg
}

// Source returns the window hierarchy XML.
func (a *Accessibility) Source(ctx context.Context) (string, error) {
	c, err := a.session()
	if err != nil {
		return "", err
	}
	return c.Source(ctx)
}

// DismissPopups is the Tree method form of the package-level helper.
func (a *Accessibility) DismissPopups(ctx context.Context, ids []string) bool {
	return DismissPopups(ctx, a, ids)
}

// DismissPopups scans ids in order and issues one global back when any of
// them is on screen. It reports whether a popup was found.
func DismissPopups(ctx context.Context, tree Tree, ids []string) bool {
	for _, id := range ids {
		h, err := tree.FindByResourceID(ctx, id)
		if err != nil || h == nil {
			continue
		}
		logger.Info("popup %s detected, pressing back", id)
		tree.GlobalBack(ctx)
		return true
	}
	return false
}

// element adapts a UIAutomator2 element to Handle.
type element struct {
	el *uiautomator2.Element
}

func (h *element) Text(ctx context.Context) (string, error) {
	return h.el.Text(ctx)
}

func (h *element) Bounds(ctx context.Context) (core.Bounds, error) {
	r, err := h.el.Rect(ctx)
	if err != nil {
		return core.Bounds{}, err
	}
	return core.Bounds{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}, nil
}

func (h *element) Click(ctx context.Context) error {
	return h.el.Click(ctx)
}

// ConnectTimeout bounds UIAutomator2 session creation.
const ConnectTimeout = 10 * time.Second

// OpenSession creates a UIAutomator2 session on socketPath with implicit
// waits disabled, so lookups return immediately.
func OpenSession(ctx context.Context, socketPath string) (*uiautomator2.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	client := uiautomator2.NewClient(socketPath)
	ready, err := client.Status(ctx)
	if err != nil {
		return nil, core.ErrTreeUnavailable.WithCause(err)
	}
	if !ready {
		return nil, core.ErrTreeUnavailable.WithMessage("uiautomator2 server not ready")
	}
	if err := client.CreateSession(ctx, uiautomator2.Capabilities{PlatformName: "Android"}); err != nil {
		return nil, core.ErrTreeUnavailable.WithCause(err)
	}
	if err := client.SetImplicitWait(ctx, 0); err != nil {
		logger.Warn("disable implicit wait: %v", err)
	}
	if err := client.UpdateSettings(ctx, map[string]interface{}{"waitForIdleTimeout": 0}); err != nil {
		logger.Warn("update settings: %v", err)
	}
	return client, nil
}
