// Package diagnostics writes the failure snapshot: a .uix hierarchy file,
// a .png screenshot and an optional email carrying both.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/devicelab-dev/autopilot/pkg/bridge"
	"github.com/devicelab-dev/autopilot/pkg/core"
	"github.com/devicelab-dev/autopilot/pkg/logger"
	"github.com/devicelab-dev/autopilot/pkg/uidump"
)

// TimestampFormat is the timestamp layout used in dump file names.
const TimestampFormat = "20060102-150405"

// DumpInfo describes the moment a run stopped.
type DumpInfo struct {
	Timestamp time.Time
	App       string
	RunID     string
	State     string
	Reason    string
	Message   string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

func sanitize(s string) string {
	s = strings.Trim(unsafeChars.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// BaseName returns "<timestamp>__<state>__<reason>".
func BaseName(info DumpInfo) string {
	return fmt.Sprintf("%s__%s__%s",
		info.Timestamp.Format(TimestampFormat),
		sanitize(info.State),
		sanitize(info.Reason))
}

// Dumper captures diagnostics. It never returns errors; failures are
// logged and the caller gets whatever paths were written.
type Dumper struct {
	dir       string
	tree      bridge.Tree
	shell     bridge.ShellBackend
	sender    Sender
	artifacts core.ArtifactConfig
	log       zerolog.Logger
}

// New creates a dumper writing into dir. tree, shell and sender may be nil.
func New(dir string, tree bridge.Tree, shell bridge.ShellBackend, sender Sender, artifacts core.ArtifactConfig) *Dumper {
	return &Dumper{
		dir:       dir,
		tree:      tree,
		shell:     shell,
		sender:    sender,
		artifacts: artifacts,
		log:       logger.For("diagnostics"),
	}
}

// Dump writes the hierarchy and screenshot for info and mails them when
// configured. A failed screenshot leaves the .uix on its own.
func (d *Dumper) Dump(ctx context.Context, info DumpInfo) (paths []string) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Msg("dump aborted")
		}
	}()

	if info.Timestamp.IsZero() {
		info.Timestamp = time.Now()
	}
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		d.log.Error().Err(err).Str("dir", d.dir).Msg("create dump dir")
		return nil
	}
	base := filepath.Join(d.dir, BaseName(info))
	var attachments []core.Attachment

	if d.artifacts.UIHierarchy {
		path := base + core.ExtHierarchy
		if d.writeHierarchy(ctx, path) {
			paths = append(paths, path)
			attachments = append(attachments, core.NewHierarchyAttachment(path, nil))
		}
	}

	if d.artifacts.Screenshot && d.shell != nil {
		path := base + core.ExtScreenshot
		if d.shell.Screenshot(ctx, path) {
			paths = append(paths, path)
			attachments = append(attachments, core.NewScreenshotAttachment(path, nil))
		} else {
			d.log.Warn().Str("path", path).Msg("screenshot failed, keeping hierarchy only")
		}
	}

	d.log.Info().Str("app", info.App).Str("run", info.RunID).Strs("files", paths).Msg("diagnostics written")

	if d.artifacts.Email && d.sender != nil && len(attachments) > 0 {
		if err := d.sender.Send(ctx, NewReport(info, attachments)); err != nil {
			d.log.Error().Err(err).Msg("send diagnostics mail")
		}
	}
	return paths
}

func (d *Dumper) writeHierarchy(ctx context.Context, path string) bool {
	roots := d.Snapshot(ctx)
	if roots == nil {
		d.log.Warn().Msg("no UI tree available for dump")
		return false
	}

	f, err := os.Create(path)
	if err != nil {
		d.log.Error().Err(err).Str("path", path).Msg("create hierarchy file")
		return false
	}
	defer f.Close()

	if err := uidump.Write(f, roots); err != nil {
		d.log.Error().Err(err).Str("path", path).Msg("write hierarchy")
		return false
	}
	return true
}

// Snapshot reads the tree backend first and the shell dump second. It
// returns nil when neither yields a parseable hierarchy.
func (d *Dumper) Snapshot(ctx context.Context) []*uidump.Element {
	if d.tree != nil {
		if xml, err := d.tree.Source(ctx); err == nil {
			if roots, err := uidump.ParseTree(xml); err == nil && len(roots) > 0 {
				return roots
			}
		} else {
			d.log.Debug().Err(err).Msg("tree source unavailable")
		}
	}
	if d.shell != nil {
		xml, err := d.shell.DumpUITree(ctx)
		if err != nil {
			d.log.Debug().Err(err).Msg("shell dump unavailable")
			return nil
		}
		if roots, err := uidump.ParseTree(xml); err == nil && len(roots) > 0 {
			return roots
		}
	}
	return nil
}
