package diagnostics

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"github.com/wneessen/go-mail"

	"github.com/devicelab-dev/autopilot/pkg/config"
	"github.com/devicelab-dev/autopilot/pkg/core"
	"github.com/devicelab-dev/autopilot/pkg/logger"
)

// Report is a diagnostics mail.
type Report struct {
	Subject     string
	Body        string
	Attachments []core.Attachment
}

// NewReport builds the mail for a dump.
func NewReport(info DumpInfo, attachments []core.Attachment) Report {
	var b strings.Builder
	fmt.Fprintf(&b, "app:     %s\n", info.App)
	fmt.Fprintf(&b, "run:     %s\n", info.RunID)
	fmt.Fprintf(&b, "time:    %s\n", info.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "state:   %s\n", info.State)
	fmt.Fprintf(&b, "reason:  %s\n", info.Reason)
	if info.Message != "" {
		fmt.Fprintf(&b, "message: %s\n", info.Message)
	}
	return Report{
		Subject:     fmt.Sprintf("[autopilot] %s stopped in %s: %s", info.App, info.State, info.Reason),
		Body:        b.String(),
		Attachments: attachments,
	}
}

// Sender delivers a report.
type Sender interface {
	Send(ctx context.Context, r Report) error
}

// SMTPSender mails reports through an SMTP relay.
type SMTPSender struct {
	cfg config.EmailConfig
}

// NewSMTPSender creates a sender from the email config.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, r Report) error {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := m.To(s.cfg.To...); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	m.Subject(r.Subject)
	m.SetBodyString(mail.TypeTextPlain, r.Body)

	for _, a := range r.Attachments {
		path := a.Path
		if a.ContentType == core.ContentTypePNG && s.cfg.ScreenshotWidth > 0 {
			small, err := Downscale(path, s.cfg.ScreenshotWidth)
			if err != nil {
				logger.Warn("downscale %s: %v", path, err)
			} else {
				defer os.Remove(small)
				path = small
			}
		}
		m.AttachFile(path, mail.WithFileName(filepath.Base(a.Path)))
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password))
	}
	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Downscale writes a copy of the PNG at path scaled to width (keeping the
// aspect ratio) into a temp file and returns its path.
func Downscale(path string, width uint) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	img, err := png.Decode(in)
	if err != nil {
		return "", fmt.Errorf("decode png: %w", err)
	}
	if uint(img.Bounds().Dx()) > width {
		img = resize.Resize(width, 0, img, resize.Lanczos3)
	}

	out, err := os.CreateTemp("", "autopilot-shot-*.png")
	if err != nil {
		return "", err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("encode png: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}
