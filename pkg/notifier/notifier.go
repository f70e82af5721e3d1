// Package notifier provides desktop notifications for pack results
package notifier

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/types"
)

// Sender delivers one notification. Sound is empty when none was
// configured for the event.
type Sender func(title, message, sound string) error

// BuildNotifier handles pack notifications
type BuildNotifier struct {
	enabled      bool
	successSound string
	failureSound string
	logger       logger.Logger
	send         Sender
}

// Config represents notification configuration
type Config struct {
	Enabled      bool
	SuccessSound string
	FailureSound string
}

// ConfigFrom converts file configuration; nil means disabled
func ConfigFrom(cfg *types.NotificationConfig) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		Enabled:      cfg.Enabled != nil && *cfg.Enabled,
		SuccessSound: cfg.SuccessSound,
		FailureSound: cfg.FailureSound,
	}
}

// New creates a notifier that shows desktop notifications through beeep
func New(config Config, log logger.Logger) *BuildNotifier {
	return NewWithSender(config, log, desktopSend)
}

// NewWithSender creates a notifier delivering through send
func NewWithSender(config Config, log logger.Logger, send Sender) *BuildNotifier {
	if log == nil {
		log = logger.CreateLoggerWithOutput("", "error", io.Discard)
	}
	return &BuildNotifier{
		enabled:      config.Enabled,
		successSound: config.SuccessSound,
		failureSound: config.FailureSound,
		logger:       log,
		send:         send,
	}
}

// NotifyBuildStart notifies that a pack has started
func (n *BuildNotifier) NotifyBuildStart(target string) {
	if !n.enabled {
		return
	}
	n.sendNotification("📦 atlaspack", fmt.Sprintf("Packing %s...", target), "")
}

// NotifyBuildSuccess notifies that a pack succeeded
func (n *BuildNotifier) NotifyBuildSuccess(target string, duration time.Duration) {
	if !n.enabled {
		return
	}
	message := fmt.Sprintf("%s packed in %s", target, formatDuration(duration))
	n.sendNotification("✅ Pack Succeeded", message, n.successSound)
}

// NotifyBuildFailure notifies that a pack failed
func (n *BuildNotifier) NotifyBuildFailure(target string, err error) {
	if !n.enabled {
		return
	}
	message := target
	if err != nil {
		// notification bodies are single line
		message = fmt.Sprintf("%s: %s", target, strings.Join(strings.Fields(err.Error()), " "))
	}
	n.sendNotification("❌ Pack Failed", message, n.failureSound)
}

func (n *BuildNotifier) sendNotification(title, message, sound string) {
	if err := n.send(title, message, sound); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
		n.logger.Info(fmt.Sprintf("%s: %s", title, message))
	}
}

func desktopSend(title, message, sound string) error {
	if sound != "" {
		return beeep.Alert(title, message, "")
	}
	return beeep.Notify(title, message, "")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
