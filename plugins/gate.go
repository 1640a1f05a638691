package plugins

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// GateConfig configures the gate trigger front end
type GateConfig struct {
	// Command is the transmitter invocation, the mode flag is appended
	Command []string
	DryRun  bool
	Timeout time.Duration
}

// Runner executes the transmitter and returns its captured output. A non-nil
// error means the command did not exit with status zero.
type Runner func(ctx context.Context, args []string) (stdout, stderr string, err error)

func execRunner(ctx context.Context, args []string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// GatePlugin mimics a relay controller: GET /control?cmd=Pulse,... keys the
// gate remote by running the transmitter as a child process
type GatePlugin struct {
	config GateConfig
	run    Runner
}

// NewGatePlugin creates a new gate plugin instance
func NewGatePlugin(cfg GateConfig, run Runner) (*GatePlugin, error) {
	if len(cfg.Command) == 0 {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate transmitter: %w", err)
		}
		cfg.Command = []string{self, "transmit"}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if run == nil {
		run = execRunner
	}

	slog.Info("Gate plugin initializing", "command", strings.Join(cfg.Command, " "), "dry_run", cfg.DryRun)
	return &GatePlugin{config: cfg, run: run}, nil
}

func (p *GatePlugin) Name() string {
	return "gate"
}

func (p *GatePlugin) Shutdown() error {
	return nil
}

func (p *GatePlugin) RegisterRoutes(app *fiber.App) {
	app.Get("/", p.handleStatus)
	app.Get("/control", p.handleControl)
}

// args selects dry-run or live with register diagnostics
func (p *GatePlugin) args() []string {
	args := append([]string{}, p.config.Command...)
	if p.config.DryRun {
		return append(args, "--dry-run")
	}
	return append(args, "--debug")
}

// pulse runs the transmitter once. The device is shared with the radio
// plugin so only one pulse runs at a time.
func (p *GatePlugin) pulse() (bool, string) {
	deviceMu.Lock()
	defer deviceMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	stdout, stderr, err := p.run(ctx, p.args())
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.Warn("Transmitter failed", "exit_status", exitErr.ExitCode(), "stderr", stderr)
		} else {
			slog.Error("Failed to run transmitter", "error", err)
			if stderr == "" {
				stderr = err.Error()
			}
		}
		return false, stderr
	}

	slog.Info("Transmitter finished", "exit_status", 0)
	slog.Debug("Transmitter output", "stdout", stdout, "stderr", stderr)
	return true, stdout
}

func box(border, height, body string) string {
	return fmt.Sprintf(`<div style="display: flex;justify-content: center;align-items: center;`+
		`height: %s;border: %s;" >%s</div>`, height, border, body)
}

func (p *GatePlugin) handleStatus(c *fiber.Ctx) error {
	c.Type("html")
	return c.SendString(box("3px solid green", "100%", "<p>Garage Gate</p> "))
}

func (p *GatePlugin) handleControl(c *fiber.Ctx) error {
	c.Type("html")

	cmd := c.Query("cmd")
	if cmd == "" {
		return c.Status(fiber.StatusServiceUnavailable).
			SendString(box("3px solid red", "100%", `<p style="font-size: 300%">Nope</p> `))
	}

	if strings.Split(cmd, ",")[0] != "Pulse" {
		slog.Warn("Unsupported command", "cmd", cmd, "ip", c.IP())
		return c.Status(fiber.StatusServiceUnavailable).
			SendString(box("5px solid red", "25%", `<p style="font-size: 300%">Wrong command</p>`))
	}

	slog.Info("Pulse requested", "cmd", cmd, "ip", c.IP())
	ok, text := p.pulse()

	status, border := fiber.StatusOK, "5px solid green"
	if !ok {
		status, border = fiber.StatusServiceUnavailable, "5px solid red"
	}
	body := fmt.Sprintf(`<p style="font-size: 300%%">Gate responds %s...</p>`, boolWord(ok))
	return c.Status(status).SendString(box(border, "25%", body) +
		"<br><pre><code>" + html.EscapeString(text) + "</code></pre>")
}

func boolWord(ok bool) string {
	if ok {
		return "True"
	}
	return "False"
}

func init() {
	Register("gate", func(config interface{}) (Plugin, error) {
		cfg, ok := config.(GateConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config for gate plugin: expected GateConfig")
		}
		return NewGatePlugin(cfg, nil)
	})
}
