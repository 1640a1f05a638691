package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"golang.org/x/crypto/bcrypt"

	"github.com/linht/gate-remote/plugins"
)

const (
	// Server timeouts, a pulse takes well under a second
	ServerReadTimeout  = 30 * time.Second
	ServerWriteTimeout = 60 * time.Second

	// Session management (24-hour expiry)
	SessionDuration = 24 * time.Hour
	TokenBytes      = 32
)

// Session represents a simple authenticated session for local use
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// auth guards the trigger routes when a password hash is configured
type auth struct {
	passwordHash string

	mu      sync.RWMutex
	current *Session
	now     func() time.Time
	random  io.Reader
}

func newAuth(passwordHash string) *auth {
	return &auth{passwordHash: passwordHash, now: time.Now, random: rand.Reader}
}

func (a *auth) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(req.Password)); err != nil {
		slog.Warn("Failed login attempt", "ip", c.IP())
		return c.Status(401).JSON(fiber.Map{"error": "Invalid password"})
	}

	slog.Info("Successful login", "ip", c.IP())

	token, err := generateToken(a.random)
	if err != nil {
		slog.Error("Failed to generate session token", "error", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to create session"})
	}

	// Replaces any existing session
	session := &Session{
		Token:     token,
		ExpiresAt: a.now().Add(SessionDuration),
	}
	a.mu.Lock()
	a.current = session
	a.mu.Unlock()

	return c.JSON(fiber.Map{
		"success": true,
		"token":   session.Token,
		"expires": session.ExpiresAt.Unix(),
	})
}

func (a *auth) handleLogout(c *fiber.Ctx) error {
	a.mu.Lock()
	a.current = nil
	a.mu.Unlock()
	slog.Info("User logged out", "ip", c.IP())
	return c.JSON(fiber.Map{"success": true})
}

func (a *auth) middleware(c *fiber.Ctx) error {
	// Header first, query parameter for links a phone can bookmark
	token := c.Get("X-Auth-Token")
	if token == "" {
		token = c.Query("token")
	}

	if !a.validate(token) {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	return c.Next()
}

func (a *auth) validate(token string) bool {
	if token == "" {
		return false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.current == nil || a.current.Token != token {
		return false
	}
	return a.now().Before(a.current.ExpiresAt)
}

func generateToken(random io.Reader) (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := io.ReadFull(random, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// pluginConfig returns the configuration handed to the named plugin factory
func pluginConfig(name string, cfg Config, path string) interface{} {
	switch name {
	case "gate":
		command := cfg.Server.Command
		if len(command) == 0 {
			if self, err := os.Executable(); err == nil {
				command = []string{self}
				if path != "" {
					command = append(command, "--config", path)
				}
				command = append(command, "transmit")
			}
		}
		return plugins.GateConfig{
			Command: command,
			DryRun:  cfg.Server.DryRun,
			Timeout: cfg.Server.Timeout,
		}
	case "radio":
		return plugins.RadioConfig{Radio: cfg.Radio}
	}
	return nil
}

func initPlugins(app *fiber.App, cfg Config, path string) ([]plugins.Plugin, error) {
	var loaded []plugins.Plugin
	for _, name := range cfg.Server.Plugins {
		factory, exists := plugins.Get(name)
		if !exists {
			slog.Warn("Unknown plugin", "name", name, "available", plugins.Names())
			continue
		}

		plugin, err := factory(pluginConfig(name, cfg, path))
		if err != nil {
			return loaded, fmt.Errorf("plugin %s: %w", name, err)
		}

		plugin.RegisterRoutes(app)
		loaded = append(loaded, plugin)
		slog.Info("Plugin loaded", "name", plugin.Name())
	}
	return loaded, nil
}

// newApp builds the HTTP front end with its plugins
func newApp(cfg Config, path string) (*fiber.App, []plugins.Plugin, error) {
	app := fiber.New(fiber.Config{
		ReadTimeout:  ServerReadTimeout,
		WriteTimeout: ServerWriteTimeout,
		AppName:      "Gate Remote",
	})

	app.Use(fiberLogger.New(fiberLogger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	if cfg.Server.PasswordHash != "" {
		a := newAuth(cfg.Server.PasswordHash)
		app.Post("/login", a.handleLogin)
		app.Post("/logout", a.handleLogout)
		app.Use("/control", a.middleware)
		app.Use("/api", a.middleware)
		slog.Info("Authentication enabled")
	}

	loaded, err := initPlugins(app, cfg, path)
	return app, loaded, err
}

func serve(cfg Config, path string) error {
	app, loaded, err := newApp(cfg, path)
	if err != nil {
		return fmt.Errorf("failed to initialize plugins: %w", err)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		slog.Info("Shutting down server...")
		if err := app.ShutdownWithContext(context.Background()); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
	}()

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	slog.Info("Starting gate remote server", "address", addr)
	err = app.Listen(addr)

	for _, p := range loaded {
		if serr := p.Shutdown(); serr != nil {
			slog.Warn("Plugin shutdown failed", "name", p.Name(), "error", serr)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to start server on %s: %w", addr, err)
	}
	return nil
}
