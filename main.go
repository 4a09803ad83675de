package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/zsprackett/agent-console/internal/agent"
	"github.com/zsprackett/agent-console/internal/applog"
	"github.com/zsprackett/agent-console/internal/config"
	"github.com/zsprackett/agent-console/internal/console"
	"github.com/zsprackett/agent-console/internal/db"
	"github.com/zsprackett/agent-console/internal/notify"
	"github.com/zsprackett/agent-console/internal/ui"
	"github.com/zsprackett/agent-console/internal/webserver"
	"github.com/zsprackett/agent-console/internal/wsclient"
)

const usage = `usage: agent-console [command] [flags]

commands:
  console           operator console (default)
  serve             run the hub
  agent             run the local agent
  login <user>      fetch tokens from the hub and store them in the config
  adduser <user>    create a hub account
  passwd <user>     change a hub password and revoke its agent token
`

func openDB() (*db.DB, error) {
	dbPath := config.DBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}
	store, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// loadConfig reads the config named by --config, falling back to defaults.
func loadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load config: %v\n", err)
		cfg = config.Defaults()
	}
	return cfg
}

// initLog opens the role's log file. Long-running daemons also log to stderr.
func initLog(cfg config.Config, prefix string, tee bool) (*slog.Logger, func()) {
	ic := applog.InitConfig{LogDir: cfg.LogDir, LogLevel: cfg.LogLevel, Prefix: prefix}
	if tee {
		ic.Tee = os.Stderr
	}
	logger, closer, err := applog.Init(ic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
		return slog.Default(), func() {}
	}
	return logger, func() { closer.Close() }
}

func newFlagSet(name string) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath(), "config file (.json or .yaml)")
	return fs, cfgPath
}

func readPassword(prompt string) []byte {
	fmt.Print(prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		die("%v", err)
	}
	return pw
}

func main() {
	cmd, args := "console", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "console":
		runConsole(ctx, args)
	case "serve":
		runServe(ctx, args)
	case "agent":
		runAgent(ctx, args)
	case "login":
		runLogin(args)
	case "adduser":
		runAddUser(args)
	case "passwd":
		runPasswd(args)
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func runConsole(ctx context.Context, args []string) {
	fs, cfgPath := newFlagSet("console")
	serverURL := fs.String("url", "", "hub websocket URL (overrides console.serverURL)")
	caFile := fs.String("ca", "", "PEM file to trust for a TLS hub (overrides console.tlsCAFile)")
	fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	if *serverURL != "" {
		cfg.Console.ServerURL = *serverURL
	}
	if *caFile != "" {
		cfg.Console.TLSCAFile = *caFile
	}
	tlsCfg, err := wsclient.TLSConfig(cfg.Console.TLSCAFile)
	if err != nil {
		die("console.tlsCAFile: %v", err)
	}
	if cfg.Console.AccessToken == "" {
		die("no access token; run `agent-console login <user>` first")
	}

	logger, closeLog := initLog(cfg, "console", false)
	defer closeLog()

	client := wsclient.New(wsclient.Config{
		URL:        cfg.Console.ServerURL,
		Header:     wsclient.BearerHeader(cfg.Console.AccessToken),
		RetryDelay: config.ParseDuration(cfg.Console.RetryDelay, 5*time.Second),
		TLS:        tlsCfg,
	}, nil, logger)
	sess := console.NewSession(client, logger)
	client.SetHandler(sess)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go sess.Run(ctx)
	go client.Run(ctx)

	app := ui.NewApp(sess, ui.Options{
		ProjectTypes: cfg.Console.ProjectTypes,
		DefaultBase:  cfg.Agent.BaseDevPath,
	}, logger)
	if err := app.Run(ctx); err != nil {
		die("%v", err)
	}
}

func runServe(ctx context.Context, args []string) {
	fs, cfgPath := newFlagSet("serve")
	host := fs.String("host", "", "listen host (overrides hub.host)")
	port := fs.Int("port", 0, "listen port (overrides hub.port)")
	useTLS := fs.Bool("tls", false, "serve HTTPS with a self-signed certificate")
	fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	if *host != "" {
		cfg.Hub.Host = *host
	}
	if *port != 0 {
		cfg.Hub.Port = *port
	}
	if *useTLS {
		cfg.Hub.TLS = true
	}
	if err := config.EnsureJWTSecret(*cfgPath, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not persist JWT secret: %v\n", err)
	}

	logger, closeLog := initLog(cfg, "hub", true)
	defer closeLog()

	store, err := openDB()
	if err != nil {
		die("could not open database: %v", err)
	}
	defer store.Close()
	if ok, err := store.HasAnyAccount(); err != nil {
		die("reading accounts: %v", err)
	} else if !ok {
		logger.Warn("hub: no accounts yet; create one with `agent-console adduser <user>`")
	}

	notifier := notify.New(notify.Config{
		Enabled: cfg.Notifications.Enabled,
		Webhook: cfg.Notifications.Webhook,
		NtfyURL: cfg.Notifications.NtfyURL,
	}, logger)

	srv := webserver.New(store, webserver.Config{
		Host:        cfg.Hub.Host,
		Port:        cfg.Hub.Port,
		TLS:         cfg.Hub.TLS,
		TLSCacheDir: cfg.Hub.TLSCacheDir,
		TLSHosts:    cfg.Hub.TLSHosts,
		Auth: webserver.AuthConfig{
			JWTSecret:      cfg.Hub.JWTSecret,
			AccessTokenTTL: config.ParseDuration(cfg.Hub.AccessTokenTTL, 720*time.Hour),
		},
	}, notifier, logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		die("%v", err)
	}
}

func runAgent(ctx context.Context, args []string) {
	fs, cfgPath := newFlagSet("agent")
	serverURL := fs.String("url", "", "hub agent websocket URL (overrides agent.serverURL)")
	base := fs.String("base", "", "base development directory (overrides agent.baseDevPath)")
	caFile := fs.String("ca", "", "PEM file to trust for a TLS hub (overrides agent.tlsCAFile)")
	fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	if *serverURL != "" {
		cfg.Agent.ServerURL = *serverURL
	}
	if *base != "" {
		cfg.Agent.BaseDevPath = *base
	}
	if *caFile != "" {
		cfg.Agent.TLSCAFile = *caFile
	}
	tlsCfg, err := wsclient.TLSConfig(cfg.Agent.TLSCAFile)
	if err != nil {
		die("agent.tlsCAFile: %v", err)
	}

	logger, closeLog := initLog(cfg, "agent", true)
	defer closeLog()

	client := wsclient.New(wsclient.Config{
		URL:        cfg.Agent.ServerURL,
		RetryDelay: config.ParseDuration(cfg.Agent.RetryDelay, 10*time.Second),
		TLS:        tlsCfg,
	}, nil, logger)
	a, err := agent.New(agent.Config{
		UserID:      cfg.Agent.UserID,
		AgentToken:  cfg.Agent.AgentToken,
		BaseDir:     cfg.Agent.BaseDevPath,
		GitInit:     cfg.Agent.GitInit,
		TmuxSession: cfg.Agent.TmuxSession,
	}, client, logger)
	if err != nil {
		die("%v (set agent.userID and agent.agentToken, or run `agent-console login`)", err)
	}
	client.SetHandler(a)

	logger.Info("agent: starting", "url", cfg.Agent.ServerURL, "user", cfg.Agent.UserID)
	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		die("%v", err)
	}
}

// hubHTTPURL turns the console's websocket URL into the hub's HTTP base.
func hubHTTPURL(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path, u.RawQuery = "", ""
	return u.String(), nil
}

func requestLogin(hubURL, username string, password []byte, tlsCfg *tls.Config) (webserver.LoginResponse, error) {
	var out webserver.LoginResponse
	body, _ := json.Marshal(map[string]string{"username": username, "password": string(password)})
	client := &http.Client{Timeout: 10 * time.Second}
	if tlsCfg != nil {
		client.Transport = &http.Transport{TLSClientConfig: tlsCfg}
	}
	resp, err := client.Post(hubURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("login failed: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode login response: %w", err)
	}
	return out, nil
}

func runLogin(args []string) {
	fs, cfgPath := newFlagSet("login")
	hub := fs.String("hub", "", "hub HTTP URL (default derived from console.serverURL)")
	caFile := fs.String("ca", "", "PEM file to trust for a TLS hub; saved to console and agent tlsCAFile")
	fs.Parse(args)
	if fs.NArg() != 1 {
		die("usage: agent-console login <user>")
	}
	username := fs.Arg(0)

	cfg := loadConfig(*cfgPath)
	if *caFile != "" {
		cfg.Console.TLSCAFile = *caFile
		cfg.Agent.TLSCAFile = *caFile
	}
	tlsCfg, err := wsclient.TLSConfig(cfg.Console.TLSCAFile)
	if err != nil {
		die("console.tlsCAFile: %v", err)
	}
	hubURL := *hub
	if hubURL == "" {
		if hubURL, err = hubHTTPURL(cfg.Console.ServerURL); err != nil {
			die("console.serverURL: %v", err)
		}
	}

	pw := readPassword(fmt.Sprintf("Password for %s: ", username))
	tokens, err := requestLogin(hubURL, username, pw, tlsCfg)
	if err != nil {
		die("%v", err)
	}
	cfg.Console.AccessToken = tokens.AccessToken
	cfg.Agent.UserID = tokens.UserID
	cfg.Agent.AgentToken = tokens.AgentToken
	if err := config.Save(*cfgPath, cfg); err != nil {
		die("saving config: %v", err)
	}
	fmt.Printf("Logged in as %s; tokens saved to %s\n", tokens.UserID, *cfgPath)
}

func runAddUser(args []string) {
	if len(args) < 1 {
		die("usage: agent-console adduser <user>")
	}
	username := args[0]
	pw := readPassword(fmt.Sprintf("Password for %s: ", username))
	hash, err := bcrypt.GenerateFromPassword(pw, bcrypt.DefaultCost)
	if err != nil {
		die("%v", err)
	}
	store, err := openDB()
	if err != nil {
		die("%v", err)
	}
	defer store.Close()
	if _, err := store.CreateAccount(username, string(hash)); err != nil {
		die("creating account: %v", err)
	}
	fmt.Printf("Account created: %s\n", username)
}

func runPasswd(args []string) {
	if len(args) < 1 {
		die("usage: agent-console passwd <user>")
	}
	username := args[0]
	pw := readPassword(fmt.Sprintf("New password for %s: ", username))
	hash, err := bcrypt.GenerateFromPassword(pw, bcrypt.DefaultCost)
	if err != nil {
		die("%v", err)
	}
	store, err := openDB()
	if err != nil {
		die("%v", err)
	}
	defer store.Close()
	if err := changePassword(store, username, hash); err != nil {
		die("%v", err)
	}
	fmt.Printf("Password updated: %s (agent token revoked; run login again)\n", username)
}

// changePassword stores hash for username and revokes its agent token.
func changePassword(store *db.DB, username string, hash []byte) error {
	acc, err := store.GetAccountByUsername(username)
	if err != nil {
		return fmt.Errorf("user not found: %w", err)
	}
	if err := store.UpdateAccountPassword(acc.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := store.DeleteAgentToken(acc.ID); err != nil {
		return fmt.Errorf("password updated but revoking the agent token failed: %w", err)
	}
	return nil
}
