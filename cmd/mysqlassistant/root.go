package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mysqlassistant/internal/assistant"
	"mysqlassistant/internal/config"
	"mysqlassistant/internal/logging"
	"mysqlassistant/internal/model"
)

var (
	cfgFile  string
	logLevel string
	logFile  string
	host     string
	port     int
	user     string

	cfg    *config.Config
	logger *logrus.Entry

	rootCmd = &cobra.Command{
		Use:   "mysqlassistant",
		Short: "Move a media center library from local SQLite files to a shared MySQL server",
		Long: `mysqlassistant finds MySQL servers on the local network, checks which library
schemas they hold, copies the local video and music libraries into them and
writes the advancedsettings.xml that points the media center at the server.

Settings come from mysqlassistant.yml (or --config), MYSQLASSISTANT_* environment
variables and the flags below, in increasing priority.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

// Execute runs the command line; ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also append logs to this file")
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "target server host")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "target server port")
	rootCmd.PersistentFlags().StringVar(&user, "user", "", "target server user")
}

// setup loads the config and builds the logger before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == initConfigCmd.Name() {
		return nil
	}
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	if logFile != "" {
		loaded.LogFile = logFile
	}
	if host != "" {
		loaded.Target.Host = host
	}
	if port != 0 {
		loaded.Target.Port = port
	}
	if user != "" {
		loaded.Target.User = user
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	l, err := logging.NewLogger(loaded.LogLevel, loaded.LogFile)
	if err != nil {
		return err
	}
	cfg = loaded
	logger = logrus.NewEntry(l)
	return nil
}

func newSession() (*assistant.Session, error) {
	if err := ensurePassword(); err != nil {
		return nil, err
	}
	return assistant.NewSession(cfg.Release, cfg.Profile(""), logger)
}

// ensurePassword asks for the target password when none is configured and
// stdin is a terminal.
func ensurePassword() error {
	if cfg.Target.Password != "" || strings.EqualFold(cfg.Target.Provider, "sqlite") || !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	pass, err := promptPassword(fmt.Sprintf("Password for %s@%s: ", cfg.Target.User, cfg.Target.Host))
	if err != nil {
		return err
	}
	cfg.Target.Password = pass
	return nil
}

// defaultSourceDir is the media center's Database folder in the user profile.
func defaultSourceDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "Kodi", "userdata", "Database"), nil
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Kodi", "userdata", "Database"), nil
	}
	return filepath.Join(home, ".kodi", "userdata", "Database"), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pass), nil
}

func promptYes(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "YES"), nil
}

// logicalArgs maps "video", "music" or nothing (both) to logical databases.
func logicalArgs(args []string) ([]model.LogicalDB, error) {
	if len(args) == 0 || args[0] == "all" {
		return model.LogicalDBs, nil
	}
	l, err := model.ParseLogicalDB(args[0])
	if err != nil {
		return nil, err
	}
	return []model.LogicalDB{l}, nil
}
