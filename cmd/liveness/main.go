package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/MrCodeEU/facepass-liveness/pkg/config"
	"github.com/MrCodeEU/facepass-liveness/pkg/liveness"
	"github.com/MrCodeEU/facepass-liveness/pkg/logging"
)

const version = "0.3.0"

// Command represents a CLI command.
type Command struct {
	Name        string
	Description string
	Usage       string
	Run         func(args []string) error
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

var (
	cfg      *config.Config
	commands map[string]*Command
	out      io.Writer = os.Stdout
)

var commandOrder = []string{"run", "sequence", "history", "show", "remove", "download-models", "config", "version", "help"}

func init() {
	commands = map[string]*Command{
		"run": {
			Name:        "run",
			Description: "Run a liveness check against a recording or image directory",
			Usage:       "liveness run [path]",
			Run:         cmdRun,
		},
		"sequence": {
			Name:        "sequence",
			Description: "Show the configured gesture sequence",
			Usage:       "liveness sequence",
			Run:         cmdSequence,
		},
		"history": {
			Name:        "history",
			Description: "List recorded sessions",
			Usage:       "liveness history",
			Run:         cmdHistory,
		},
		"show": {
			Name:        "show",
			Description: "Show a recorded session",
			Usage:       "liveness show <session-id>",
			Run:         cmdShow,
		},
		"remove": {
			Name:        "remove",
			Description: "Remove a recorded session",
			Usage:       "liveness remove <session-id>",
			Run:         cmdRemove,
		},
		"download-models": {
			Name:        "download-models",
			Description: "Download the dlib models used by the images source",
			Usage:       "liveness download-models [dir]",
			Run:         cmdDownloadModels,
		},
		"config": {
			Name:        "config",
			Description: "Show current configuration",
			Usage:       "liveness config",
			Run:         cmdConfig,
		},
		"version": {
			Name:        "version",
			Description: "Show version information",
			Usage:       "liveness version",
			Run:         cmdVersion,
		},
		"help": {
			Name:        "help",
			Description: "Show help information",
			Usage:       "liveness help [command]",
			Run:         cmdHelp,
		},
	}
}

func main() {
	// Parse global flags
	configFile := flag.String("config", "", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	args := flag.Args()

	// Load configuration
	var err error
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
	}

	cfg.ExpandPaths()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Initialize logging
	logOpts := loggingOptions(cfg)
	if *debug {
		logOpts.Level = "debug"
	}
	if err := logging.Init(logOpts); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}

	logging.Debugf("Liveness v%s starting", version)
	logging.Debugf("Config loaded, storage dir: %s", cfg.Storage.DataDir)

	if len(args) < 1 {
		printUsage()
		os.Exit(0)
	}

	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmdName)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.Run(args[1:]); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.msg != "" {
				fmt.Fprintf(os.Stderr, "%s\n", exitErr.msg)
			}
			os.Exit(exitErr.code)
		}
		logging.WithError(err).Errorf("Command '%s' failed", cmdName)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loggingOptions(c *config.Config) logging.Options {
	return logging.Options{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
	}
}

func printUsage() {
	fmt.Fprintln(out, "Liveness - guided liveness checks from face measurements")
	fmt.Fprintf(out, "Version: %s\n\n", version)
	fmt.Fprintln(out, "Usage: liveness [options] <command> [arguments]")
	fmt.Fprintln(out, "\nOptions:")
	fmt.Fprintln(out, "  -config <file>   Path to configuration file")
	fmt.Fprintln(out, "  -debug           Enable debug logging")
	fmt.Fprintln(out, "\nCommands:")
	for _, name := range commandOrder {
		cmd := commands[name]
		fmt.Fprintf(out, "  %-16s %s\n", cmd.Name, cmd.Description)
	}
	fmt.Fprintln(out, "\nExamples:")
	fmt.Fprintln(out, "  liveness run session.jsonl        # Replay a measurement recording")
	fmt.Fprintln(out, "  liveness run -                    # Read measurements from stdin")
	fmt.Fprintln(out, "  liveness -debug run ./frames      # Run on JPEG frames with debug output")
	fmt.Fprintln(out, "\nRun 'liveness help <command>' for more information on a command.")
}

func cmdSequence(args []string) error {
	seq, err := cfg.Sequence()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, liveness.PromptPerformActions)
	for i, g := range seq {
		fmt.Fprintf(out, "  %d. %-16s %s\n", i+1, g, g.Prompt())
	}

	th := cfg.Thresholds()
	fmt.Fprintln(out, "\nThresholds:")
	fmt.Fprintf(out, "  Blink:           both eyes open <= %.2f\n", th.BlinkMaxEyeOpen)
	fmt.Fprintf(out, "  Turn left:       yaw > %.1f\n", th.TurnLeftMinYaw)
	fmt.Fprintf(out, "  Turn right:      yaw < %.1f\n", th.TurnRightMaxYaw)
	fmt.Fprintf(out, "  Nod:             roll change >= %.1f over %d frames\n", th.NodMinDiff, th.NodWindow)
	fmt.Fprintf(out, "  Smile:           probability > %.2f\n", th.SmileMinProbability)
	return nil
}

func cmdConfig(args []string) error {
	logging.Debug("Showing configuration")

	fmt.Fprintln(out, "Current Configuration:")
	fmt.Fprintln(out, "======================")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[Source]")
	fmt.Fprintf(out, "  Kind:            %s\n", cfg.Camera.Kind)
	fmt.Fprintf(out, "  Path:            %s\n", cfg.Camera.Path)
	fmt.Fprintf(out, "  FPS:             %d\n", cfg.Camera.FPS)
	fmt.Fprintf(out, "  Mirror:          %t\n", cfg.Camera.Mirror)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[Viewport]")
	fmt.Fprintf(out, "  Preview:         %.0f @ top %.0f\n", cfg.Viewport.PreviewSize, cfg.Viewport.PreviewTopMargin)
	fmt.Fprintf(out, "  Window Width:    %.0f\n", cfg.Viewport.WindowWidth)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[Liveness]")
	fmt.Fprintf(out, "  Sequence:        %s\n", strings.Join(cfg.Liveness.Sequence, ", "))
	fmt.Fprintf(out, "  Timeout:         %v\n", cfg.Liveness.Timeout)
	fmt.Fprintf(out, "  Completion:      %v\n", cfg.Liveness.CompletionDelay)
	fmt.Fprintf(out, "  Save Sessions:   %t\n", cfg.Liveness.SaveSessions)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[Recognition]")
	fmt.Fprintf(out, "  Model Path:      %s\n", cfg.Recognition.ModelPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[Storage]")
	fmt.Fprintf(out, "  Data Dir:        %s\n", cfg.Storage.DataDir)
	fmt.Fprintf(out, "  Encryption:      %t\n", cfg.Storage.EncryptionEnabled)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[Notify]")
	fmt.Fprintf(out, "  MQTT:            %t\n", cfg.Notify.Enabled)
	if cfg.Notify.Enabled {
		fmt.Fprintf(out, "  Broker:          %s:%d\n", cfg.Notify.Broker, cfg.Notify.Port)
		fmt.Fprintf(out, "  Topic:           %s (qos %d)\n", cfg.Notify.Topic, cfg.Notify.QoS)
		if cfg.Notify.Username != "" {
			fmt.Fprintf(out, "  Username:        %s\n", cfg.Notify.Username)
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[Logging]")
	fmt.Fprintf(out, "  Level:           %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  Format:          %s\n", cfg.Logging.Format)
	fmt.Fprintf(out, "  File:            %s\n", cfg.Logging.File)

	return nil
}

func cmdVersion(args []string) error {
	fmt.Fprintf(out, "Liveness v%s\n", version)
	fmt.Fprintln(out, "Guided liveness checks from face measurements")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Build Information:")
	fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
	fmt.Fprintf(out, "  Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return nil
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	fmt.Fprintf(out, "Command: %s\n", cmd.Name)
	fmt.Fprintf(out, "Description: %s\n", cmd.Description)
	fmt.Fprintf(out, "Usage: %s\n", cmd.Usage)

	switch cmdName {
	case "run":
		fmt.Fprintln(out, "\nSources:")
		fmt.Fprintln(out, "  replay   JSON lines, one {\"faces\":[...]} object per frame ('-' reads stdin)")
		fmt.Fprintln(out, "  images   directory of JPEG frames, processed in name order")
		fmt.Fprintln(out, "\nExit codes:")
		fmt.Fprintln(out, "  0  liveness check passed")
		fmt.Fprintln(out, "  1  liveness check failed")
		fmt.Fprintln(out, "  3  source or system error")
	case "config":
		fmt.Fprintln(out, "\nConfiguration Locations:")
		fmt.Fprintf(out, "  System: %s\n", config.SystemConfigPath)
		fmt.Fprintf(out, "  User:   ~/%s\n", config.UserConfigPath)
		fmt.Fprintln(out, "\nUse -config flag to specify a custom config file.")
		fmt.Fprintf(out, "Environment variables such as %s_LOG_LEVEL override file values.\n", config.EnvPrefix)
	}

	return nil
}
