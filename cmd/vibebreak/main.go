package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"vibebreak/pkg/config"
)

var version = "dev"

func main() {
	// Everything after "--" is a child command to wrap.
	ourArgs, childCmd := splitArgs(os.Args[1:])

	var (
		configPath  string
		quiet       bool
		topic       string
		server      string
		check       bool
		showVersion bool
		help        bool
	)

	flags := flag.NewFlagSet("vibebreak", flag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "Path to config file")
	flags.BoolVar(&quiet, "quiet", false, "Disable all notifications")
	flags.StringVar(&topic, "topic", "", "Ntfy topic for notifications")
	flags.StringVar(&server, "server", "", "Ntfy server URL")
	flags.BoolVar(&check, "check", false, "Run one evaluation of each signal source and exit")
	flags.BoolVar(&showVersion, "version", false, "Print version and exit")
	flags.BoolVarP(&help, "help", "h", false, "Show help message")

	if err := flags.Parse(ourArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if help {
		printUsage(flags)
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("vibebreak %s\n", version)
		os.Exit(0)
	}

	if configPath != "" {
		if err := os.Setenv("VIBEBREAK_CONFIG", configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error setting config path: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Command line flags win over file and environment.
	if quiet {
		cfg.Quiet = true
	}
	if topic != "" {
		cfg.NtfyTopic = topic
	}
	if server != "" {
		cfg.NtfyServer = server
	}

	if check {
		os.Exit(runCheck(cfg))
	}

	deps, err := NewDependencies(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating dependencies: %v\n", err)
		os.Exit(1)
	}

	app := NewApplication(deps)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		app.Stop()
	}()

	if err := app.Run(childCmd); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	os.Exit(app.ExitCode())
}

// splitArgs separates our arguments from a wrapped child command.
func splitArgs(args []string) (ours, child []string) {
	for i, arg := range args {
		if arg == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

func printUsage(flags *flag.FlagSet) {
	fmt.Println("vibebreak - physical exercise breaks for AI-assisted coding sessions")
	fmt.Println()
	fmt.Println("Usage: vibebreak [OPTIONS] [-- COMMAND [ARGS...]]")
	fmt.Println()
	fmt.Println("Watches which app is frontmost and how long your keyboard has been")
	fmt.Println("quiet while an AI tool works, then prompts an exercise break once")
	fmt.Println("the waiting stretch gets long enough.")
	fmt.Println()
	fmt.Println("With \"-- COMMAND\", the command runs under a pseudo-terminal and its")
	fmt.Println("keystrokes count as activity; vibebreak exits with its exit code.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println(flags.FlagUsages())
	fmt.Println("Environment Variables:")
	fmt.Println("  VIBEBREAK_CONFIG             Path to config file")
	fmt.Println("  VIBEBREAK_TOPIC              Ntfy topic for notifications")
	fmt.Println("  VIBEBREAK_SERVER             Ntfy server URL (default: https://ntfy.sh)")
	fmt.Println("  VIBEBREAK_COMPANION_PROCESS  Companion process name pattern")
	fmt.Println("  VIBEBREAK_IDLE_THRESHOLD     Keyboard idle threshold (e.g. 10s)")
	fmt.Println("  VIBEBREAK_GRACE_PERIOD       Grace period after typing")
	fmt.Println("  VIBEBREAK_WORKOUT_TRIGGER    Waiting time before a break prompt")
	fmt.Println("  VIBEBREAK_POLL_INTERVAL      Foreground poll interval")
	fmt.Println("  VIBEBREAK_CPU_THRESHOLD      Companion CPU threshold percent")
	fmt.Println("  VIBEBREAK_QUIET              Disable notifications (true/false)")
	fmt.Println("  VIBEBREAK_DEBUG              Print diagnostics to stderr when set")
	fmt.Println()
	fmt.Println("Configuration file: ~/.config/vibebreak/config.yaml")
}
