package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"portfolio-assistant/internal/adapter/proxy"
	"portfolio-assistant/internal/adapter/tui/chat"
	"portfolio-assistant/internal/adapter/tui/uxerror"
	"portfolio-assistant/internal/usecase"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	// No command means an interactive chat.
	cmd := "chat"
	if len(os.Args) >= 2 && !strings.HasPrefix(os.Args[1], "-") {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "chat":
		err = runChat()
	case "serve":
		err = runServe()
	case "ask":
		err = runAsk(strings.Join(positional(os.Args[2:]), " "))
	case "doctor":
		err = runDoctor(os.Stdout)
	case "encrypt":
		err = runEncrypt(os.Args[2:], os.Getenv("PORTFOLIO_CONFIG_KEY"), os.Stdin, os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'portfolio-assistant --help' for usage information.\n", cmd)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", cmd, uxerror.Humanize(err).Render())
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`portfolio-assistant - Conversational assistant for a developer portfolio

USAGE:
    portfolio-assistant [COMMAND] [FLAGS]

COMMANDS:
    chat        Interactive terminal chat (default)
    ask TEXT    Ask one question and print the answer
    serve       Run the key-holding relay proxy for browser clients
    doctor      Check config, API keys and portfolio data
    encrypt KEY Print an enc: value for an API key (reads stdin if KEY is omitted)

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml (see config.example.yaml)
    Environment: PORTFOLIO_* variables override config
    Secrets:     enc: values are decrypted with PORTFOLIO_CONFIG_KEY

EXAMPLES:
    portfolio-assistant                                  # Chat with config.yaml
    portfolio-assistant ask "What projects use Go?"      # One-shot question
    portfolio-assistant serve --config prod.yaml         # Run the proxy
    portfolio-assistant doctor                           # Check setup
    PORTFOLIO_CONFIG_KEY=secret portfolio-assistant encrypt sk-...  # Encrypt a key`)
}

// configPath returns the --config flag value, PORTFOLIO_CONFIG, or the
// default ./config.yaml.
func configPath() string {
	return configPathFrom(os.Args, os.Getenv("PORTFOLIO_CONFIG"))
}

func configPathFrom(args []string, env string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if env != "" {
		return env
	}
	return "config.yaml"
}

// positional returns the arguments that are neither flags nor flag values.
func positional(args []string) []string {
	var words []string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config":
			i++
		case strings.HasPrefix(args[i], "-"):
		default:
			words = append(words, args[i])
		}
	}
	return words
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runChat() error {
	ctx, stop := signalContext()
	defer stop()

	a, err := bootstrap(ctx, configPath(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	a.log.Info("chat started", "provider", a.provider.Name())
	return chat.Run(ctx, a.assistant, a.store, a.ownerName(), a.provider.Name())
}

func runAsk(question string) error {
	if strings.TrimSpace(question) == "" {
		return errors.New("no question given; usage: portfolio-assistant ask \"<question>\"")
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := bootstrap(ctx, configPath(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	msg, outcome, ok := a.assistant.Ask(ctx, question)
	if !ok {
		return fmt.Errorf("question was not sent (%s)", outcome)
	}
	fmt.Println(msg.Content)

	switch outcome {
	case usecase.OutcomeFailed, usecase.OutcomeContextMissing:
		return fmt.Errorf("%s", msg.Error)
	}
	return nil
}

func runServe() error {
	ctx, stop := signalContext()
	defer stop()

	a, err := bootstrapInfra(ctx, configPath(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(os.Stderr, "starting proxy on %s (Ctrl+C to stop)\n", a.cfg.Proxy.Addr)
	// Start blocks until ctx is cancelled and the server has shut down.
	if err := proxy.NewServer(a.cfg.Proxy, a.log).Start(ctx); err != nil {
		return err
	}
	a.log.Info("proxy stopped")
	return nil
}
