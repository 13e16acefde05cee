package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tvkit/samremote/internal/bridge"
	"github.com/tvkit/samremote/internal/keys"
	"github.com/tvkit/samremote/internal/remote"
	"github.com/tvkit/samremote/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "send":
		runSend(os.Args[2:])
	case "interactive":
		runInteractive(os.Args[2:])
	case "keys":
		runKeys()
	case "bridge":
		runBridge(os.Args[2:])
	case "version", "--version":
		fmt.Printf("samremote %s (%s)\n", version.VERSION, version.Commit)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: samremote send -t <tv-ip> [flags] KEY [KEY ...]")
	fmt.Fprintln(os.Stderr, "       samremote interactive -t <tv-ip> [flags]")
	fmt.Fprintln(os.Stderr, "       samremote bridge -c <config.yaml> [-v]")
	fmt.Fprintln(os.Stderr, "       samremote keys")
	fmt.Fprintln(os.Stderr, "       samremote version")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "common flags:")
	fmt.Fprintln(os.Stderr, "  -t <ip>     television IP address (required)")
	fmt.Fprintln(os.Stderr, "  -i <id>     controller identifier (default: samremote)")
	fmt.Fprintln(os.Stderr, "  -n <name>   controller name shown on the TV prompt")
	fmt.Fprintln(os.Stderr, "  -d <ms>     delay after each key send (default: 0)")
	fmt.Fprintln(os.Stderr, "  -v          verbose logging to stderr")
}

// sessionFlags are the flags shared by send and interactive.
type sessionFlags struct {
	tv      string
	id      string
	name    string
	delayMs int
	verbose bool
}

func addSessionFlags(fs *flag.FlagSet) *sessionFlags {
	var sf sessionFlags
	fs.StringVar(&sf.tv, "t", "", "television IP address (required)")
	fs.StringVar(&sf.id, "i", "samremote", "controller identifier")
	fs.StringVar(&sf.name, "n", "samremote CLI", "controller name shown on the TV prompt")
	fs.IntVar(&sf.delayMs, "d", 0, "delay in ms after each key send")
	fs.BoolVar(&sf.verbose, "v", false, "verbose logging")
	return &sf
}

func newLogger(verbose bool) *slog.Logger {
	if verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pair connects to the TV and completes the permission handshake, prompting
// the user on screen. Blocks until the user answers or the TV gives up.
func pair(ctx context.Context, sf *sessionFlags, log *slog.Logger) (*remote.Client, error) {
	c := remote.New(remote.Config{
		KeyDelay: time.Duration(sf.delayMs) * time.Millisecond,
		Logger:   log,
	})
	if err := c.Connect(ctx, sf.tv); err != nil {
		return nil, err
	}
	fmt.Fprintln(os.Stderr, "waiting for permission on the TV...")
	if err := c.Authenticate(ctx, c.LocalIP(), sf.id, sf.name); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func runSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	sf := addSessionFlags(fs)
	fs.Parse(args)

	if sf.tv == "" {
		fmt.Fprintln(os.Stderr, "error: -t <tv-ip> is required")
		fs.Usage()
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "error: at least one KEY argument is required")
		os.Exit(1)
	}
	for _, key := range fs.Args() {
		if !keys.Known(key) {
			fmt.Fprintf(os.Stderr, "warning: %s is not in the key table, sending anyway\n", key)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := pair(ctx, sf, newLogger(sf.verbose))
	if err != nil {
		fmt.Fprintf(os.Stderr, "pairing failed: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	for _, key := range fs.Args() {
		if err := c.SendKey(ctx, key); err != nil {
			fmt.Fprintf(os.Stderr, "send %s: %v\n", key, err)
			os.Exit(1)
		}
	}
}

func runKeys() {
	for _, id := range keys.List() {
		fmt.Printf("%-16s %s\n", id, keys.Describe(id))
	}
}

func runBridge(args []string) {
	fs := flag.NewFlagSet("bridge", flag.ExitOnError)
	configPath := fs.String("c", "", "path to YAML config (required)")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Parse(args)

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "error: -c <config.yaml> is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := bridge.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(*verbose)
	b, err := bridge.New(*cfg, log, prometheus.NewRegistry())
	if err != nil {
		fmt.Fprintf(os.Stderr, "bridge: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bridge exited: %v\n", err)
		os.Exit(1)
	}
}
