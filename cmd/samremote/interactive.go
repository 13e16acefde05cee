package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/tvkit/samremote/internal/remote"
)

// keymap translates single keyboard characters to remote key identifiers.
var keymap = map[byte]string{
	'\r': "KEY_ENTER",
	'+':  "KEY_VOLUP",
	'=':  "KEY_VOLUP",
	'-':  "KEY_VOLDOWN",
	'm':  "KEY_MUTE",
	']':  "KEY_CHUP",
	'[':  "KEY_CHDOWN",
	'b':  "KEY_RETURN",
	'x':  "KEY_EXIT",
	'u':  "KEY_MENU",
	'i':  "KEY_INFO",
	'g':  "KEY_GUIDE",
	's':  "KEY_SOURCE",
	'p':  "KEY_POWER",
	'0':  "KEY_0",
	'1':  "KEY_1",
	'2':  "KEY_2",
	'3':  "KEY_3",
	'4':  "KEY_4",
	'5':  "KEY_5",
	'6':  "KEY_6",
	'7':  "KEY_7",
	'8':  "KEY_8",
	'9':  "KEY_9",
}

// arrowmap translates the final byte of an ANSI cursor sequence (ESC [ X).
var arrowmap = map[byte]string{
	'A': "KEY_UP",
	'B': "KEY_DOWN",
	'C': "KEY_RIGHT",
	'D': "KEY_LEFT",
}

func runInteractive(args []string) {
	fs := flag.NewFlagSet("interactive", flag.ExitOnError)
	sf := addSessionFlags(fs)
	fs.Parse(args)

	if sf.tv == "" {
		fmt.Fprintln(os.Stderr, "error: -t <tv-ip> is required")
		fs.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := pair(ctx, sf, newLogger(sf.verbose))
	if err != nil {
		fmt.Fprintf(os.Stderr, "pairing failed: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	fmt.Fprintln(os.Stderr, "interactive keypad — arrows navigate, enter selects,")
	fmt.Fprintln(os.Stderr, "+/- volume, [/] channel, m mute, p power, digits 0-9, q quits")

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		fmt.Fprintln(os.Stderr, "error: interactive mode requires a terminal on stdin")
		os.Exit(1)
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "make raw: %v\n", err)
		os.Exit(1)
	}
	defer term.Restore(fd, oldState)

	if err := keypadLoop(ctx, c, bufio.NewReader(os.Stdin)); err != nil {
		term.Restore(fd, oldState)
		fmt.Fprintf(os.Stderr, "keypad: %v\n", err)
		os.Exit(1)
	}
}

// keypadLoop reads single keystrokes and forwards the mapped remote keys.
// Returns nil on a clean quit (q or Ctrl-C), an error if a send fails.
func keypadLoop(ctx context.Context, c *remote.Client, in *bufio.Reader) error {
	for {
		b, err := in.ReadByte()
		if err != nil {
			return nil // stdin closed
		}

		var key string
		switch b {
		case 'q', 0x03: // q or Ctrl-C
			return nil
		case 0x1b: // ANSI escape: expect "[X"
			next, err := in.ReadByte()
			if err != nil || next != '[' {
				continue
			}
			final, err := in.ReadByte()
			if err != nil {
				continue
			}
			key = arrowmap[final]
		default:
			key = keymap[b]
		}
		if key == "" {
			continue
		}

		if err := c.SendKey(ctx, key); err != nil {
			return err
		}
	}
}
