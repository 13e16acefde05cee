package remote

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/tvkit/samremote/internal/protocol"
)

// fakeTV speaks the television side of the protocol on a loopback port.
// It reads the first envelope as the auth request, replies with each
// scripted payload, then decodes any further envelopes as key presses.
type fakeTV struct {
	ln     net.Listener
	port   int
	script [][]byte // response payloads sent after the auth request

	authCh chan []byte // raw auth payloads received
	keyCh  chan string // decoded key identifiers received

	dropAfterAuth bool // close without replying, simulating a dying TV
}

func startFakeTV(t *testing.T, script [][]byte) *fakeTV {
	t.Helper()
	return startFakeTVOpts(t, script, false)
}

func startFakeTVOpts(t *testing.T, script [][]byte, dropAfterAuth bool) *fakeTV {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	tv := &fakeTV{
		ln:            ln,
		port:          ln.Addr().(*net.TCPAddr).Port,
		script:        script,
		authCh:        make(chan []byte, 4),
		keyCh:         make(chan string, 16),
		dropAfterAuth: dropAfterAuth,
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go tv.serve(nc)
		}
	}()
	return tv
}

func (tv *fakeTV) serve(nc net.Conn) {
	defer nc.Close()

	auth, err := protocol.ReadEnvelope(nc)
	if err != nil {
		return
	}
	tv.authCh <- auth

	if tv.dropAfterAuth {
		return
	}

	for _, payload := range tv.script {
		frame, err := protocol.EncodeEnvelope(payload)
		if err != nil {
			return
		}
		if _, err := nc.Write(frame); err != nil {
			return
		}
	}

	for {
		payload, err := protocol.ReadEnvelope(nc)
		if err != nil {
			return
		}
		if key, ok := decodeKeyPayload(payload); ok {
			tv.keyCh <- key
		}
	}
}

// decodeKeyPayload unpacks `00 00 00 | u16le len | base64(key)`.
func decodeKeyPayload(payload []byte) (string, bool) {
	if len(payload) < 5 {
		return "", false
	}
	n := int(binary.LittleEndian.Uint16(payload[3:5]))
	if len(payload) < 5+n {
		return "", false
	}
	key, err := base64.StdEncoding.DecodeString(string(payload[5 : 5+n]))
	if err != nil {
		return "", false
	}
	return string(key), true
}

var (
	granted = []byte{0x64, 0x00, 0x01, 0x00}
	denied  = []byte{0x64, 0x00, 0x00, 0x00}
	await   = []byte{0x0a, 0x00, 0x02, 0x00, 0x00, 0x00}
	timeout = []byte{0x65, 0x00}
)

// connect dials the fake TV and fails the test on error.
func connect(t *testing.T, tv *fakeTV) *Client {
	t.Helper()
	c := New(Config{Port: tv.port})
	t.Cleanup(func() { c.Close() })
	if err := c.Connect(context.Background(), "127.0.0.1"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return c
}

func authenticate(c *Client) error {
	return c.Authenticate(context.Background(), c.LocalIP(), "samremote-test", "test controller")
}

func TestAuthenticateGranted(t *testing.T) {
	tv := startFakeTV(t, [][]byte{granted})
	c := connect(t, tv)

	if err := authenticate(c); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got := c.State(); got != StateAuthenticated {
		t.Fatalf("state: got %v, want authenticated", got)
	}

	if err := c.SendKey(context.Background(), "KEY_VOLDOWN"); err != nil {
		t.Fatalf("send key: %v", err)
	}
	select {
	case key := <-tv.keyCh:
		if key != "KEY_VOLDOWN" {
			t.Fatalf("TV saw key %q", key)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for key at TV")
	}
}

func TestAuthenticateDenied(t *testing.T) {
	tv := startFakeTV(t, [][]byte{denied})
	c := connect(t, tv)

	if err := authenticate(c); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if got := c.State(); got != StateAuthFailed {
		t.Fatalf("state: got %v, want auth-failed", got)
	}
}

func TestAuthenticateTimeout(t *testing.T) {
	tv := startFakeTV(t, [][]byte{timeout})
	c := connect(t, tv)

	if err := authenticate(c); !errors.Is(err, ErrAuthTimeout) {
		t.Fatalf("expected ErrAuthTimeout, got %v", err)
	}
}

func TestAuthenticateAwaitThenGranted(t *testing.T) {
	// The TV repeats "await" while the prompt is up; the call must stay
	// pending through those and resolve on the final grant.
	tv := startFakeTV(t, [][]byte{await, await, granted})
	c := connect(t, tv)

	if err := authenticate(c); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
}

func TestAuthenticateUnrecognizedResponse(t *testing.T) {
	tv := startFakeTV(t, [][]byte{{0xde, 0xad, 0xbe, 0xef}})
	c := connect(t, tv)

	if err := authenticate(c); !errors.Is(err, ErrUnrecognizedResponse) {
		t.Fatalf("expected ErrUnrecognizedResponse, got %v", err)
	}
	if got := c.State(); got != StateAuthFailed {
		t.Fatalf("state: got %v, want auth-failed", got)
	}
}

func TestAuthPayloadReachesTV(t *testing.T) {
	tv := startFakeTV(t, [][]byte{granted})
	c := connect(t, tv)

	if err := authenticate(c); err != nil {
		t.Fatal(err)
	}

	select {
	case auth := <-tv.authCh:
		if auth[0] != 0x64 || auth[1] != 0x00 {
			t.Fatalf("auth payload header: % x", auth[:2])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("TV never received the auth request")
	}
}

func TestConnectInvalidAddress(t *testing.T) {
	c := New(Config{})
	err := c.Connect(context.Background(), "999.999.999.999")
	if !errors.Is(err, protocol.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if got := c.State(); got != StateDisconnected {
		t.Fatalf("state after failed connect: %v", got)
	}
}

func TestAuthenticateBeforeConnect(t *testing.T) {
	c := New(Config{})
	err := c.Authenticate(context.Background(), "127.0.0.1", "id", "name")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestSendKeyBeforeAuthenticate(t *testing.T) {
	tv := startFakeTV(t, [][]byte{granted})
	c := connect(t, tv)

	err := c.SendKey(context.Background(), "KEY_VOLUP")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	// The rejected call must not have written anything: the TV's first
	// read (the auth slot) must still be empty.
	select {
	case got := <-tv.authCh:
		t.Fatalf("TV received unexpected frame: % x", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSendKeyAfterDenied(t *testing.T) {
	tv := startFakeTV(t, [][]byte{denied})
	c := connect(t, tv)

	if err := authenticate(c); !errors.Is(err, ErrAccessDenied) {
		t.Fatal(err)
	}
	if err := c.SendKey(context.Background(), "KEY_MUTE"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestDoubleConnect(t *testing.T) {
	tv := startFakeTV(t, [][]byte{granted})
	c := connect(t, tv)

	if err := c.Connect(context.Background(), "127.0.0.1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestConcurrentAuthenticateRejected(t *testing.T) {
	// Script only "await" so the first call stays pending.
	tv := startFakeTV(t, [][]byte{await})
	c := connect(t, tv)

	firstCh := make(chan error, 1)
	go func() { firstCh <- authenticate(c) }()

	// Wait for the first call to enter AuthPending.
	deadline := time.Now().Add(5 * time.Second)
	for c.State() != StateAuthPending {
		if time.Now().After(deadline) {
			t.Fatal("first authenticate never became pending")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := authenticate(c); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second authenticate: expected ErrInvalidState, got %v", err)
	}

	// Closing resolves the pending call instead of leaving it hung.
	c.Close()
	select {
	case err := <-firstCh:
		if !errors.Is(err, ErrAuthAborted) {
			t.Fatalf("expected ErrAuthAborted, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pending authenticate never resolved after close")
	}
}

func TestAuthAbortedOnConnectionLoss(t *testing.T) {
	tv := startFakeTVOpts(t, nil, true) // TV dies right after reading the request
	c := connect(t, tv)

	err := authenticate(c)
	if !errors.Is(err, ErrAuthAborted) {
		t.Fatalf("expected ErrAuthAborted, got %v", err)
	}
	if got := c.State(); got != StateAuthAborted {
		t.Fatalf("state: got %v, want auth-aborted", got)
	}
}

func TestAuthenticateContextCancelled(t *testing.T) {
	tv := startFakeTV(t, [][]byte{await}) // never resolves on its own
	c := connect(t, tv)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := c.Authenticate(ctx, c.LocalIP(), "id", "name")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestKeyDelayBlocksIssuingCall(t *testing.T) {
	const delay = 80 * time.Millisecond
	tv := startFakeTV(t, [][]byte{granted})

	c := New(Config{Port: tv.port, KeyDelay: delay})
	t.Cleanup(func() { c.Close() })
	if err := c.Connect(context.Background(), "127.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if err := authenticate(c); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := c.SendKey(context.Background(), "KEY_CHUP"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Fatalf("send returned after %v, want at least %v", elapsed, delay)
	}
}

func TestSendKeySequence(t *testing.T) {
	tv := startFakeTV(t, [][]byte{granted})
	c := connect(t, tv)
	if err := authenticate(c); err != nil {
		t.Fatal(err)
	}

	keys := []string{"KEY_VOLUP", "KEY_VOLUP", "KEY_VOLDOWN", "KEY_MUTE"}
	for _, k := range keys {
		if err := c.SendKey(context.Background(), k); err != nil {
			t.Fatalf("send %s: %v", k, err)
		}
	}
	for i, want := range keys {
		select {
		case got := <-tv.keyCh:
			if got != want {
				t.Fatalf("key %d: got %q, want %q", i, got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for key %d", i)
		}
	}
}
