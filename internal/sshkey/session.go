package sshkey

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// portRetryInterval paces the wait for a guest's SSH port to open.
const portRetryInterval = 2 * time.Second

// ShellConfig describes one interactive connection.
type ShellConfig struct {
	Addr           string
	Port           int
	User           string
	PrivateKeyPath string
	// ConnectTimeout bounds the wait for the TCP port and the SSH
	// handshake, each.
	ConnectTimeout time.Duration
}

// Shell opens an interactive shell on the machine, wiring the local
// terminal through in raw mode and propagating window size changes.
// It blocks until the remote shell exits; the remote exit status is
// not treated as an error.
func Shell(ctx context.Context, cfg ShellConfig) error {
	addr := net.JoinHostPort(cfg.Addr, strconv.Itoa(cfg.Port))

	waitCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := waitForPort(waitCtx, addr, portRetryInterval); err != nil {
		return fmt.Errorf("ssh port on %s never opened: %w", addr, err)
	}

	signer, err := loadSigner(cfg.PrivateKeyPath)
	if err != nil {
		return err
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.ConnectTimeout,
	}
	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	session.Stdin = os.Stdin
	session.Stdout = os.Stdout
	session.Stderr = os.Stderr

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to put terminal in raw mode: %w", err)
		}
		defer term.Restore(fd, oldState)

		w, h, err := term.GetSize(fd)
		if err != nil {
			w, h = 80, 24
		}
		modes := ssh.TerminalModes{
			ssh.ECHO:          1,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}
		if err := session.RequestPty(termType(), h, w, modes); err != nil {
			return fmt.Errorf("failed to request pty: %w", err)
		}
		stop := propagateWindowSize(session, fd)
		defer stop()
	}

	if err := session.Shell(); err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}

	err = session.Wait()
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		// The remote shell's exit status belongs to the user, not to
		// the session.
		return nil
	}
	return err
}

func termType() string {
	if t := os.Getenv("TERM"); t != "" {
		return t
	}
	return "xterm-256color"
}

// propagateWindowSize forwards SIGWINCH to the remote pty. The
// returned stop function releases the signal handler.
func propagateWindowSize(session *ssh.Session, fd int) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	go func() {
		for range ch {
			if w, h, err := term.GetSize(fd); err == nil {
				session.WindowChange(h, w)
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}

// waitForPort dials addr until it accepts, retrying every retry
// interval until ctx expires.
func waitForPort(ctx context.Context, addr string, retry time.Duration) error {
	d := net.Dialer{Timeout: retry}
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

func loadSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", path, err)
	}
	return signer, nil
}
