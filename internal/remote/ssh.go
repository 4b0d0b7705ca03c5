package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/pedrodavics/PGR/internal/models"
)

// SSHConfig holds credentials and host verification settings.
type SSHConfig struct {
	User       string
	Password   string
	KeyFile    string
	KnownHosts string // empty accepts any host key
	Timeout    time.Duration
}

// SSHDialer opens SSH sessions. Each command runs on its own channel of
// the shared connection.
type SSHDialer struct {
	cfg SSHConfig
}

// NewSSHDialer creates an SSHDialer.
func NewSSHDialer(cfg SSHConfig) *SSHDialer {
	return &SSHDialer{cfg: cfg}
}

func (d *SSHDialer) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if d.cfg.KeyFile != "" {
		key, err := os.ReadFile(d.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		var signer ssh.Signer
		if d.cfg.Password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(d.cfg.Password))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing key file: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if d.cfg.Password != "" {
		auth = append(auth, ssh.Password(d.cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("no ssh credentials configured")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if d.cfg.KnownHosts != "" {
		cb, err := knownhosts.New(d.cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("loading known_hosts: %w", err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User:            d.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         d.cfg.Timeout,
	}, nil
}

// Dial connects and authenticates.
func (d *SSHDialer) Dial(ctx context.Context, ep models.Endpoint) (Session, error) {
	cfg, err := d.clientConfig()
	if err != nil {
		return nil, err
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	addr := ep.Address()
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake with %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return &sshSession{client: ssh.NewClient(c, chans, reqs)}, nil
}

type sshSession struct {
	client *ssh.Client
}

func (s *sshSession) Concurrent() bool { return true }

func (s *sshSession) Close() error { return s.client.Close() }

func (s *sshSession) Run(ctx context.Context, command string) ([]byte, []byte, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case err := <-done:
		return stdout.Bytes(), stderr.Bytes(), err
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()
		<-done
		return stdout.Bytes(), stderr.Bytes(), ctx.Err()
	}
}
