package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	metrics "github.com/armon/go-metrics"
	"golang.org/x/crypto/ssh"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

// exitTimeout is the exit code reported when a command exceeds its timeout,
// matching coreutils timeout.
const exitTimeout = 124

// connectTimeout bounds the TCP and SSH handshake of every try.
const connectTimeout = 2 * time.Second

// SSHExecutor runs commands on remote hosts with public key authentication.
// Host keys are not verified since pool machines are recreated from the
// same image under changing addresses.
type SSHExecutor struct {
	config *ssh.ClientConfig
	port   string
	logger *logging.Logger
}

// NewSSHExecutor loads the private key and prepares the client
// configuration.
func NewSSHExecutor(config *structs.SSH, logger *logging.Logger) (*SSHExecutor, error) {
	if config.KeyFile == "" {
		return nil, fmt.Errorf("client/ssh: no private key file configured")
	}

	key, err := os.ReadFile(config.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("client/ssh: unable to read private key: %v", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("client/ssh: unable to parse private key: %v", err)
	}

	return &SSHExecutor{
		config: &ssh.ClientConfig{
			User:            config.User,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         connectTimeout,
		},
		port:   strconv.Itoa(config.Port),
		logger: logger,
	}, nil
}

// DefaultRunOptions returns the run options described by the ssh block.
func DefaultRunOptions(config *structs.SSH) structs.RunOptions {
	return structs.RunOptions{
		MaxTries: 1,
		Timeout:  time.Duration(config.Timeout) * time.Second,
		Backoff:  time.Duration(config.SleepTime) * time.Second,
	}
}

// Run executes command on host, retrying failed tries after opts.Backoff.
func (e *SSHExecutor) Run(ctx context.Context, host, command string, opts structs.RunOptions) (structs.RunResult, error) {
	defer metrics.MeasureSince([]string{"ssh", "run"}, time.Now())

	if opts.MaxTries < 1 {
		opts.MaxTries = 1
	}

	var (
		res structs.RunResult
		err error
	)

	for try := 1; try <= opts.MaxTries; try++ {
		res, err = e.runOnce(ctx, host, command, opts)
		res.Tries = try
		if err == nil {
			return res, nil
		}

		e.logger.Debug("client/ssh: try %v/%v of %q on %v failed: %v",
			try, opts.MaxTries, command, host, err)

		if try == opts.MaxTries {
			break
		}

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(opts.Backoff):
		}
	}

	metrics.IncrCounter([]string{"ssh", "failures"}, 1)
	return res, fmt.Errorf("client/ssh: %q on %v failed after %d tries: %v",
		command, host, res.Tries, err)
}

func (e *SSHExecutor) runOnce(ctx context.Context, host, command string, opts structs.RunOptions) (structs.RunResult, error) {
	res := structs.RunResult{ExitCode: -1}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	addr := net.JoinHostPort(host, e.port)
	dialer := net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return res, err
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, e.config)
	if err != nil {
		conn.Close()
		return res, err
	}
	client := ssh.NewClient(c, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return res, err
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if opts.Stdin != nil {
		session.Stdin = bytes.NewReader(opts.Stdin)
	}

	if err := session.Start(command); err != nil {
		return res, err
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		client.Close()
		<-done
		res.ExitCode = exitTimeout
		res.Stdout = stdout.String()
		return res, fmt.Errorf("timed out after %v", opts.Timeout)

	case err := <-done:
		res.Stdout = stdout.String()
		if err == nil {
			res.ExitCode = 0
			return res, nil
		}

		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, fmt.Errorf("exit status %d: %s", res.ExitCode, bytes.TrimSpace(stderr.Bytes()))
		}
		return res, err
	}
}
