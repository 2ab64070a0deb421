package smoketest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"uplinkhub/internal/config"
	"uplinkhub/internal/uplink"
	"uplinkhub/pkg/models"
	"uplinkhub/pkg/protocol"
)

// process exit codes
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Session is an open uplink connection as the runner sees it
type Session interface {
	Invoke(ctx context.Context, procedure string) (*models.ConnectionResult, error)
	Register(name string, fn uplink.HandlerFunc) error
	Disconnect() error
}

// Connector opens a Session with a credential
type Connector interface {
	Connect(ctx context.Context, key string) (Session, error)
}

// UplinkConnector connects through the real uplink client
type UplinkConnector struct {
	Options uplink.Options
}

func (u UplinkConnector) Connect(ctx context.Context, key string) (Session, error) {
	c, err := uplink.Connect(ctx, key, u.Options)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewConnector builds the production connector from config
func NewConnector(cfg *config.Config, logger *slog.Logger) UplinkConnector {
	return UplinkConnector{Options: uplink.Options{
		URL:         cfg.UplinkURL,
		Dialer:      uplink.WebsocketDialer{HandshakeTimeout: cfg.ConnectTimeout},
		Logger:      logger,
		CallTimeout: cfg.CallTimeout,
	}}
}

type Runner struct {
	Key       string
	Connector Connector
	Out       io.Writer    // nil = os.Stdout
	Logger    *slog.Logger // nil = slog.Default()
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Run performs one connect -> invoke -> disconnect cycle and returns the exit code
func (r *Runner) Run(ctx context.Context, p Profile) int {
	if _, err := r.Check(ctx, p); err != nil {
		return ExitFailure
	}
	return ExitSuccess
}

// Check is Run with the error and result kept. Output is printed either way.
// A missing key fails with uplink.ErrConfiguration before the connector is touched.
func (r *Runner) Check(ctx context.Context, p Profile) (*models.ConnectionResult, error) {
	n := newNarrator(r.out(), p)

	if strings.TrimSpace(r.Key) == "" {
		n.missingKey()
		return nil, fmt.Errorf("%w: %s environment variable not set", uplink.ErrConfiguration, config.EnvUplinkKey)
	}
	if strings.TrimSpace(p.Procedure) == "" {
		n.failed(errors.New("no procedure configured"))
		return nil, fmt.Errorf("%w: profile %q has no procedure", uplink.ErrConfiguration, p.Name)
	}

	n.connecting()
	start := time.Now()
	result, err := r.cycle(ctx, p, n)
	if err != nil {
		r.logger().Warn("smoketest_failed",
			"profile", p.Name,
			"procedure", p.Procedure,
			"convention", p.Convention.String(),
			"error", err,
		)
		return nil, err
	}
	r.logger().Info("smoketest_passed",
		"profile", p.Name,
		"procedure", p.Procedure,
		"duration", time.Since(start),
	)
	n.complete()
	return result, nil
}

// cycle owns the session: once Connect succeeds, Disconnect runs exactly once
// on every way out, including a panic further down
func (r *Runner) cycle(ctx context.Context, p Profile, n *narrator) (result *models.ConnectionResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("unexpected failure: %v", rec)
			n.failed(err)
		}
	}()

	session, err := r.Connector.Connect(ctx, r.Key)
	if err != nil {
		n.failed(err)
		return nil, err
	}
	n.connected()

	defer func() {
		n.disconnecting()
		if derr := session.Disconnect(); derr != nil {
			r.logger().Warn("uplink_disconnect_failed", "error", derr)
		}
		n.disconnected()
	}()

	n.calling()
	result, err = session.Invoke(ctx, p.Procedure)
	if err != nil {
		n.failed(err)
		return nil, err
	}
	if !result.OK() {
		err = &uplink.RemoteError{
			Procedure: p.Procedure,
			Type:      protocol.ErrTypeInvalidResult,
			Message:   fmt.Sprintf("reported status %q: %s", result.Status, result.Message),
		}
		n.failed(err)
		return nil, err
	}
	n.result(result)
	return result, nil
}

// PingHandler is the function a held uplink exposes back to the server
func PingHandler(name string) uplink.HandlerFunc {
	return func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return (&models.ConnectionResult{
			Status:       models.StatusSuccess,
			Message:      "Uplink " + name + " is alive",
			Timestamp:    time.Now().Format(time.RFC3339Nano),
			ServerModule: name,
		}).Map(), nil
	}
}

// PingFunction is the name PingHandler is registered under
const PingFunction = "uplink_ping"

// Hold connects, serves PingFunction, and keeps the connection open until
// wait returns or ctx is done. Disconnect always runs once connected.
func (r *Runner) Hold(ctx context.Context, name string, wait func(ctx context.Context) error) error {
	n := newNarrator(r.out(), Profile{Name: name, Convention: AbortOnFailure})

	if strings.TrimSpace(r.Key) == "" {
		n.missingKey()
		return fmt.Errorf("%w: %s environment variable not set", uplink.ErrConfiguration, config.EnvUplinkKey)
	}

	session, err := r.Connector.Connect(ctx, r.Key)
	if err != nil {
		n.failed(err)
		return err
	}
	defer func() {
		if derr := session.Disconnect(); derr != nil {
			r.logger().Warn("uplink_disconnect_failed", "error", derr)
		}
		n.holdDisconnected()
	}()

	if err := session.Register(PingFunction, PingHandler(name)); err != nil {
		r.logger().Warn("uplink_register_failed", "function", PingFunction, "error", err)
	}
	n.holdConnected()
	n.holdPrompt()

	waitErr := make(chan error, 1)
	go func() { waitErr <- wait(ctx) }()

	select {
	case err := <-waitErr:
		fmt.Fprintln(r.out())
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case <-ctx.Done():
		fmt.Fprintln(r.out())
		return nil
	}
}

// WaitForEnter returns a wait func that blocks until a line is read from in
func WaitForEnter(in io.Reader) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := bufio.NewReader(in).ReadString('\n')
		return err
	}
}
