package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	"github.com/mash-protocol/mash-zap/internal/zapharness"
	"github.com/mash-protocol/mash-zap/pkg/log"
	"github.com/mash-protocol/mash-zap/pkg/socket"
	"github.com/mash-protocol/mash-zap/pkg/wire"
)

// DefaultTimeout bounds one scenario run.
const DefaultTimeout = 30 * time.Second

// unwindTimeout bounds the wait for a cancelled scenario to release its
// sockets.
const unwindTimeout = 5 * time.Second

// ErrTimeout is reported for a scenario that did not finish in time.
var ErrTimeout = errors.New("scenario timed out")

// ErrRequestCount is reported when the handler processed an unexpected
// number of requests.
var ErrRequestCount = errors.New("wrong request count")

// Config configures a Runner.
type Config struct {
	// Timeout bounds each scenario (default 30s).
	Timeout time.Duration

	// Logger receives protocol events from every endpoint and handler.
	Logger log.Logger

	// Log receives operational messages.
	Log *slog.Logger

	// OnResult is called after each scenario of RunAll.
	OnResult func(*Result)
}

// Runner executes scenarios, each in a fresh socket context.
type Runner struct {
	cfg Config
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Logger = log.OrNoop(cfg.Logger)
	if cfg.Log == nil {
		cfg.Log = slog.New(slog.DiscardHandler)
	}
	return &Runner{cfg: cfg}
}

// RunAll runs scenarios in order. It stops early when ctx ends.
func (r *Runner) RunAll(ctx context.Context, name string, scs []*Scenario) *SuiteResult {
	start := time.Now()
	suite := &SuiteResult{Name: name}
	for _, sc := range scs {
		if ctx.Err() != nil {
			break
		}
		res := r.Run(ctx, sc)
		suite.Results = append(suite.Results, res)
		if res.Passed {
			suite.PassCount++
		} else {
			suite.FailCount++
		}
		if r.cfg.OnResult != nil {
			r.cfg.OnResult(res)
		}
	}
	suite.Duration = time.Since(start)
	return suite
}

// Run executes one scenario.
func (r *Runner) Run(ctx context.Context, sc *Scenario) *Result {
	start := time.Now()
	res := &Result{Scenario: sc}

	type outcome struct {
		requests int64
		err      error
	}
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		n, err := r.execute(runCtx, sc)
		done <- outcome{requests: n, err: err}
	}()

	select {
	case out := <-done:
		res.Requests = out.requests
		res.Err = out.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			res.Err = ctx.Err()
		} else {
			res.Err = fmt.Errorf("%w after %s", ErrTimeout, r.cfg.Timeout)
		}
		select {
		case <-done:
		case <-time.After(unwindTimeout):
			r.cfg.Log.Error("scenario did not unwind", "id", sc.ID, "waited", unwindTimeout)
		}
	}

	res.Passed = res.Err == nil
	res.Duration = time.Since(start)
	if res.Passed {
		r.cfg.Log.Info("scenario passed", "id", sc.ID, "requests", res.Requests, "duration", res.Duration)
	} else {
		r.cfg.Log.Warn("scenario failed", "id", sc.ID, "category", zapharness.CategoryOf(res.Err), "error", res.Err)
	}
	return res
}

// execute runs sc in its own socket context. Cancelling ctx closes that
// context, which releases every blocked send, receive and monitor wait.
func (r *Runner) execute(ctx context.Context, sc *Scenario) (requests int64, err error) {
	sctx := socket.NewContext()
	defer func() { err = multierr.Append(err, sctx.Close()) }()
	stop := context.AfterFunc(ctx, func() { _ = sctx.Close() })
	defer stop()

	keys, err := zapharness.GenerateTestKeys()
	if err != nil {
		return 0, err
	}
	serverCfg := r.serverConfig(sc, keys)
	clientCfg := r.clientConfig(sc, keys)

	ss, err := zapharness.NewServerSide(sctx, serverCfg)
	if err != nil {
		return 0, err
	}

	for i := range sc.AttemptCount() {
		if err = r.attempt(sctx, ss, sc, clientCfg); err != nil {
			err = fmt.Errorf("attempt %d: %w", i+1, err)
			break
		}
	}

	handlerStopped := sc.HandlerEnabled() && sc.Fault == zapharness.FaultDisconnect
	err = multierr.Append(err, ss.Close(handlerStopped))
	requests = ss.Counter.Load()

	if want := sc.Expect.Requests; err == nil && want != nil && *want != requests {
		err = zapharness.UnexpectedEvent(fmt.Errorf("%w: %d, want %d", ErrRequestCount, requests, *want))
	}
	return requests, err
}

func (r *Runner) attempt(sctx *socket.Context, ss *zapharness.ServerSide, sc *Scenario, clientCfg zapharness.ClientConfig) error {
	var clientEvent zapharness.ExpectedEvent
	if sc.Expect.Client != nil {
		ev, err := sc.Expect.Client.Resolve()
		if err != nil {
			return zapharness.Setup(err)
		}
		clientEvent = ev
	}

	if sc.Expect.Connected {
		if err := r.connected(sctx, ss, clientCfg, clientEvent); err != nil {
			return err
		}
		if err := ss.AwaitNoPeers(zapharness.BounceTimeout); err != nil {
			return err
		}
	} else {
		if err := zapharness.ExpectNewClientBounceFail(sctx, ss.Endpoint, ss.Server, clientCfg, clientEvent); err != nil {
			return fmt.Errorf("client: %w", err)
		}
	}

	if sc.Expect.Server == nil {
		return nil
	}
	want, err := sc.Expect.Server.Resolve()
	if err != nil {
		return zapharness.Setup(err)
	}
	n, err := ss.Monitor.ExpectEvent(want.Kind, want.Value, true, zapharness.DefaultEventTimeout)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if n != 1 {
		return zapharness.UnexpectedEvent(fmt.Errorf("%w: server reported %d events", zapharness.ErrEventCount, n))
	}
	return nil
}

func (r *Runner) connected(sctx *socket.Context, ss *zapharness.ServerSide, cfg zapharness.ClientConfig, want zapharness.ExpectedEvent) (err error) {
	cfg.Monitor = want.Kind != 0
	client, err := zapharness.ConnectClient(sctx, ss.Endpoint, cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, client.Close()) }()

	if err := zapharness.ExpectBounce(ss.Server, client.Socket); err != nil {
		return err
	}
	if want.Kind == 0 {
		return nil
	}
	n, err := client.Monitor.ExpectEvent(want.Kind, want.Value, true, zapharness.DefaultEventTimeout)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if n != 1 {
		return zapharness.UnexpectedEvent(fmt.Errorf("%w: client reported %d events", zapharness.ErrEventCount, n))
	}
	return nil
}

func (r *Runner) serverConfig(sc *Scenario, keys *zapharness.TestKeys) zapharness.ServerConfig {
	cfg := zapharness.ServerConfig{
		HandshakeTimeout: sc.HandshakeTimeout,
		Logger:           r.cfg.Logger,
		Log:              r.cfg.Log.With("scenario", sc.ID),
	}
	if sc.HandlerEnabled() {
		cfg.Handler = &zapharness.HandlerConfig{
			Fault:           sc.Fault,
			ClientPublicKey: keys.ClientPublic(),
		}
	}

	switch sc.Mechanism {
	case wire.MechanismPlain:
		cfg.Configure = zapharness.ConfigurePlainServer
	case wire.MechanismCurve:
		cfg.Configure = zapharness.ConfigureCurveServer
		cfg.Payload = keys.ServerSecret()
	default:
		cfg.Configure = zapharness.ConfigureNullServer
		if sc.EnforceDomain {
			cfg.Payload = &zapharness.DomainPolicy{Enforce: true}
		}
	}
	return cfg
}

func (r *Runner) clientConfig(sc *Scenario, keys *zapharness.TestKeys) zapharness.ClientConfig {
	cfg := zapharness.ClientConfig{Logger: r.cfg.Logger}

	switch sc.Mechanism {
	case wire.MechanismPlain:
		cfg.Configure = zapharness.ConfigurePlainClient
		switch sc.credentials() {
		case CredentialsWrongPassword:
			cfg.Payload = &zapharness.PlainCredentials{Username: zapharness.TestPlainUsername, Password: "wrong"}
		case CredentialsWrongUser:
			cfg.Payload = &zapharness.PlainCredentials{Username: "admin", Password: zapharness.TestPlainPassword}
		}
	case wire.MechanismCurve:
		cfg.Configure = zapharness.ConfigureCurveClient
		switch sc.credentials() {
		case CredentialsUntrustedKey:
			cfg.Payload = keys.UntrustedClient()
		case CredentialsWrongServerKey:
			cfg.Payload = keys.WrongServer()
		default:
			cfg.Payload = keys.ValidClient()
		}
	default:
		cfg.Configure = zapharness.ConfigureNullClient
	}
	return cfg
}
