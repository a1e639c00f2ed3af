package capability

import (
	"context"
	"time"

	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/logging"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// LimitOptions configures Limit.
type LimitOptions struct {
	// MaxInFlight bounds concurrent invocations. Zero or less means unbounded.
	MaxInFlight int64
	// RequestsPerSecond paces invocations. Zero disables pacing.
	RequestsPerSecond float64
	// Burst is the pacing burst size (defaults to 1).
	Burst int
	// Timeout bounds a single invocation. Zero means no per-call timeout.
	Timeout time.Duration
	Logger  logging.Logger
}

// Limited is a core.Port guarded by a semaphore and a rate limiter.
type Limited struct {
	port    core.Port
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	timeout time.Duration
	logger  logging.Logger
}

// Limit wraps port. The returned value must be shared by all workers using
// the capability so the admission limit is global to the run.
func Limit(port core.Port, optFns ...func(o *LimitOptions)) *Limited {
	opts := LimitOptions{Burst: 1, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	l := &Limited{port: port, timeout: opts.Timeout, logger: logging.ForComponent(opts.Logger, "capability")}
	if opts.MaxInFlight > 0 {
		l.sem = semaphore.NewWeighted(opts.MaxInFlight)
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return l
}

// Kind implements core.Port.
func (l *Limited) Kind() core.CapabilityKind { return l.port.Kind() }

// Actions implements core.Port.
func (l *Limited) Actions() []core.ActionSpec { return l.port.Actions() }

// Invoke implements core.Port. Waiting for admission honours ctx.
func (l *Limited) Invoke(ctx context.Context, call core.ActionCall) (any, error) {
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return nil, l.admissionError(call, err)
		}
		defer l.sem.Release(1)
	}

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, l.admissionError(call, err)
		}
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := l.port.Invoke(ctx, call)
	l.logger.Debug("capability.invoke", "capability", l.port.Kind(), "action", call.Name, "duration_ms", time.Since(start).Milliseconds(), "error", err != nil)
	return out, err
}

func (l *Limited) admissionError(call core.ActionCall, err error) error {
	kind := core.KindOf(err)
	if kind == core.ErrorKindFatal {
		// rate.Limiter reports a wait beyond the deadline as a plain error.
		kind = core.ErrorKindTransient
	}
	l.logger.Debug("capability.admission.denied", "capability", l.port.Kind(), "action", call.Name, "kind", kind)
	return core.NewCapabilityError(kind, l.port.Kind(), call.Name, err)
}
