package engine

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/eleven-am/reelsync/internal/domain"
	"github.com/eleven-am/reelsync/internal/metrics"
)

// Observed wraps an engine with call logging and metrics.
type Observed struct {
	engine domain.Engine
	log    zerolog.Logger
}

// NewObserved wraps engine. Calls are logged at debug under component=engine.
func NewObserved(engine domain.Engine, log zerolog.Logger) *Observed {
	return &Observed{engine: engine, log: log.With().Str("component", "engine").Logger()}
}

func (o *Observed) Stage(ctx context.Context, name string, data []byte) error {
	err := o.observe("stage", name, func() error {
		return o.engine.Stage(ctx, name, data)
	})
	if err == nil {
		metrics.StagedBytes.WithLabelValues("in").Add(float64(len(data)))
	}
	return err
}

func (o *Observed) Execute(ctx context.Context, args []string) error {
	target := ""
	if len(args) > 0 {
		target = args[len(args)-1]
	}
	return o.observe("execute", target, func() error {
		return o.engine.Execute(ctx, args)
	})
}

func (o *Observed) ReadStaged(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := o.observe("read", name, func() error {
		var err error
		data, err = o.engine.ReadStaged(ctx, name)
		return err
	})
	if err == nil {
		metrics.StagedBytes.WithLabelValues("out").Add(float64(len(data)))
	}
	return data, err
}

func (o *Observed) Unstage(ctx context.Context, name string) error {
	return o.observe("unstage", name, func() error {
		return o.engine.Unstage(ctx, name)
	})
}

// Close closes the wrapped engine when it holds resources.
func (o *Observed) Close() error {
	if c, ok := o.engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (o *Observed) observe(op, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	metrics.EngineOpDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		metrics.EngineOpErrors.WithLabelValues(op).Inc()
		o.log.Debug().Err(err).Str("op", op).Str("name", name).Dur("elapsed", elapsed).Msg("engine call failed")
		return err
	}

	o.log.Debug().Str("op", op).Str("name", name).Dur("elapsed", elapsed).Msg("engine call")
	return nil
}
