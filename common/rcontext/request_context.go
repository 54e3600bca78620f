package rcontext

import (
	"context"

	"github.com/corpusworks/dataset-repo/common/config"
	"github.com/sirupsen/logrus"
)

func Initial() RequestContext {
	return RequestContext{
		Context: context.Background(),
		Log:     logrus.WithFields(logrus.Fields{"nocontext": true}),
		Config:  *config.Get(),
	}.populate()
}

type RequestContext struct {
	context.Context

	// These are also stored on the context object itself
	Log    *logrus.Entry     // dr.logger
	Config config.MainConfig // dr.config
}

func (c RequestContext) populate() RequestContext {
	c.Context = context.WithValue(c.Context, "dr.logger", c.Log)
	c.Context = context.WithValue(c.Context, "dr.config", c.Config)
	return c
}

func (c RequestContext) ReplaceLogger(log *logrus.Entry) RequestContext {
	ctx := context.WithValue(c.Context, "dr.logger", log)
	return RequestContext{
		Context: ctx,
		Log:     log,
		Config:  c.Config,
	}
}

func (c RequestContext) LogWithFields(fields logrus.Fields) RequestContext {
	return c.ReplaceLogger(c.Log.WithFields(fields))
}

// WithContext swaps the underlying context, keeping the logger and config.
// Used to thread caller-supplied cancellation through the pipeline.
func (c RequestContext) WithContext(ctx context.Context) RequestContext {
	return RequestContext{
		Context: ctx,
		Log:     c.Log,
		Config:  c.Config,
	}.populate()
}
