package fxchain

import (
	"log/slog"
	"maps"

	"github.com/gogpu/fxchain/link"
)

// Option configures compilation and chain construction.
//
// Example:
//
//	chain, err := fxchain.Load("crt.toml", b,
//		fxchain.WithLogger(slog.Default()),
//		fxchain.WithParameters(map[string]float32{"strength": 0.8}),
//	)
type Option func(*options)

// options holds optional configuration for Compile and New.
type options struct {
	logger     *slog.Logger
	linkPolicy link.Policy
	debugNames bool
	parameters map[string]float32
}

// defaultOptions returns the default options.
func defaultOptions() options {
	return options{
		debugNames: true,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = Logger()
	}
	return o
}

// WithLogger sets the logger of one chain, overriding the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLinkPolicy sets how unused stage interface variables are trimmed.
// The default removes every unused fragment input.
func WithLinkPolicy(p link.Policy) Option {
	return func(o *options) {
		o.linkPolicy = p
	}
}

// WithDebugNames controls whether generated SPIR-V keeps debug names.
// Names are kept by default.
func WithDebugNames(keep bool) Option {
	return func(o *options) {
		o.debugNames = keep
	}
}

// WithParameters overrides parameter values after the preset overrides.
// Unknown names are ignored.
func WithParameters(values map[string]float32) Option {
	return func(o *options) {
		if o.parameters == nil {
			o.parameters = make(map[string]float32, len(values))
		}
		maps.Copy(o.parameters, values)
	}
}
