package domain

import "context"

type Result struct {
	ExitCode  int
	Stdout    []byte
	Stderr    string
	Truncated bool
}

// Runner executes one external command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

type Tools struct {
	FFmpeg  string
	FFprobe string
}

type toolsKey struct{}

// WithTools overrides tool paths for every stage invoked with the returned context.
// Empty fields keep the configured default.
func WithTools(ctx context.Context, tools Tools) context.Context {
	return context.WithValue(ctx, toolsKey{}, tools)
}

// ResolveTools merges any per-call override in ctx over defaults.
func ResolveTools(ctx context.Context, defaults Tools) Tools {
	override, ok := ctx.Value(toolsKey{}).(Tools)
	if !ok {
		return defaults
	}
	if override.FFmpeg != "" {
		defaults.FFmpeg = override.FFmpeg
	}
	if override.FFprobe != "" {
		defaults.FFprobe = override.FFprobe
	}
	return defaults
}
