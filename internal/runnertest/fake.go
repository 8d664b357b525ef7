// Package runnertest provides a scripted domain.Runner for tests.
package runnertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/eleven-am/govod/internal/domain"
)

type Call struct {
	Name string
	Args []string
}

// Joined returns the arguments as a single space separated string.
func (c Call) Joined() string {
	return strings.Join(c.Args, " ")
}

// Arg returns the value following flag, or "" if flag is absent.
func (c Call) Arg(flag string) string {
	for i := 0; i < len(c.Args)-1; i++ {
		if c.Args[i] == flag {
			return c.Args[i+1]
		}
	}
	return ""
}

// Last returns the final argument, which for ffmpeg is the output path.
func (c Call) Last() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

type Handler func(ctx context.Context, call Call) (domain.Result, error)

// Fake records every invocation and delegates to Handler. A nil Handler
// succeeds with an empty result.
type Fake struct {
	Handler Handler

	mu    sync.Mutex
	calls []Call
}

func (f *Fake) Run(ctx context.Context, name string, args ...string) (domain.Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Result{ExitCode: -1}, &domain.CancelledError{Command: name, Cause: err}
	}
	if f.Handler == nil {
		return domain.Result{}, nil
	}
	return f.Handler(ctx, call)
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Fail builds the result and error a real runner returns for a nonzero exit.
func Fail(name string, code int, stderr string) (domain.Result, error) {
	return domain.Result{ExitCode: code, Stderr: stderr}, &domain.ProcessError{
		Command:  name,
		ExitCode: code,
		Stderr:   stderr,
	}
}

// JSON returns a successful result whose stdout is payload.
func JSON(payload string) (domain.Result, error) {
	return domain.Result{Stdout: []byte(payload)}, nil
}

// ProbeJSON renders a minimal ffprobe document for a single video stream and
// an optional audio stream.
func ProbeJSON(duration float64, width, height int, size int64, audioCodec string) string {
	streams := fmt.Sprintf(`{"index":0,"codec_type":"video","codec_name":"h264","width":%d,"height":%d,"r_frame_rate":"30000/1001","avg_frame_rate":"30000/1001"}`, width, height)
	if audioCodec != "" {
		streams += fmt.Sprintf(`,{"index":1,"codec_type":"audio","codec_name":"%s","channels":2}`, audioCodec)
	}
	return fmt.Sprintf(`{"streams":[%s],"format":{"format_name":"mov,mp4,m4a,3gp,3g2,mj2","duration":"%f","size":"%d","bit_rate":"4500000"}}`,
		streams, duration, size)
}
