package encoders

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/eleven-am/govod/internal/domain"
)

// Required lists the encoders the pipeline invokes by name.
var Required = []string{"libx264", "aac", "libmp3lame"}

type Capabilities struct {
	Encoders map[string]bool `json:"encoders"`
	HWAccels []string        `json:"hwaccels"`
}

// Detect asks ffmpeg which encoders and hardware accelerators it was built with.
func Detect(ctx context.Context, runner domain.Runner, ffmpeg string) (*Capabilities, error) {
	res, err := runner.Run(ctx, ffmpeg, "-hide_banner", "-encoders")
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w", err)
	}
	caps := &Capabilities{Encoders: parseEncoders(res.Stdout)}

	res, err = runner.Run(ctx, ffmpeg, "-hide_banner", "-hwaccels")
	if err != nil {
		return nil, fmt.Errorf("list hwaccels: %w", err)
	}
	caps.HWAccels = parseHWAccels(res.Stdout)

	return caps, nil
}

// Missing returns the names in want that caps does not provide, sorted.
func (c *Capabilities) Missing(want ...string) []string {
	var missing []string
	for _, name := range want {
		if !c.Encoders[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func parseEncoders(out []byte) map[string]bool {
	result := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	listing := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "---") {
			listing = true
			continue
		}
		if !listing {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			result[fields[1]] = true
		}
	}
	return result
}

func parseHWAccels(out []byte) []string {
	var result []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && line != "Hardware acceleration methods:" {
			result = append(result, line)
		}
	}
	return result
}
