package validate

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/govod/internal/domain"
)

const GiB = 1024 * 1024 * 1024

type Policy struct {
	MinDuration float64 `yaml:"min_duration"`
	MaxDuration float64 `yaml:"max_duration"`
	MaxFileSize int64   `yaml:"max_file_size"`
	MinWidth    int     `yaml:"min_width"`
	MinHeight   int     `yaml:"min_height"`
}

func DefaultPolicy() Policy {
	return Policy{
		MinDuration: 30,
		MaxDuration: 4 * 60 * 60,
		MaxFileSize: 5 * GiB,
		MinWidth:    480,
		MinHeight:   360,
	}
}

// Validate applies policy to meta. Bounds are inclusive.
func Validate(meta *domain.VideoMetadata, policy Policy) domain.ValidationResult {
	if meta == nil {
		return domain.ValidationResult{Err: fmt.Errorf("no metadata to validate")}
	}

	var violations []domain.ConstraintViolation
	if meta.Duration < policy.MinDuration {
		violations = append(violations, domain.ConstraintViolation{
			Field:  "duration",
			Value:  meta.Duration,
			Limit:  policy.MinDuration,
			Detail: fmt.Sprintf("%.2fs is shorter than the %.0fs minimum", meta.Duration, policy.MinDuration),
		})
	}
	if meta.Duration > policy.MaxDuration {
		violations = append(violations, domain.ConstraintViolation{
			Field:  "duration",
			Value:  meta.Duration,
			Limit:  policy.MaxDuration,
			Detail: fmt.Sprintf("%.2fs is longer than the %.0fs maximum", meta.Duration, policy.MaxDuration),
		})
	}
	if meta.FileSize > policy.MaxFileSize {
		violations = append(violations, domain.ConstraintViolation{
			Field:  "file_size",
			Value:  float64(meta.FileSize),
			Limit:  float64(policy.MaxFileSize),
			Detail: fmt.Sprintf("%d bytes exceeds the %d byte limit", meta.FileSize, policy.MaxFileSize),
		})
	}
	if meta.Width < policy.MinWidth {
		violations = append(violations, domain.ConstraintViolation{
			Field:  "width",
			Value:  float64(meta.Width),
			Limit:  float64(policy.MinWidth),
			Detail: fmt.Sprintf("%dpx is narrower than %dpx", meta.Width, policy.MinWidth),
		})
	}
	if meta.Height < policy.MinHeight {
		violations = append(violations, domain.ConstraintViolation{
			Field:  "height",
			Value:  float64(meta.Height),
			Limit:  float64(policy.MinHeight),
			Detail: fmt.Sprintf("%dpx is shorter than %dpx", meta.Height, policy.MinHeight),
		})
	}

	return domain.ValidationResult{
		IsValid:    len(violations) == 0,
		Metadata:   meta,
		Violations: violations,
	}
}

type Prober interface {
	Probe(ctx context.Context, path string) (*domain.VideoMetadata, error)
}

type Validator struct {
	prober Prober
	policy Policy
	logger hclog.Logger
}

func NewValidator(prober Prober, policy Policy, logger hclog.Logger) *Validator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Validator{prober: prober, policy: policy, logger: logger}
}

// ValidateFile probes path and applies the policy. Probe failures are
// reported in the result rather than returned.
func (v *Validator) ValidateFile(ctx context.Context, path string) domain.ValidationResult {
	meta, err := v.prober.Probe(ctx, path)
	if err != nil {
		v.logger.Warn("validation probe failed", "path", path, "error", err)
		return domain.ValidationResult{Err: err}
	}

	result := Validate(meta, v.policy)
	if !result.IsValid {
		v.logger.Info("source rejected by policy", "path", path, "reason", result.Error())
	}
	return result
}
