package probe

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrZeroDenominator = errors.New("zero denominator")

type Rational struct {
	Num int64
	Den int64
}

func (r Rational) Float() float64 {
	return float64(r.Num) / float64(r.Den)
}

// ParseRational parses "num/den" as produced by ffprobe. A bare integer is
// accepted as num/1.
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	numStr, denStr, found := strings.Cut(s, "/")
	if !found {
		denStr = "1"
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("rational %q: numerator: %w", s, err)
	}
	den, err := strconv.ParseInt(strings.TrimSpace(denStr), 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("rational %q: denominator: %w", s, err)
	}
	if den == 0 {
		return Rational{}, fmt.Errorf("rational %q: %w", s, ErrZeroDenominator)
	}
	if num < 0 || den < 0 {
		return Rational{}, fmt.Errorf("rational %q: negative component", s)
	}
	return Rational{Num: num, Den: den}, nil
}

// ReduceAspectRatio returns width:height reduced by their greatest common divisor.
func ReduceAspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return "0:0"
	}
	d := gcd(width, height)
	return fmt.Sprintf("%d:%d", width/d, height/d)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
