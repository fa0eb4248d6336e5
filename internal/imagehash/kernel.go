package imagehash

import (
	"fmt"
	"math"
)

// MHParams tune the Marr-Hildreth kernel. Alpha is the scale base and Level
// its exponent; the kernel radius is int(4 * Alpha^Level).
type MHParams struct {
	Alpha float64
	Level float64
}

func DefaultMHParams() MHParams {
	return MHParams{Alpha: 2.0, Level: 1.0}
}

// kernel is a square correlation kernel of side 2*radius+1, row-major.
type kernel struct {
	radius int
	side   int
	w      []float64
}

func (p MHParams) validate() error {
	if math.IsNaN(p.Alpha) || math.IsInf(p.Alpha, 0) || math.IsNaN(p.Level) || math.IsInf(p.Level, 0) {
		return fmt.Errorf("%w: alpha=%v level=%v must be finite", ErrBadParams, p.Alpha, p.Level)
	}
	if p.Alpha <= 0 {
		return fmt.Errorf("%w: alpha=%v must be positive", ErrBadParams, p.Alpha)
	}
	return nil
}

func (p MHParams) radius() (int, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}
	s := 4 * math.Pow(p.Alpha, p.Level)
	if math.IsNaN(s) || s < 1 {
		return 0, fmt.Errorf("%w: alpha=%v level=%v give a zero kernel radius", ErrBadParams, p.Alpha, p.Level)
	}
	if s > float64((mhPlaneSize-1)/2) {
		return 0, fmt.Errorf("%w: radius %.0f", ErrKernelTooLarge, s)
	}
	return int(s), nil
}

func newKernel(p MHParams) (*kernel, error) {
	r, err := p.radius()
	if err != nil {
		return nil, newError("mh", CategoryPrecondition, err)
	}
	side := 2*r + 1
	k := &kernel{radius: r, side: side, w: make([]float64, side*side)}
	scale := math.Pow(p.Alpha, -p.Level)
	for y := 0; y < side; y++ {
		yp := scale * float64(y-r)
		for x := 0; x < side; x++ {
			xp := scale * float64(x-r)
			a := xp*xp + yp*yp
			k.w[y*side+x] = (2 - a) * math.Exp(-a/2)
		}
	}
	return k, nil
}
