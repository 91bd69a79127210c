package register

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/omr/internal/utils"
	"gonum.org/v1/gonum/mat"
)

// solveAffineLeastSquares fits the affine transform mapping src onto dst by
// least squares over an overdetermined 2n x 6 system solved via QR.
func solveAffineLeastSquares(src, dst []utils.Point) (utils.AffineTransform, error) {
	n := len(src)
	if n < 3 || n != len(dst) {
		return utils.AffineTransform{}, fmt.Errorf("need at least 3 point pairs, got %d/%d", len(src), len(dst))
	}

	a := mat.NewDense(n*2, 6, nil)
	b := mat.NewVecDense(n*2, nil)

	for i := range n {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y

		a.Set(i*2, 0, x)
		a.Set(i*2, 1, y)
		a.Set(i*2, 2, 1)
		b.SetVec(i*2, xp)

		a.Set(i*2+1, 3, x)
		a.Set(i*2+1, 4, y)
		a.Set(i*2+1, 5, 1)
		b.SetVec(i*2+1, yp)
	}

	var qr mat.QR
	qr.Factorize(a)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, b); err != nil {
		return utils.AffineTransform{}, fmt.Errorf("affine solve: %w", err)
	}

	return utils.AffineTransform{
		A:  params.AtVec(0),
		B:  params.AtVec(1),
		TX: params.AtVec(2),
		C:  params.AtVec(3),
		D:  params.AtVec(4),
		TY: params.AtVec(5),
	}, nil
}

// meanResidual returns the mean Euclidean distance between transformed src
// points and their dst correspondences.
func meanResidual(t utils.AffineTransform, src, dst []utils.Point) float64 {
	if len(src) == 0 {
		return 0
	}
	var sum float64
	for i := range src {
		sum += t.Apply(src[i]).Distance(dst[i])
	}
	return sum / float64(len(src))
}

// collinear reports whether all points lie within eps of a single line. A
// degenerate point set cannot constrain an affine transform.
func collinear(pts []utils.Point, eps float64) bool {
	if len(pts) < 3 {
		return true
	}
	p0 := pts[0]
	for i := 1; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			ax := pts[i].X - p0.X
			ay := pts[i].Y - p0.Y
			bx := pts[j].X - p0.X
			by := pts[j].Y - p0.Y
			// Twice the triangle area.
			if math.Abs(ax*by-ay*bx) > eps {
				return false
			}
		}
	}
	return true
}
