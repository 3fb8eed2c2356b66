package registration

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"markscan/pkg/geometry"
)

// solveAffine computes the least-squares affine transform mapping src
// points onto dst points. With n pairs it builds the overdetermined
// 2n x 6 system
//
//	x' = a*x + b*y + tx
//	y' = c*x + d*y + ty
//
// and solves it by QR decomposition.
func solveAffine(src, dst []geometry.Point2D) (geometry.AffineTransform, error) {
	n := len(src)
	if n < 3 || len(dst) != n {
		return geometry.AffineTransform{}, fmt.Errorf("need at least 3 point pairs, got %d/%d", n, len(dst))
	}

	A := mat.NewDense(n*2, 6, nil)
	B := mat.NewVecDense(n*2, nil)

	for i := 0; i < n; i++ {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, xp)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, yp)
	}

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return geometry.AffineTransform{}, err
	}

	return geometry.AffineTransform{
		A:  params.AtVec(0),
		B:  params.AtVec(1),
		TX: params.AtVec(2),
		C:  params.AtVec(3),
		D:  params.AtVec(4),
		TY: params.AtVec(5),
	}, nil
}
