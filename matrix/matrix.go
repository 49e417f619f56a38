package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// psdTol is relative tolerance used when deciding whether a small negative
// eigenvalue is a numerical artifact or a genuinely indefinite matrix.
const psdTol = 1e-10

// SqrtPSD computes a square root factor S of a symmetric positive
// semi-definite matrix a such that S * S^T = a.
// Rank deficient (singular) input is tolerated: eigenvalues within numerical
// tolerance of zero are clamped to zero.
// It returns error if a has a negative eigenvalue beyond the tolerance
// i.e. if a is not positive semi-definite.
func SqrtPSD(a mat.Symmetric) (*mat.Dense, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(a, true); !ok {
		return nil, fmt.Errorf("eigendecomposition failed")
	}

	vals := eig.Values(nil)

	var max float64
	for _, v := range vals {
		if math.Abs(v) > max {
			max = math.Abs(v)
		}
	}
	tol := psdTol * math.Max(1.0, max)

	for i, v := range vals {
		if v < -tol {
			return nil, fmt.Errorf("matrix is not positive semi-definite: eigenvalue %v", v)
		}
		if v < 0 {
			v = 0
		}
		vals[i] = math.Sqrt(v)
	}

	n := a.SymmetricDim()

	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	sqrt := mat.NewDense(n, n, nil)
	sqrt.Mul(&vecs, mat.NewDiagDense(n, vals))

	return sqrt, nil
}

// ToSym turns a square matrix into a symmetric one by averaging its
// off-diagonal pairs and returns it.
// It returns error if a is not a square matrix.
func ToSym(a mat.Matrix) (*mat.SymDense, error) {
	r, c := a.Dims()
	if r != c {
		return nil, fmt.Errorf("invalid matrix dimensions: [%d x %d]", r, c)
	}

	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}

	return s, nil
}
