package fec

import "github.com/flute-go/flute/cmn"

// GF(2^8) arithmetic with the same primitive polynomial (x^8+x^4+x^3+x^2+1,
// 0x11D) used by the Reed-Solomon GF(2^8) variants, built from scratch for
// the decode-only RS-GF(2^m) path since no third-party GF(2^m) library is
// available in this module's dependency surface.
const gf256Poly = 0x11D

var gf256Exp [512]byte
var gf256Log [256]byte

func init() {
	x := 1
	for i := 0; i < 255; i++ {
		gf256Exp[i] = byte(x)
		gf256Log[x] = byte(i)
		x <<= 1
		if x&0x100 != 0 {
			x ^= gf256Poly
		}
	}
	for i := 255; i < 512; i++ {
		gf256Exp[i] = gf256Exp[i-255]
	}
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gf256Exp[int(gf256Log[a])+int(gf256Log[b])]
}

func gfDiv(a, b byte) (byte, error) {
	if b == 0 {
		return 0, cmn.NewErrState("gf256 division by zero")
	}
	if a == 0 {
		return 0, nil
	}
	diff := int(gf256Log[a]) - int(gf256Log[b])
	if diff < 0 {
		diff += 255
	}
	return gf256Exp[diff], nil
}

// gf256InvertMatrix inverts a square matrix over GF(2^8) via Gauss-Jordan
// elimination, returning an error when the matrix is singular.
func gf256InvertMatrix(m [][]byte) ([][]byte, error) {
	n := len(m)
	aug := make([][]byte, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]byte, 2*n)
		copy(aug[i], m[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := -1
		for row := col; row < n; row++ {
			if aug[row][col] != 0 {
				pivot = row
				break
			}
		}
		if pivot == -1 {
			return nil, cmn.NewErrIntegrity("gf256 matrix is singular at column %d", col)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		inv, err := gfDiv(1, aug[col][col])
		if err != nil {
			return nil, err
		}
		for j := 0; j < 2*n; j++ {
			aug[col][j] = gfMul(aug[col][j], inv)
		}

		for row := 0; row < n; row++ {
			if row == col || aug[row][col] == 0 {
				continue
			}
			factor := aug[row][col]
			for j := 0; j < 2*n; j++ {
				aug[row][j] ^= gfMul(factor, aug[col][j])
			}
		}
	}

	result := make([][]byte, n)
	for i := 0; i < n; i++ {
		result[i] = aug[i][n:]
	}
	return result, nil
}
