// Package stripe removes fixed-pattern readout stripes from camera images by
// knocking out the offending frequency line in the plane's 2D spectrum and
// restoring the lost mean level afterwards.
package stripe

import "gonum.org/v1/gonum/dsp/fourier"

// fft2 computes the unshifted 2D DFT of a real plane with ny rows of nx
// pixels, transforming rows first and then columns. The coefficient at
// (ky, kx) = (0, 0) carries the DC level.
func fft2(plane []float64, ny, nx int) []complex128 {
	rowFFT := fourier.NewCmplxFFT(nx)
	colFFT := fourier.NewCmplxFFT(ny)

	coeff := make([]complex128, ny*nx)
	row := make([]complex128, nx)
	rowOut := make([]complex128, nx)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			row[x] = complex(plane[y*nx+x], 0)
		}
		rowFFT.Coefficients(rowOut, row)
		copy(coeff[y*nx:(y+1)*nx], rowOut)
	}

	col := make([]complex128, ny)
	colOut := make([]complex128, ny)
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			col[y] = coeff[y*nx+x]
		}
		colFFT.Coefficients(colOut, col)
		for y := 0; y < ny; y++ {
			coeff[y*nx+x] = colOut[y]
		}
	}
	return coeff
}

// ifft2 inverts fft2, returning the real parts. The gonum sequences are
// unnormalized, so each pass divides by its length.
func ifft2(coeff []complex128, ny, nx int) []float64 {
	rowFFT := fourier.NewCmplxFFT(nx)
	colFFT := fourier.NewCmplxFFT(ny)

	col := make([]complex128, ny)
	colOut := make([]complex128, ny)
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			col[y] = coeff[y*nx+x]
		}
		colFFT.Sequence(colOut, col)
		for y := 0; y < ny; y++ {
			coeff[y*nx+x] = colOut[y] / complex(float64(ny), 0)
		}
	}

	out := make([]float64, ny*nx)
	row := make([]complex128, nx)
	rowOut := make([]complex128, nx)
	for y := 0; y < ny; y++ {
		copy(row, coeff[y*nx:(y+1)*nx])
		rowFFT.Sequence(rowOut, row)
		for x := 0; x < nx; x++ {
			out[y*nx+x] = real(rowOut[x]) / float64(nx)
		}
	}
	return out
}
