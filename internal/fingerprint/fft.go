package fingerprint

import "math/cmplx"

// fft computes the discrete Fourier transform of real-valued input using
// a recursive radix-2 Cooley-Tukey algorithm. len(input) must be a power
// of two; spectrogram always calls this with cfg.WindowSize, which
// DefaultConfig fixes at 1024.
//
// No FFT implementation was available in the teacher's retrieved files
// (the teacher's spectrogram code is not in the retrieval pack beyond
// config.go/fingerprint.go); this is a fresh, standard implementation.
func fft(input []float64) []complex128 {
	buf := make([]complex128, len(input))
	for i, v := range input {
		buf[i] = complex(v, 0)
	}
	fftRecursive(buf)
	return buf
}

// fftRecursive performs an in-place Cooley-Tukey FFT on buf, whose length
// must be a power of two.
func fftRecursive(buf []complex128) {
	n := len(buf)
	if n <= 1 {
		return
	}

	even := make([]complex128, n/2)
	odd := make([]complex128, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = buf[2*i]
		odd[i] = buf[2*i+1]
	}

	fftRecursive(even)
	fftRecursive(odd)

	for k := 0; k < n/2; k++ {
		twiddle := cmplx.Rect(1, -2*3.141592653589793*float64(k)/float64(n)) * odd[k]
		buf[k] = even[k] + twiddle
		buf[k+n/2] = even[k] - twiddle
	}
}
