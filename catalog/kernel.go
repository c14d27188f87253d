package catalog

// Kernel is a (2w+1)² box kernel of equal weights summing to 1.
type Kernel struct {
	Half int
}

// NewKernel returns the box kernel of half-width w.
func NewKernel(w int) Kernel { return Kernel{Half: w} }

// Size returns the kernel side length 2w+1.
func (k Kernel) Size() int { return 2*k.Half + 1 }

// Weights returns the row-major kernel weights.
func (k Kernel) Weights() []float64 {
	n := k.Size() * k.Size()
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// Density returns 100 × the "same"-size, zero-padded convolution of the
// indicator (codes == target) with the kernel, i.e. the percentage of cells
// of the window that carry target. A summed-area table keeps it O(rows·cols).
func (k Kernel) Density(codes []int, rows, cols, target int) []float64 {
	// integral image with a zero first row and column
	stride := cols + 1
	sat := make([]int, (rows+1)*stride)
	for r := 0; r < rows; r++ {
		rowSum := 0
		for c := 0; c < cols; c++ {
			if codes[r*cols+c] == target {
				rowSum++
			}
			sat[(r+1)*stride+c+1] = sat[r*stride+c+1] + rowSum
		}
	}

	area := float64(k.Size() * k.Size())
	out := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		r0, r1 := clamp(r-k.Half, rows), clamp(r+k.Half+1, rows)
		for c := 0; c < cols; c++ {
			c0, c1 := clamp(c-k.Half, cols), clamp(c+k.Half+1, cols)
			count := sat[r1*stride+c1] - sat[r0*stride+c1] - sat[r1*stride+c0] + sat[r0*stride+c0]
			out[r*cols+c] = 100 * float64(count) / area
		}
	}
	return out
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
