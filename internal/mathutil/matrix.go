package mathutil

// Mat is a 2D float64 matrix stored as row-major [][]float64 with a single
// backing allocation.
type Mat = [][]float64

// NewMat creates a rows x cols matrix initialized to zero.
func NewMat(rows, cols int) Mat {
	m := make(Mat, rows)
	data := make([]float64, rows*cols)
	for i := range m {
		m[i] = data[i*cols : (i+1)*cols]
	}
	return m
}

// NewMatFill creates a rows x cols matrix filled with val.
func NewMatFill(rows, cols int, val float64) Mat {
	m := NewMat(rows, cols)
	for i := range m {
		for j := range m[i] {
			m[i][j] = val
		}
	}
	return m
}
