package gpu

type UniformKind int

const (
	KindFloat UniformKind = iota
	KindInt
	KindBool
)

func (k UniformKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	}
	return "unknown"
}

// Uniform is one upload. Components is 1 to 4 for scalars and vectors,
// MatrixDim is 2, 3 or 4 for square float matrices. Count is the array
// length; values are packed in Floats or Ints.
type Uniform struct {
	Kind       UniformKind
	Components int
	MatrixDim  int
	Count      int
	Transpose  bool
	Floats     []float32
	Ints       []int32
}

// Len is the number of scalar values the upload carries.
func (u Uniform) Len() int {
	if u.MatrixDim > 0 {
		return u.MatrixDim * u.MatrixDim * u.Count
	}
	return u.Components * u.Count
}
