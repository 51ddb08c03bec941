package lstm

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Param is one trainable tensor stored row-major, with its gradient buffer.
type Param struct {
	Name  string
	Rows  int
	Cols  int
	Value []float64
	Grad  []float64
}

func newParam(name string, rows, cols int) *Param {
	return &Param{
		Name:  name,
		Rows:  rows,
		Cols:  cols,
		Value: make([]float64, rows*cols),
		Grad:  make([]float64, rows*cols),
	}
}

// uniform fills the value with samples from U(-bound, bound).
func (p *Param) uniform(rng *rand.Rand, bound float64) {
	for i := range p.Value {
		p.Value[i] = (rng.Float64()*2 - 1) * bound
	}
}

// value and grad are matrix views sharing the parameter's storage.
func (p *Param) value() *mat.Dense { return mat.NewDense(p.Rows, p.Cols, p.Value) }

func (p *Param) grad() *mat.Dense { return mat.NewDense(p.Rows, p.Cols, p.Grad) }

func (p *Param) zeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}
