package lstm

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// lstmLayer is one recurrent layer. Gate rows are stacked in the order
// input, forget, cell, output: wIH is [4H x in], wHH is [4H x H], bias [4H x 1].
type lstmLayer struct {
	inputDim int
	hidden   int
	wIH      *Param
	wHH      *Param
	bias     *Param
}

// stepCache keeps what one time step needs for the backward pass.
type stepCache struct {
	x, hPrev, cPrev []float64
	i, f, g, o      []float64
	c, tanhC, h     []float64
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// forward runs the layer over xs starting from a zero state.
func (l *lstmLayer) forward(xs [][]float64) []stepCache {
	H := l.hidden
	wih := l.wIH.value()
	whh := l.wHH.value()
	bias := mat.NewVecDense(4*H, l.bias.Value)

	caches := make([]stepCache, len(xs))
	hPrev := make([]float64, H)
	cPrev := make([]float64, H)
	for t, x := range xs {
		gates := mat.NewVecDense(4*H, nil)
		gates.MulVec(wih, mat.NewVecDense(l.inputDim, x))
		rec := mat.NewVecDense(4*H, nil)
		rec.MulVec(whh, mat.NewVecDense(H, hPrev))
		gates.AddVec(gates, rec)
		gates.AddVec(gates, bias)
		raw := gates.RawVector().Data

		sc := stepCache{
			x:     x,
			hPrev: hPrev,
			cPrev: cPrev,
			i:     make([]float64, H),
			f:     make([]float64, H),
			g:     make([]float64, H),
			o:     make([]float64, H),
			c:     make([]float64, H),
			tanhC: make([]float64, H),
			h:     make([]float64, H),
		}
		for k := 0; k < H; k++ {
			sc.i[k] = sigmoid(raw[k])
			sc.f[k] = sigmoid(raw[H+k])
			sc.g[k] = math.Tanh(raw[2*H+k])
			sc.o[k] = sigmoid(raw[3*H+k])
			sc.c[k] = sc.f[k]*cPrev[k] + sc.i[k]*sc.g[k]
			sc.tanhC[k] = math.Tanh(sc.c[k])
			sc.h[k] = sc.o[k] * sc.tanhC[k]
		}
		caches[t] = sc
		hPrev, cPrev = sc.h, sc.c
	}
	return caches
}

// backward accumulates parameter gradients given dhs[t], the gradient flowing
// into h_t from above (nil when nothing reads that step), and returns the
// gradient with respect to each input x_t.
func (l *lstmLayer) backward(caches []stepCache, dhs [][]float64) [][]float64 {
	H := l.hidden
	wih := l.wIH.value()
	whh := l.wHH.value()
	gWih := l.wIH.grad()
	gWhh := l.wHH.grad()

	dxs := make([][]float64, len(caches))
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)
	da := make([]float64, 4*H)
	for t := len(caches) - 1; t >= 0; t-- {
		sc := caches[t]
		for k := 0; k < H; k++ {
			dh := dhNext[k]
			if dhs[t] != nil {
				dh += dhs[t][k]
			}
			do := dh * sc.tanhC[k]
			dc := dh*sc.o[k]*(1-sc.tanhC[k]*sc.tanhC[k]) + dcNext[k]
			di := dc * sc.g[k]
			dg := dc * sc.i[k]
			df := dc * sc.cPrev[k]
			dcNext[k] = dc * sc.f[k]

			da[k] = di * sc.i[k] * (1 - sc.i[k])
			da[H+k] = df * sc.f[k] * (1 - sc.f[k])
			da[2*H+k] = dg * (1 - sc.g[k]*sc.g[k])
			da[3*H+k] = do * sc.o[k] * (1 - sc.o[k])
		}

		daVec := mat.NewVecDense(4*H, da)
		gWih.RankOne(gWih, 1, daVec, mat.NewVecDense(l.inputDim, sc.x))
		gWhh.RankOne(gWhh, 1, daVec, mat.NewVecDense(H, sc.hPrev))
		floats.Add(l.bias.Grad, da)

		dx := mat.NewVecDense(l.inputDim, nil)
		dx.MulVec(wih.T(), daVec)
		dxs[t] = dx.RawVector().Data

		dh := mat.NewVecDense(H, nil)
		dh.MulVec(whh.T(), daVec)
		dhNext = dh.RawVector().Data
	}
	return dxs
}

// linear is the affine output head: y = W x + b with W [out x in].
type linear struct {
	in, out int
	w, b    *Param
}

func (d *linear) forward(x []float64) []float64 {
	y := mat.NewVecDense(d.out, nil)
	y.MulVec(d.w.value(), mat.NewVecDense(d.in, x))
	y.AddVec(y, mat.NewVecDense(d.out, d.b.Value))
	return y.RawVector().Data
}

func (d *linear) backward(x, dy []float64) []float64 {
	gW := d.w.grad()
	dyVec := mat.NewVecDense(d.out, dy)
	gW.RankOne(gW, 1, dyVec, mat.NewVecDense(d.in, x))
	floats.Add(d.b.Grad, dy)

	dx := mat.NewVecDense(d.in, nil)
	dx.MulVec(d.w.value().T(), dyVec)
	return dx.RawVector().Data
}
