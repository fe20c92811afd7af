package model

import (
	"math"
	"math/rand"

	"github.com/profitpulse/backend/internal/contracts"
)

// svmClassifier is a soft-margin SVM with an RBF kernel, trained by
// sequential minimal optimization. Features are standardized with a
// scaler fitted on the training rows only, class weights are balanced,
// and probabilities come from Platt scaling fitted on the training
// decision values.
type svmClassifier struct {
	c         float64
	tol       float64
	maxPasses int
	maxIter   int
	seed      int64

	// fitted state
	mean, std      []float64
	gamma          float64
	supportVecs    [][]float64
	supportAlphaY  []float64 // alpha_i * y_i per support vector
	bias           float64
	plattA, plattB float64
}

func newSVMClassifier(c float64, seed int64) *svmClassifier {
	return &svmClassifier{
		c:         c,
		tol:       1e-3,
		maxPasses: 5,
		maxIter:   2000,
		seed:      seed,
	}
}

func (s *svmClassifier) Kind() contracts.ModelKind {
	return contracts.ModelSVM
}

func (s *svmClassifier) Train(X [][]float64, y []int) error {
	n := len(X)
	if n < 2 {
		return &contracts.InsufficientDataError{Op: "svm_rbf train", Need: 2, Got: n}
	}

	var pos int
	for _, label := range y {
		pos += label
	}
	if pos == 0 || pos == n {
		return &contracts.InsufficientDataError{Op: "svm_rbf train: single-class labels", Need: 2, Got: 1}
	}

	// Train-only feature scaling
	s.fitScaler(X)
	Xs := make([][]float64, n)
	for i, x := range X {
		Xs[i] = s.scale(x)
	}

	s.gamma = gammaScale(Xs)

	// Signed labels and per-sample box constraints (balanced weights)
	classWeight := balancedClassWeights(y)
	ys := make([]float64, n)
	cmax := make([]float64, n)
	for i, label := range y {
		if label == 1 {
			ys[i] = 1
		} else {
			ys[i] = -1
		}
		cmax[i] = s.c * classWeight[label]
	}

	// Precomputed kernel matrix
	K := make([][]float64, n)
	for i := range K {
		K[i] = make([]float64, n)
		for j := 0; j <= i; j++ {
			v := rbf(Xs[i], Xs[j], s.gamma)
			K[i][j] = v
			K[j][i] = v
		}
	}

	alphas := make([]float64, n)
	var b float64
	rng := rand.New(rand.NewSource(s.seed))

	decision := func(i int) float64 {
		var f float64
		for k := 0; k < n; k++ {
			if alphas[k] != 0 {
				f += alphas[k] * ys[k] * K[k][i]
			}
		}
		return f + b
	}

	// Simplified SMO
	passes, iter := 0, 0
	for passes < s.maxPasses && iter < s.maxIter {
		iter++
		changed := 0
		for i := 0; i < n; i++ {
			Ei := decision(i) - ys[i]
			if !((ys[i]*Ei < -s.tol && alphas[i] < cmax[i]) || (ys[i]*Ei > s.tol && alphas[i] > 0)) {
				continue
			}

			j := rng.Intn(n - 1)
			if j >= i {
				j++
			}
			Ej := decision(j) - ys[j]

			aiOld, ajOld := alphas[i], alphas[j]
			var L, H float64
			if ys[i] != ys[j] {
				L = math.Max(0, ajOld-aiOld)
				H = math.Min(cmax[j], cmax[i]+ajOld-aiOld)
			} else {
				L = math.Max(0, aiOld+ajOld-cmax[i])
				H = math.Min(cmax[j], aiOld+ajOld)
			}
			if L >= H {
				continue
			}

			eta := 2*K[i][j] - K[i][i] - K[j][j]
			if eta >= 0 {
				continue
			}

			aj := ajOld - ys[j]*(Ei-Ej)/eta
			if aj > H {
				aj = H
			} else if aj < L {
				aj = L
			}
			if math.Abs(aj-ajOld) < 1e-5 {
				continue
			}

			ai := aiOld + ys[i]*ys[j]*(ajOld-aj)
			alphas[i], alphas[j] = ai, aj

			b1 := b - Ei - ys[i]*(ai-aiOld)*K[i][i] - ys[j]*(aj-ajOld)*K[i][j]
			b2 := b - Ej - ys[i]*(ai-aiOld)*K[i][j] - ys[j]*(aj-ajOld)*K[j][j]
			switch {
			case ai > 0 && ai < cmax[i]:
				b = b1
			case aj > 0 && aj < cmax[j]:
				b = b2
			default:
				b = (b1 + b2) / 2
			}
			changed++
		}

		if changed == 0 {
			passes++
		} else {
			passes = 0
		}
	}

	// Keep only support vectors
	s.supportVecs = s.supportVecs[:0]
	s.supportAlphaY = s.supportAlphaY[:0]
	for i, a := range alphas {
		if a > 1e-8 {
			s.supportVecs = append(s.supportVecs, Xs[i])
			s.supportAlphaY = append(s.supportAlphaY, a*ys[i])
		}
	}
	s.bias = b

	// Platt scaling on the training decision values
	decisions := make([]float64, n)
	for i := range Xs {
		decisions[i] = s.decisionScaled(Xs[i])
	}
	s.plattA, s.plattB = fitPlatt(decisions, y)

	return nil
}

func (s *svmClassifier) PredictProba(X [][]float64) []float64 {
	probs := make([]float64, len(X))
	for i, x := range X {
		f := s.decisionScaled(s.scale(x))
		probs[i] = 1 / (1 + math.Exp(s.plattA*f+s.plattB))
	}
	return probs
}

func (s *svmClassifier) decisionScaled(xs []float64) float64 {
	f := s.bias
	for i, sv := range s.supportVecs {
		f += s.supportAlphaY[i] * rbf(sv, xs, s.gamma)
	}
	return f
}

func (s *svmClassifier) fitScaler(X [][]float64) {
	d := len(X[0])
	n := float64(len(X))

	s.mean = make([]float64, d)
	s.std = make([]float64, d)
	for j := 0; j < d; j++ {
		var sum float64
		for _, x := range X {
			sum += x[j]
		}
		mean := sum / n

		var ss float64
		for _, x := range X {
			diff := x[j] - mean
			ss += diff * diff
		}
		std := math.Sqrt(ss / n)
		if std == 0 {
			std = 1
		}
		s.mean[j] = mean
		s.std[j] = std
	}
}

func (s *svmClassifier) scale(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.mean[j]) / s.std[j]
	}
	return out
}

// gammaScale mirrors the "scale" heuristic: 1 / (d * Var(X)) over all
// entries of the (already standardized) design matrix
func gammaScale(X [][]float64) float64 {
	d := len(X[0])
	var sum, count float64
	for _, x := range X {
		for _, v := range x {
			sum += v
			count++
		}
	}
	mean := sum / count

	var ss float64
	for _, x := range X {
		for _, v := range x {
			diff := v - mean
			ss += diff * diff
		}
	}
	variance := ss / count
	if variance == 0 {
		variance = 1
	}
	return 1 / (float64(d) * variance)
}

func rbf(a, b []float64, gamma float64) float64 {
	var sq float64
	for i := range a {
		diff := a[i] - b[i]
		sq += diff * diff
	}
	return math.Exp(-gamma * sq)
}

// fitPlatt fits the sigmoid P(y=1|f) = 1/(1+exp(A·f+B)) by regularized
// maximum likelihood (Newton iterations with backtracking).
func fitPlatt(decisions []float64, y []int) (float64, float64) {
	n := len(y)
	var prior1 int
	for _, label := range y {
		prior1 += label
	}
	prior0 := n - prior1

	hiTarget := (float64(prior1) + 1) / (float64(prior1) + 2)
	loTarget := 1 / (float64(prior0) + 2)

	target := make([]float64, n)
	for i, label := range y {
		if label == 1 {
			target[i] = hiTarget
		} else {
			target[i] = loTarget
		}
	}

	a := 0.0
	b := math.Log((float64(prior0) + 1) / (float64(prior1) + 1))

	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
	)

	fval := plattObjective(decisions, target, a, b)

	for iter := 0; iter < maxIter; iter++ {
		// Gradient and Hessian
		var h11, h22, h21, g1, g2 float64
		h11, h22 = sigma, sigma
		for i := 0; i < n; i++ {
			fApB := decisions[i]*a + b
			var p, q float64
			if fApB >= 0 {
				p = math.Exp(-fApB) / (1 + math.Exp(-fApB))
				q = 1 / (1 + math.Exp(-fApB))
			} else {
				p = 1 / (1 + math.Exp(fApB))
				q = math.Exp(fApB) / (1 + math.Exp(fApB))
			}
			d2 := p * q
			h11 += decisions[i] * decisions[i] * d2
			h22 += d2
			h21 += decisions[i] * d2
			d1 := target[i] - p
			g1 += decisions[i] * d1
			g2 += d1
		}

		if math.Abs(g1) < 1e-5 && math.Abs(g2) < 1e-5 {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		stepSize := 1.0
		for stepSize >= minStep {
			newA := a + stepSize*dA
			newB := b + stepSize*dB
			newF := plattObjective(decisions, target, newA, newB)
			if newF < fval+1e-4*stepSize*gd {
				a, b, fval = newA, newB, newF
				break
			}
			stepSize /= 2
		}
		if stepSize < minStep {
			break
		}
	}

	return a, b
}

func plattObjective(decisions, target []float64, a, b float64) float64 {
	var fval float64
	for i := range decisions {
		fApB := decisions[i]*a + b
		if fApB >= 0 {
			fval += target[i]*fApB + math.Log(1+math.Exp(-fApB))
		} else {
			fval += (target[i]-1)*fApB + math.Log(1+math.Exp(fApB))
		}
	}
	return fval
}
