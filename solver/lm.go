/*
DESCRIPTION
  lm.go provides the Levenberg-Marquardt optimisation of intrinsics and
  poses, using the Schur complement to eliminate the per-view pose blocks.

AUTHORS
  AusOcean Developers <dev@ausocean.org>

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  It is free software: you can redistribute it and/or modify them
  under the terms of the GNU General Public License as published by the
  Free Software Foundation, either version 3 of the License, or (at your
  option) any later version.

  It is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
  FITNESS FOR A PARTICULAR PURPOSE. See the GNU General Public License
  for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt.  If not, see http://www.gnu.org/licenses.
*/

package solver

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ausocean/camcal/camera"
	"github.com/ausocean/camcal/pattern"
)

// Damping and step settings.
const (
	lambdaInit  = 1e-3
	lambdaMin   = 1e-12
	lambdaMax   = 1e12
	maxTries    = 12 // Damping increases per iteration before giving up.
	poseIter    = 20
	poseEps     = 1e-10
	diffStep    = 1e-6
	poseParams  = 6
	intrinsicsN = 4 // fx, fy, cx, cy.
)

// problem holds the parameters being optimised. Intrinsics are
// [fx fy cx cy coeffs...]; poses are [rx ry rz tx ty tz].
type problem struct {
	obs   []pattern.Observation
	dist  camera.Distortion
	intr  []float64
	poses [][6]float64
	s     *settings

	// recompute and checkCond are the fisheye safeguards.
	recompute bool
	checkCond bool
}

func newProblem(obs []pattern.Observation, d camera.Distortion, s *settings) *problem {
	kb := d == camera.KannalaBrandt
	return &problem{
		obs:       obs,
		dist:      d,
		poses:     make([][6]float64, len(obs)),
		s:         s,
		recompute: kb,
		checkCond: kb,
	}
}

func toParams(p camera.Pose) [6]float64 {
	return [6]float64{p.Rvec.X, p.Rvec.Y, p.Rvec.Z, p.Tvec.X, p.Tvec.Y, p.Tvec.Z}
}

func toPose(p [6]float64) camera.Pose {
	return camera.Pose{
		Rvec: r3.Vector{X: p[0], Y: p[1], Z: p[2]},
		Tvec: r3.Vector{X: p[3], Y: p[4], Z: p[5]},
	}
}

// modelFor returns an uncalibrated model holding the given intrinsics.
func (p *problem) modelFor(intr []float64) *camera.Model {
	m := camera.NewModel(p.dist)
	m.K = camera.NewIntrinsics(intr[0], intr[1], intr[2], intr[3])
	copy(m.Coeffs, intr[intrinsicsN:])
	return m
}

// model returns the current solution.
func (p *problem) model() *camera.Model {
	m := p.modelFor(p.intr)
	m.Poses = make([]camera.Pose, len(p.poses))
	for i, pp := range p.poses {
		m.Poses[i] = toPose(pp)
	}
	return m
}

// residuals writes projected minus observed coordinates for one view into dst.
func (p *problem) residuals(intr []float64, pose [6]float64, o pattern.Observation, dst []float64) {
	rot := camera.Rodrigues(r3.Vector{X: pose[0], Y: pose[1], Z: pose[2]})
	t := r3.Vector{X: pose[3], Y: pose[4], Z: pose[5]}
	fx, fy, cx, cy := intr[0], intr[1], intr[2], intr[3]
	k := intr[intrinsicsN:]
	for i, op := range o.ObjectPoints {
		c := rot.Apply(op).Add(t)
		x, y := p.dist.Distort(c.X/c.Z, c.Y/c.Z, k)
		dst[2*i] = fx*x + cx - o.ImagePoints[i].X
		dst[2*i+1] = fy*y + cy - o.ImagePoints[i].Y
	}
}

func (p *problem) viewCost(intr []float64, pose [6]float64, o pattern.Observation) float64 {
	r := make([]float64, 2*o.Len())
	p.residuals(intr, pose, o, r)
	return floats.Dot(r, r)
}

func (p *problem) cost(intr []float64, poses [][6]float64) float64 {
	var sum float64
	for i, o := range p.obs {
		sum += p.viewCost(intr, poses[i], o)
	}
	return sum
}

// rms returns the RMS reprojection error over all points.
func (p *problem) rms() float64 {
	var n int
	for _, o := range p.obs {
		n += o.Len()
	}
	return math.Sqrt(p.cost(p.intr, p.poses) / float64(n))
}

func step(v float64) float64 { return diffStep * math.Max(1, math.Abs(v)) }

// jacobians returns the residuals of one view and their central difference
// derivatives with respect to the intrinsics and the view's pose.
func (p *problem) jacobians(intr []float64, pose [6]float64, o pattern.Observation) (r []float64, ja, jb *mat.Dense) {
	n := 2 * o.Len()
	r = make([]float64, n)
	p.residuals(intr, pose, o, r)

	plus, minus := make([]float64, n), make([]float64, n)
	ja = mat.NewDense(n, len(intr), nil)
	work := append([]float64(nil), intr...)
	for j := range intr {
		h := step(intr[j])
		work[j] = intr[j] + h
		p.residuals(work, pose, o, plus)
		work[j] = intr[j] - h
		p.residuals(work, pose, o, minus)
		work[j] = intr[j]
		for i := 0; i < n; i++ {
			ja.Set(i, j, (plus[i]-minus[i])/(2*h))
		}
	}

	jb = p.poseJacobian(intr, pose, o, plus, minus)
	return r, ja, jb
}

func (p *problem) poseJacobian(intr []float64, pose [6]float64, o pattern.Observation, plus, minus []float64) *mat.Dense {
	n := 2 * o.Len()
	jb := mat.NewDense(n, poseParams, nil)
	for j := 0; j < poseParams; j++ {
		h := step(pose[j])
		w := pose
		w[j] = pose[j] + h
		p.residuals(intr, w, o, plus)
		w[j] = pose[j] - h
		p.residuals(intr, w, o, minus)
		for i := 0; i < n; i++ {
			jb.Set(i, j, (plus[i]-minus[i])/(2*h))
		}
	}
	return jb
}

// refinePose minimises the reprojection error of one view over its pose
// alone. When conditioning checks are enabled, a view whose pose Jacobian
// has a condition number above condThreshold is rejected.
func (p *problem) refinePose(intr []float64, o pattern.Observation, pose [6]float64) ([6]float64, error) {
	n := 2 * o.Len()
	r := make([]float64, n)
	plus, minus := make([]float64, n), make([]float64, n)
	cost := p.viewCost(intr, pose, o)
	lambda := lambdaInit

	var jb *mat.Dense
	for iter := 0; iter < poseIter; iter++ {
		p.residuals(intr, pose, o, r)
		jb = p.poseJacobian(intr, pose, o, plus, minus)

		var jtj mat.Dense
		jtj.Mul(jb.T(), jb)
		var g mat.VecDense
		g.MulVec(jb.T(), mat.NewVecDense(n, r))

		improved := false
		var delta mat.VecDense
		for try := 0; try < maxTries && lambda < lambdaMax; try++ {
			a := damp(&jtj, lambda)
			var chol mat.Cholesky
			if !chol.Factorize(a) {
				lambda *= 10
				continue
			}
			if err := chol.SolveVecTo(&delta, &g); err != nil {
				lambda *= 10
				continue
			}
			var cand [6]float64
			for j := range cand {
				cand[j] = pose[j] - delta.AtVec(j)
			}
			c := p.viewCost(intr, cand, o)
			if c < cost && !math.IsNaN(c) {
				pose, cost = cand, c
				lambda = math.Max(lambda/10, lambdaMin)
				improved = true
				break
			}
			lambda *= 10
		}
		if !improved || mat.Norm(&delta, 2) < poseEps*(1+norm6(pose)) {
			break
		}
	}

	if p.checkCond {
		jb = p.poseJacobian(intr, pose, o, plus, minus)
		var svd mat.SVD
		if !svd.Factorize(jb, mat.SVDNone) {
			return pose, fmt.Errorf("%w: could not factorise pose jacobian", ErrIllConditioned)
		}
		sv := svd.Values(nil)
		if last := sv[len(sv)-1]; last == 0 || sv[0]/last > condThreshold {
			return pose, fmt.Errorf("%w: condition number %.3g", ErrIllConditioned, sv[0]/last)
		}
	}
	return pose, nil
}

func norm6(v [6]float64) float64 { return floats.Norm(v[:], 2) }

// damp returns a with its diagonal scaled by 1+lambda, as a symmetric matrix.
func damp(a *mat.Dense, lambda float64) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (a.At(i, j) + a.At(j, i)) / 2
			if i == j {
				v += lambda * math.Max(v, 1e-12)
			}
			s.SetSym(i, j, v)
		}
	}
	return s
}

// normal holds the blocks of the normal equations J'J d = -J'r with J
// partitioned into intrinsic and per-view pose columns.
type normal struct {
	u  *mat.Dense      // Intrinsic block.
	ga *mat.VecDense   // Intrinsic gradient.
	v  []*mat.Dense    // Pose blocks.
	w  []*mat.Dense    // Intrinsic-pose cross blocks.
	gb []*mat.VecDense // Pose gradients.
}

func (p *problem) normalEquations() *normal {
	na := len(p.intr)
	ne := &normal{
		u:  mat.NewDense(na, na, nil),
		ga: mat.NewVecDense(na, nil),
		v:  make([]*mat.Dense, len(p.obs)),
		w:  make([]*mat.Dense, len(p.obs)),
		gb: make([]*mat.VecDense, len(p.obs)),
	}
	for i, o := range p.obs {
		r, ja, jb := p.jacobians(p.intr, p.poses[i], o)
		rv := mat.NewVecDense(len(r), r)

		var u mat.Dense
		u.Mul(ja.T(), ja)
		ne.u.Add(ne.u, &u)
		var ga mat.VecDense
		ga.MulVec(ja.T(), rv)
		ne.ga.AddVec(ne.ga, &ga)

		ne.v[i] = new(mat.Dense)
		ne.v[i].Mul(jb.T(), jb)
		ne.w[i] = new(mat.Dense)
		ne.w[i].Mul(ja.T(), jb)
		ne.gb[i] = new(mat.VecDense)
		ne.gb[i].MulVec(jb.T(), rv)
	}
	return ne
}

// solve returns the damped step for the intrinsics and every pose, or false
// if a damped block could not be factorised.
func (ne *normal) solve(lambda float64) ([]float64, [][6]float64, bool) {
	na, _ := ne.u.Dims()
	s := mat.DenseCopyOf(damp(ne.u, lambda))
	rhs := mat.VecDenseCopyOf(ne.ga)
	rhs.ScaleVec(-1, rhs)

	xs := make([]*mat.Dense, len(ne.v))
	ys := make([]*mat.VecDense, len(ne.v))
	for i := range ne.v {
		var chol mat.Cholesky
		if !chol.Factorize(damp(ne.v[i], lambda)) {
			return nil, nil, false
		}
		// x = V^-1 W', y = V^-1 gb.
		xs[i], ys[i] = new(mat.Dense), new(mat.VecDense)
		if err := chol.SolveTo(xs[i], ne.w[i].T()); err != nil {
			return nil, nil, false
		}
		if err := chol.SolveVecTo(ys[i], ne.gb[i]); err != nil {
			return nil, nil, false
		}

		var wx mat.Dense
		wx.Mul(ne.w[i], xs[i])
		s.Sub(s, &wx)
		var wy mat.VecDense
		wy.MulVec(ne.w[i], ys[i])
		rhs.AddVec(rhs, &wy)
	}

	var chol mat.Cholesky
	if !chol.Factorize(damp(s, 0)) {
		return nil, nil, false
	}
	da := mat.NewVecDense(na, nil)
	if err := chol.SolveVecTo(da, rhs); err != nil {
		return nil, nil, false
	}

	db := make([][6]float64, len(ne.v))
	for i := range ne.v {
		// db = -y - x da.
		var xd mat.VecDense
		xd.MulVec(xs[i], da)
		for j := 0; j < poseParams; j++ {
			db[i][j] = -ys[i].AtVec(j) - xd.AtVec(j)
		}
	}
	return da.RawVector().Data, db, true
}

// optimise runs Levenberg-Marquardt until the relative intrinsic change
// falls below the epsilon, no step reduces the cost, or the iteration limit
// is reached.
func (p *problem) optimise() error {
	cost := p.cost(p.intr, p.poses)
	lambda := lambdaInit

	for iter := 0; iter < p.s.maxIter; iter++ {
		ne := p.normalEquations()

		improved := false
		var change float64
		for try := 0; try < maxTries && lambda < lambdaMax; try++ {
			da, db, ok := ne.solve(lambda)
			if !ok {
				lambda *= 10
				continue
			}

			intr := make([]float64, len(p.intr))
			floats.AddTo(intr, p.intr, da)
			poses := make([][6]float64, len(p.poses))
			if p.recompute {
				for i, o := range p.obs {
					pose, err := p.refinePose(intr, o, p.poses[i])
					if err != nil {
						return fmt.Errorf("view %d: %w", i, err)
					}
					poses[i] = pose
				}
			} else {
				for i := range poses {
					for j := range poses[i] {
						poses[i][j] = p.poses[i][j] + db[i][j]
					}
				}
			}

			c := p.cost(intr, poses)
			if c < cost && !math.IsNaN(c) {
				change = floats.Norm(da, 2) / math.Max(floats.Norm(intr, 2), math.SmallestNonzeroFloat64)
				p.intr, p.poses, cost = intr, poses, c
				lambda = math.Max(lambda/10, lambdaMin)
				improved = true
				break
			}
			lambda *= 10
		}

		p.s.log.Debug("solver iteration", "iteration", iter, "cost", cost, "lambda", lambda, "change", change)
		if !improved || change < p.s.eps {
			break
		}
	}
	return nil
}
