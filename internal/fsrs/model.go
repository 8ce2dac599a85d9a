package fsrs

import "math"

const (
	minStability  = 0.001
	minDifficulty = 1.0
	maxDifficulty = 10.0
)

// curve returns the decay exponent and the factor that makes R(S, S) = 0.9.
func (p *Params) curve() (decay, factor float64) {
	decay = -p.W[20]
	factor = math.Pow(0.9, 1/decay) - 1
	return decay, factor
}

// retrievability is the forgetting curve: R(t, S) = (1 + factor * t / S) ^ decay.
func (p *Params) retrievability(elapsedDays, stability float64) float64 {
	decay, factor := p.curve()
	return math.Pow(1+factor*elapsedDays/stability, decay)
}

// initStability seeds the stability of a card's first review: S0(G) = w[G-1].
func (p *Params) initStability(r Rating) float64 {
	return clampStability(p.W[r-1])
}

// initDifficulty seeds the difficulty of a card's first review.
// D0(G) = w[4] - e^(w[5] * (G - 1)) + 1
func (p *Params) initDifficulty(r Rating) float64 {
	return p.W[4] - math.Exp(p.W[5]*float64(r-1)) + 1
}

// nextDifficulty blends the previous difficulty with a rating-dependent delta,
// damped as it approaches the upper bound and reverted towards D0(Easy).
// D' = D + (10 - D) * (-w[6] * (G - 3)) / 9
// D'' = w[7] * D0(Easy) + (1 - w[7]) * D'
func (p *Params) nextDifficulty(d float64, r Rating) float64 {
	delta := -p.W[6] * (float64(r) - 3)
	damped := d + (maxDifficulty-d)*delta/9
	reverted := p.W[7]*p.initDifficulty(Easy) + (1-p.W[7])*damped
	return clampDifficulty(reverted)
}

// recallStability applies the spacing-effect growth after a successful review.
// S' = S * (1 + e^w[8] * (11 - D) * S^(-w[9]) * (e^((1 - R) * w[10]) - 1) * hard * easy)
func (p *Params) recallStability(d, s, r float64, rating Rating) float64 {
	hardPenalty, easyBonus := 1.0, 1.0
	switch rating {
	case Hard:
		hardPenalty = p.W[15]
	case Easy:
		easyBonus = p.W[16]
	}
	growth := math.Exp(p.W[8]) *
		(11 - d) *
		math.Pow(s, -p.W[9]) *
		(math.Exp((1-r)*p.W[10]) - 1) *
		hardPenalty * easyBonus
	return clampStability(s * (1 + growth))
}

// forgetStability is the post-lapse stability. It never exceeds the short-term
// bound S / e^(w[17] * w[18]), so a lapse always shrinks stability.
// S' = min(w[11] * D^(-w[12]) * ((S + 1)^w[13] - 1) * e^((1 - R) * w[14]), S / e^(w[17] * w[18]))
func (p *Params) forgetStability(d, s, r float64) float64 {
	long := p.W[11] *
		math.Pow(d, -p.W[12]) *
		(math.Pow(s+1, p.W[13]) - 1) *
		math.Exp((1-r)*p.W[14])
	short := s / math.Exp(p.W[17]*p.W[18])
	return clampStability(math.Min(long, short))
}

// shortTermStability handles a same-day review, where the forgetting curve has
// not had time to act.
// S' = S * e^(w[17] * (G - 3 + w[18])) * S^(-w[19])
func (p *Params) shortTermStability(s float64, r Rating) float64 {
	inc := math.Exp(p.W[17]*(float64(r)-3+p.W[18])) * math.Pow(s, -p.W[19])
	if r >= Good {
		inc = math.Max(inc, 1)
	}
	return clampStability(s * inc)
}

// nextInterval converts stability into whole days such that R(interval, S)
// equals the desired retention.
func (p *Params) nextInterval(stability float64) int {
	decay, factor := p.curve()
	ivl := stability / factor * (math.Pow(p.DesiredRetention, 1/decay) - 1)
	days := int(math.Round(ivl))
	return min(max(days, 1), p.MaximumInterval)
}

func clampStability(s float64) float64 {
	return math.Max(s, minStability)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, minDifficulty), maxDifficulty)
}
