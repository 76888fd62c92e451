// Package irt implements the two-parameter logistic (2PL) item response model
// used to track learner ability and item difficulty.
//
// Every function is pure. Bounds on theta, difficulty and confidence are
// enforced here so callers never have to clamp results themselves.
package irt

import "math"

const (
	MinTheta = -3.0
	MaxTheta = 3.0

	MinDifficulty = 0.5
	MaxDifficulty = 4.5

	MinConfidence = 1.0
	MaxConfidence = 3.0

	DefaultDiscrimination         = 1.0
	DefaultThetaLearningRate      = 0.1
	DefaultDifficultyLearningRate = 0.05
	DefaultTargetProbability      = 0.7

	// probabilityEpsilon keeps target probabilities inside (0,1) so the
	// logit in EstimateOptimalDifficulty stays finite.
	probabilityEpsilon = 1e-6

	// confidenceAttemptsScale is the number of attempts that raises
	// confidence by one unit.
	confidenceAttemptsScale = 10.0

	// discriminationPerConfidence is how much each unit of confidence above
	// the minimum sharpens the item discrimination used for theta updates.
	discriminationPerConfidence = 0.2
)

// Response is a single observed answer to an item, paired with the
// learner's ability at the time the answer was given.
type Response struct {
	Correct bool
	Theta   float64
}

// ProbabilityCorrect returns the 2PL probability that a learner with ability
// theta answers an item of the given difficulty correctly.
func ProbabilityCorrect(theta, difficulty, discrimination float64) float64 {
	return sigmoid(discrimination * (theta - difficulty))
}

// UpdateTheta moves theta toward the observed outcome. The step is scaled by
// (1 + p(1-p)), so responses the model was least sure about move theta the most.
func UpdateTheta(theta, difficulty float64, correct bool, learningRate, discrimination float64) float64 {
	p := ProbabilityCorrect(theta, difficulty, discrimination)
	err := outcome(correct) - p
	information := p * (1 - p)
	return ClampTheta(theta + learningRate*err*(1+information))
}

// UpdateDifficulty recalibrates an item's difficulty from a batch of
// responses. The prediction errors are weighted by item information; when
// the batch carries no information at all the plain mean error is used.
func UpdateDifficulty(difficulty float64, responses []Response, learningRate, discrimination float64) float64 {
	if len(responses) == 0 {
		return difficulty
	}

	var weightedErr, totalInformation, plainErr float64
	for _, r := range responses {
		p := ProbabilityCorrect(r.Theta, difficulty, discrimination)
		err := outcome(r.Correct) - p
		information := p * (1 - p)
		weightedErr += err * information
		totalInformation += information
		plainErr += err
	}

	var normalized float64
	if totalInformation > 0 {
		normalized = weightedErr / totalInformation
	} else {
		normalized = plainErr / float64(len(responses))
	}

	return ClampDifficulty(difficulty - learningRate*normalized)
}

// EstimateOptimalDifficulty inverts the 2PL curve: it returns the difficulty
// at which a learner with ability theta answers correctly with
// targetProbability. targetProbability is clamped into the open interval
// (0,1); a non-positive discrimination is replaced by the default.
func EstimateOptimalDifficulty(theta, targetProbability, discrimination float64) float64 {
	p := clamp(targetProbability, probabilityEpsilon, 1-probabilityEpsilon)
	if discrimination <= 0 || math.IsNaN(discrimination) {
		discrimination = DefaultDiscrimination
	}
	return ClampDifficulty(theta + (1/discrimination)*math.Log((1-p)/p))
}

// AdaptiveLearningRate speeds learning up when recent performance is
// lopsided and slows it down near a 50% correct ratio.
func AdaptiveLearningRate(baseRate, correctRatio float64) float64 {
	r := clamp(correctRatio, 0, 1)
	return baseRate * (1 + 2*math.Abs(r-0.5))
}

// Confidence grows linearly with the number of attempts and saturates at
// MaxConfidence.
func Confidence(totalAttempts int) float64 {
	if totalAttempts < 0 {
		totalAttempts = 0
	}
	return math.Min(MaxConfidence, MinConfidence+float64(totalAttempts)/confidenceAttemptsScale)
}

// DiscriminationFromConfidence nudges the discrimination used for a theta
// update upward as confidence in the estimate grows.
func DiscriminationFromConfidence(confidence float64) float64 {
	c := clamp(confidence, MinConfidence, MaxConfidence)
	return DefaultDiscrimination + (c-MinConfidence)*discriminationPerConfidence
}

// ClampTheta bounds theta to [MinTheta, MaxTheta].
func ClampTheta(theta float64) float64 {
	return clamp(theta, MinTheta, MaxTheta)
}

// ClampDifficulty bounds difficulty to [MinDifficulty, MaxDifficulty].
func ClampDifficulty(difficulty float64) float64 {
	return clamp(difficulty, MinDifficulty, MaxDifficulty)
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func outcome(correct bool) float64 {
	if correct {
		return 1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
