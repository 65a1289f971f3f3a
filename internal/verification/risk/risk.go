// Package risk fuses the check results into a single score and a
// human-readable recommendation.
//
// Risk is the mean of the penalty terms that fired, not of every possible
// term, so one severe failure scores the same on its own as it would next to
// other passing signals. When nothing fires the score is a small floor.
package risk

import (
	"strings"

	"vendorkyc/internal/verification/authenticity"
	"vendorkyc/internal/verification/biometric"
	"vendorkyc/internal/verification/liveness"
)

// Penalty weights.
const (
	PenaltyAuthenticityInvalid = 0.5
	PenaltyAuthenticityLow     = 0.3
	PenaltyNoMatch             = 0.6
	PenaltyWeakMatch           = 0.2
	PenaltyLivenessFailed      = 0.7
	PenaltyIDNumber            = 0.4

	// Floor is the residual risk when no penalty fires.
	Floor = 0.1
)

const (
	authenticityLowConfidence = 70.0
	strongMatchScore          = 0.8
	minIDNumberLength         = 6
)

// Penalty names.
const (
	TermAuthenticity = "authenticity"
	TermMatch        = "face_match"
	TermLiveness     = "liveness"
	TermIDNumber     = "id_number"
	TermDuplicate    = "duplicate_identity"
)

const (
	MsgAllPassed            = "all checks passed"
	MsgAuthenticityInvalid  = "document could not be verified as authentic"
	MsgAuthenticityLow      = "document text is hard to read, upload a clearer photo"
	MsgNoMatch              = "selfie does not match the document photo"
	MsgNoComparator         = "face comparison unavailable"
	MsgNoFaceDetected       = "no face detected, retake the selfie facing the camera"
	MsgLivenessFailed       = "selfie failed liveness checks"
	MsgLowMatchConfidence   = "low match confidence, retake in better lighting"
	MsgIDNumberImplausible  = "id number is missing or too short"
	MsgDuplicateIdentity    = "this ID is already linked to another registered account"
	recommendationSeparator = "; "
)

type Input struct {
	Authenticity authenticity.Result
	Biometric    biometric.Result
	Liveness     liveness.Result
	IDNumber     string
}

type Penalty struct {
	Term  string  `json:"term"`
	Value float64 `json:"value"`
}

type Assessment struct {
	Risk           float64   `json:"risk"`
	Recommendation string    `json:"recommendation"`
	Penalties      []Penalty `json:"penalties"`
}

// Score is deterministic for a given input.
func Score(in Input) Assessment {
	var penalties []Penalty
	var messages []string
	weakMatch := false

	switch {
	case !in.Authenticity.IsValid:
		penalties = append(penalties, Penalty{TermAuthenticity, PenaltyAuthenticityInvalid})
		messages = append(messages, MsgAuthenticityInvalid)
	case in.Authenticity.Confidence < authenticityLowConfidence:
		penalties = append(penalties, Penalty{TermAuthenticity, PenaltyAuthenticityLow})
		messages = append(messages, MsgAuthenticityLow)
	}

	switch {
	case !in.Biometric.IsMatch:
		penalties = append(penalties, Penalty{TermMatch, PenaltyNoMatch})
		switch {
		case in.Biometric.NoFace:
			messages = append(messages, MsgNoFaceDetected)
		case in.Biometric.NoComparator:
			messages = append(messages, MsgNoComparator)
		default:
			messages = append(messages, MsgNoMatch)
		}
	case in.Biometric.AggregateScore < strongMatchScore:
		penalties = append(penalties, Penalty{TermMatch, PenaltyWeakMatch})
		weakMatch = true
	}

	if !in.Liveness.IsLive {
		penalties = append(penalties, Penalty{TermLiveness, PenaltyLivenessFailed})
		messages = append(messages, MsgLivenessFailed)
	}

	if weakMatch {
		messages = append(messages, MsgLowMatchConfidence)
	}

	if len([]rune(strings.TrimSpace(in.IDNumber))) < minIDNumberLength {
		penalties = append(penalties, Penalty{TermIDNumber, PenaltyIDNumber})
		messages = append(messages, MsgIDNumberImplausible)
	}

	a := Assessment{Risk: Floor, Recommendation: MsgAllPassed, Penalties: penalties}
	if len(penalties) > 0 {
		var sum float64
		for _, p := range penalties {
			sum += p.Value
		}
		a.Risk = sum / float64(len(penalties))
	}
	if len(messages) > 0 {
		a.Recommendation = strings.Join(messages, recommendationSeparator)
	}
	return a
}

// DuplicateAssessment is the terminal result for an id number already
// approved on another account.
func DuplicateAssessment() Assessment {
	return Assessment{
		Risk:           1.0,
		Recommendation: MsgDuplicateIdentity,
		Penalties:      []Penalty{{TermDuplicate, 1.0}},
	}
}
