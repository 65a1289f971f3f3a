package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vendorkyc/pkg/domain"
	dErrors "vendorkyc/pkg/domain-errors"
)

func TestStatusTransitions(t *testing.T) {
	allowed := map[RecordStatus][]RecordStatus{
		StatusPending:    {StatusProcessing},
		StatusProcessing: {StatusApproved, StatusRejected},
	}
	all := []RecordStatus{StatusPending, StatusProcessing, StatusApproved, StatusRejected}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, StatusApproved.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
}

func TestParseInputs(t *testing.T) {
	idType, err := ParseIDType(" Voter_ID ")
	require.NoError(t, err)
	assert.Equal(t, IDTypeVoterID, idType)

	_, err = ParseIDType("library_card")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	kind, err := ParseImageKind("SELFIE")
	require.NoError(t, err)
	assert.Equal(t, "kyc_selfie", kind.Purpose())
	assert.Equal(t, "kyc_document_front", ImageFront.Purpose())

	_, err = ParseImageKind("portrait")
	assert.Error(t, err)
}

func TestSubmissionValidate(t *testing.T) {
	dob := time.Date(1985, 7, 1, 0, 0, 0, 0, time.UTC)
	valid := Submission{IDType: IDTypePassport, IDNumber: "G123", FullName: "Kofi Boateng", DateOfBirth: &dob}
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Submission){
		"id type":       func(s *Submission) { s.IDType = "" },
		"blank id":      func(s *Submission) { s.IDNumber = "   " },
		"name":          func(s *Submission) { s.FullName = "" },
		"date of birth": func(s *Submission) { s.DateOfBirth = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			sub := valid
			mutate(&sub)
			assert.True(t, dErrors.HasCode(sub.Validate(), dErrors.CodeInvalidSubmission))
		})
	}
}

func TestOverrideValidate(t *testing.T) {
	assert.NoError(t, Override{Reviewer: "r1", Action: OverrideAnnotate}.Validate())
	assert.NoError(t, Override{Reviewer: "r1", Action: OverrideReject, Note: "fake"}.Validate())
	assert.Error(t, Override{Reviewer: "r1", Action: OverrideReject}.Validate(), "reject needs a note")
	assert.Error(t, Override{Action: OverrideAnnotate}.Validate(), "reviewer required")
	assert.Error(t, Override{Reviewer: "r1", Action: "approve"}.Validate())
}

func TestNormalizeIDNumber(t *testing.T) {
	assert.Equal(t, "GHA-123456789-0", NormalizeIDNumber(" gha-123 456 789-0\t"))
	assert.Equal(t, "", NormalizeIDNumber("   "))
}

func TestAccountGrant(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rid := id.RecordID(uuid.New())
	grant := PromotionalGrant{RecordID: rid, Tier: "premium_trial", ExpiresAt: now.Add(30 * 24 * time.Hour)}
	acct := &Account{Tier: TierFree}

	assert.True(t, acct.ApplyGrant(grant, now))
	assert.Equal(t, "premium_trial", acct.Tier)

	// replaying the same grant later must not extend the trial
	again := grant
	again.ExpiresAt = now.Add(60 * 24 * time.Hour)
	assert.False(t, acct.ApplyGrant(again, now.Add(time.Hour)))
	assert.Equal(t, grant.ExpiresAt, *acct.PromotionalExpiresAt)
}

func TestTrialEndingWithin(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	exp := now.Add(24 * time.Hour)
	acct := &Account{PromotionalExpiresAt: &exp}

	assert.True(t, acct.TrialEndingWithin(now, 48*time.Hour))
	assert.False(t, acct.TrialEndingWithin(now, 12*time.Hour), "outside the lead window")
	assert.False(t, acct.TrialEndingWithin(exp, 48*time.Hour), "already expired")

	acct.ReminderSent = true
	assert.False(t, acct.TrialEndingWithin(now, 48*time.Hour))
	assert.False(t, (&Account{}).TrialEndingWithin(now, 48*time.Hour))
}
