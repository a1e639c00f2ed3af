package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilitySet_Covers(t *testing.T) {
	worker := NewCapabilitySet(CapabilityWebSearch, CapabilityRegistryLookup)

	assert.True(t, worker.Covers(NewCapabilitySet(CapabilityRegistryLookup)))
	assert.True(t, worker.Covers(NewCapabilitySet()))
	assert.False(t, worker.Covers(NewCapabilitySet(CapabilityProfessionalNetwork)))
	assert.Equal(t, []CapabilityKind{CapabilityExtensionReserved},
		worker.Missing(NewCapabilitySet(CapabilityExtensionReserved, CapabilityWebSearch)))
	assert.Equal(t, "{registry-lookup,web-search}", worker.String())
}

func TestCapabilitySet_MarshalJSON(t *testing.T) {
	b, err := NewCapabilitySet(CapabilityWebSearch, CapabilityRegistryLookup).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["registry-lookup","web-search"]`, string(b))
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewCapabilityError(ErrorKindNotFound, CapabilityRegistryLookup, "get_company_profile", errors.New("404")))

	assert.Equal(t, ErrorKindNotFound, KindOf(wrapped))
	assert.Equal(t, ErrorKindCancelled, KindOf(context.Canceled))
	assert.Equal(t, ErrorKindTransient, KindOf(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	assert.Equal(t, ErrorKindFatal, KindOf(errors.New("boom")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.True(t, ErrorKindTransient.Retryable())
	assert.False(t, ErrorKindNotFound.Retryable())
}

func TestCapabilityError_Message(t *testing.T) {
	err := NewCapabilityError(ErrorKindFatal, CapabilityRegistryLookup, "search_companies", errors.New("authentication failed"))
	assert.Equal(t, "registry-lookup search_companies [fatal]: authentication failed", err.Error())

	se := NewSectionError(err)
	require.NotNil(t, se)
	assert.Equal(t, ErrorKindFatal, se.Kind)
	assert.Nil(t, NewSectionError(nil))
}

func TestNewResearchRequest(t *testing.T) {
	req, err := NewResearchRequest("  Acme Ltd ", "", []string{"Leadership", "leadership", " ", "Financials"}, "")
	require.NoError(t, err)

	assert.Equal(t, "Acme Ltd", req.SubjectName)
	assert.Equal(t, []string{"Leadership", "Financials"}, req.FocusAreas)
	assert.NotEmpty(t, req.SessionID)
	assert.True(t, req.HasFocusAreas())

	_, err = NewResearchRequest("   ", "", nil, "s1")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestOverallStatus_Downgrade(t *testing.T) {
	assert.Equal(t, OverallPartial, OverallComplete.Downgrade())
	assert.Equal(t, OverallFailed, OverallPartial.Downgrade())
	assert.Equal(t, OverallFailed, OverallFailed.Downgrade())
}

func TestPayload_Clone(t *testing.T) {
	p := Payload{"officers": []any{"a"}}
	c := p.Clone()
	c["extra"] = true
	assert.NotContains(t, p, "extra")
	assert.Nil(t, Payload(nil).Clone())
}

func TestKindForHTTPStatus(t *testing.T) {
	assert.Equal(t, ErrorKindNotFound, KindForHTTPStatus(404))
	assert.Equal(t, ErrorKindFatal, KindForHTTPStatus(401))
	assert.Equal(t, ErrorKindFatal, KindForHTTPStatus(403))
	assert.Equal(t, ErrorKindTransient, KindForHTTPStatus(429))
	assert.Equal(t, ErrorKindTransient, KindForHTTPStatus(503))
	assert.Equal(t, ErrorKindInvalidInput, KindForHTTPStatus(400))
	assert.Equal(t, ErrorKind(""), KindForHTTPStatus(200))
}

func TestParseCapabilityKind(t *testing.T) {
	k, err := ParseCapabilityKind(" Web_Search ")
	require.NoError(t, err)
	assert.Equal(t, CapabilityWebSearch, k)

	_, err = ParseCapabilityKind("telepathy")
	assert.Error(t, err)
}
