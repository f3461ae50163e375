package validators

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStartRequest() *StartSessionRequest {
	return &StartSessionRequest{
		Reason:          "Walking home",
		DurationMinutes: 30,
		Recipients: []ContactRequest{
			{Name: "Alice", Phone: "+15555550100"},
		},
	}
}

func TestValidateStartSessionAccepts(t *testing.T) {
	assert.Empty(t, ValidateStartSession(validStartRequest()))
}

func TestValidateStartSessionRequiresRecipients(t *testing.T) {
	req := validStartRequest()
	req.Recipients = nil

	errs := ValidateStartSession(req)
	require.NotEmpty(t, errs)
	assert.Equal(t, "Recipients", errs[0].Field)
}

func TestValidateStartSessionCapsRecipients(t *testing.T) {
	req := validStartRequest()
	for i := 0; i < 11; i++ {
		req.Recipients = append(req.Recipients, ContactRequest{Name: "Extra", Phone: "+15555550101"})
	}

	assert.NotEmpty(t, ValidateStartSession(req))
}

func TestValidateStartSessionRejectsUnreachableRecipient(t *testing.T) {
	req := validStartRequest()
	req.Recipients = []ContactRequest{{Name: "Bob"}}

	errs := ValidateStartSession(req)
	require.NotEmpty(t, errs)

	found := false
	for _, e := range errs {
		if e.Tag == "reachable" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateStartSessionRejectsBadPhone(t *testing.T) {
	req := validStartRequest()
	req.Recipients[0].Phone = "not-a-phone"

	errs := ValidateStartSession(req)
	require.NotEmpty(t, errs)
	assert.Equal(t, "phone_number", errs[0].Tag)
}

func TestValidateStartSessionRejectsLongReason(t *testing.T) {
	req := validStartRequest()
	req.Reason = strings.Repeat("x", 200)

	assert.NotEmpty(t, ValidateStartSession(req))
}

func TestValidateStartSessionRejectsDurationOutOfRange(t *testing.T) {
	req := validStartRequest()
	req.DurationMinutes = 2000

	errs := ValidateStartSession(req)
	require.NotEmpty(t, errs)
	assert.Equal(t, "DurationMinutes", errs[0].Field)
}

func TestValidateExtendSession(t *testing.T) {
	assert.Empty(t, ValidateExtendSession(&ExtendSessionRequest{DurationMinutes: 30}))
	assert.Empty(t, ValidateExtendSession(&ExtendSessionRequest{}))
	assert.NotEmpty(t, ValidateExtendSession(&ExtendSessionRequest{DurationMinutes: 5000}))
}

func TestValidatePinRequests(t *testing.T) {
	assert.Empty(t, ValidateStruct(&SetPinRequest{Pin: "1234"}))
	assert.Empty(t, ValidateStruct(&SetPinRequest{Pin: "123456"}))
	assert.NotEmpty(t, ValidateStruct(&SetPinRequest{Pin: "123"}))
	assert.NotEmpty(t, ValidateStruct(&SetPinRequest{Pin: "1234567"}))
	assert.NotEmpty(t, ValidateStruct(&SetPinRequest{Pin: "12ab"}))
	assert.NotEmpty(t, ValidateStruct(&SetPinRequest{}))
}

func TestValidateTelemetry(t *testing.T) {
	assert.Empty(t, ValidateTelemetry(&TelemetryRequest{
		Latitude:  37.4219,
		Longitude: -122.0840,
		Battery:   50,
	}))

	assert.NotEmpty(t, ValidateTelemetry(&TelemetryRequest{
		Latitude:  95,
		Longitude: 0,
		Battery:   50,
	}))

	assert.NotEmpty(t, ValidateTelemetry(&TelemetryRequest{
		Latitude:  0,
		Longitude: -200,
		Battery:   50,
	}))

	assert.NotEmpty(t, ValidateTelemetry(&TelemetryRequest{
		Latitude:  0,
		Longitude: 0,
		Battery:   120,
	}))
}
