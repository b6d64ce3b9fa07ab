package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type lotInput struct {
	LotNumber   string  `json:"lot_number" validate:"required"`
	ReceivedMg  float64 `json:"received_mg" validate:"gte=0"`
	AvailableMg float64 `json:"available_mg" validate:"gte=0,ltefield=ReceivedMg"`
}

func TestValidatorReportsJSONFieldNames(t *testing.T) {
	v := NewValidator()
	err := v.Struct(lotInput{ReceivedMg: 10, AvailableMg: 20})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Rule
	}
	require.Equal(t, "required", fields["lot_number"])
	require.Equal(t, "ltefield", fields["available_mg"])

	require.NoError(t, v.Struct(lotInput{LotNumber: "L-1", ReceivedMg: 10, AvailableMg: 10}))
}

func TestErrorConstructorsWrapSentinels(t *testing.T) {
	require.ErrorIs(t, Invalidf("quantity %d", 1), ErrValidation)
	require.ErrorIs(t, NotFoundf("lot %d", 1), ErrNotFound)
	require.ErrorIs(t, Protectedf("supplier %d", 1), ErrProtected)
	require.Equal(t, "validation failed: quantity must be positive", Invalidf("quantity must be positive").Error())
}
