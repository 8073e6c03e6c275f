package validation

import (
	"errors"
	"testing"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Title string  `json:"title" validate:"notblank,max=10"`
	Lat   float64 `json:"lat" validate:"gte=-90,lte=90"`
	Kind  string  `json:"kind,omitempty" validate:"omitempty,oneof=a b"`
	Note  string  `validate:"min=2"`
}

func TestValidateStruct_OK(t *testing.T) {
	assert.NoError(t, ValidateStruct(&point{Title: "gate", Lat: 52.5, Note: "ok"}))
}

func TestValidateStruct_Fields(t *testing.T) {
	err := ValidateStruct(&point{Title: "  ", Lat: 91, Kind: "c", Note: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))

	var verr *Error
	require.ErrorAs(t, err, &verr)
	got := map[string]string{}
	for _, f := range verr.Fields {
		got[f.Field] = f.Message
	}
	assert.Equal(t, map[string]string{
		"title": "title must not be blank",
		"lat":   "lat must be less than or equal to 90",
		"kind":  "kind must be one of: a b",
		"Note":  "Note must be at least 2 characters",
	}, got)
	assert.Contains(t, err.Error(), "lat must be less than or equal to 90")
}

func TestValidateStruct_MaxLength(t *testing.T) {
	err := ValidateStruct(&point{Title: "a very long title", Note: "ok"})
	assert.EqualError(t, err, "title must be at most 10 characters")
}

func TestValidateStruct_NotAStruct(t *testing.T) {
	err := ValidateStruct(42)
	assert.ErrorIs(t, err, common.ErrValidation)
}
