package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributesFloat(t *testing.T) {
	tests := map[string]struct {
		attrs     Attributes
		expected  float64
		ok        bool
		malformed bool
	}{
		"float64":     {attrs: Attributes{"k": 12.5}, expected: 12.5, ok: true},
		"int":         {attrs: Attributes{"k": 7}, expected: 7, ok: true},
		"int64":       {attrs: Attributes{"k": int64(9)}, expected: 9, ok: true},
		"json number": {attrs: Attributes{"k": json.Number("3.25")}, expected: 3.25, ok: true},
		"absent":      {attrs: Attributes{}, ok: false},
		"nil map":     {attrs: nil, ok: false},
		"nil value":   {attrs: Attributes{"k": nil}, ok: false},
		"string":      {attrs: Attributes{"k": "high"}, malformed: true},
		"bad number":  {attrs: Attributes{"k": json.Number("x")}, malformed: true},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			v, ok, err := test.attrs.Float("k")
			if test.malformed {
				assert.ErrorIs(t, err, ErrMalformedAttribute)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.ok, ok)
			assert.Equal(t, test.expected, v)
		})
	}
}

func TestAttributesInt(t *testing.T) {
	tests := map[string]struct {
		value     any
		expected  int64
		malformed bool
	}{
		"int":           {value: 3, expected: 3},
		"whole float":   {value: 2.0, expected: 2},
		"json number":   {value: json.Number("1"), expected: 1},
		"fraction":      {value: 1.9, malformed: true},
		"json fraction": {value: json.Number("1.5"), malformed: true},
		"string":        {value: "1", malformed: true},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			v, ok, err := Attributes{"k": test.value}.Int("k")
			if test.malformed {
				assert.ErrorIs(t, err, ErrMalformedAttribute)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, test.expected, v)
		})
	}
}

func TestAttributesBool(t *testing.T) {
	tests := map[string]struct {
		value     any
		expected  bool
		malformed bool
	}{
		"true":   {value: true, expected: true},
		"false":  {value: false, expected: false},
		"one":    {value: 1, expected: true},
		"zero":   {value: json.Number("0"), expected: false},
		"two":    {value: 2, malformed: true},
		"string": {value: "on", malformed: true},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			v, ok, err := Attributes{"k": test.value}.Bool("k")
			if test.malformed {
				assert.ErrorIs(t, err, ErrMalformedAttribute)
				return
			}
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, test.expected, v)
		})
	}
}

func TestAttributesFallbacks(t *testing.T) {
	a := Attributes{"good": 42.0, "bad": "x", "flag": "yes"}

	assert.Equal(t, 42.0, a.FloatOr("good", 1))
	assert.Equal(t, 1.0, a.FloatOr("bad", 1))
	assert.Equal(t, 1.0, a.FloatOr("missing", 1))
	assert.True(t, a.BoolOr("flag", true))
	assert.False(t, a.BoolOr("missing", false))
}

func TestDeviceLimits(t *testing.T) {
	d := Device{}
	assert.Equal(t, DefaultSpeedLimit, d.SpeedLimit())
	assert.Equal(t, DefaultSlopeLimit, d.SlopeLimit())

	d.Attributes = Attributes{AttrSpeedLimit: 90, AttrSlopeLimit: "steep"}
	assert.Equal(t, 90.0, d.SpeedLimit())
	assert.Equal(t, DefaultSlopeLimit, d.SlopeLimit())
}

func TestTripConfigForDevice(t *testing.T) {
	d := &Device{Attributes: Attributes{
		AttrMinimalStreak:          3,
		AttrMinimalTripDuration:    120,
		AttrMinimalParkingDuration: json.Number("600"),
		AttrUseIgnition:            true,
	}}

	cfg := DefaultTripConfig.ForDevice(d)
	assert.Equal(t, 3, cfg.MinimalStreak)
	assert.Equal(t, 120.0, cfg.MinimalTripDuration.Seconds())
	assert.Equal(t, DefaultTripConfig.MinimalTripDistance, cfg.MinimalTripDistance)
	assert.Equal(t, 600.0, cfg.MinimalParkingDuration.Seconds())
	assert.True(t, cfg.UseIgnition)

	assert.Equal(t, DefaultTripConfig, DefaultTripConfig.ForDevice(&Device{}))
}

func TestKphFromKnots(t *testing.T) {
	assert.InDelta(t, 185.2, KphFromKnots(100), 1e-9)
	assert.Zero(t, KphFromKnots(0))
}

func TestMotionStateRoundTrip(t *testing.T) {
	d := &Device{ID: 4, MotionState: "garbage", MotionStreak: 6}
	m := MotionFromDevice(d)
	assert.Equal(t, MotionStopped, m.State)
	assert.False(t, m.RunMoving)
	assert.Equal(t, 6, m.Streak)

	m.State = MotionMoving
	m.Distance = 812
	u := m.ToDevice(d)
	assert.Equal(t, int64(4), u.DeviceID)
	assert.Equal(t, MotionFields, u.Fields)
	assert.Equal(t, "moving", u.Values[FieldMotionState])
	assert.Equal(t, MotionMoving, d.MotionState)
	assert.Equal(t, 812.0, d.MotionDistance)
}
