package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name   string
		in     float64
		places int32
		want   float64
	}{
		{"cents", 1232.5500001, 2, 1232.55},
		{"half up", 0.125, 2, 0.13},
		{"three places", 0.66666, 3, 0.667},
		{"zero", 0, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Round(tt.in, tt.places))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "$1245.00", Format(1245))
	assert.Equal(t, "$0.50", Format(0.5))
	assert.Equal(t, "25.0%", Percent(0.25, 1))
	assert.Equal(t, "62%", Percent(0.62, 0))
}

func TestPtr(t *testing.T) {
	p := Ptr(10.555)
	if assert.NotNil(t, p) {
		assert.Equal(t, 10.56, *p)
	}
}

func TestCeilCents(t *testing.T) {
	assert.Equal(t, 35.01, CeilCents(35.004))
	assert.Equal(t, 35.1, CeilCents(35.1))
	assert.Equal(t, 0.0, CeilCents(0))
}

func TestCentsAtLeast(t *testing.T) {
	tests := []struct {
		name     string
		v, floor float64
		want     float64
	}{
		{"rounds down past floor", 35.004, 35.004, 35.01},
		{"normal rounding above floor", 40.004, 35.004, 40.0},
		{"below floor is not lifted", 30.004, 35.004, 30.0},
		{"no floor", 12.345, 0, 12.35},
		{"float noise stays put", 10.1 + 25, 10.1 + 25, 35.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CentsAtLeast(tt.v, tt.floor)
			assert.Equal(t, tt.want, got)
			if tt.v >= tt.floor {
				assert.GreaterOrEqual(t, got, tt.floor)
			}
		})
	}
}
