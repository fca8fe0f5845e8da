// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "00:00:01.000", want: 1},
		{in: "01:02:03.456", want: 3723.456},
		{in: "02:03.500", want: 123.5},
		{in: "5", want: 5},
		{in: "00:00:01,250", want: 1.25},
		{in: "00:00:01.5", want: 1.5},
		{in: "00:01.5", want: 1.5},
		{in: "00:01.05", want: 1.05},
		{in: "00:01.005", want: 1.005},
		{in: ":05.000", want: 5},
		{in: "", wantErr: true},
		{in: "1:2:3:4", wantErr: true},
		{in: "aa:00:01.000", wantErr: true},
		{in: "00:00:01.x00", wantErr: true},
		{in: "-1:00.000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrTimestamp), "err = %v", err)
				return
			}
			assert.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00.000", FormatTimestamp(-3))
	assert.Equal(t, "01:02:03.456", FormatTimestamp(3723.456))
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "0:00", FormatClock(0))
	assert.Equal(t, "1:05", FormatClock(65.9))
	assert.Equal(t, "12:00", FormatClock(720))
	assert.Equal(t, "0:00", FormatClock(-1))
}
