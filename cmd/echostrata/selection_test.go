package main

import (
	"testing"

	"echostrata/domain/survey"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransects(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []survey.TransectID
		wantErr bool
	}{
		{"blank means all", "  ", nil, false},
		{"list", "1, 2,3", []survey.TransectID{1, 2, 3}, false},
		{"trailing comma", "4,", []survey.TransectID{4}, false},
		{"not a number", "1,x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTransects(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelections(t *testing.T) {
	sels, err := selections("", nil)
	require.NoError(t, err)
	require.Len(t, sels, 1)
	assert.True(t, sels[0].All())

	sels, err = selections("", []string{"north=1,2", "south=3"})
	require.NoError(t, err)
	require.Len(t, sels, 2)
	assert.Equal(t, "north", sels[0].Name)
	assert.Equal(t, []survey.TransectID{3}, sels[1].Transects)

	_, err = selections("1", []string{"north=1"})
	assert.Error(t, err)

	_, err = selections("", []string{"north=1", "north=2"})
	assert.Error(t, err)

	_, err = selections("", []string{"=1"})
	assert.Error(t, err)

	_, err = selections("", []string{"empty="})
	assert.Error(t, err)
}
