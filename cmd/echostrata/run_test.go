package main

import (
	"bytes"
	"fmt"
	"testing"

	"echostrata/domain/core"
	"echostrata/domain/survey"
	"echostrata/internal/analysis"
	"echostrata/internal/apportion"

	"github.com/stretchr/testify/assert"
)

func TestPrintApportionSummary_WarningsGoToErrOut(t *testing.T) {
	var out, errOut bytes.Buffer
	res := &analysis.TransectResult{RunID: "run-1"}
	result := &apportion.Result{
		Table: apportion.Table{
			Biomass: map[survey.Sex][][]float64{
				survey.SexAll:  {{5}},
				survey.SexMale: {{5}},
			},
		},
		Warnings:         []error{fmt.Errorf("%w: 5 of 10 kg", core.ErrInconsistentApportionment)},
		KrigedTotal:      10,
		ApportionedTotal: 5,
	}

	printApportionSummary(&out, &errOut, res, result)

	assert.Contains(t, out.String(), "run run-1")
	assert.Contains(t, out.String(), "kriged biomass:      10.0 kg")
	assert.Contains(t, out.String(), "apportioned biomass: 5.0 kg")
	assert.NotContains(t, out.String(), "warning")
	assert.Equal(t, "warning: "+result.Warnings[0].Error()+"\n", errOut.String())
}

func TestWriteJSON_ApportionResultCarriesCells(t *testing.T) {
	var out bytes.Buffer
	result := &apportion.Result{
		Table: apportion.Table{
			LengthCenters: []float64{10},
			AgeCenters:    []float64{1},
			Biomass:       map[survey.Sex][][]float64{survey.SexAll: {{5}}},
		},
	}

	assert.NoError(t, writeJSON(&out, result))
	assert.Contains(t, out.String(), `"cells"`)
	assert.Contains(t, out.String(), `"biomass": 5`)
	assert.Contains(t, out.String(), `"warnings": []`)
}
