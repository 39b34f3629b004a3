package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationResultSummary(t *testing.T) {
	r := &ValidationResult{
		IsValid:      false,
		QualityScore: 64.25,
		Issues:       []string{"Missing required column: Datetime"},
		Warnings:     []string{"a", "b"},
	}
	assert.Equal(t, "Status: INVALID, Quality Score: 64.2%, Issues: 1, Warnings: 2", r.Summary())

	r = &ValidationResult{IsValid: true, QualityScore: 100}
	assert.Equal(t, "Status: VALID, Quality Score: 100.0%, Issues: 0, Warnings: 0", r.Summary())
}

func TestStandardizedDataNilSafe(t *testing.T) {
	var d *StandardizedData
	assert.Equal(t, 0, d.Len())
	assert.False(t, d.HasColumn(ColVoltage))
}
