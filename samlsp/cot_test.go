package samlsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCircleOfTrustContains(t *testing.T) {
	cot := NewCircleOfTrust("federation-a", "https://idp1.example.com", "https://idp2.example.com")

	assert.True(t, cot.Contains("https://idp1.example.com"))
	assert.False(t, cot.Contains("https://idp3.example.com"))
}

func TestCircleOfTrustAdd(t *testing.T) {
	cot := NewCircleOfTrust("federation-a")
	cot.Add("https://idp1.example.com")

	assert.True(t, cot.Contains("https://idp1.example.com"))
}

func TestNilCircleOfTrustContainsNothing(t *testing.T) {
	var cot *CircleOfTrust
	assert.False(t, cot.Contains("anything"))
}
