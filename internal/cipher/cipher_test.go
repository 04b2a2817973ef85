package cipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"hotwheels123",
		"s3cret!",
		"with spaces and  tabs\t",
		"~!@#$%^&*()_+-=[]{}|;':\",./<>?",
	}
	for _, in := range inputs {
		assert.Equal(t, in, Reveal(Obfuscate(in)), "input %q", in)
	}
}

func TestRoundTripPrintableASCII(t *testing.T) {
	var all []byte
	for c := byte(32); c < 127; c++ {
		all = append(all, c)
	}
	s := string(all)
	assert.Equal(t, s, Reveal(Obfuscate(s)))
}

func TestObfuscateIsNotIdentity(t *testing.T) {
	assert.NotEqual(t, "hotwheels123", Obfuscate("hotwheels123"))
}

func TestRevealInvalidBase64(t *testing.T) {
	assert.Equal(t, "", Reveal("not base64!!!"))
}

func TestRevealEmpty(t *testing.T) {
	assert.Equal(t, "", Reveal(""))
}
