// Package cipher provides reversible obfuscation for stored secrets.
//
// This is NOT encryption. The transform (a fixed code-point shift followed
// by base64) only deters casual inspection of the admin password and backend
// credentials at rest. Anything that needs real confidentiality must not go
// through this package.
package cipher

import "encoding/base64"

// shift is the code-point offset applied before base64 encoding. The value
// is applied uniformly to every obfuscated secret in the store.
const shift = 3

// Obfuscate shifts each rune of plain by a fixed constant and base64-encodes
// the result.
func Obfuscate(plain string) string {
	runes := []rune(plain)
	for i, r := range runes {
		runes[i] = r + shift
	}
	return base64.StdEncoding.EncodeToString([]byte(string(runes)))
}

// Reveal reverses Obfuscate. Invalid input yields the empty string rather
// than an error; callers treat "" as "no secret stored".
func Reveal(token string) string {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return ""
	}
	runes := []rune(string(decoded))
	for i, r := range runes {
		runes[i] = r - shift
	}
	return string(runes)
}
