package chat

import "github.com/microcosm-cc/bluemonday"

// strictPolicy is safe for concurrent use once built.
var strictPolicy = bluemonday.StrictPolicy()

// Sanitize removes every HTML element from input, drops the content of
// script-like elements and escapes what is left, so the result can be
// placed in an HTML context.
func Sanitize(input string) string {
	return strictPolicy.Sanitize(input)
}
