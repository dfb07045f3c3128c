package utils

import "unicode"

// EstimateTokens gives a rough token count for a string without a
// tokenizer: CJK characters count as one token each, everything else
// at four characters per token.
func EstimateTokens(s string) int {
	cjk := 0
	other := 0
	for _, r := range s {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			cjk++
		} else {
			other++
		}
	}
	return cjk + other/4
}
