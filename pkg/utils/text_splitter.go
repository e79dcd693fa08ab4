package utils

import "unicode"

// SplitText splits a long string into chunks of approximately 'chunkSize'
// characters with 'overlap' characters repeated at each boundary to
// preserve context. Chunks prefer to end at whitespace so indicator values
// and country names are not cut in half; a chunk is only cut mid-word when
// no whitespace exists in its back quarter.
func SplitText(text string, chunkSize int, overlap int) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	totalLen := len(runes)

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize // fallback if overlap >= chunkSize
	}

	for i := 0; i < totalLen; {
		end := i + chunkSize
		if end >= totalLen {
			chunks = append(chunks, string(runes[i:totalLen]))
			break
		}

		cut := end
		for j := end; j > end-chunkSize/4 && j > i; j-- {
			if unicode.IsSpace(runes[j-1]) {
				cut = j
				break
			}
		}

		chunks = append(chunks, string(runes[i:cut]))

		next := cut - overlap
		if next <= i {
			next = i + step
		}
		i = next
	}

	return chunks
}
