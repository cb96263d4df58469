package summarize

import "strings"

// windowText splits text into overlapping word windows: windowWords per
// window, stepping windowWords-overlapWords each time.
func windowText(text string, windowWords, overlapWords int) []string {
	words := strings.Fields(text)
	if len(words) <= windowWords {
		return []string{text}
	}

	step := windowWords - overlapWords
	if step < 1 {
		step = windowWords
	}

	var windows []string
	for start := 0; start < len(words); start += step {
		end := start + windowWords
		if end > len(words) {
			end = len(words)
		}
		windows = append(windows, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return windows
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func truncateToWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) <= max {
		return text
	}
	return strings.Join(words[:max], " ")
}

// TruncateWords enforces the summary word budget, cutting at the last
// sentence boundary under the limit and appending an ellipsis; if no
// sentence boundary fits, it cuts mid-sentence.
func TruncateWords(text string, max int) string {
	if max <= 0 {
		return text
	}

	words := strings.Fields(text)
	if len(words) <= max {
		return text
	}

	kept := words[:max]
	cut := -1
	for i := len(kept) - 1; i >= 0; i-- {
		if strings.HasSuffix(kept[i], ".") || strings.HasSuffix(kept[i], "!") || strings.HasSuffix(kept[i], "?") {
			cut = i
			break
		}
	}

	if cut >= 0 {
		return strings.Join(kept[:cut+1], " ") + " ..."
	}
	return strings.Join(kept, " ") + " ..."
}
