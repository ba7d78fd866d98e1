package annotate

import "strings"

// Model output arrives with arbitrary casing, stray punctuation, and
// whitespace. Normalization lower-cases, trims, then strips this punctuation
// set. Trimming happens before stripping, so inner whitespace survives; the
// decision rule's prefix check absorbs what remains.
var punctuationStripper = strings.NewReplacer(
	".", "", ",", "", "/", "", "#", "", "!", "", "$", "", "%", "",
	"^", "", "&", "", "*", "", ";", "", ":", "", "{", "", "}", "",
	"=", "", "-", "", "_", "", "`", "", "~", "", "(", "", ")", "",
)

func Normalize(raw string) string {
	return punctuationStripper.Replace(strings.TrimSpace(strings.ToLower(raw)))
}
