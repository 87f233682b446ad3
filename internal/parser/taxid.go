package parser

// Checksum weight vectors for tax identifiers. Organizations carry a
// 10-digit ID with one control digit; individuals carry a 12-digit ID with
// two control digits.
var (
	weights10  = []int{2, 4, 10, 3, 5, 9, 4, 6, 8}
	weights12a = []int{7, 2, 4, 10, 3, 5, 9, 4, 6, 8}
	weights12b = []int{3, 7, 2, 4, 10, 3, 5, 9, 4, 6, 8}
)

// IsValidTaxID reports whether value is a checksum-valid tax identifier.
// Anything that is not all digits of length 10 or 12 is invalid; the
// function never panics on malformed input.
func IsValidTaxID(value string) bool {
	if len(value) != 10 && len(value) != 12 {
		return false
	}

	digits := make([]int, len(value))
	for i, c := range value {
		if c < '0' || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
	}

	if len(digits) == 10 {
		return controlDigit(digits, weights10) == digits[9]
	}

	if controlDigit(digits, weights12a) != digits[10] {
		return false
	}
	return controlDigit(digits, weights12b) == digits[11]
}

// controlDigit computes the weighted checksum over the first len(weights)
// digits, reduced mod 11 mod 10.
func controlDigit(digits, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += digits[i] * w
	}
	return sum % 11 % 10
}
