package parser

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// buildTaxID10 appends the control digit to 9 body digits.
func buildTaxID10(body []int) string {
	digits := append(append([]int{}, body...), 0)
	digits[9] = controlDigit(digits, weights10)
	return digitsToString(digits)
}

// buildTaxID12 appends both control digits to 10 body digits.
func buildTaxID12(body []int) string {
	digits := append(append([]int{}, body...), 0, 0)
	digits[10] = controlDigit(digits, weights12a)
	digits[11] = controlDigit(digits, weights12b)
	return digitsToString(digits)
}

func digitsToString(digits []int) string {
	buf := make([]byte, len(digits))
	for i, d := range digits {
		buf[i] = byte('0' + d)
	}
	return string(buf)
}

func TestProperty_TaxIDChecksum(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	digitGen := gen.IntRange(0, 9)

	// Any identifier built with the correct control digits validates.
	properties.Property("generated_10_digit_id_is_valid", prop.ForAll(
		func(body []int) bool {
			return IsValidTaxID(buildTaxID10(body))
		},
		gen.SliceOfN(9, digitGen),
	))

	properties.Property("generated_12_digit_id_is_valid", prop.ForAll(
		func(body []int) bool {
			return IsValidTaxID(buildTaxID12(body))
		},
		gen.SliceOfN(10, digitGen),
	))

	// Altering the control digit always breaks validation.
	properties.Property("altered_control_digit_is_invalid", prop.ForAll(
		func(body []int, delta int) bool {
			id := []byte(buildTaxID10(body))
			old := id[9] - '0'
			id[9] = byte('0' + (int(old)+delta)%10)
			return !IsValidTaxID(string(id))
		},
		gen.SliceOfN(9, digitGen),
		gen.IntRange(1, 9),
	))

	properties.Property("altered_12_digit_control_is_invalid", prop.ForAll(
		func(body []int, delta int) bool {
			id := []byte(buildTaxID12(body))
			old := id[11] - '0'
			id[11] = byte('0' + (int(old)+delta)%10)
			return !IsValidTaxID(string(id))
		},
		gen.SliceOfN(10, digitGen),
		gen.IntRange(1, 9),
	))

	// Wrong lengths never validate and never panic.
	properties.Property("wrong_length_is_invalid", prop.ForAll(
		func(digits []int) bool {
			s := digitsToString(digits)
			if len(s) == 10 || len(s) == 12 {
				return true
			}
			return !IsValidTaxID(s)
		},
		gen.IntRange(0, 20).FlatMap(func(n interface{}) gopter.Gen {
			return gen.SliceOfN(n.(int), digitGen)
		}, reflect.TypeOf([]int(nil))),
	))

	// Arbitrary strings never panic; non-digit content is invalid.
	properties.Property("arbitrary_input_never_panics", prop.ForAll(
		func(s string) bool {
			valid := IsValidTaxID(s)
			for _, c := range s {
				if c < '0' || c > '9' {
					return !valid
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestIsValidTaxID_KnownValues(t *testing.T) {
	cases := []struct {
		value string
		valid bool
	}{
		{"7707083893", true},   // organization
		{"500100732259", true}, // individual
		{"7707083894", false},
		{"500100732258", false},
		{"", false},
		{"770708389", false},
		{"77070838931", false},
		{"770708389a", false},
		{"0000000000", true}, // degenerate but checksum-consistent
	}

	for _, tc := range cases {
		if got := IsValidTaxID(tc.value); got != tc.valid {
			t.Errorf("IsValidTaxID(%q) = %v, want %v", tc.value, got, tc.valid)
		}
	}
}
