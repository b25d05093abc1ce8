package schemas_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/clickseq/api/schemas"
)

func TestParseTarget(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		line     string
		expected schemas.Target
	}{
		{"plain coordinate", "100,200", schemas.CoordinateTarget{X: 100, Y: 200}},
		{"coordinate with spaces", " 10 ,  20 ", schemas.CoordinateTarget{X: 10, Y: 20}},
		{"negative coordinate", "-5,7", schemas.CoordinateTarget{X: -5, Y: 7}},
		{"plain selector", "#submit", schemas.SelectorTarget{Selector: "#submit"}},
		{"selector list with comma", ".btn, primary", schemas.SelectorTarget{Selector: ".btn, primary"}},
		{"three numbers", "1,2,3", schemas.SelectorTarget{Selector: "1,2,3"}},
		{"unit suffix", "12px,4", schemas.SelectorTarget{Selector: "12px,4"}},
		{"missing half", "12,", schemas.SelectorTarget{Selector: "12,"}},
		{"fractional", "1.5,2", schemas.SelectorTarget{Selector: "1.5,2"}},
		{"selector list of tags", "div, span", schemas.SelectorTarget{Selector: "div, span"}},
		{"outer whitespace trimmed", "  a.link  ", schemas.SelectorTarget{Selector: "a.link"}},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, schemas.ParseTarget(tt.line))
		})
	}
}

func TestParseTargets(t *testing.T) {
	t.Parallel()

	blob := "#a\n\n   \n 5, 6 \n.b > c\r\n"
	got := schemas.ParseTargets(blob)
	want := []schemas.Target{
		schemas.SelectorTarget{Selector: "#a"},
		schemas.CoordinateTarget{X: 5, Y: 6},
		schemas.SelectorTarget{Selector: ".b > c"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseTargets mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, schemas.ParseTargets(""))
	assert.Equal(t, "#a\n5,6\n.b > c", schemas.FormatTargets(got))
}

func TestTargetString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "3,4", schemas.CoordinateTarget{X: 3, Y: 4}.String())
	assert.Equal(t, "div", schemas.SelectorTarget{Selector: "div"}.String())
}
