package classify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescope/tablescope/internal/source"
)

func TestColumnNumeric(t *testing.T) {
	p := Column("revenue", []string{"1", "2.5", "3,000.75", "42%", "1e3"}, DefaultRules())
	assert.Equal(t, Numeric, p.Type)
	assert.Equal(t, 5, p.TotalCount)
	assert.Equal(t, 0, p.NullCount)
}

func TestColumnNumericJustBelowThreshold(t *testing.T) {
	// 8 of 10 parse as numbers, below the 90% bar.
	values := []string{"1", "2", "3", "4", "5", "6", "7", "8", "x", "y"}
	p := Column("mixed", values, DefaultRules())
	assert.NotEqual(t, Numeric, p.Type)
}

func TestColumnNumericNullsIgnored(t *testing.T) {
	// Nulls do not count against the numeric share.
	values := []string{"1", "2", "", "N/A", "3"}
	p := Column("sparse", values, DefaultRules())
	assert.Equal(t, Numeric, p.Type)
	assert.Equal(t, 2, p.NullCount)
}

func TestColumnTemporal(t *testing.T) {
	values := []string{"2024-01-01", "2024-02-01", "2024/03/15", "2024-04-01 09:30"}
	p := Column("date", values, DefaultRules())
	assert.Equal(t, Temporal, p.Type)
}

func TestColumnCategorical(t *testing.T) {
	values := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		values = append(values, []string{"east", "west", "north", "south"}[i%4])
	}
	p := Column("region", values, DefaultRules())
	assert.Equal(t, Categorical, p.Type)
	assert.Equal(t, 4, p.UniqueCount)
}

func TestColumnTextHighCardinality(t *testing.T) {
	values := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		values = append(values, fmt.Sprintf("comment %d", i))
	}
	p := Column("notes", values, DefaultRules())
	assert.Equal(t, Text, p.Type)
}

func TestColumnTextUniqueCapExceeded(t *testing.T) {
	// Low unique ratio but at least 50 distinct values: the absolute cap
	// keeps it out of categorical.
	values := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		values = append(values, fmt.Sprintf("code-%d", i%60))
	}
	p := Column("codes", values, DefaultRules())
	assert.Equal(t, Text, p.Type)
}

func TestColumnAllNull(t *testing.T) {
	p := Column("blank", []string{"", "null", "N/A", "-"}, DefaultRules())
	assert.Equal(t, Text, p.Type)
	assert.Equal(t, 4, p.NullCount)
	assert.Equal(t, 0, p.UniqueCount)
}

func TestSheetSchema(t *testing.T) {
	sh := &source.Sheet{
		Name:    "sales",
		Columns: []string{"region", "revenue", "day"},
		Rows: [][]string{
			{"east", "100", "2024-01-01"},
			{"west", "200", "2024-01-02"},
			{"east", "150", "2024-01-03"},
			{"west", "175", "2024-01-04"},
		},
	}
	schema := Sheet(sh, DefaultRules())
	require.Len(t, schema.Profiles, 3)
	assert.Equal(t, Numeric, schema.Profile("revenue").Type)
	assert.Equal(t, Temporal, schema.Profile("day").Type)
	assert.Equal(t, []string{"revenue"}, schema.ColumnsOfType(Numeric))
	assert.Nil(t, schema.Profile("missing"))
}

func TestParseNumericVariants(t *testing.T) {
	cases := map[string]float64{
		"1":       1,
		"2.5":     2.5,
		"1,234.5": 1234.5,
		"1.234,5": 1234.5,
		"3,5":     3.5,
		"42%":     42,
		"1e3":     1000,
		" 7 ":     7,
		"-0.25":   -0.25,
	}
	for in, want := range cases {
		got, ok := ParseNumeric(in)
		require.True(t, ok, "parse %q", in)
		assert.InDelta(t, want, got, 1e-9, "parse %q", in)
	}
	for _, in := range []string{"", "abc", "12a", "--"} {
		_, ok := ParseNumeric(in)
		assert.False(t, ok, "parse %q", in)
	}
}

func TestParseTime(t *testing.T) {
	_, ok := ParseTime("2024-06-30")
	assert.True(t, ok)
	_, ok = ParseTime("30/06/2024")
	assert.True(t, ok)
	_, ok = ParseTime("not a date")
	assert.False(t, ok)
}
