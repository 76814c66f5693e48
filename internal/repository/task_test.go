package repository

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestSearchFilter_EscapesRegexMetacharacters(t *testing.T) {
	filter := searchFilter("report (Q3)")
	require.Len(t, filter, 2)

	title, ok := filter[0].(bson.M)["title"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, `report \(Q3\)`, title["$regex"])
	assert.Equal(t, "i", title["$options"])

	description, ok := filter[1].(bson.M)["description"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, title["$regex"], description["$regex"])
}

func TestSearchFilter_PatternIsValidAndMatchesLiterally(t *testing.T) {
	cases := []struct {
		input   string
		matches string
	}{
		{"report (Q3)", "quarterly report (q3) summary"},
		{"a+b", "compute a+b first"},
		{"[urgent]", "ticket [URGENT] follow-up"},
		{"50% done?", "about 50% done? not quite"},
	}

	for _, tc := range cases {
		title := searchFilter(tc.input)[0].(bson.M)["title"].(bson.M)

		re, err := regexp.Compile("(?i)" + title["$regex"].(string))
		require.NoError(t, err, "input %q must compile", tc.input)
		assert.True(t, re.MatchString(tc.matches), "input %q must match %q", tc.input, tc.matches)
	}

	// Escaped metacharacters have no special meaning: "done?" requires a
	// literal question mark instead of making the "e" optional.
	re := regexp.MustCompile(searchFilter("done?")[0].(bson.M)["title"].(bson.M)["$regex"].(string))
	assert.False(t, re.MatchString("all don"))
	assert.True(t, re.MatchString("all done?"))
}
