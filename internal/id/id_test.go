package id

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResource(t *testing.T) {
	r := Resource("m2m:cnt")
	assert.True(t, strings.HasPrefix(r, "cnt"))
	assert.Len(t, r, 3+idLength)
	assert.NotContains(t, r, "fopt")

	r2 := Resource("acp")
	assert.True(t, strings.HasPrefix(r2, "acp"))
	assert.NotEqual(t, r, r2)
}

func TestName(t *testing.T) {
	n := Name("m2m:grp")
	assert.True(t, strings.HasPrefix(n, "grp_"))

	assert.True(t, strings.HasPrefix(Name(""), "un_"))
}

func TestAE(t *testing.T) {
	aei := AE()
	assert.True(t, strings.HasPrefix(aei, "S"))
	assert.Len(t, aei, 1+idLength)
}

func TestRequestIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		rid := Request()
		assert.False(t, seen[rid])
		seen[rid] = true
	}
}

func TestSortableOrdering(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = Sortable()
		assert.Len(t, ids[i], 26)
	}
	assert.True(t, sort.StringsAreSorted(ids), "sortable ids must be monotonic in generation order")
}
