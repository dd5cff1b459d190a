package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemLabel(t *testing.T) {
	entries := []entry{
		{path: "a.txt", name: "a.txt"},
		{path: "b/c.txt", name: "b/c.txt"},
	}

	assert.Equal(t, `"a.txt"`, itemLabel(entries, 0))
	assert.Equal(t, `"b/c.txt"`, itemLabel(entries, 1))

	// indexes come from the engine; a bogus one must not panic the log hook.
	assert.Equal(t, "#2", itemLabel(entries, 2))
	assert.Equal(t, "#4294967295", itemLabel(entries, 0xFFFFFFFF))
	assert.Equal(t, "#0", itemLabel(nil, 0))
}
