package companion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	list := c.List()
	require.Len(t, list, len(Seed()))
	assert.Equal(t, DefaultID, list[0].ID)

	coach, ok := c.Get(" cbt-coach ")
	require.True(t, ok)
	assert.Equal(t, "cbt-coach", coach.ID)

	_, ok = c.Get("retired-companion")
	assert.False(t, ok)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, "mindfulness-guide", c.Resolve("mindfulness-guide").ID)
	assert.Equal(t, DefaultID, c.Resolve("retired-companion").ID)
	assert.Equal(t, DefaultID, c.Resolve("").ID)
}

func TestNewCatalogValidates(t *testing.T) {
	_, err := NewCatalog([]Companion{{ID: "cbt-coach"}})
	assert.ErrorContains(t, err, "missing default")

	_, err = NewCatalog([]Companion{{ID: DefaultID}, {ID: DefaultID}})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewCatalog([]Companion{{ID: DefaultID}, {ID: "  "}})
	assert.ErrorContains(t, err, "without id")
}

func TestCatalogReturnsCopies(t *testing.T) {
	c, err := NewCatalog([]Companion{{ID: DefaultID, Techniques: []string{"reflective listening"}}})
	require.NoError(t, err)

	got := c.List()
	got[0].Techniques[0] = "changed"
	again, _ := c.Get(DefaultID)
	assert.Equal(t, "reflective listening", again.Techniques[0])
}
