package route

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrlokans/mimeroute/internal/formats"
)

const (
	csv         = "text/csv"
	pdf         = "application/pdf"
	png         = "image/png"
	spreadsheet = "application/vnd.google-apps.spreadsheet"
)

func exampleCatalog() *formats.Catalog {
	return &formats.Catalog{
		Import: map[string][]string{csv: {spreadsheet}},
		Export: map[string][]string{spreadsheet: {pdf, csv}},
	}
}

func TestFind_Example(t *testing.T) {
	c := exampleCatalog()

	t.Run("csv to pdf goes through a spreadsheet", func(t *testing.T) {
		r := Find(csv, pdf, c)

		assert.Equal(t, Route{
			From: csv,
			Hops: []Hop{
				{To: spreadsheet, Convert: Import},
				{To: pdf, Convert: Export},
			},
		}, r)
		assert.Equal(t, []string{csv, spreadsheet, pdf}, r.Types())
	})

	t.Run("same type is a no-op", func(t *testing.T) {
		r := Find(csv, csv, c)

		assert.True(t, r.Found())
		assert.True(t, r.IsNoop())
		assert.Equal(t, []string{csv}, r.Types())
	})

	t.Run("unknown target is unreachable", func(t *testing.T) {
		r := Find(csv, png, c)

		assert.False(t, r.Found())
		assert.Nil(t, r.Types())
		assert.Equal(t, Route{}, r)
	})

	t.Run("native source exports directly", func(t *testing.T) {
		r := Find(spreadsheet, pdf, c)

		assert.Equal(t, []Hop{{To: pdf, Convert: Export}}, r.Hops)
	})

	t.Run("source outside the catalog is unreachable", func(t *testing.T) {
		assert.False(t, Find(png, pdf, c).Found())
	})
}

func TestFind_SameTypeIsNoopForAnyCatalog(t *testing.T) {
	for _, typ := range []string{csv, pdf, png, spreadsheet, "application/x-unknown"} {
		r := Find(typ, typ, exampleCatalog())
		assert.True(t, r.IsNoop(), typ)

		r = Find(typ, typ, &formats.Catalog{})
		assert.True(t, r.IsNoop(), typ)
	}
}

func TestFind_PrefersShortestRoute(t *testing.T) {
	// S can reach D in 4 hops through N1, or in 2 hops through N2. N1 is listed first.
	c := &formats.Catalog{
		Import: map[string][]string{
			"ext/s": {"native/n1", "native/n2"},
			"ext/m": {"native/n3"},
		},
		Export: map[string][]string{
			"native/n1": {"ext/m"},
			"native/n2": {"ext/d"},
			"native/n3": {"ext/d"},
		},
	}

	r := Find("ext/s", "ext/d", c)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"ext/s", "native/n2", "ext/d"}, r.Types())
}

func TestFind_TieBreaksByEnumerationOrder(t *testing.T) {
	c := &formats.Catalog{
		Import: map[string][]string{"ext/s": {"native/b", "native/a"}},
		Export: map[string][]string{
			"native/a": {"ext/d"},
			"native/b": {"ext/d"},
		},
	}

	r := Find("ext/s", "ext/d", c)

	assert.Equal(t, []string{"ext/s", "native/b", "ext/d"}, r.Types())
}

func TestFind_AlternatesConversions(t *testing.T) {
	c := &formats.Catalog{
		Import: map[string][]string{
			"ext/a": {"native/x"},
			"ext/b": {"native/y"},
		},
		Export: map[string][]string{
			"native/x": {"ext/b"},
			"native/y": {"ext/c"},
		},
	}

	r := Find("ext/a", "ext/c", c)

	assert.Equal(t, []Hop{
		{To: "native/x", Convert: Import},
		{To: "ext/b", Convert: Export},
		{To: "native/y", Convert: Import},
		{To: "ext/c", Convert: Export},
	}, r.Hops)
}

func TestFind_DepthBound(t *testing.T) {
	// A chain needing five hops: ext/a -> n1 -> ext/b -> n2 -> ext/c -> n3.
	c := &formats.Catalog{
		Import: map[string][]string{
			"ext/a": {"native/n1"},
			"ext/b": {"native/n2"},
			"ext/c": {"native/n3"},
		},
		Export: map[string][]string{
			"native/n1": {"ext/b"},
			"native/n2": {"ext/c"},
		},
	}

	assert.Equal(t, 4, Find("ext/a", "ext/c", c).Len())
	assert.False(t, Find("ext/a", "native/n3", c).Found())
}

func TestFind_IgnoresSelfLoops(t *testing.T) {
	c := &formats.Catalog{
		Import: map[string][]string{"ext/a": {"ext/a", "native/x"}},
		Export: map[string][]string{"native/x": {"native/x", "ext/b"}},
	}

	r := Find("ext/a", "ext/b", c)

	assert.Equal(t, []string{"ext/a", "native/x", "ext/b"}, r.Types())
	for i := 1; i < len(r.Types()); i++ {
		assert.NotEqual(t, r.Types()[i-1], r.Types()[i])
	}
}

func TestFind_ExportSideWinsWhenTypeIsOnBothSides(t *testing.T) {
	c := &formats.Catalog{
		Import: map[string][]string{"shared": {"native/x"}},
		Export: map[string][]string{
			"shared":   {"ext/out"},
			"native/x": {"ext/other"},
		},
	}

	r := Find("shared", "ext/out", c)

	assert.Equal(t, []Hop{{To: "ext/out", Convert: Export}}, r.Hops)
	assert.False(t, Find("shared", "native/x", c).Found())
}

func TestFind_NilCatalog(t *testing.T) {
	assert.False(t, Find(csv, pdf, nil).Found())
	assert.True(t, Find(csv, csv, nil).IsNoop())
}

func TestConversion_Opposite(t *testing.T) {
	assert.Equal(t, Export, Import.Opposite())
	assert.Equal(t, Import, Export.Opposite())
}
