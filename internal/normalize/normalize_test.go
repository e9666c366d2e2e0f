package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairMojibake(t *testing.T) {
	n := New(DefaultMaxPasses)

	t.Run("single layer", func(t *testing.T) {
		got := n.Normalize("SchulstraÃŸe 25, 01468 Moritzburg")
		assert.Equal(t, "Schulstraße 25, 01468 Moritzburg", got.Raw)
	})

	t.Run("double layer unwraps via fixed point", func(t *testing.T) {
		got := n.Normalize("KÃƒÂ¶nigsbrÃƒÂ¼cker Str. 96")
		assert.Equal(t, "Königsbrücker Str. 96", got.Raw)
	})

	t.Run("uppercase umlauts", func(t *testing.T) {
		got := n.Normalize("Ã–lmÃ¼hlenweg 3")
		assert.Equal(t, "Ölmühlenweg 3", got.Raw)
	})

	t.Run("clean input untouched", func(t *testing.T) {
		got := n.Normalize("Dresdner Straße 12, 01705 Freital")
		assert.Equal(t, "Dresdner Straße 12, 01705 Freital", got.Raw)
	})

	t.Run("pass cap terminates on adversarial input", func(t *testing.T) {
		// A long runway of nested artifacts must not loop forever.
		s := strings.Repeat("Ãƒ", 500) + "Â¤"
		got := New(2).Normalize(s)
		assert.NotEmpty(t, got.CanonicalKey)
	})
}

func TestNoiseStripping(t *testing.T) {
	n := New(DefaultMaxPasses)

	t.Run("parenthesized OT qualifier", func(t *testing.T) {
		got := n.Normalize("Schulstraße 25, 01468 Moritzburg (OT Boxdorf)")
		assert.Equal(t, "Schulstraße 25, 01468 Moritzburg", got.Raw)
	})

	t.Run("trailing bare OT qualifier", func(t *testing.T) {
		got := n.Normalize("Schulstraße 25, 01468 Moritzburg OT Boxdorf")
		assert.Equal(t, "Schulstraße 25, 01468 Moritzburg", got.Raw)
	})

	t.Run("slash OT qualifier", func(t *testing.T) {
		got := n.Normalize("An der Triebe 25, 01468 Moritzburg / OT Boxdorf")
		assert.Equal(t, "An der Triebe 25, 01468 Moritzburg", got.Raw)
	})

	t.Run("mid-string bare OT is left alone", func(t *testing.T) {
		// Not at the end of the string: too ambiguous to strip.
		got := n.Normalize("OT Boxdorf Schulstraße 25")
		assert.Contains(t, got.Raw, "OT Boxdorf")
	})

	t.Run("hall qualifier", func(t *testing.T) {
		got := n.Normalize("Gewerbering 4, Halle 2, 01468 Moritzburg")
		assert.Equal(t, "Gewerbering 4, 01468 Moritzburg", got.Raw)
	})

	t.Run("pipes fold to commas", func(t *testing.T) {
		got := n.Normalize("Schulstraße 25 | 01468 Moritzburg")
		assert.Equal(t, "Schulstraße 25, 01468 Moritzburg", got.Raw)
	})
}

func TestCanonicalKey(t *testing.T) {
	n := New(DefaultMaxPasses)

	t.Run("corruption, case and qualifiers share one key", func(t *testing.T) {
		a := n.Normalize("Schulstraße 25, 01468 Moritzburg (OT Boxdorf)")
		b := n.Normalize("Schulstraße 25, 01468 Moritzburg OT Boxdorf")
		c := n.Normalize("SCHULSTRASSE 25,  01468   MORITZBURG")
		d := n.Normalize("SchulstraÃŸe 25, 01468 Moritzburg")

		assert.Equal(t, a.CanonicalKey, b.CanonicalKey)
		assert.Equal(t, a.CanonicalKey, d.CanonicalKey)
		// "Strasse" spelling folds to "straße" in the key.
		assert.Equal(t, a.CanonicalKey, c.CanonicalKey)
	})

	t.Run("abbreviated street type folds", func(t *testing.T) {
		a := n.Normalize("Hauptstr. 1, 01809 Heidenau")
		b := n.Normalize("Hauptstraße 1, 01809 Heidenau")
		assert.Equal(t, a.CanonicalKey, b.CanonicalKey)
	})

	t.Run("idempotent", func(t *testing.T) {
		first := n.Normalize("SchulstraÃŸe 25, 01468 Moritzburg (OT Boxdorf)")
		second := n.Normalize(first.Raw)
		assert.Equal(t, first.CanonicalKey, second.CanonicalKey)
	})

	t.Run("components split", func(t *testing.T) {
		got := n.Normalize("Schulstraße 25, 01468 Moritzburg")
		assert.Equal(t, "Schulstraße 25", got.Street)
		assert.Equal(t, "01468", got.PostalCode)
		assert.Equal(t, "Moritzburg", got.City)
	})

	t.Run("unparseable line keeps everything in street", func(t *testing.T) {
		got := n.Normalize("Festplatz am Elbufer")
		assert.Equal(t, "Festplatz am Elbufer", got.Street)
		assert.Empty(t, got.PostalCode)
		assert.NotEmpty(t, got.CanonicalKey)
	})

	t.Run("parts and line agree", func(t *testing.T) {
		a := n.FromParts("Schulstraße 25", "01468", "Moritzburg")
		b := n.Normalize("Schulstraße 25, 01468 Moritzburg")
		assert.Equal(t, b.CanonicalKey, a.CanonicalKey)
	})
}

func TestFoldAlias(t *testing.T) {
	assert.Equal(t, "sven - pf", FoldAlias("  Sven - PF "))
	assert.Equal(t, FoldAlias("Sven  -  PF"), FoldAlias("sven - pf"))
}
