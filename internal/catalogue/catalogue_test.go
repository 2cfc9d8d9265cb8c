package catalogue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"broker-copilot/internal/classify"
	"broker-copilot/internal/intake"
)

func mustContext(t *testing.T, in intake.Input) intake.Context {
	t.Helper()
	ctx, err := intake.Build(in)
	require.NoError(t, err)
	return ctx
}

func score(t *testing.T, c *Catalogue, key string, ctx intake.Context, tags classify.Tags) int {
	t.Helper()
	p, ok := c.Lookup(key)
	require.True(t, ok, key)
	s, _ := p.Evaluate(ctx, tags)
	return s
}

func TestDefaultCatalogueOrder(t *testing.T) {
	c := Default()
	var keys []string
	for _, p := range c.Products() {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"pl", "el", "pi", "tools", "cyber"}, keys)
}

func TestStaffBandZeroAddsNothing(t *testing.T) {
	c := Default()
	tags := classify.NewTags()

	zero := mustContext(t, intake.Input{BusinessDescription: "cafe", StaffBand: "0"})
	assert.Equal(t, 10, score(t, c, "el", zero, tags))

	some := mustContext(t, intake.Input{BusinessDescription: "cafe", StaffBand: "1-4"})
	assert.Equal(t, 70, score(t, c, "el", some, tags))

	none := mustContext(t, intake.Input{BusinessDescription: "cafe"})
	assert.Equal(t, 10, score(t, c, "el", none, tags))
}

func TestEvaluateCollectsReasons(t *testing.T) {
	c := Default()
	ctx := mustContext(t, intake.Input{
		BusinessDescription: "cafe",
		Concerns:            intake.ConcernInput{Selected: []string{"public"}},
	})
	p, _ := c.Lookup("pl")
	s, reasons := p.Evaluate(ctx, classify.NewTags(classify.TagPublicFacing))
	assert.Equal(t, 70, s)
	assert.Len(t, reasons, 2)
}

func TestNewRejectsBadDefinitions(t *testing.T) {
	_, err := New([]Product{{Key: "a"}, {Key: "a"}})
	assert.ErrorContains(t, err, "duplicate")

	_, err = New([]Product{{Key: " "}})
	assert.ErrorContains(t, err, "no key")

	_, err = New([]Product{{Key: "a", Increments: []Increment{{When: TagPresent("x"), Points: -5}}}})
	assert.ErrorContains(t, err, "non-positive")
}

func TestParseYAML(t *testing.T) {
	doc := []byte(`
products:
  - key: gl
    name: Goods in Transit
    rationale: Covers goods while moving.
    base: 15
    questions: ["What do you carry?"]
    increments:
      - concern: Business vehicle risk
        points: 50
        reason: You run vehicles.
      - fact: vehicles
        except: ["none"]
        points: 20
`)
	c, err := Parse(doc)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	ctx := mustContext(t, intake.Input{
		BusinessDescription: "courier",
		Vehicles:            "2",
		Concerns:            intake.ConcernInput{Selected: []string{"vehicles"}},
	})
	assert.Equal(t, 85, score(t, c, "gl", ctx, classify.NewTags()))
}

func TestParseRejectsAmbiguousIncrement(t *testing.T) {
	_, err := Parse([]byte(`
products:
  - key: x
    increments:
      - concern: data
        tag: online
        points: 5
`))
	assert.ErrorContains(t, err, "exactly one")

	_, err = Parse([]byte("products: []"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	c, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())

	path := filepath.Join(t.TempDir(), "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - key: a\n    name: A\n    base: 1\n"), 0o644))
	c, err = LoadFile(path)
	require.NoError(t, err)
	_, ok := c.Lookup("a")
	assert.True(t, ok)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSummariesCopyQuestions(t *testing.T) {
	cat := Default()
	sums := cat.Summaries()
	require.Len(t, sums, cat.Len())
	assert.Equal(t, "pl", sums[0].Key)
	assert.Equal(t, 20, sums[0].Base)

	sums[0].Questions[0] = "changed"
	p, ok := cat.Lookup("pl")
	require.True(t, ok)
	assert.NotEqual(t, "changed", p.Questions[0])
}
