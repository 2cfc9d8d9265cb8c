package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"broker-copilot/internal/catalogue"
	"broker-copilot/internal/classify"
	"broker-copilot/internal/intake"
)

func fixed(key string, s int) catalogue.Product {
	return catalogue.Product{
		Key:       key,
		ScoreFunc: func(intake.Context, classify.Tags) int { return s },
	}
}

func mustCatalogue(t *testing.T, products ...catalogue.Product) *catalogue.Catalogue {
	t.Helper()
	c, err := catalogue.New(products)
	require.NoError(t, err)
	return c
}

func mustContext(t *testing.T, in intake.Input) intake.Context {
	t.Helper()
	ctx, err := intake.Build(in)
	require.NoError(t, err)
	return ctx
}

func keys(items []Scored) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Key)
	}
	return out
}

func TestScoreIsStableDescending(t *testing.T) {
	cat := mustCatalogue(t, fixed("a", 30), fixed("b", 70), fixed("c", 30), fixed("d", 70), fixed("e", 5))
	ctx := mustContext(t, intake.Input{BusinessDescription: "x"})

	got := NewEngine(DefaultThresholds).Score(cat, ctx, classify.NewTags())
	assert.Equal(t, []string{"b", "d", "a", "c", "e"}, keys(got))

	reversed := mustCatalogue(t, fixed("e", 5), fixed("d", 70), fixed("c", 30), fixed("b", 70), fixed("a", 30))
	got = NewEngine(DefaultThresholds).Score(reversed, ctx, classify.NewTags())
	assert.Equal(t, []string{"d", "b", "c", "a", "e"}, keys(got))
}

func TestBandBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  Band
	}{
		{score: 1000, want: BandRecommended},
		{score: 60, want: BandRecommended},
		{score: 59, want: BandOften},
		{score: 30, want: BandOften},
		{score: 29, want: BandNot},
		{score: 0, want: BandNot},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultThresholds.BandFor(tt.score), "score %d", tt.score)
	}
}

func TestPartitionIsStrictAndOrdered(t *testing.T) {
	cat := mustCatalogue(t, fixed("a", 60), fixed("b", 30), fixed("c", 29), fixed("d", 61), fixed("e", 59))
	e := NewEngine(DefaultThresholds)
	scored := e.Score(cat, mustContext(t, intake.Input{BusinessDescription: "x"}), classify.NewTags())
	g := e.Group(scored)

	assert.Equal(t, []string{"d", "a"}, keys(g.Recommended))
	assert.Equal(t, []string{"e", "b"}, keys(g.Often))
	assert.Equal(t, []string{"c"}, keys(g.Not))
	assert.Equal(t, len(scored), len(g.Recommended)+len(g.Often)+len(g.Not))
}

func TestFaultIsIsolated(t *testing.T) {
	boom := catalogue.Product{
		Key: "boom",
		ScoreFunc: func(intake.Context, classify.Tags) int {
			panic(errors.New("bad rule"))
		},
	}
	cat := mustCatalogue(t, fixed("a", 40), boom, fixed("b", 80))

	var faults []Fault
	e := NewEngine(DefaultThresholds)
	e.OnFault = func(f Fault) { faults = append(faults, f) }

	got := e.Score(cat, mustContext(t, intake.Input{BusinessDescription: "x"}), classify.NewTags())
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "a", "boom"}, keys(got))
	assert.Equal(t, 0, got[2].Score)
	assert.True(t, got[2].Faulted)
	assert.Equal(t, BandNot, got[2].Band)
	require.Len(t, faults, 1)
	assert.Equal(t, "boom", faults[0].ProductKey)
	assert.Contains(t, faults[0].Error(), "bad rule")
}

func TestGardenDesignConsultancy(t *testing.T) {
	ctx := mustContext(t, intake.Input{BusinessDescription: "I run a small garden design consultancy", StaffBand: "0"})
	res := classify.Default().Classify(ctx.FreeText())
	assert.True(t, res.Tags.Has(classify.TagProfessional))

	got := NewEngine(DefaultThresholds).Score(catalogue.Default(), ctx, res.Tags)
	byKey := map[string]Scored{}
	for _, s := range got {
		byKey[s.Key] = s
	}
	pi, _ := catalogue.Default().Lookup("pi")
	el, _ := catalogue.Default().Lookup("el")
	assert.GreaterOrEqual(t, byKey["pi"].Score, pi.Base+60)
	assert.Equal(t, el.Base, byKey["el"].Score)
}

func TestBuilderWithToolsConcern(t *testing.T) {
	ctx := mustContext(t, intake.Input{
		BusinessDescription: "builder doing patios and fencing",
		Concerns:            intake.ConcernInput{Selected: []string{"tools"}},
	})
	res := classify.Default().Classify(ctx.FreeText())
	assert.True(t, res.Tags.Has(classify.TagTrades))
	assert.True(t, res.Tags.Has(classify.TagMobileTools))

	e := NewEngine(DefaultThresholds)
	got := e.Score(catalogue.Default(), ctx, res.Tags)
	tools, _ := catalogue.Default().Lookup("tools")

	var found Scored
	for _, s := range got {
		if s.Key == "tools" {
			found = s
		}
	}
	assert.GreaterOrEqual(t, found.Score, tools.Base+100)
	assert.Contains(t, keys(e.Group(got).Recommended), "tools")
}
