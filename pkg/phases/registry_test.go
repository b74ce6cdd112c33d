package phases

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCompilesEveryPhase(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	ids := r.List()
	require.Len(t, ids, 17)
	assert.Equal(t, Intake, ids[0])
	assert.Equal(t, Synthesis, ids[len(ids)-1])

	for i, id := range ids {
		c, err := r.Contract(id)
		require.NoError(t, err, id)
		assert.Equal(t, i, c.Order)
		assert.NotNil(t, c.Schema(), id)
		assert.NotEmpty(t, c.RequiredFields, id)
		assert.NotEmpty(t, c.Title, id)
	}
}

func TestEvidenceBearingPhases(t *testing.T) {
	r := Default()
	var got []string
	for _, id := range r.List() {
		if r.IsEvidenceBearing(id) {
			got = append(got, id)
		}
	}
	assert.Equal(t, []string{MarketResearch, CompetitiveIntel}, got)
	assert.False(t, r.IsEvidenceBearing("no-such-phase"))
}

func TestResolveAliasesAndNormalization(t *testing.T) {
	r := Default()
	cases := map[string]string{
		"market-research":          MarketResearch,
		"Market_Research":          MarketResearch,
		"  MARKET RESEARCH ":       MarketResearch,
		"competitive-intelligence": CompetitiveIntel,
		"Go To Market":             GTMStrategy,
		"GTM":                      GTMStrategy,
		"Executive Summary":        Synthesis,
	}
	for in, want := range cases {
		got, ok := r.Resolve(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	got, ok := r.Resolve("ｏｐｐｏｒｔｕｎｉｔｙ")
	assert.True(t, ok)
	assert.Equal(t, Opportunity, got)

	_, ok = r.Resolve("astrology")
	assert.False(t, ok)

	_, err := r.Contract("astrology")
	assert.ErrorIs(t, err, ErrUnknownPhase)
}

func TestWithAliases(t *testing.T) {
	r, err := NewRegistry(WithAliases(map[string]string{"TAM analysis": "market"}))
	require.NoError(t, err)
	got, ok := r.Resolve("tam-analysis")
	require.True(t, ok)
	assert.Equal(t, MarketResearch, got)

	_, err = NewRegistry(WithAliases(map[string]string{"horoscope": "astrology"}))
	assert.ErrorIs(t, err, ErrUnknownPhase)
}

func TestNext(t *testing.T) {
	r := Default()
	next, ok := r.Next("intake")
	require.True(t, ok)
	assert.Equal(t, Opportunity, next)

	_, ok = r.Next(Synthesis)
	assert.False(t, ok)
	_, ok = r.Next("astrology")
	assert.False(t, ok)
}

func TestContractAcceptsSameMajor(t *testing.T) {
	c, err := Default().Contract(MarketResearch)
	require.NoError(t, err)

	assert.True(t, c.Accepts(semver.MustParse("1.0.0")))
	assert.True(t, c.Accepts(semver.MustParse("1.9.3")))
	assert.False(t, c.Accepts(semver.MustParse("2.0.0")))
	assert.False(t, c.Accepts(semver.MustParse("0.9.0")))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "customer-intel", Normalize("Customer__Intel"))
	assert.Equal(t, "tech-architecture", Normalize("\tTech  Architecture\n"))
	assert.Equal(t, "", Normalize("   "))
}
