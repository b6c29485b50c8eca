package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyl/universe/internal/domain"
)

func TestDefault_LoadsEveryCollection(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	var names []string
	for _, coll := range c.All() {
		names = append(names, coll.Name)
	}
	assert.Equal(t, []string{
		"todos", "books", "weekly_plan", "monthly_plans",
		"yearly_plans", "schedules", "skin_reviews", "thoughts",
	}, names)

	monthly, err := c.Get("monthly_plans")
	require.NoError(t, err)
	assert.Equal(t, "plans", monthly.Table)

	weekly, err := c.Get("weekly_plan")
	require.NoError(t, err)
	assert.Equal(t, "day", weekly.Scope.Column)
	assert.Len(t, Scopes(weekly), 7)
	assert.Equal(t, []string{""}, Scopes(monthly))
}

func TestDefault_DefaultsAreNormalized(t *testing.T) {
	c := MustDefault()
	reviews, err := c.Get("skin_reviews")
	require.NoError(t, err)

	fields, err := reviews.NewRowFields(domain.Fields{"name": "Toner X"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), fields["rating"])
	assert.Equal(t, true, fields["repurchase"])
	assert.Equal(t, "Toner", fields["category"])
}

func TestGet_Unknown(t *testing.T) {
	_, err := MustDefault().Get("recipes")
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader(`
collections:
  - name: notes
    table: notes
    title_field: body
    colour: red
    fields:
      - {name: body, kind: text}
`))
	assert.ErrorIs(t, err, domain.ErrInvalidCatalog)
}

func TestNew_RejectsSharedTable(t *testing.T) {
	a := &domain.Collection{Name: "a", Table: "t", TitleField: "x", Fields: []domain.FieldSpec{{Name: "x", Kind: domain.FieldText}}}
	b := &domain.Collection{Name: "b", Table: "t", TitleField: "x", Fields: []domain.FieldSpec{{Name: "x", Kind: domain.FieldText}}}

	_, err := New(a, b)
	assert.ErrorIs(t, err, domain.ErrInvalidCatalog)
}

func TestDefault_LoadsRecordSets(t *testing.T) {
	c := MustDefault()

	var names []string
	for _, set := range c.RecordSets() {
		names = append(names, set.Name)
	}
	assert.Equal(t, []string{"health_logs", "bio_config", "skin_profile"}, names)

	logs, err := c.RecordSet("health_logs")
	require.NoError(t, err)
	assert.Equal(t, "date", logs.KeyColumn())

	fields, err := logs.NewRecordFields(domain.Fields{"weight": 71.2})
	require.NoError(t, err)
	assert.Equal(t, 71.2, fields["weight"])
	assert.Equal(t, 0.0, fields["bmr"])

	profile, err := c.RecordSet("skin_profile")
	require.NoError(t, err)
	assert.True(t, profile.Singleton())

	_, err = c.RecordSet("todos")
	assert.ErrorIs(t, err, domain.ErrRecordSetNotFound)
}

func TestNewWithRecords_RejectsTableShared(t *testing.T) {
	coll := &domain.Collection{Name: "a", Table: "t", TitleField: "x", Fields: []domain.FieldSpec{{Name: "x", Kind: domain.FieldText}}}
	set := &domain.RecordSet{Name: "b", Table: "t", Fields: []domain.FieldSpec{{Name: "x", Kind: domain.FieldText}}}

	_, err := NewWithRecords([]*domain.Collection{coll}, []*domain.RecordSet{set})
	assert.ErrorIs(t, err, domain.ErrInvalidCatalog)
}
