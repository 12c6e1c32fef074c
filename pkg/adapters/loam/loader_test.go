package loam_test

import (
	"context"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/strata/internal/testutils"
	loamAdapter "github.com/aretw0/strata/pkg/adapters/loam"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesJSON = `{
  "weights": {"hat__": {"Crown": 5, "Cap": 95}},
  "specific": [
    {"trait": "Hat", "value": "Crown", "exclude_with": [{"trait": "Hair", "value": "Bald"}]}
  ],
  "global": {"enableDynamicContext": true},
  "contextOverrides": {"fullbody": ["outfit"]}
}`

func TestLoader_Contract(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string][]byte{"rules.json": []byte(rulesJSON)})

	loader, err := loamAdapter.Open(dir)
	require.NoError(t, err)

	tests.RuleLoaderContractTest(t, loader)
}

func TestLoader_LoadRules_Normalizes(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string][]byte{"rules.json": []byte(rulesJSON)})

	loader, err := loamAdapter.Open(dir)
	require.NoError(t, err)

	set, _, err := loader.LoadRules(context.Background())
	require.NoError(t, err)

	// integers arrive as json.Number in strict mode
	w, ok := set.Weight(domain.Bucket{Category: "hat"}, "crown")
	require.True(t, ok)
	assert.Equal(t, 5.0, w)
	require.Len(t, set.Rules, 1)
	assert.Equal(t, "hat", set.Rules[0].Primary.Category)
	require.Len(t, set.Overrides, 1)
	assert.Equal(t, []string{"outfit"}, set.Overrides[0].Skip)
}

func TestLoader_YAML(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string][]byte{"strata-rules.yaml": []byte(`
specific:
  - {trait: hat, value: crown, require_with: [{trait: hair, value: short}]}
global:
  enableDynamicContext: false
`)})

	loader, err := loamAdapter.Open(dir, loamAdapter.WithRulesID("strata-rules"))
	require.NoError(t, err)

	set, _, err := loader.LoadRules(context.Background())
	require.NoError(t, err)
	require.Len(t, set.Rules, 1)
	assert.Len(t, set.Rules[0].RequireWith, 1)
}

func TestLoader_AbsentDocuments(t *testing.T) {
	loader, err := loamAdapter.Open(t.TempDir())
	require.NoError(t, err)

	set, warns, err := loader.LoadRules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Empty(t, set.Rules)

	custom, err := loader.LoadCustomTokens(context.Background())
	require.NoError(t, err)
	assert.Empty(t, custom)
}

func TestLoader_LoadCustomTokens(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string][]byte{"custom/tokens.json": []byte(`{
  "items": [
    {"id": "ghost", "file": "ghost.gif", "name": "Ghost", "include": true,
     "attributes": [{"trait_type": "Special", "value": "Ghost"}]},
    {"id": "draft", "file": "draft.png", "name": "Draft", "include": false}
  ]
}`)})

	loader, err := loamAdapter.Open(dir)
	require.NoError(t, err)

	custom, err := loader.LoadCustomTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, custom, 1)
	assert.Equal(t, "ghost.gif", custom[0].File)
	assert.Equal(t, []domain.Attribute{{TraitType: "Special", Value: "Ghost"}}, custom[0].Attributes)
}

func TestLoader_New_ExistingRepository(t *testing.T) {
	dir, repo := testutils.SetupTestRepo(t, loam.WithReadOnly(true), loam.WithStrict(true))
	testutils.WriteFiles(t, dir, map[string][]byte{"rules.yaml": []byte(`
weights:
  hat__:
    crown: 0
`)})

	loader := loamAdapter.New(repo, dir)
	set, _, err := loader.LoadRules(context.Background())
	require.NoError(t, err)

	w, ok := set.Weight(domain.Bucket{Category: "hat"}, "crown")
	require.True(t, ok)
	assert.Zero(t, w)
}
