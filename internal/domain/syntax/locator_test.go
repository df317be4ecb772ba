package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "nginline.dev/pkg/nginline/internal/model"
)

func collectBlocks(t *testing.T, text string) []m.Block {
	t.Helper()

	var blocks []m.Block

	for block, err := range NewLocator(m.DefaultSignatures()).Blocks(text) {
		require.NoError(t, err)

		blocks = append(blocks, block)
	}

	return blocks
}

func TestLocator_Blocks(t *testing.T) {
	text := "import x from 'y';\n@Component({ selector: 'a' })\nclass A {}\n"

	blocks := collectBlocks(t, text)
	require.Len(t, blocks, 1)

	block := blocks[0]
	assert.Equal(t, m.KindComponent, block.Kind)
	assert.Equal(t, "Component", block.Name)
	assert.Equal(t, "@Component", text[block.Start:block.Start+10])
	assert.Equal(t, "{ selector: 'a' }", text[block.Open:block.End])
	assert.Equal(t, "@Component({ selector: 'a' })", text[block.Start:block.CallEnd])
}

func TestLocator_Blocks_Ignored(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no decorator", "const a = { templateUrl: 'a.html' };"},
		{"unknown decorator", "@Injectable({ providedIn: 'root' }) class S {}"},
		{"decorator in string", `const s = "@Component({ templateUrl: 'a.html' })";`},
		{"decorator in line comment", "// @Component({ templateUrl: 'a.html' })\n"},
		{"decorator in block comment", "/* @Component({}) */"},
		{"decorator in template literal", "const s = `@Component({})`;"},
		{"call without object", "@Component(config) class A {}"},
		{"no call", "@Component class A {}"},
		{"email address", "mail me at a@b.c"},
		{"unterminated quote outside blocks", "it's fine\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, collectBlocks(t, tt.text))
		})
	}
}

func TestLocator_Blocks_Malformed(t *testing.T) {
	text := "@Component({ templateUrl: 'a.html' )"

	var errs []error

	for _, err := range NewLocator(m.DefaultSignatures()).Blocks(text) {
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrMalformedSource)
}

func TestLocator_Blocks_Multiple(t *testing.T) {
	text := `@Component({ a: 1 }) class A {}
@Component ( /* c */ { b: 2 } ) class B {}
@View({ c: 3 }) class C {}`

	blocks := collectBlocks(t, text)
	require.Len(t, blocks, 3)
	assert.Equal(t, "{ a: 1 }", text[blocks[0].Open:blocks[0].End])
	assert.Equal(t, "{ b: 2 }", text[blocks[1].Open:blocks[1].End])
	assert.Equal(t, m.KindView, blocks[2].Kind)
}

func TestLocator_Units(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		units []int
	}{
		{"component joined with view", "@Component({ a: 1 })\n@View({ b: 2 })\nclass A {}", []int{2}},
		{"comment between", "@Component({ a: 1 }) /* x */ @View({ b: 2 }) class A {}", []int{2}},
		{"code between", "@Component({ a: 1 }) class A {}\n@View({ b: 2 }) class B {}", []int{1, 1}},
		{"view before component", "@View({ b: 2 })\n@Component({ a: 1 })\nclass A {}", []int{1, 1}},
		{"two components", "@Component({ a: 1 })\n@Component({ a: 2 })\nclass A {}", []int{1, 1}},
		{"lone view", "@View({ b: 2 }) class A {}", []int{1}},
		{"none", "class A {}", []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, err := NewLocator(m.DefaultSignatures()).Units(tt.text)
			require.NoError(t, err)

			sizes := make([]int, 0, len(units))
			for _, unit := range units {
				sizes = append(sizes, len(unit.Blocks))
			}

			assert.Equal(t, tt.units, sizes)
		})
	}
}
