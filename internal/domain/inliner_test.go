package domain

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nginline.dev/pkg/nginline/internal/adapter"
	"nginline.dev/pkg/nginline/internal/domain/literal"
	m "nginline.dev/pkg/nginline/internal/model"
)

const componentDoc = `@Component({
  selector: 'app',
  templateUrl: './app.html',
  styleUrls: ['./a.css', './b.css'],
})
class App {}
`

func newMemFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}

	return fs
}

func newTestInliner(t *testing.T, files map[string]string, opts m.Options) Inliner {
	t.Helper()

	return NewInliner(adapter.NewSourceFSAdapter(newMemFS(t, files)), opts)
}

func inline(t *testing.T, in Inliner, path, text string) m.Output {
	t.Helper()

	out, err := in.Inline(context.Background(), m.Document{Path: m.Path(path), Text: text})
	require.NoError(t, err)

	return out
}

func TestInliner_Inline(t *testing.T) {
	in := newTestInliner(t, map[string]string{
		"app.html": "<p>hi</p>",
		"a.css":    ".a{}",
		"b.css":    ".b{}",
	}, m.Options{})

	out := inline(t, in, "app.ts", componentDoc)

	want := "@Component({\n" +
		"  selector: 'app',\n" +
		"  template: `<p>hi</p>`,\n" +
		"  styles: [`.a{}`, `.b{}`],\n" +
		"})\n" +
		"class App {}\n"

	assert.Equal(t, want, out.Text)
	assert.Equal(t, 2, out.Replacements)
	assert.Empty(t, out.Skipped)
	assert.True(t, out.Changed())
}

func TestInliner_Inline_Identity(t *testing.T) {
	in := newTestInliner(t, nil, m.Options{})
	text := "export const a = 1;\nconst b = { templateUrl: 'x.html' };\n"

	out := inline(t, in, "a.ts", text)

	assert.Equal(t, text, out.Text)
	assert.Zero(t, out.Replacements)
	assert.False(t, out.Changed())
	assert.Equal(t, "AAAA;AACA;", out.Map.Mappings)
}

func TestInliner_Inline_SecondPassIsNoop(t *testing.T) {
	in := newTestInliner(t, map[string]string{
		"app.html": "<p>{{ a }}</p>\n",
		"a.css":    ".a{}",
		"b.css":    ".b{}",
	}, m.Options{})

	first := inline(t, in, "app.ts", componentDoc)
	second := inline(t, in, "app.ts", first.Text)

	assert.Equal(t, first.Text, second.Text)
	assert.Zero(t, second.Replacements)
}

func TestInliner_Inline_ContentRoundTrip(t *testing.T) {
	contents := map[string]string{
		"app.html": "<a href=\"x\">it's `${not}` a \\ template</a>\r\n",
		"a.css":    ".a::before { content: '\\201C'; }\n",
		"b.css":    "",
	}

	for _, style := range []m.LiteralStyle{m.StyleTemplate, m.StyleLegacy} {
		t.Run(string(style), func(t *testing.T) {
			in := newTestInliner(t, contents, m.Options{LiteralStyle: style})
			out := inline(t, in, "app.ts", componentDoc)

			refs, err := in.References(context.Background(), m.Document{Path: "app.ts", Text: out.Text})
			require.NoError(t, err)
			assert.Empty(t, refs)

			start := strings.Index(out.Text, "template: ") + len("template: ")
			end := strings.Index(out.Text[start:], ",\n") + start

			got, err := literal.Unquote(out.Text[start:end])
			require.NoError(t, err)
			assert.Equal(t, strings.ReplaceAll(contents["app.html"], "\r\n", "\n"), strings.ReplaceAll(got, "\r\n", "\n"))
		})
	}
}

func TestInliner_Inline_Order(t *testing.T) {
	in := newTestInliner(t, map[string]string{
		"x.css": "X",
		"y.css": "Y",
	}, m.Options{})

	out := inline(t, in, "a.ts", "@Component({ styleUrls: ['y.css', 'x.css'] })")

	assert.Equal(t, "@Component({ styles: [`Y`, `X`] })", out.Text)
}

func TestInliner_Inline_OrderWithLateCompletion(t *testing.T) {
	var (
		mu        sync.Mutex
		completed []string
	)

	settled := make(chan struct{})

	in := newTestInliner(t, map[string]string{
		"a.css": "a",
		"b.css": "b",
	}, m.Options{
		StyleProcessor: func(_ context.Context, path, _, content string, done m.Continuation) {
			record := func() {
				mu.Lock()
				completed = append(completed, path)
				mu.Unlock()
			}

			if path == "a.css" {
				go func() {
					<-settled
					record()
					done(strings.ToUpper(content), nil)
				}()

				return
			}

			record()
			done(strings.ToUpper(content), nil)
			close(settled)
		},
	})

	out := inline(t, in, "app.ts", "@Component({ styleUrls: ['a.css', 'b.css'] })")

	assert.Equal(t, "@Component({ styles: [`A`, `B`] })", out.Text)
	assert.Equal(t, []string{"b.css", "a.css"}, completed)
}

func TestInliner_Inline_MissingFiles(t *testing.T) {
	files := map[string]string{
		"app.html": "T",
		"a.css":    "A",
	}

	t.Run("tolerated", func(t *testing.T) {
		in := newTestInliner(t, files, m.Options{TolerateMissingFiles: true})
		out := inline(t, in, "app.ts", componentDoc)

		assert.Contains(t, out.Text, "template: `T`,")
		assert.Contains(t, out.Text, "styleUrls: ['./a.css', './b.css'],")
		assert.Equal(t, 1, out.Replacements)
		assert.Equal(t, []string{"./b.css"}, out.Skipped)
	})

	t.Run("fatal", func(t *testing.T) {
		in := newTestInliner(t, files, m.Options{})

		_, err := in.Inline(context.Background(), m.Document{Path: "app.ts", Text: componentDoc})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFileNotFound)
		assert.Contains(t, err.Error(), "./b.css")
	})
}

func TestInliner_Inline_Options(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		opts  m.Options
		path  string
		text  string
		want  string
	}{
		{
			name:  "remove line breaks",
			files: map[string]string{"a.html": "a\n  b\n"},
			opts:  m.Options{RemoveLineBreaks: true},
			text:  "@Component({ templateUrl: 'a.html' })",
			want:  "@Component({ template: `a b` })",
		},
		{
			name:  "legacy style",
			files: map[string]string{"a.html": "it's\nx"},
			opts:  m.Options{LiteralStyle: m.StyleLegacy},
			text:  "@Component({ templateUrl: 'a.html' })",
			want:  `@Component({ template: 'it\'s\nx' })`,
		},
		{
			name:  "quoted key keeps its quotes",
			files: map[string]string{"a.html": "A"},
			text:  `@Component({ "templateUrl": 'a.html' })`,
			want:  "@Component({ \"template\": `A` })",
		},
		{
			name:  "single style url",
			files: map[string]string{"a.css": "A"},
			text:  "@Component({ styleUrl: './a.css' })",
			want:  "@Component({ styles: `A` })",
		},
		{
			name:  "one styles property per block",
			files: map[string]string{"a.css": "A", "b.css": "B"},
			text:  "@Component({ styleUrl: 'a.css', styleUrls: ['b.css'] })",
			want:  "@Component({ styles: `A`, styleUrls: ['b.css'] })",
		},
		{
			name:  "merge styles",
			files: map[string]string{"a.css": ".a{}\n", "b.css": ".b{}"},
			opts:  m.Options{MergeStyles: true},
			text:  "@Component({ styleUrls: ['a.css', 'b.css'] })",
			want:  "@Component({ styles: [`.a{}\n.b{}`] })",
		},
		{
			name:  "indent",
			files: map[string]string{"a.html": "<p>\n  hi\n</p>\n"},
			opts:  m.Options{Indent: 2},
			text:  "@Component({\n  templateUrl: 'a.html'\n})",
			want:  "@Component({\n  template: `\n    <p>\n      hi\n    </p>\n  `\n})",
		},
		{
			name:  "indent leaves single line alone",
			files: map[string]string{"a.html": "<p>hi</p>\n"},
			opts:  m.Options{Indent: 2},
			text:  "@Component({ templateUrl: 'a.html' })",
			want:  "@Component({ template: `<p>hi</p>\n` })",
		},
		{
			name:  "extensionless reference",
			files: map[string]string{"a.html": "A"},
			text:  "@Component({ templateUrl: 'a' })",
			want:  "@Component({ template: `A` })",
		},
		{
			name:  "extension override",
			files: map[string]string{"a.pug": "P", "b.scss": "S"},
			opts:  m.Options{TemplateExtension: "pug", StyleExtension: ".scss"},
			text:  "@Component({ templateUrl: 'a.html', styleUrls: ['b'] })",
			want:  "@Component({ template: `P`, styles: [`S`] })",
		},
		{
			name:  "relative paths",
			files: map[string]string{"src/app/a.html": "R"},
			opts:  m.Options{UseRelativePaths: true},
			path:  "src/app/app.ts",
			text:  "@Component({ templateUrl: './a.html' })",
			want:  "@Component({ template: `R` })",
		},
		{
			name:  "base directory",
			files: map[string]string{"assets/a.html": "B"},
			opts:  m.Options{BaseDirectory: "assets"},
			path:  "src/app.ts",
			text:  "@Component({ templateUrl: 'a.html' })",
			want:  "@Component({ template: `B` })",
		},
		{
			name:  "custom file path",
			files: map[string]string{"dist/a.html": "C"},
			opts: m.Options{CustomFilePath: func(_ m.ContentKind, ref string) string {
				return "dist/" + ref
			}},
			text: "@Component({ templateUrl: 'a.html' })",
			want: "@Component({ template: `C` })",
		},
		{
			name:  "view block joined with component",
			files: map[string]string{"v.html": "V"},
			text:  "@Component({ selector: 'a' })\n@View({ templateUrl: 'v.html' })\nclass A {}",
			want:  "@Component({ selector: 'a' })\n@View({ template: `V` })\nclass A {}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = "app.ts"
			}

			in := newTestInliner(t, tt.files, tt.opts)
			out := inline(t, in, path, tt.text)
			assert.Equal(t, tt.want, out.Text)
		})
	}
}

func TestInliner_Inline_ReferenceIDRemoval(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "own line",
			text: "@Component({\n  moduleId: module.id,\n  templateUrl: 'a.html',\n})",
			want: "@Component({\n  template: `A`,\n})",
		},
		{
			name: "own line with crlf",
			text: "@Component({\r\n  moduleId: module.id,\r\n  templateUrl: 'a.html'\r\n})",
			want: "@Component({\r\n  template: `A`\r\n})",
		},
		{
			name: "same line",
			text: "@Component({ moduleId: module.id, templateUrl: 'a.html' })",
			want: "@Component({ template: `A` })",
		},
		{
			name: "last property",
			text: "@Component({ templateUrl: 'a.html', moduleId: module.id })",
			want: "@Component({ template: `A` })",
		},
		{
			name: "duplicate keeps the second",
			text: "@Component({\n  moduleId: module.id,\n  moduleId: module.id\n})",
			want: "@Component({\n  moduleId: module.id\n})",
		},
		{
			name: "duplicate next to a reference",
			text: "@Component({ moduleId: module.id, moduleId: module.id, templateUrl: 'a.html' })",
			want: "@Component({ moduleId: module.id, template: `A` })",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newTestInliner(t, map[string]string{"a.html": "A"}, m.Options{RemoveReferenceIDProperty: true})
			out := inline(t, in, "app.ts", tt.text)
			assert.Equal(t, tt.want, out.Text)
		})
	}

	t.Run("kept by default", func(t *testing.T) {
		in := newTestInliner(t, map[string]string{"a.html": "A"}, m.Options{})
		out := inline(t, in, "app.ts", tests[2].text)
		assert.Equal(t, "@Component({ moduleId: module.id, template: `A` })", out.Text)
	})
}

func TestInliner_Inline_Processors(t *testing.T) {
	upper := func(_ context.Context, _, _, content string, done m.Continuation) {
		done(strings.ToUpper(content), nil)
	}

	t.Run("kind processors", func(t *testing.T) {
		in := newTestInliner(t, map[string]string{"a.html": "t", "b.css": "s"}, m.Options{
			TemplateProcessor: upper,
			StyleProcessor: func(_ context.Context, path, ext, content string, done m.Continuation) {
				done(path+ext+content, nil)
			},
		})

		out := inline(t, in, "app.ts", "@Component({ templateUrl: 'a.html', styleUrls: ['b.css'] })")
		assert.Equal(t, "@Component({ template: `T`, styles: [`b.css.csss`] })", out.Text)
	})

	t.Run("extension processor wins", func(t *testing.T) {
		in := newTestInliner(t, map[string]string{"a.scss": "s", "b.css": "c"}, m.Options{
			StyleProcessor: upper,
			Processors: map[string]m.Processor{
				".scss": func(_ context.Context, _, _, content string, done m.Continuation) {
					done("compiled "+content, nil)
				},
			},
		})

		out := inline(t, in, "app.ts", "@Component({ styleUrls: ['a.scss', 'b.css'] })")
		assert.Equal(t, "@Component({ styles: [`compiled s`, `C`] })", out.Text)
	})

	t.Run("asynchronous continuation", func(t *testing.T) {
		in := newTestInliner(t, map[string]string{"a.html": "t"}, m.Options{
			TemplateProcessor: func(_ context.Context, _, _, content string, done m.Continuation) {
				go done(content+"!", nil)
			},
		})

		out := inline(t, in, "app.ts", "@Component({ templateUrl: 'a.html' })")
		assert.Equal(t, "@Component({ template: `t!` })", out.Text)
	})

	t.Run("failure", func(t *testing.T) {
		in := newTestInliner(t, map[string]string{"a.html": "t"}, m.Options{
			TemplateProcessor: func(_ context.Context, _, _, _ string, done m.Continuation) {
				done("", errors.New("boom"))
			},
		})

		_, err := in.Inline(context.Background(), m.Document{Path: "app.ts", Text: "@Component({ templateUrl: 'a.html' })"})
		require.Error(t, err)
		assert.Equal(t, "boom", err.Error())
		assert.ErrorIs(t, err, ErrProcessor)

		var procErr *ProcessorError
		require.ErrorAs(t, err, &procErr)
		assert.Equal(t, m.Path("a.html"), procErr.Path)
	})
}

func TestInliner_Inline_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
	}{
		{"unbalanced block", "@Component({ templateUrl: 'a.html' )", ErrMalformedSource},
		{"empty value", "@Component({ templateUrl: , selector: 'a' })", ErrPropertyExtraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newTestInliner(t, map[string]string{"a.html": "A"}, m.Options{})

			_, err := in.Inline(context.Background(), m.Document{Path: "app.ts", Text: tt.text})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestInliner_Inline_Canceled(t *testing.T) {
	in := newTestInliner(t, map[string]string{"a.html": "A"}, m.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := in.Inline(ctx, m.Document{Path: "app.ts", Text: "@Component({ templateUrl: 'a.html' })"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInliner_Inline_SourceMap(t *testing.T) {
	in := newTestInliner(t, map[string]string{"a.html": "line1\nline2"}, m.Options{})
	text := "@Component({ templateUrl: 'a.html' })\nclass A {}"

	out := inline(t, in, "src/app.ts", text)

	assert.Equal(t, 3, out.Map.Version)
	assert.Equal(t, "app.ts", out.Map.File)
	assert.Equal(t, []string{"src/app.ts"}, out.Map.Sources)
	assert.Equal(t, []string{text}, out.Map.SourcesContent)
	// Three generated lines: the two template lines and the class.
	assert.Equal(t, 2, strings.Count(out.Map.Mappings, ";"))
}

func TestInliner_References(t *testing.T) {
	in := newTestInliner(t, nil, m.Options{})

	refs, err := in.References(context.Background(), m.Document{Path: "app.ts", Text: componentDoc})
	require.NoError(t, err)

	assert.Equal(t, []m.ReferenceInfo{
		{Path: "app.ts", Block: m.KindComponent, Line: 3, Property: "templateUrl", Targets: []string{"./app.html"}},
		{Path: "app.ts", Block: m.KindComponent, Line: 4, Property: "styleUrls", Targets: []string{"./a.css", "./b.css"}},
	}, refs)
}

func TestInliner_Dependencies(t *testing.T) {
	in := newTestInliner(t, nil, m.Options{UseRelativePaths: true})

	deps, err := in.Dependencies(context.Background(), m.Document{Path: "src/app.ts", Text: componentDoc})
	require.NoError(t, err)

	assert.Equal(t, []m.Path{"src/app.html", "src/a.css", "src/b.css"}, deps)
}
