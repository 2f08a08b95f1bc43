package render

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptledger/PromptLedger/internal/models"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		variables map[string]any
		want      string
	}{
		{"simple", "Hello {{name}}", map[string]any{"name": "Ada"}, "Hello Ada"},
		{"spaces inside tag", "Hello {{ name }}!", map[string]any{"name": "Ada"}, "Hello Ada!"},
		{"repeated", "{{a}}-{{a}}", map[string]any{"a": "x"}, "x-x"},
		{"number", "n={{n}}", map[string]any{"n": 42}, "n=42"},
		{"float", "t={{t}}", map[string]any{"t": 0.5}, "t=0.5"},
		{"nil renders empty", "[{{v}}]", map[string]any{"v": nil}, "[]"},
		{"dotted", "Hi {{user.name}}", map[string]any{"user": map[string]any{"name": "Bo"}}, "Hi Bo"},
		{"literal dotted key wins", "{{a.b}}", map[string]any{"a.b": "flat", "a": map[string]any{"b": "nested"}}, "flat"},
		{"no placeholders", "static text", nil, "static text"},
		{"extra variables ignored", "{{x}}", map[string]any{"x": "1", "y": "2"}, "1"},
		{"large float without exponent", "n={{n}}", map[string]any{"n": 12345678.0}, "n=12345678"},
		{"nested map as json", "{{m}}", map[string]any{"m": map[string]any{"a": 1}}, `{"a":1}`},
		{"list as json", "{{l}}", map[string]any{"l": []any{"x", 2}}, `["x",2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, tt.variables)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_VariablesDecodedFromJSON(t *testing.T) {
	body := `{"n": 12345678, "id": 9007199254740993, "ratio": 0.25, "user": {"age": 41}}`
	template := "n={{n}} id={{id}} ratio={{ratio}} age={{user.age}}"

	t.Run("json numbers render verbatim", func(t *testing.T) {
		dec := json.NewDecoder(strings.NewReader(body))
		dec.UseNumber()
		var vars map[string]any
		require.NoError(t, dec.Decode(&vars))

		got, err := Render(template, vars)
		require.NoError(t, err)
		assert.Equal(t, "n=12345678 id=9007199254740993 ratio=0.25 age=41", got)
	})

	t.Run("float64 values never use exponents", func(t *testing.T) {
		var vars map[string]any
		require.NoError(t, json.Unmarshal([]byte(body), &vars))

		got, err := Render("n={{n}} ratio={{ratio}}", vars)
		require.NoError(t, err)
		assert.Equal(t, "n=12345678 ratio=0.25", got)
	})
}

func TestRender_MissingVariableFailsFast(t *testing.T) {
	_, err := Render("Hello {{name}}, you are {{age}}", map[string]any{"age": 3})
	require.Error(t, err)

	var renderErr *models.RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, "name", renderErr.Variable)
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestRender_MissingNestedVariable(t *testing.T) {
	_, err := Render("{{user.email}}", map[string]any{"user": map[string]any{"name": "Bo"}})
	var renderErr *models.RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, "user.email", renderErr.Variable)
}

func TestRender_MalformedTemplate(t *testing.T) {
	_, err := Render("Hello {{name", map[string]any{"name": "Ada"})
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = Render("Hello {{  }}", nil)
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestVariables(t *testing.T) {
	names, err := Variables("{{ b }} {{a}} {{b}} {{c.d}}")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c.d"}, names)
}
