package connector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/connector"
)

func TestResolveTemplate(t *testing.T) {
	fields := map[string]string{"id": "42", "slug": "hello-world"}

	resolved, err := connector.ResolveTemplate("/articles/{id}/{slug}", fields)
	require.NoError(t, err)
	assert.Equal(t, "/articles/42/hello-world", resolved)
}

func TestResolveTemplateMissingField(t *testing.T) {
	_, err := connector.ResolveTemplate("/articles/{id}", map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing fields: id")
}

func TestResolveTemplateNoPlaceholders(t *testing.T) {
	resolved, err := connector.ResolveTemplate("/static/path", nil)
	require.NoError(t, err)
	assert.Equal(t, "/static/path", resolved)
}

func TestURLTemplatesItemURL(t *testing.T) {
	tpl := connector.NewURLTemplates("https://portal.example/", "items/{id}", "", "")

	url, err := tpl.ItemURL(map[string]string{"id": "7"})
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example/items/7", url)
}

func TestURLTemplatesAbsoluteItemURL(t *testing.T) {
	tpl := connector.NewURLTemplates("https://portal.example", "https://other.example/{id}", "", "")

	url, err := tpl.ItemURL(map[string]string{"id": "7"})
	require.NoError(t, err)
	assert.Equal(t, "https://other.example/7", url)
}

func TestURLTemplatesValidate(t *testing.T) {
	assert.NoError(t, connector.NewURLTemplates("", "items/{id}", "", "").Validate())
	assert.Error(t, connector.NewURLTemplates("", "items/{id", "", "").Validate())
	assert.Error(t, connector.NewURLTemplates("", "items/{{id}}", "", "").Validate())
}
