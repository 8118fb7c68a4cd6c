package assets

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipsmith/shipsmith/internal/model"
)

func newTestGenerator(t *testing.T) (*Generator, string) {
	t.Helper()
	dir := t.TempDir()
	return NewGenerator(dir), dir
}

func testProduct(productType model.ProductType) model.Product {
	p := model.NewProduct("problem-1", "Tame Your CI Pipeline - Complete Guide", productType)
	p.TargetPersona = "Professional developers seeking solutions"
	p.ValueProposition = "Step-by-step guide to resolve 'CI flakes' permanently."
	p.Features = []string{"Solves the core problem directly", "Minimal setup required", "Clear documentation included"}
	p.NonGoals = []string{"No enterprise-scale features"}
	p.WhyShippable = "Documentation-only product."
	return p
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestGenerator_GenerateCommonFiles(t *testing.T) {
	g, root := newTestGenerator(t)
	product := testProduct(model.ProductTypeGuide)

	dir, err := g.Generate(product)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, product.ID), dir)

	readme := readFile(t, filepath.Join(dir, "README.md"))
	assert.Contains(t, readme, "# "+product.Title)
	assert.Contains(t, readme, product.ValueProposition)
	assert.Contains(t, readme, "- Solves the core problem directly")
	assert.Contains(t, readme, "- No enterprise-scale features")

	usage := readFile(t, filepath.Join(dir, "USAGE.md"))
	assert.Contains(t, usage, "Usage Instructions - "+product.Title)
}

func TestGenerator_GenerateScript(t *testing.T) {
	g, _ := newTestGenerator(t)
	product := testProduct(model.ProductTypeScript)

	dir, err := g.Generate(product)
	require.NoError(t, err)

	script := readFile(t, filepath.Join(dir, "script.py"))
	assert.Contains(t, script, product.Title)
	assert.Contains(t, script, product.ValueProposition)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dir, "script.py"))
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&0o111, "script must be executable")
	}
}

func TestGenerator_GenerateMicroTool(t *testing.T) {
	g, _ := newTestGenerator(t)
	dir, err := g.Generate(testProduct(model.ProductTypeMicroTool))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "main.py"))
	assert.FileExists(t, filepath.Join(dir, "requirements.txt"))
}

func TestGenerator_GenerateGuide(t *testing.T) {
	g, _ := newTestGenerator(t)
	dir, err := g.Generate(testProduct(model.ProductTypeGuide))
	require.NoError(t, err)

	for _, name := range []string{"01-introduction.md", "02-steps.md", "troubleshooting.md"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	intro := readFile(t, filepath.Join(dir, "01-introduction.md"))
	assert.Contains(t, intro, "1. Solves the core problem directly")
}

func TestGenerator_GenerateTemplate(t *testing.T) {
	g, _ := newTestGenerator(t)
	dir, err := g.Generate(testProduct(model.ProductTypeTemplate))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "template", "config.ini"))
	assert.FileExists(t, filepath.Join(dir, "INTEGRATION.md"))
}

func TestGenerator_GenerateIsIdempotent(t *testing.T) {
	g, _ := newTestGenerator(t)
	product := testProduct(model.ProductTypeGuide)

	first, err := g.Generate(product)
	require.NoError(t, err)
	second, err := g.Generate(product)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerator_GenerateCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "artifacts")
	g := NewGenerator(root)

	dir, err := g.Generate(testProduct(model.ProductTypeGuide))
	require.NoError(t, err)
	assert.DirExists(t, dir)
}
