// Package assets generates the deliverable files for a defined product.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shipsmith/shipsmith/internal/model"
)

// Generator writes product asset files under a per-product directory.
type Generator struct {
	artifactsDir string
}

// NewGenerator creates a generator rooted at artifactsDir.
func NewGenerator(artifactsDir string) *Generator {
	return &Generator{artifactsDir: artifactsDir}
}

// Generate writes all assets for the product and returns the asset
// directory path. Regenerating into an existing directory overwrites
// the files in place.
func (g *Generator) Generate(product model.Product) (string, error) {
	dir := filepath.Join(g.artifactsDir, product.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "assets: create product dir %s", dir)
	}

	files := map[string]string{
		"README.md": readme(product),
		"USAGE.md":  usage(product),
	}

	var err error
	switch product.ProductType {
	case model.ProductTypeScript:
		files["script.py"] = scriptSource(product)
	case model.ProductTypeMicroTool:
		files["main.py"] = toolSource(product)
		files["requirements.txt"] = "# Add required dependencies here\n"
	case model.ProductTypeGuide:
		files["01-introduction.md"] = guideIntroduction(product)
		files["02-steps.md"] = guideSteps
		files["troubleshooting.md"] = guideTroubleshooting
	default:
		if err = os.MkdirAll(filepath.Join(dir, "template"), 0o755); err != nil {
			return "", eris.Wrap(err, "assets: create template dir")
		}
		files[filepath.Join("template", "config.ini")] = templateConfig(product)
		files["INTEGRATION.md"] = templateIntegration(product)
	}

	for name, content := range files {
		mode := os.FileMode(0o644)
		if name == "script.py" {
			mode = 0o755
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), mode); err != nil {
			return "", eris.Wrapf(err, "assets: write %s", name)
		}
	}

	zap.L().Info("assets: generated",
		zap.String("product_id", product.ID),
		zap.String("dir", dir),
		zap.Int("files", len(files)))
	return dir, nil
}

func readme(p model.Product) string {
	return fmt.Sprintf(`# %s

## Overview

%s

## Target Audience

%s

## Features

%s

## What This Is NOT

%s

## Why This is Shippable

%s

## Quick Start

See `+"`USAGE.md`"+` for detailed instructions.

## License

MIT License - Use freely in your projects.
`, p.Title, p.ValueProposition, p.TargetPersona, bulletList(p.Features), bulletList(p.NonGoals), p.WhyShippable)
}

func usage(p model.Product) string {
	header := fmt.Sprintf("# Usage Instructions - %s\n\n## Installation\n\n", p.Title)

	switch p.ProductType {
	case model.ProductTypeScript:
		return header + `1. Download the script file
2. Make it executable: ` + "`chmod +x script.py`" + `
3. Run: ` + "`./script.py`" + `

## Configuration

Edit the configuration section at the top of the script to customize behavior.

## Examples

` + "```bash" + `
# Basic usage
./script.py

# With options
./script.py --option value
` + "```" + `
`
	case model.ProductTypeMicroTool:
		return header + `1. Download and extract the tool
2. Install dependencies: ` + "`pip install -r requirements.txt`" + `
3. Run: ` + "`python main.py`" + `

## Usage

Launch the tool and follow the on-screen instructions.
`
	case model.ProductTypeGuide:
		return header + `This is a guide document. Read through the sections in order.

## Navigation

- Start with ` + "`01-introduction.md`" + `
- Follow the numbered sections
- Reference ` + "`troubleshooting.md`" + ` if you encounter issues
`
	default:
		return header + `1. Copy the template files to your project
2. Customize the configuration files
3. Follow the integration guide

## Customization

Edit the provided files to match your requirements.
`
	}
}

func scriptSource(p model.Product) string {
	return fmt.Sprintf(`#!/usr/bin/env python3
"""
%s

%s
"""

import argparse
import sys


def main():
    parser = argparse.ArgumentParser(description=%q)
    parser.add_argument("--verbose", action="store_true", help="Enable verbose output")
    args = parser.parse_args()

    if args.verbose:
        print("Running in verbose mode...")

    print("Script executed successfully!")
    return 0


if __name__ == "__main__":
    sys.exit(main())
`, p.Title, p.ValueProposition, p.Title)
}

func toolSource(p model.Product) string {
	return fmt.Sprintf(`#!/usr/bin/env python3
"""
%s

%s
"""


def main():
    print("=" * 50)
    print(%q)
    print("=" * 50)
    print()
    print("Operation completed successfully!")


if __name__ == "__main__":
    main()
`, p.Title, p.ValueProposition, p.Title)
}

func guideIntroduction(p model.Product) string {
	sections := make([]string, 0, 3)
	for i, f := range p.Features {
		if i == 3 {
			break
		}
		sections = append(sections, strings.ReplaceAll(f, "Step-by-step ", ""))
	}
	return fmt.Sprintf(`# Introduction - %s

## What You'll Learn

%s

## Prerequisites

- Basic understanding of the problem domain
- Access to necessary tools/software

## Structure

This guide is organized into the following sections:

%s
`, p.Title, p.ValueProposition, numberedList(sections))
}

const guideSteps = `# Step-by-Step Instructions

## Step 1: Setup

1. First action
2. Second action
3. Third action

## Step 2: Implementation

1. First action
2. Second action
3. Third action

## Step 3: Verification

1. Test your implementation
2. Verify the results
`

const guideTroubleshooting = `# Troubleshooting

## Common Issues

### Issue 1: [Problem Description]

**Symptoms:**
- Symptom 1
- Symptom 2

**Solution:**
1. Step 1
2. Step 2

### Issue 2: [Problem Description]

**Symptoms:**
- Symptom 1

**Solution:**
1. Step 1
`

func templateConfig(p model.Product) string {
	return fmt.Sprintf(`# Configuration Template
# %s

[settings]
option1 = value1
option2 = value2

[advanced]
# Advanced options
debug = false
`, p.Title)
}

func templateIntegration(p model.Product) string {
	return fmt.Sprintf(`# Integration Guide - %s

## Quick Integration

1. Copy files from `+"`template/`"+` directory to your project
2. Update `+"`config.ini`"+` with your settings
3. Follow the usage examples below

## Usage Examples

Example 1: Basic usage
Example 2: Advanced usage
`, p.Title)
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

func numberedList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, item)
	}
	return strings.Join(lines, "\n")
}
