// Package define turns a discovered problem into a sellable product
// definition.
package define

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/shipsmith/shipsmith/internal/model"
)

const maxBaseTitleLen = 50

// Engine derives product definitions from problems using keyword and
// source heuristics.
type Engine struct{}

// NewEngine creates a product definition engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Define builds the product for a problem. Definition is deterministic
// for a given problem.
func (e *Engine) Define(problem model.Problem) model.Product {
	productType := determineType(problem)

	product := model.NewProduct(problem.ID, productTitle(problem, productType), productType)
	product.TargetPersona = persona(problem)
	product.ValueProposition = valueProposition(problem, productType)
	product.Features = features(productType)
	product.NonGoals = nonGoals()
	product.WhyShippable = whyShippable(productType)

	zap.L().Info("define: product defined",
		zap.String("problem_id", problem.ID),
		zap.String("product_id", product.ID),
		zap.String("product_type", string(productType)))
	return product
}

// determineType picks the product type from the problem's keywords.
// Automation beats tooling beats learning; configuration problems fall
// through to a template.
func determineType(problem model.Problem) model.ProductType {
	keywords := make(map[string]struct{}, len(problem.Keywords))
	for _, k := range problem.Keywords {
		keywords[strings.ToLower(k)] = struct{}{}
	}
	has := func(words ...string) bool {
		for _, w := range words {
			if _, ok := keywords[w]; ok {
				return true
			}
		}
		return false
	}

	switch {
	case has("automate", "script", "batch", "command"):
		return model.ProductTypeScript
	case has("tool", "utility", "app", "plugin"):
		return model.ProductTypeMicroTool
	case has("learn", "tutorial", "guide", "how"):
		return model.ProductTypeGuide
	default:
		return model.ProductTypeTemplate
	}
}

func productTitle(problem model.Problem, productType model.ProductType) string {
	base := strings.ReplaceAll(problem.Title, "How to ", "")
	base = strings.ReplaceAll(base, "how to ", "")
	base = capLen(base, maxBaseTitleLen)

	switch productType {
	case model.ProductTypeScript:
		return base + " - Automation Script"
	case model.ProductTypeMicroTool:
		return base + " - Quick Tool"
	case model.ProductTypeGuide:
		return base + " - Complete Guide"
	default:
		return base + " - Template"
	}
}

func persona(problem model.Problem) string {
	switch problem.Source {
	case model.SourceGitHub:
		return "Developers experiencing similar issues in their projects"
	case model.SourceReddit:
		for _, k := range problem.Keywords {
			if k == "beginner" || k == "learning" || k == "start" {
				return "Beginner developers learning to code"
			}
		}
		return "Professional developers seeking solutions"
	default:
		return "Technical users facing similar challenges"
	}
}

func valueProposition(problem model.Problem, productType model.ProductType) string {
	summary := capLen(problem.Title, maxBaseTitleLen)

	switch productType {
	case model.ProductTypeScript:
		return fmt.Sprintf("Automates the solution to '%s', saving hours of manual work.", summary)
	case model.ProductTypeMicroTool:
		return fmt.Sprintf("A simple tool that solves '%s' with minimal setup.", summary)
	case model.ProductTypeGuide:
		return fmt.Sprintf("Step-by-step guide to resolve '%s' permanently.", summary)
	default:
		return fmt.Sprintf("Ready-to-use template that eliminates '%s' from your workflow.", summary)
	}
}

func features(productType model.ProductType) []string {
	base := []string{
		"Solves the core problem directly",
		"Minimal setup required",
		"Clear documentation included",
	}

	switch productType {
	case model.ProductTypeScript:
		return append(base,
			"Command-line interface",
			"Configurable options",
			"Error handling and logging",
		)
	case model.ProductTypeMicroTool:
		return append(base,
			"Simple user interface",
			"Cross-platform compatibility",
			"Lightweight and fast",
		)
	case model.ProductTypeGuide:
		return append(base,
			"Step-by-step instructions",
			"Screenshots and examples",
			"Troubleshooting section",
		)
	default:
		return append(base,
			"Ready-to-customize structure",
			"Best practices built-in",
			"Usage examples included",
		)
	}
}

func nonGoals() []string {
	return []string{
		"No enterprise-scale features",
		"No complex configuration",
		"No UI framework required",
		"No cloud infrastructure needed",
		"No ongoing maintenance burden",
	}
}

func whyShippable(productType model.ProductType) string {
	switch productType {
	case model.ProductTypeScript:
		return "Single file script, under 200 lines, with clear inputs/outputs. Can be shipped in under 2 hours."
	case model.ProductTypeMicroTool:
		return "Focused on one task, minimal dependencies, basic UI. Shippable in 4-6 hours."
	case model.ProductTypeGuide:
		return "Documentation-only product. Core content can be written in 2-3 hours."
	default:
		return "Pre-configured files and structure. Assembly and documentation in 2-3 hours."
	}
}

// capLen cuts s to at most n bytes without splitting a rune.
func capLen(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
