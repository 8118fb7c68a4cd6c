// Package packaging assembles the marketplace listing and asset bundle
// for a built product.
package packaging

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shipsmith/shipsmith/internal/model"
)

const (
	maxListingTitleLen = 60
	variantBaseLen     = 40
	listingBaseLen     = 50
)

// Packager turns a product plus its asset directory into a marketplace
// listing with a ZIP bundle.
type Packager struct {
	artifactsDir string
}

// NewPackager creates a packager writing bundles under artifactsDir.
func NewPackager(artifactsDir string) *Packager {
	return &Packager{artifactsDir: artifactsDir}
}

// Package creates the listing for a product whose assets live in
// assetDir. Bundle creation is not idempotent at the filesystem level,
// so an existing bundle for the product is reused rather than rewritten.
func (p *Packager) Package(product model.Product, assetDir string) (model.MarketplaceListing, error) {
	listing := model.NewMarketplaceListing(product.ID)
	listing.Title = listingTitle(product)
	listing.TitleVariants = titleVariants(product)
	listing.Description = description(product)
	listing.FeatureBullets = featureBullets(product)
	listing.FAQ = faq(product)
	listing.AnchorPrice, listing.ImpulsePrice = suggestPricing(product.ProductType)

	bundlePath, err := p.createBundle(product, assetDir)
	if err != nil {
		return model.MarketplaceListing{}, err
	}
	listing.AssetBundlePath = bundlePath

	zap.L().Info("packaging: listing created",
		zap.String("product_id", product.ID),
		zap.String("listing_id", listing.ID),
		zap.String("bundle", bundlePath))
	return listing, nil
}

func (p *Packager) createBundle(product model.Product, assetDir string) (string, error) {
	bundlePath := filepath.Join(p.artifactsDir, product.ID+".zip")

	if err := os.MkdirAll(p.artifactsDir, 0o755); err != nil {
		return "", eris.Wrap(err, "packaging: create artifacts dir")
	}
	if _, err := os.Stat(bundlePath); err == nil {
		zap.L().Debug("packaging: reusing existing bundle", zap.String("bundle", bundlePath))
		return bundlePath, nil
	}

	f, err := os.Create(bundlePath)
	if err != nil {
		return "", eris.Wrapf(err, "packaging: create bundle %s", bundlePath)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	err = filepath.WalkDir(assetDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(assetDir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		zw.Close()
		os.Remove(bundlePath)
		return "", eris.Wrapf(err, "packaging: bundle assets from %s", assetDir)
	}
	if err := zw.Close(); err != nil {
		os.Remove(bundlePath)
		return "", eris.Wrap(err, "packaging: finalize bundle")
	}

	return bundlePath, nil
}

func listingTitle(product model.Product) string {
	base := clampLen(product.Title, listingBaseLen)

	var suffix string
	switch product.ProductType {
	case model.ProductTypeScript:
		suffix = " - Automation Script"
	case model.ProductTypeMicroTool:
		suffix = " - Quick Tool"
	case model.ProductTypeGuide:
		suffix = " - Complete Guide"
	default:
		suffix = " - Ready Template"
	}

	return clampTitle(base + suffix)
}

func titleVariants(product model.Product) []string {
	base := clampLen(product.Title, variantBaseLen)

	var variants []string
	switch product.ProductType {
	case model.ProductTypeScript:
		variants = []string{
			base + " - Automate Your Workflow",
			"Easy " + base + " Automation",
			base + " Script - Time Saver",
		}
	case model.ProductTypeMicroTool:
		variants = []string{
			base + " - Simple Solution",
			"Quick " + base + " Tool",
			base + " - No Setup Required",
		}
	case model.ProductTypeGuide:
		variants = []string{
			"Master " + base + " - Step-by-Step",
			base + " - Complete Tutorial",
			"Learn " + base + " Fast",
		}
	default:
		variants = []string{
			base + " - Plug & Play Template",
			"Ready-Made " + base,
			base + " Template - Just Customize",
		}
	}

	for i, v := range variants {
		variants[i] = clampTitle(v)
	}
	return variants
}

func description(product model.Product) string {
	return fmt.Sprintf(`## What You Get

%s

## Why This Product?

%s

## Features

%s

## Perfect For

%s

## What's Included

- Complete source code/content
- Detailed usage instructions
- Ready to use immediately
- No ongoing costs or subscriptions

## Not Included

%s

## Instant Download

Purchase once, use forever. No DRM, no restrictions.
`, product.ValueProposition, product.WhyShippable,
		bulletList(product.Features), product.TargetPersona, bulletList(product.NonGoals))
}

func featureBullets(product model.Product) []string {
	bullets := []string{
		"✓ " + product.ValueProposition,
		"✓ Instant download - start using immediately",
		"✓ Complete documentation included",
	}
	for i, feature := range product.Features {
		if i == 3 {
			break
		}
		bullets = append(bullets, "✓ "+feature)
	}
	return append(bullets, "✓ No subscription or ongoing fees")
}

func faq(product model.Product) []model.FAQEntry {
	return []model.FAQEntry{
		{
			Question: "What exactly do I get?",
			Answer: fmt.Sprintf("You get all the files needed to use this %s, "+
				"including complete documentation and usage instructions.", product.ProductType),
		},
		{
			Question: "Is this a one-time purchase?",
			Answer:   "Yes! Purchase once and use forever. No subscriptions or recurring fees.",
		},
		{
			Question: "Do I need special software?",
			Answer:   "Minimal requirements. Details are in the product documentation.",
		},
		{
			Question: "Can I customize it?",
			Answer:   "Absolutely! All source code/content is included and can be modified to fit your needs.",
		},
		{
			Question: "Do you offer support?",
			Answer: "The product includes comprehensive documentation. For additional questions, " +
				"contact via the marketplace messaging system.",
		},
	}
}

// suggestPricing returns the anchor and impulse price for a product
// type. Impulse never exceeds anchor.
func suggestPricing(productType model.ProductType) (anchor, impulse float64) {
	switch productType {
	case model.ProductTypeGuide:
		return 29.99, 19.99
	case model.ProductTypeTemplate:
		return 39.99, 24.99
	case model.ProductTypeScript:
		return 34.99, 19.99
	default:
		return 49.99, 29.99
	}
}

func clampTitle(s string) string {
	return clampLen(s, maxListingTitleLen)
}

// clampLen cuts s to at most n bytes without splitting a rune.
func clampLen(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}
