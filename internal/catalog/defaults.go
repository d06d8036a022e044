package catalog

// Built-in tables used when a catalog file does not supply its own. They
// mirror the lists the original generator shipped with, so traffic stays
// comparable across deployments.

var defaultSearchTerms = []string{
	"product", "service", "contact", "about", "help", "support", "pricing", "features",
	"login", "register", "download", "documentation", "tutorial", "guide", "faq",
	"news", "blog", "updates", "announcement", "release", "version", "security",
	"privacy", "terms", "policy", "legal", "careers", "jobs", "team", "company",
	"analytics", "tracking", "dashboard", "report", "statistics", "metrics", "data",
}

var defaultSearchCategories = []string{"Products", "Support", "Documentation"}

var defaultOutlinks = []Outlink{
	{URL: "https://github.com", Kind: "dev"},
	{URL: "https://stackoverflow.com", Kind: "dev"},
	{URL: "https://developer.mozilla.org", Kind: "docs"},
	{URL: "https://www.w3.org", Kind: "docs"},
	{URL: "https://nodejs.org", Kind: "dev"},
	{URL: "https://reactjs.org", Kind: "dev"},
	{URL: "https://vuejs.org", Kind: "dev"},
	{URL: "https://angular.io", Kind: "dev"},
	{URL: "https://jquery.com", Kind: "dev"},
	{URL: "https://getbootstrap.com", Kind: "dev"},
	{URL: "https://tailwindcss.com", Kind: "dev"},
	{URL: "https://fontawesome.com", Kind: "assets"},
	{URL: "https://unsplash.com", Kind: "assets"},
	{URL: "https://fonts.google.com", Kind: "assets"},
	{URL: "https://codepen.io", Kind: "dev"},
	{URL: "https://jsfiddle.net", Kind: "dev"},
	{URL: "https://wikipedia.org", Kind: "reference"},
	{URL: "https://youtube.com", Kind: "social"},
	{URL: "https://twitter.com", Kind: "social"},
	{URL: "https://linkedin.com", Kind: "social"},
	{URL: "https://facebook.com", Kind: "social"},
	{URL: "https://instagram.com", Kind: "social"},
	{URL: "https://reddit.com", Kind: "social"},
	{URL: "https://medium.com", Kind: "blog"},
	{URL: "https://dev.to", Kind: "blog"},
}

var defaultDownloads = []string{
	"/downloads/user-manual.pdf", "/downloads/getting-started-guide.pdf",
	"/downloads/api-documentation.pdf", "/downloads/whitepaper.pdf",
	"/downloads/case-study.pdf", "/downloads/technical-specs.pdf",
	"/files/product-brochure.pdf", "/files/pricing-sheet.pdf",
	"/assets/company-presentation.pptx", "/assets/logo-pack.zip",
	"/downloads/software-v2.1.0.zip", "/downloads/mobile-app.apk",
	"/files/dataset.csv", "/files/report-2024.xlsx",
	"/downloads/template.docx", "/downloads/configuration.json",
	"/files/backup.tar.gz", "/downloads/installer.exe",
	"/assets/images.zip", "/downloads/source-code.zip",
}

var defaultCategories = []Category{
	{Name: "home", Subcategories: []Subcategory{
		{Name: "index", Pages: []string{
			"https://example.com/",
			"https://example.com/about",
			"https://example.com/contact",
		}},
	}},
	{Name: "products", Subcategories: []Subcategory{
		{Name: "catalog", Pages: []string{
			"https://example.com/products/",
			"https://example.com/products/widget",
			"https://example.com/products/gadget",
			"https://example.com/products/bundle",
		}},
		{Name: "pricing", Pages: []string{
			"https://example.com/products/pricing",
			"https://example.com/products/compare",
		}},
	}},
	{Name: "docs", Subcategories: []Subcategory{
		{Name: "guides", Pages: []string{
			"https://example.com/docs/getting-started",
			"https://example.com/docs/installation",
			"https://example.com/docs/configuration",
		}},
		{Name: "reference", Pages: []string{
			"https://example.com/docs/api",
			"https://example.com/docs/faq",
		}},
	}},
	{Name: "blog", Subcategories: []Subcategory{
		{Name: "posts", Pages: []string{
			"https://example.com/blog/",
			"https://example.com/blog/release-notes",
			"https://example.com/blog/case-study",
		}},
	}},
}

// Default returns the built-in catalog used when no catalog file is
// configured.
func Default() *Catalog {
	cat, err := New(defaultCategories)
	if err != nil {
		// The built-in hierarchy is static and always valid.
		panic(err)
	}
	return cat
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:117.0) Gecko/20100101 Firefox/117.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 14_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
}
