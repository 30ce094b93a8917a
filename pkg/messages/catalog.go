// Package messages renders the human-readable text of budget notifications
// from a per-locale template catalog.
package messages

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vanlang-budget/budget-guardian/pkg/model"
)

//go:embed default.yaml
var defaultCatalog []byte

// Template is the raw title/message pair for one notification type.
type Template struct {
	Title   string `yaml:"title"`
	Message string `yaml:"message"`
}

// Locale holds the templates of one language.
type Locale struct {
	Locale    string                              `yaml:"locale"`
	Templates map[model.NotificationType]Template `yaml:"templates"`
}

// File is the YAML layout of a catalog file.
type File struct {
	Default string   `yaml:"default"`
	Locales []Locale `yaml:"locales"`
}

// Params are the values substituted into templates.
type Params struct {
	Category string
	Percent  string
	Amount   string
	Month    int
	Year     int
}

// BudgetParams builds template params from a budget.
func BudgetParams(b *model.Budget) Params {
	return Params{
		Category: b.Category,
		Percent:  FormatPercent(b.PercentUsed()),
		Amount:   FormatAmount(b.Amount),
		Month:    b.Month,
		Year:     b.Year,
	}
}

type compiled struct {
	title   *template.Template
	message *template.Template
}

// Catalog maps locales to compiled templates.
type Catalog struct {
	mu            sync.RWMutex
	locales       map[string]map[model.NotificationType]compiled
	defaultLocale string
}

// NewCatalog creates an empty catalog.
func NewCatalog(defaultLocale string) *Catalog {
	return &Catalog{
		locales:       make(map[string]map[model.NotificationType]compiled),
		defaultLocale: normalize(defaultLocale),
	}
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads a YAML catalog file. An empty path yields the built-in catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read message catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("message catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from YAML data.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse message catalog: %w", err)
	}
	if len(f.Locales) == 0 {
		return nil, fmt.Errorf("message catalog: no locales defined")
	}

	def := f.Default
	if def == "" {
		def = f.Locales[0].Locale
	}
	c := NewCatalog(def)
	for _, l := range f.Locales {
		if err := c.Register(l); err != nil {
			return nil, err
		}
	}
	if _, ok := c.locales[c.defaultLocale]; !ok {
		return nil, fmt.Errorf("message catalog: default locale %q not defined", def)
	}
	return c, nil
}

// Register compiles and adds a locale.
func (c *Catalog) Register(l Locale) error {
	name := normalize(l.Locale)
	if name == "" {
		return fmt.Errorf("locale name is required")
	}

	set := make(map[model.NotificationType]compiled, len(l.Templates))
	for _, typ := range []model.NotificationType{model.NotificationBudgetAlert, model.NotificationBudgetExceeded} {
		tpl, ok := l.Templates[typ]
		if !ok {
			return fmt.Errorf("locale %q: missing template %q", name, typ)
		}
		title, err := template.New(string(typ) + ".title").Option("missingkey=error").Parse(tpl.Title)
		if err != nil {
			return fmt.Errorf("locale %q: %s title: %w", name, typ, err)
		}
		msg, err := template.New(string(typ) + ".message").Option("missingkey=error").Parse(tpl.Message)
		if err != nil {
			return fmt.Errorf("locale %q: %s message: %w", name, typ, err)
		}
		set[typ] = compiled{title: title, message: msg}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.locales[name]; exists {
		return fmt.Errorf("locale %q already registered", name)
	}
	c.locales[name] = set
	return nil
}

// SetDefault changes the fallback locale.
func (c *Catalog) SetDefault(locale string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := normalize(locale)
	if _, ok := c.locales[name]; !ok {
		return fmt.Errorf("locale %q not found", locale)
	}
	c.defaultLocale = name
	return nil
}

// Locales returns the registered locale names in sorted order.
func (c *Catalog) Locales() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.locales))
	for name := range c.locales {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Render produces the title and message for a notification type. Unknown
// locales fall back to the default locale.
func (c *Catalog) Render(locale string, typ model.NotificationType, p Params) (title, message string, err error) {
	c.mu.RLock()
	set, ok := c.locales[normalize(locale)]
	if !ok {
		set = c.locales[c.defaultLocale]
	}
	c.mu.RUnlock()

	tpl, ok := set[typ]
	if !ok {
		return "", "", fmt.Errorf("no template for notification type %q", typ)
	}

	var buf bytes.Buffer
	if err := tpl.title.Execute(&buf, p); err != nil {
		return "", "", fmt.Errorf("render %s title: %w", typ, err)
	}
	title = buf.String()

	buf.Reset()
	if err := tpl.message.Execute(&buf, p); err != nil {
		return "", "", fmt.Errorf("render %s message: %w", typ, err)
	}
	return title, buf.String(), nil
}

// FormatPercent rounds a percentage to a whole number.
func FormatPercent(pct decimal.Decimal) string {
	return pct.Round(0).String()
}

// FormatAmount renders an amount with thousands separators, keeping up to
// two decimals for fractional amounts.
func FormatAmount(amount decimal.Decimal) string {
	if amount.Equal(amount.Truncate(0)) {
		return humanize.Comma(amount.IntPart())
	}
	return humanize.CommafWithDigits(amount.Round(2).InexactFloat64(), 2)
}

// normalize maps "vi-VN" and "VI" to "vi".
func normalize(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	return locale
}
