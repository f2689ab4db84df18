// Package content holds the static pitch material shown around the chat
// widget: sections, revenue projection, cost tables and chat labels.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed pitch.yaml
var defaultPitch []byte

// Section anchors, in page order.
const (
	SectionHero         = "hero"
	SectionValueProp    = "value-prop"
	SectionAudience     = "audience"
	SectionMonetization = "monetization"
	SectionFeatures     = "features"
	SectionFinancials   = "financials"
	SectionMarketing    = "marketing"
	SectionInfra        = "infra"
	SectionTeam         = "team"
)

type Pitch struct {
	Brand      string     `yaml:"brand" json:"brand"`
	Tagline    string     `yaml:"tagline" json:"tagline"`
	Hero       Hero       `yaml:"hero" json:"hero"`
	Sections   []Section  `yaml:"sections" json:"sections"`
	Financials Financials `yaml:"financials" json:"financials"`
	Marketing  Marketing  `yaml:"marketing" json:"marketing"`
	Team       Team       `yaml:"team" json:"team"`
	Chat       ChatLabels `yaml:"chat" json:"chat"`
}

type Hero struct {
	Badge     string   `yaml:"badge" json:"badge"`
	Title     string   `yaml:"title" json:"title"`
	Highlight string   `yaml:"highlight" json:"highlight"`
	Lead      string   `yaml:"lead" json:"lead"`
	Actions   []string `yaml:"actions" json:"actions"`
}

type Section struct {
	ID       string `yaml:"id" json:"id"`
	Nav      string `yaml:"nav,omitempty" json:"nav,omitempty"`
	Title    string `yaml:"title" json:"title"`
	Subtitle string `yaml:"subtitle" json:"subtitle"`
	Dark     bool   `yaml:"dark,omitempty" json:"dark,omitempty"`
	Note     string `yaml:"note,omitempty" json:"note,omitempty"`
	Cards    []Card `yaml:"cards" json:"cards"`
}

type Card struct {
	Title string `yaml:"title" json:"title"`
	Text  string `yaml:"text" json:"text"`
}

// FinancialItem is one bar of the monthly revenue projection.
type FinancialItem struct {
	Name        string  `yaml:"name" json:"name"`
	Value       float64 `yaml:"value" json:"value"`
	Description string  `yaml:"description" json:"description"`
}

// CostItem is a monthly cloud cost range in BRL.
type CostItem struct {
	Category string  `yaml:"category" json:"category"`
	Min      float64 `yaml:"min" json:"min"`
	Max      float64 `yaml:"max" json:"max"`
}

func (c CostItem) Label() string {
	return fmt.Sprintf("R$ %s-%s", FormatAmount(c.Min, false), FormatAmount(c.Max, false))
}

type Financials struct {
	Title      string          `yaml:"title" json:"title"`
	Subtitle   string          `yaml:"subtitle" json:"subtitle"`
	ChartTitle string          `yaml:"chartTitle" json:"chartTitle"`
	Revenue    []FinancialItem `yaml:"revenue" json:"revenue"`
	MAUCost    float64         `yaml:"mauCost" json:"mauCost"`
	MAUNote    string          `yaml:"mauNote" json:"mauNote"`
	CloudCosts []CostItem      `yaml:"cloudCosts" json:"cloudCosts"`
}

type Marketing struct {
	Title    string `yaml:"title" json:"title"`
	Subtitle string `yaml:"subtitle" json:"subtitle"`
	Tiers    []Tier `yaml:"tiers" json:"tiers"`
}

type Tier struct {
	Name        string  `yaml:"name" json:"name"`
	Budget      float64 `yaml:"budget" json:"budget"`
	Text        string  `yaml:"text" json:"text"`
	Recommended bool    `yaml:"recommended,omitempty" json:"recommended,omitempty"`
}

type Team struct {
	Title    string `yaml:"title" json:"title"`
	Subtitle string `yaml:"subtitle" json:"subtitle"`
	Roles    []Role `yaml:"roles" json:"roles"`
}

type Role struct {
	Name string  `yaml:"name" json:"name"`
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Unit string  `yaml:"unit" json:"unit"`
	Text string  `yaml:"text" json:"text"`
}

func (r Role) Label() string {
	return fmt.Sprintf("R$ %s - R$ %s / %s", FormatAmount(r.Min, false), FormatAmount(r.Max, false), r.Unit)
}

// ChatLabels are the fixed strings of the chat widget. The welcome line is
// shown by the UI only; it never enters a conversation.
type ChatLabels struct {
	Title       string `yaml:"title" json:"title"`
	Welcome     string `yaml:"welcome" json:"welcome"`
	Placeholder string `yaml:"placeholder" json:"placeholder"`
}

// Load returns the built-in pitch.
func Load() (*Pitch, error) {
	return Parse(defaultPitch)
}

// LoadFile reads a pitch from a YAML file, falling back to the built-in one
// when path is empty.
func LoadFile(path string) (*Pitch, error) {
	if path == "" {
		return Load()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pitch file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Pitch, error) {
	var p Pitch
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse pitch: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Pitch) Validate() error {
	var errs []string
	if p.Brand == "" {
		errs = append(errs, "brand is required")
	}
	if len(p.Financials.Revenue) == 0 {
		errs = append(errs, "financials.revenue must not be empty")
	}
	for i, r := range p.Financials.Revenue {
		if r.Value < 0 {
			errs = append(errs, fmt.Sprintf("financials.revenue[%d]: negative value", i))
		}
	}
	for i, c := range p.Financials.CloudCosts {
		if c.Min > c.Max {
			errs = append(errs, fmt.Sprintf("financials.cloudCosts[%d]: min > max", i))
		}
	}
	seen := map[string]bool{}
	for _, s := range p.Sections {
		if s.ID == "" {
			errs = append(errs, "section without id")
			continue
		}
		if seen[s.ID] {
			errs = append(errs, "duplicate section id: "+s.ID)
		}
		seen[s.ID] = true
	}
	if len(errs) > 0 {
		return errors.New("invalid pitch: " + strings.Join(errs, "; "))
	}
	return nil
}

// Section returns the section with the given anchor.
func (p *Pitch) Section(id string) (Section, bool) {
	for _, s := range p.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

func (p *Pitch) RevenueTotal() float64 {
	var total float64
	for _, r := range p.Financials.Revenue {
		total += r.Value
	}
	return total
}

// CloudCostRange sums the minimum and maximum of every cloud cost line.
func (p *Pitch) CloudCostRange() (lo, hi float64) {
	for _, c := range p.Financials.CloudCosts {
		lo += c.Min
		hi += c.Max
	}
	return lo, hi
}

// FormatAmount renders a BRL amount with "." thousands and "," decimals,
// e.g. 1900 -> "1.900" or "1.900,00" with cents.
func FormatAmount(v float64, cents bool) string {
	neg := v < 0
	if neg {
		v = -v
	}
	whole := int64(v)
	frac := int64((v-float64(whole))*100 + 0.5)
	if frac == 100 {
		whole++
		frac = 0
	}

	digits := strconv.FormatInt(whole, 10)
	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte('.')
		}
		sb.WriteRune(d)
	}
	if cents {
		fmt.Fprintf(&sb, ",%02d", frac)
	}
	return sb.String()
}
