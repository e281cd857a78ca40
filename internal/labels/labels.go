// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package labels maps variable codes to human-readable descriptions. The
// mapping is display-only: it enriches the figure view and never affects
// filtering or pivoting. A code without an entry is its own label.
package labels

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Table maps a variable code to its description.
type Table map[string]string

// Describe returns the description for code, or code itself when no entry
// exists.
func (t Table) Describe(code string) string {
	if t == nil {
		return code
	}
	if desc, ok := t[code]; ok && desc != "" {
		return desc
	}
	return code
}

// Merge overlays other on top of t, returning a new Table. Entries in
// other win.
func (t Table) Merge(other Table) Table {
	out := make(Table, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Load reads a code-to-description mapping from a YAML file.
func Load(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading labels file %s: %w", path, err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing labels file %s: %w", path, err)
	}
	return t, nil
}

// PennWorldTable holds the built-in descriptions for Penn World Table
// variable codes.
var PennWorldTable = Table{
	"cgdpo":  "Output-side real GDP at current PPPs (in mil. 2021US$)",
	"cgdpe":  "Expenditure-side real GDP at current PPPs (in mil. 2021US$)",
	"rgdpe":  "Expenditure-side real GDP at chained PPPs (in mil. 2017US$)",
	"rgdpo":  "Output-side real GDP at chained PPPs (in mil. 2017US$)",
	"pop":    "Population (in millions)",
	"emp":    "Number of persons engaged (in millions)",
	"avh":    "Average annual hours worked by persons engaged",
	"hc":     "Human capital index (years of schooling & returns)",
	"labsh":  "Share of labour compensation in GDP (national prices)",
	"ctfp":   "TFP level at current PPPs (USA=1)",
	"ck":     "Capital services levels at current PPPs (USA=1)",
	"ccon":   "Real consumption of households and government at current PPPs (in mil. 2021US$)",
	"cda":    "Real domestic absorption at current PPPs (in mil. 2021US$)",
	"cn":     "Capital stock at current PPPs (in mil. 2021US$)",
	"cwtfp":  "Welfare-relevant TFP level at current PPPs (USA=1)",
	"rgdpna": "Real GDP at constant national prices (in mil. 2017US$)",
	"rconna": "Real consumption at constant national prices (in mil. 2017US$)",
	"rdana":  "Real domestic absorption at constant national prices (in mil. 2017US$)",
	"rnna":   "Capital stock at constant national prices (in mil. 2017US$)",
	"rkna":   "Capital services at constant national prices (2017=1)",
	"rtfpna": "TFP at constant national prices (2017=1)",
	"rwtfpna": "Welfare-relevant TFP at constant national prices (2017=1)",
	"csh_c":  "Share of household consumption at current PPPs",
	"csh_i":  "Share of gross capital formation at current PPPs",
	"csh_g":  "Share of government consumption at current PPPs",
	"csh_x":  "Share of merchandise exports at current PPPs",
	"csh_m":  "Share of merchandise imports at current PPPs",
	"csh_r":  "Share of residual trade and statistical discrepancy at current PPPs",
	"pl_con": "Price level of CCON (PPP/XR), USA GDPo in base year = 1",
	"pl_da":  "Price level of CDA (PPP/XR), USA GDPo in base year = 1",
	"pl_gdpo": "Price level of CGDPo (PPP/XR), USA GDPo in base year = 1",
	"pl_gdpe": "Price level of CGDPe (PPP/XR), USA GDPo in base year = 1",
	"pl_c":   "Price level of household consumption (USA GDPo base = 1)",
	"pl_i":   "Price level of capital formation (USA GDPo base = 1)",
	"pl_g":   "Price level of government consumption (USA GDPo base = 1)",
	"pl_x":   "Price level of exports (USA GDPo base = 1)",
	"pl_m":   "Price level of imports (USA GDPo base = 1)",
	"pl_n":   "Price level of the capital stock (USA base = 1)",
	"pl_k":   "Price level of capital services (USA = 1)",
	"xr":     "Exchange rate, national currency per USD (market+estimated)",
	"irr":    "Real internal rate of return",
	"delta":  "Average depreciation rate of the capital stock",
	"i_cig":  "Flag: relative price data for C, I, G",
	"i_xm":   "Flag: relative price data for exports/imports",
	"i_xr":   "Flag: exchange rate is market-based (0) or estimated (1)",
	"i_outlier": "Flag: observation on pl_gdpe/pl_gdpo is an outlier (1) or not (0)",
	"i_irr":  "Flag: irr regular (0), biased (1), at 1% lower bound (2), or outlier (3)",
	"cor_exp": "Correlation of expenditure shares with the US (benchmark years only)",
	"statcap": "Statistical capacity indicator (World Bank; developing countries only)",
	"country": "Country name",
	"isocode": "ISO 3166-1 alpha-3 country code",
	"year":    "Year",
	"currency": "National currency unit",
}
