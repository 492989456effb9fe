package api

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/banshee-data/mixcalc/internal/mix"
	"github.com/banshee-data/mixcalc/internal/table"
)

// inputKeys lists the accepted spellings of each measurement and its
// temperature. The first key present wins, even when its value is empty.
var inputKeys = []struct {
	prop  table.Property
	value []string
	temp  []string
}{
	{table.ABV, []string{"abv"}, []string{"abv_t", "t_abv", "abv_temp"}},
	{table.BrixATC, []string{"brixatc", "brix_atc", "brix"}, []string{"brixatc_t", "brix_t", "t_brix", "brix_temp", "brixatc_temp"}},
	{table.Density, []string{"density", "rho"}, []string{"density_t", "t_density", "rho_t", "density_temp"}},
	{table.SugarWV, []string{"sugar_wv", "sugarwv", "sugar_gpl", "sugar"}, []string{"sugar_wv_t", "sugarwv_t", "t_sugar_wv", "sugar_temp"}},
}

var (
	abmKeys     = []string{"abm", "alc_mass", "alcohol_by_mass"}
	sbmKeys     = []string{"sbm", "sugar_mass", "sugar_by_mass"}
	reportTKeys = []string{"report_t", "report_temp", "t_report"}
)

// groupedDecimal matches "1.234,56" style numbers.
var groupedDecimal = regexp.MustCompile(`^\d{1,3}(\.\d{3})*,\d+$`)

// NormalizeRequest turns a loosely typed request body into a mix.Request.
// Keys are matched case-insensitively and numbers may use either decimal
// convention. Values that cannot be read as numbers are treated as absent,
// which validation then reports as missing.
func NormalizeRequest(raw map[string]any) mix.Request {
	flat := make(map[string]any, len(raw))
	for k, v := range raw {
		flat[strings.ToLower(strings.TrimSpace(k))] = v
	}

	var req mix.Request
	if m, ok := pick(flat, "mode").(string); ok {
		req.Mode, _ = mix.ParseMode(m)
	}

	for _, in := range inputKeys {
		if v, ok := numOrNull(pick(flat, in.value...)); ok {
			if req.Values == nil {
				req.Values = make(map[table.Property]float64)
			}
			req.Values[in.prop] = v
		}
		if t, ok := numOrNull(pick(flat, in.temp...)); ok {
			if req.Temps == nil {
				req.Temps = make(map[table.Property]float64)
			}
			req.Temps[in.prop] = t
		}
	}

	if v, ok := numOrNull(pick(flat, abmKeys...)); ok {
		req.ABM = &v
	}
	if v, ok := numOrNull(pick(flat, sbmKeys...)); ok {
		req.SBM = &v
	}
	if v, ok := numOrNull(pick(flat, reportTKeys...)); ok {
		req.ReportT = &v
	}

	req.AlcoholZero = truthy(flat["alcohol_zero"]) || truthy(flat["assume_abv_zero"])
	req.SugarZero = truthy(flat["sugar_zero"]) || truthy(flat["assume_sugar_zero"])

	if m, ok := flat["sigma"].(map[string]any); ok {
		req.Sigma = sigmaMap(m)
	}
	if m, ok := flat["sigma_t"].(map[string]any); ok {
		req.SigmaT = sigmaTMap(m)
	}
	if n, ok := numOrNull(flat["samples"]); ok && n > 0 {
		req.Samples = int(n)
	}
	return req
}

func pick(flat map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := flat[k]; ok {
			return v
		}
	}
	return nil
}

// numOrNull reads a JSON number or a numeric string. Strings may use a
// decimal comma, dot or comma thousands grouping, and spaces or NBSP as
// separators.
func numOrNull(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		s := strings.TrimSpace(x)
		s = strings.NewReplacer("\u00a0", "", " ", "").Replace(s)
		if s == "" {
			return 0, false
		}
		if groupedDecimal.MatchString(s) {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			commas, dots := strings.Count(s, ","), strings.Count(s, ".")
			if commas == 1 && dots == 0 {
				s = strings.ReplaceAll(s, ",", ".")
			} else if commas > 0 && dots >= 1 {
				s = strings.ReplaceAll(s, ",", "")
			}
		}
		var err error
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// truthy follows form-field conventions: false, 0, "", "0" and "false" are
// off; anything else present is on.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		return s != "" && s != "0" && s != "false"
	}
	return true
}

// sigmaMap canonicalises property names; ABM and SBM pass through for
// direct mode. Unknown keys and unreadable values are dropped.
func sigmaMap(in map[string]any) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		f, ok := numOrNull(v)
		if !ok {
			continue
		}
		if p, ok := table.ParseProperty(k); ok {
			out[string(p)] = f
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(k)) {
		case table.ABM:
			out[table.ABM] = f
		case table.SBM:
			out[table.SBM] = f
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// sigmaTMap accepts both "ABV_T" and "ABV" style keys.
func sigmaTMap(in map[string]any) map[table.Property]float64 {
	out := make(map[table.Property]float64, len(in))
	for k, v := range in {
		f, ok := numOrNull(v)
		if !ok {
			continue
		}
		name := strings.TrimSpace(k)
		if len(name) > 2 && strings.EqualFold(name[len(name)-2:], "_t") {
			name = name[:len(name)-2]
		}
		if p, ok := table.ParseProperty(name); ok {
			out[p] = f
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
