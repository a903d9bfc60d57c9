package report

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/analysis"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

var platformNames = map[model.Platform]string{
	model.PlatformInstagram: "Instagram",
	model.PlatformFacebook:  "Facebook",
	model.PlatformTwitter:   "X / Twitter",
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"number":      formatNumber,
		"pct":         formatPct,
		"signed":      formatSigned,
		"growthClass": growthClass,
		"country":     analysis.CountryName,
		"platform":    platformName,
		"platforms":   platformList,
		"stamp":       func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	}
}

func platformName(p model.Platform) string {
	if name, ok := platformNames[p]; ok {
		return name
	}
	return string(p)
}

func platformList(ps []model.Platform) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = platformName(p)
	}
	return strings.Join(names, ", ")
}

// formatNumber groups thousands with dots: 12345 → "12.345". Nil pointers render as "-".
func formatNumber(v any) string {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case *int:
		if x == nil {
			return "-"
		}
		n = *x
	default:
		return fmt.Sprint(v)
	}

	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatPct(v any, places int) string {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case *float64:
		if x == nil {
			return "-"
		}
		f = *x
	default:
		return fmt.Sprint(v)
	}
	return strconv.FormatFloat(f, 'f', places, 64) + "%"
}

func formatSigned(v *int) string {
	if v == nil || *v == 0 {
		return "-"
	}
	if *v > 0 {
		return "+" + formatNumber(*v)
	}
	return formatNumber(*v)
}

func growthClass(v *int) string {
	switch {
	case v == nil:
		return ""
	case *v > 0:
		return "positive"
	case *v < 0:
		return "negative"
	default:
		return ""
	}
}
