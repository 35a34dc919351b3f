package engine

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goodsign/monday"
)

// filterDate parses permissively (any common date string, unix-ish values,
// "now"/"today") and formats with strftime-style directives. When the pass
// has a locale, month and day names localize through monday.
func filterDate(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	t, ok := parseDateValue(in)
	if !ok {
		return in, nil
	}
	format := stringArg(args, 0, "%Y-%m-%d")
	layout := strftimeToGo(format)
	if loc := mondayLocale(ctx.Locale); loc != "" {
		return monday.Format(t, layout, loc), nil
	}
	return t.Format(layout), nil
}

func parseDateValue(in interface{}) (time.Time, bool) {
	switch v := in.(type) {
	case time.Time:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "now", "today":
			return time.Now(), true
		case "":
			return time.Time{}, false
		}
		t, err := dateparse.ParseAny(v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	// numeric input is a unix timestamp in seconds
	if secs, ok := toInt64(in); ok {
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}

// strftimeToGo maps the strftime directives themes actually use onto Go
// reference-time layouts. Unknown directives pass through literally.
func strftimeToGo(format string) string {
	replacements := []struct{ from, to string }{
		{"%Y", "2006"},
		{"%y", "06"},
		{"%m", "01"},
		{"%-m", "1"},
		{"%B", "January"},
		{"%b", "Jan"},
		{"%d", "02"},
		{"%-d", "2"},
		{"%e", "_2"},
		{"%A", "Monday"},
		{"%a", "Mon"},
		{"%H", "15"},
		{"%I", "03"},
		{"%-I", "3"},
		{"%M", "04"},
		{"%S", "05"},
		{"%p", "PM"},
		{"%P", "pm"},
		{"%Z", "MST"},
		{"%z", "-0700"},
		{"%%", "%"},
	}
	out := format
	for _, r := range replacements {
		out = strings.ReplaceAll(out, r.from, r.to)
	}
	return out
}

// mondayLocale maps a request locale onto a monday formatting locale; the
// empty return means plain Go formatting.
func mondayLocale(locale string) monday.Locale {
	norm := strings.ToLower(strings.ReplaceAll(locale, "-", "_"))
	known := map[string]monday.Locale{
		"en":    monday.LocaleEnUS,
		"en_us": monday.LocaleEnUS,
		"en_gb": monday.LocaleEnGB,
		"de":    monday.LocaleDeDE,
		"de_de": monday.LocaleDeDE,
		"fr":    monday.LocaleFrFR,
		"fr_fr": monday.LocaleFrFR,
		"es":    monday.LocaleEsES,
		"es_es": monday.LocaleEsES,
		"it":    monday.LocaleItIT,
		"it_it": monday.LocaleItIT,
		"nl":    monday.LocaleNlNL,
		"nl_nl": monday.LocaleNlNL,
		"pt":    monday.LocalePtPT,
		"pt_br": monday.LocalePtBR,
		"ja":    monday.LocaleJaJP,
		"ja_jp": monday.LocaleJaJP,
	}
	if loc, ok := known[norm]; ok {
		return loc
	}
	if idx := strings.Index(norm, "_"); idx > 0 {
		if loc, ok := known[norm[:idx]]; ok {
			return loc
		}
	}
	return ""
}
