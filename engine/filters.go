package engine

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// FilterContext gives a filter access to engine services (locale resolution,
// money formats) and the locale of the running pass.
type FilterContext struct {
	Engine *Engine
	Locale string
}

// FilterFunc is one entry of the filter registry. Filters are permissive:
// they coerce mismatched input or pass it through, and an error return is
// downgraded to a logged warning by the evaluator.
type FilterFunc func(ctx *FilterContext, input interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error)

func argAt(args []interface{}, i int) interface{} {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func stringArg(args []interface{}, i int, def string) string {
	if i < len(args) {
		return stringify(args[i])
	}
	return def
}

func intArg(args []interface{}, i, def int) int {
	if i < len(args) {
		if n, ok := toInt(args[i]); ok {
			return n
		}
	}
	return def
}

// defaultFilters builds the registry shared by every engine instance.
func defaultFilters() map[string]FilterFunc {
	f := map[string]FilterFunc{}

	// string filters coerce their input to a string first
	str := func(name string, fn func(s string, args []interface{}) interface{}) {
		f[name] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
			return fn(stringify(in), args), nil
		}
	}
	str("upcase", func(s string, _ []interface{}) interface{} { return strings.ToUpper(s) })
	str("downcase", func(s string, _ []interface{}) interface{} { return strings.ToLower(s) })
	str("capitalize", func(s string, _ []interface{}) interface{} {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	})
	str("strip", func(s string, _ []interface{}) interface{} { return strings.TrimSpace(s) })
	str("lstrip", func(s string, _ []interface{}) interface{} { return strings.TrimLeft(s, " \t\r\n") })
	str("rstrip", func(s string, _ []interface{}) interface{} { return strings.TrimRight(s, " \t\r\n") })
	str("strip_html", func(s string, _ []interface{}) interface{} { return htmlTagRe.ReplaceAllString(s, "") })
	str("strip_newlines", func(s string, _ []interface{}) interface{} {
		return strings.NewReplacer("\r\n", "", "\n", "", "\r", "").Replace(s)
	})
	str("newline_to_br", func(s string, _ []interface{}) interface{} {
		return strings.ReplaceAll(s, "\n", "<br />\n")
	})
	str("escape", func(s string, _ []interface{}) interface{} { return html.EscapeString(s) })
	str("escape_once", func(s string, _ []interface{}) interface{} {
		return html.EscapeString(html.UnescapeString(s))
	})
	str("url_encode", func(s string, _ []interface{}) interface{} { return url.QueryEscape(s) })
	str("url_decode", func(s string, _ []interface{}) interface{} {
		out, err := url.QueryUnescape(s)
		if err != nil {
			return s
		}
		return out
	})
	str("truncate", func(s string, args []interface{}) interface{} {
		length := intArg(args, 0, 50)
		ellipsis := stringArg(args, 1, "...")
		runes := []rune(s)
		if len(runes) <= length {
			return s
		}
		cut := length - len([]rune(ellipsis))
		if cut < 0 {
			cut = 0
		}
		return string(runes[:cut]) + ellipsis
	})
	str("truncatewords", func(s string, args []interface{}) interface{} {
		count := intArg(args, 0, 15)
		ellipsis := stringArg(args, 1, "...")
		words := strings.Fields(s)
		if len(words) <= count {
			return s
		}
		return strings.Join(words[:count], " ") + ellipsis
	})
	str("replace", func(s string, args []interface{}) interface{} {
		return strings.ReplaceAll(s, stringArg(args, 0, ""), stringArg(args, 1, ""))
	})
	str("replace_first", func(s string, args []interface{}) interface{} {
		return strings.Replace(s, stringArg(args, 0, ""), stringArg(args, 1, ""), 1)
	})
	str("remove", func(s string, args []interface{}) interface{} {
		return strings.ReplaceAll(s, stringArg(args, 0, ""), "")
	})
	str("remove_first", func(s string, args []interface{}) interface{} {
		return strings.Replace(s, stringArg(args, 0, ""), "", 1)
	})
	str("append", func(s string, args []interface{}) interface{} { return s + stringArg(args, 0, "") })
	str("prepend", func(s string, args []interface{}) interface{} { return stringArg(args, 0, "") + s })
	str("split", func(s string, args []interface{}) interface{} {
		parts := strings.Split(s, stringArg(args, 0, " "))
		out := make([]interface{}, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out
	})
	str("handleize", func(s string, _ []interface{}) interface{} { return handleize(s) })
	str("handle", func(s string, _ []interface{}) interface{} { return handleize(s) })
	str("base64_encode", func(s string, _ []interface{}) interface{} {
		return base64.StdEncoding.EncodeToString([]byte(s))
	})
	str("base64_decode", func(s string, _ []interface{}) interface{} {
		out, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return s
		}
		return string(out)
	})

	f["slice"] = filterSlice
	f["default"] = filterDefault
	f["json"] = filterJSON

	// array filters; scalar input passes through unchanged
	f["first"] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return fieldValue(in, "first"), nil
	}
	f["last"] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return fieldValue(in, "last"), nil
	}
	f["size"] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return valueLength(in), nil
	}
	f["join"] = filterJoin
	f["map"] = filterMap
	f["where"] = filterWhere
	f["sort"] = filterSort
	f["reverse"] = filterReverse
	f["uniq"] = filterUniq
	f["concat"] = filterConcat
	f["compact"] = filterCompact
	f["sum"] = filterSum

	// math filters keep integer inputs integral
	num := func(name string, fn func(a, b float64) float64) {
		f[name] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
			a, aok := toFloat(in)
			if !aok {
				return in, nil
			}
			b, _ := toFloat(argAt(args, 0))
			wasInt := isIntegral(in) && (len(args) == 0 || isIntegral(args[0]))
			return numberResult(fn(a, b), wasInt), nil
		}
	}
	num("plus", func(a, b float64) float64 { return a + b })
	num("minus", func(a, b float64) float64 { return a - b })
	num("times", func(a, b float64) float64 { return a * b })
	num("modulo", func(a, b float64) float64 {
		if b == 0 {
			return 0
		}
		return math.Mod(a, b)
	})
	num("at_least", math.Max)
	num("at_most", math.Min)
	f["divided_by"] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		a, aok := toFloat(in)
		b, bok := toFloat(argAt(args, 0))
		if !aok || !bok || b == 0 {
			return in, nil
		}
		if isIntegral(in) && isIntegral(argAt(args, 0)) {
			ai, _ := toInt64(in)
			bi, _ := toInt64(argAt(args, 0))
			return int(ai / bi), nil
		}
		return a / b, nil
	}
	f["round"] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		a, ok := toFloat(in)
		if !ok {
			return in, nil
		}
		places := intArg(args, 0, 0)
		scale := math.Pow(10, float64(places))
		out := math.Round(a*scale) / scale
		if places == 0 {
			return int(out), nil
		}
		return out, nil
	}
	f["ceil"] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		a, ok := toFloat(in)
		if !ok {
			return in, nil
		}
		return int(math.Ceil(a)), nil
	}
	f["floor"] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		a, ok := toFloat(in)
		if !ok {
			return in, nil
		}
		return int(math.Floor(a)), nil
	}
	f["abs"] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		a, ok := toFloat(in)
		if !ok {
			return in, nil
		}
		return numberResult(math.Abs(a), isIntegral(in)), nil
	}

	// money and date filters live in their own files
	f["money"] = filterMoney
	f["money_with_currency"] = filterMoneyWithCurrency
	f["money_without_currency"] = filterMoneyWithoutCurrency
	f["money_without_trailing_zeros"] = filterMoneyNoZeros
	f["date"] = filterDate

	// locale translation
	f["t"] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return ctx.Engine.Translate(stringify(in), ctx.Locale, kwargs), nil
	}

	// asset/url helpers used by layouts
	f["asset_url"] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return "/assets/" + sanitizeName(stringify(in)), nil
	}
	f["image_url"] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return stringify(in), nil
	}
	f["stylesheet_tag"] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return fmt.Sprintf("<link href=\"%s\" rel=\"stylesheet\" type=\"text/css\" media=\"all\">", stringify(in)), nil
	}
	f["script_tag"] = func(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return fmt.Sprintf("<script src=\"%s\" type=\"text/javascript\"></script>", stringify(in)), nil
	}

	// color and font filters are pass-through stand-ins; no design-token
	// computation happens here
	for _, name := range []string{
		"color_lighten", "color_darken", "color_saturate", "color_desaturate",
		"color_modify", "color_mix", "color_to_rgb", "color_to_hex",
		"brightness_difference", "color_contrast",
		"font_face", "font_modify", "font_url",
	} {
		f[name] = passThroughFilter
	}

	return f
}

func passThroughFilter(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	return in, nil
}

var htmlTagRe = regexp.MustCompile(`(?s)<[^>]*>`)

var handleRe = regexp.MustCompile(`[^a-z0-9]+`)

// handleize turns arbitrary text into a URL/handle-safe slug.
func handleize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = handleRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func filterDefault(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	if len(args) == 0 {
		return in, nil
	}
	if in == nil || in == false || isEmptyValue(in) {
		// numbers, including 0, are never defaulted
		if _, isNum := toFloatStrict(in); !isNum {
			return args[0], nil
		}
	}
	return in, nil
}

func filterJSON(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func filterSlice(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	offset := intArg(args, 0, 0)
	length := intArg(args, 1, 1)
	if s, ok := in.(string); ok {
		runes := []rune(s)
		start, end := sliceBounds(offset, length, len(runes))
		return string(runes[start:end]), nil
	}
	items := toSlice(in)
	if items == nil {
		return in, nil
	}
	start, end := sliceBounds(offset, length, len(items))
	return items[start:end], nil
}

func sliceBounds(offset, length, size int) (int, int) {
	if offset < 0 {
		offset += size
	}
	if offset < 0 {
		offset = 0
	}
	if offset > size {
		offset = size
	}
	end := offset + length
	if end > size {
		end = size
	}
	return offset, end
}

func filterJoin(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	items := toSlice(in)
	if items == nil {
		return in, nil
	}
	sep := stringArg(args, 0, " ")
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = stringify(item)
	}
	return strings.Join(parts, sep), nil
}

func filterMap(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	items := toSlice(in)
	if items == nil {
		return in, nil
	}
	key := stringArg(args, 0, "")
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = fieldValue(item, key)
	}
	return out, nil
}

func filterWhere(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	items := toSlice(in)
	if items == nil {
		return in, nil
	}
	key := stringArg(args, 0, "")
	var out []interface{}
	for _, item := range items {
		v := fieldValue(item, key)
		if len(args) > 1 {
			if valuesEqual(v, args[1]) {
				out = append(out, item)
			}
		} else if truthy(v) {
			out = append(out, item)
		}
	}
	return out, nil
}

func filterSort(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	items := toSlice(in)
	if items == nil {
		return in, nil
	}
	out := make([]interface{}, len(items))
	copy(out, items)
	key := stringArg(args, 0, "")
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if key != "" {
			a, b = fieldValue(a, key), fieldValue(b, key)
		}
		if af, aok := toFloatStrict(a); aok {
			if bf, bok := toFloatStrict(b); bok {
				return af < bf
			}
		}
		return stringify(a) < stringify(b)
	})
	return out, nil
}

func filterReverse(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	items := toSlice(in)
	if items == nil {
		return in, nil
	}
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return out, nil
}

func filterUniq(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	items := toSlice(in)
	if items == nil {
		return in, nil
	}
	seen := make(map[string]bool, len(items))
	var out []interface{}
	for _, item := range items {
		k := stringify(item)
		if !seen[k] {
			seen[k] = true
			out = append(out, item)
		}
	}
	return out, nil
}

func filterConcat(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	items := toSlice(in)
	other := toSlice(argAt(args, 0))
	return append(append([]interface{}{}, items...), other...), nil
}

func filterCompact(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	items := toSlice(in)
	if items == nil {
		return in, nil
	}
	var out []interface{}
	for _, item := range items {
		if item != nil {
			out = append(out, item)
		}
	}
	return out, nil
}

func filterSum(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	items := toSlice(in)
	if items == nil {
		return in, nil
	}
	key := stringArg(args, 0, "")
	total := 0.0
	allInts := true
	for _, item := range items {
		if key != "" {
			item = fieldValue(item, key)
		}
		if f, ok := toFloat(item); ok {
			total += f
			if !isIntegral(item) {
				allInts = false
			}
		}
	}
	return numberResult(total, allInts), nil
}
