package engine

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money filters take integer minor units (cents) and divide by 100 only at
// formatting time, so no rounded intermediate ever exists.

func formatAmount(ctx *FilterContext, cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	units := cents / 100
	minor := cents % 100
	tag, err := language.Parse(strings.ReplaceAll(ctx.Locale, "_", "-"))
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	out := p.Sprintf("%d", units) + fmt.Sprintf(".%02d", minor)
	if neg {
		return "-" + out
	}
	return out
}

func renderMoneyFormat(format, amount string) string {
	if strings.Contains(format, "{{") {
		out := strings.ReplaceAll(format, "{{amount}}", amount)
		out = strings.ReplaceAll(out, "{{ amount }}", amount)
		return out
	}
	return format + amount
}

func moneyCents(ctx *FilterContext, in interface{}) (int64, bool) {
	return toInt64(in)
}

func filterMoney(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	cents, ok := moneyCents(ctx, in)
	if !ok {
		return in, nil
	}
	return renderMoneyFormat(ctx.Engine.moneyFormat, formatAmount(ctx, cents)), nil
}

func filterMoneyWithCurrency(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	cents, ok := moneyCents(ctx, in)
	if !ok {
		return in, nil
	}
	return renderMoneyFormat(ctx.Engine.moneyWithCurrencyFormat, formatAmount(ctx, cents)), nil
}

func filterMoneyWithoutCurrency(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	cents, ok := moneyCents(ctx, in)
	if !ok {
		return in, nil
	}
	return formatAmount(ctx, cents), nil
}

func filterMoneyNoZeros(ctx *FilterContext, in interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	cents, ok := moneyCents(ctx, in)
	if !ok {
		return in, nil
	}
	amount := formatAmount(ctx, cents)
	amount = strings.TrimSuffix(amount, ".00")
	return renderMoneyFormat(ctx.Engine.moneyFormat, amount), nil
}
