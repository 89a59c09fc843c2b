package render

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/divan/num2words"
)

// UpperSuffix derives the amount-in-words placeholder: {{price_upper}} for price.
const UpperSuffix = "_upper"

// maxAmount keeps the integer part within the 兆 group.
const maxAmount = 1e16

var (
	financialDigits = []string{"零", "壹", "貳", "參", "肆", "伍", "陸", "柒", "捌", "玖"}
	smallUnits      = []string{"", "拾", "佰", "仟"}
	groupUnits      = []string{"", "萬", "億", "兆"}
)

// toNumber accepts numbers and numeric strings ("12,000", " 3.5 ").
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// AmountInWords writes v as a formal amount for locale. ok is false when v is not numeric.
func AmountInWords(v any, locale string) (string, bool) {
	f, ok := toNumber(v)
	if !ok || math.Abs(f) >= maxAmount {
		return "", false
	}
	cents := int64(math.Round(math.Abs(f) * 100))
	negative := f < 0 && cents > 0
	if isEnglish(locale) {
		return englishAmount(cents, negative), true
	}
	return chineseAmount(cents, negative), true
}

func chineseAmount(cents int64, negative bool) string {
	whole, jiao, fen := cents/100, cents/10%10, cents%10

	var b strings.Builder
	if negative {
		b.WriteString("負")
	}
	if whole > 0 || cents == 0 {
		b.WriteString(chineseInteger(whole))
		b.WriteString("元")
	}
	switch {
	case jiao == 0 && fen == 0:
		b.WriteString("整")
	case jiao == 0:
		if whole > 0 {
			b.WriteString("零")
		}
		b.WriteString(financialDigits[fen] + "分")
	default:
		b.WriteString(financialDigits[jiao] + "角")
		if fen > 0 {
			b.WriteString(financialDigits[fen] + "分")
		}
	}
	return b.String()
}

func chineseInteger(n int64) string {
	if n == 0 {
		return financialDigits[0]
	}
	var groups []int64
	for n > 0 {
		groups = append(groups, n%10000)
		n /= 10000
	}

	var b strings.Builder
	needZero := false
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if g == 0 {
			needZero = b.Len() > 0
			continue
		}
		if b.Len() > 0 && (needZero || g < 1000) {
			b.WriteString(financialDigits[0])
		}
		b.WriteString(chineseGroup(g))
		b.WriteString(groupUnits[i])
		needZero = false
	}
	return b.String()
}

// chineseGroup writes 1..9999 without the leading zero rule of the caller.
func chineseGroup(g int64) string {
	var b strings.Builder
	zeroPending := false
	for pos := 3; pos >= 0; pos-- {
		d := g / int64(math.Pow10(pos)) % 10
		if d == 0 {
			if b.Len() > 0 {
				zeroPending = true
			}
			continue
		}
		if zeroPending {
			b.WriteString(financialDigits[0])
			zeroPending = false
		}
		b.WriteString(financialDigits[d])
		b.WriteString(smallUnits[pos])
	}
	return b.String()
}

func englishAmount(cents int64, negative bool) string {
	words := num2words.Convert(int(cents / 100))
	if negative {
		words = "minus " + words
	}
	return fmt.Sprintf("%s and %02d/100", words, cents%100)
}

func isEnglish(locale string) bool {
	return strings.HasPrefix(strings.ToLower(locale), "en")
}
