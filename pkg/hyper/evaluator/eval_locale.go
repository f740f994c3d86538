package evaluator

import (
	"context"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goodsign/monday"
)

type localeKey struct{}

// WithLocale returns a context whose date formatting uses locale
// (e.g. "en-GB", "de", "fr_CA").
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// LocaleFrom returns the locale bound to ctx, or "en_US".
func LocaleFrom(ctx context.Context) string {
	if ctx != nil {
		if s, ok := ctx.Value(localeKey{}).(string); ok && s != "" {
			return s
		}
	}
	return "en_US"
}

var mondayLocales = map[string]monday.Locale{
	"en": monday.LocaleEnUS, "en_us": monday.LocaleEnUS, "en_gb": monday.LocaleEnGB,
	"de": monday.LocaleDeDE, "fr": monday.LocaleFrFR, "fr_ca": monday.LocaleFrCA,
	"es": monday.LocaleEsES, "it": monday.LocaleItIT, "pt": monday.LocalePtPT,
	"pt_br": monday.LocalePtBR, "nl": monday.LocaleNlNL, "nl_be": monday.LocaleNlBE,
	"ru": monday.LocaleRuRU, "pl": monday.LocalePlPL, "cs": monday.LocaleCsCZ,
	"da": monday.LocaleDaDK, "fi": monday.LocaleFiFI, "sv": monday.LocaleSvSE,
	"nb": monday.LocaleNbNO, "ja": monday.LocaleJaJP, "zh": monday.LocaleZhCN,
	"zh_tw": monday.LocaleZhTW, "ko": monday.LocaleKoKR, "tr": monday.LocaleTrTR,
	"uk": monday.LocaleUkUA, "el": monday.LocaleElGR, "ro": monday.LocaleRoRO,
	"hu": monday.LocaleHuHU, "bg": monday.LocaleBgBG, "id": monday.LocaleIdID,
}

// mondayLocale maps a locale string to a monday.Locale, trying the full tag
// and then the language alone.
func mondayLocale(locale string) monday.Locale {
	locale = strings.ToLower(strings.ReplaceAll(locale, "-", "_"))
	if loc, ok := mondayLocales[locale]; ok {
		return loc
	}
	if lang, _, found := strings.Cut(locale, "_"); found {
		if loc, ok := mondayLocales[lang]; ok {
			return loc
		}
	}
	return monday.LocaleEnUS
}

// Layouts for the named date styles. Locales not listed use day-first
// ordering.
var dateStyles = map[string]map[monday.Locale]string{
	"short": {
		monday.LocaleEnUS: "1/2/06",
		monday.LocaleDeDE: "02.01.06",
		monday.LocaleJaJP: "06/01/02",
		"":                "02/01/06",
	},
	"medium": {
		monday.LocaleEnUS: "Jan 2, 2006",
		monday.LocaleDeDE: "2. Jan. 2006",
		monday.LocaleJaJP: "2006年1月2日",
		"":                "2 Jan 2006",
	},
	"long": {
		monday.LocaleEnUS: "January 2, 2006",
		monday.LocaleDeDE: "2. January 2006",
		monday.LocaleJaJP: "2006年1月2日",
		"":                "2 January 2006",
	},
	"full": {
		monday.LocaleEnUS: "Monday, January 2, 2006",
		monday.LocaleDeDE: "Monday, 2. January 2006",
		monday.LocaleJaJP: "2006年1月2日 Monday",
		"":                "Monday 2 January 2006",
	},
}

// dateLayout resolves a style name to a layout; anything else is taken to
// be a Go layout already.
func dateLayout(style string, locale monday.Locale) string {
	layouts, ok := dateStyles[style]
	if !ok {
		return style
	}
	if l, ok := layouts[locale]; ok {
		return l
	}
	return layouts[""]
}

// toTime accepts time.Time, Unix seconds, or a date string in any format
// dateparse understands.
func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
		return time.Time{}, false
	case string:
		parsed, err := dateparse.ParseAny(t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	case int64:
		return time.Unix(t, 0).UTC(), true
	case int:
		return time.Unix(int64(t), 0).UTC(), true
	}
	return time.Time{}, false
}

func formatDate(t time.Time, style, locale string) string {
	loc := mondayLocale(locale)
	return monday.Format(t, dateLayout(style, loc), loc)
}
