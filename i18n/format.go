package i18n

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/ar"
	"github.com/go-playground/locales/de"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/es"
	"github.com/go-playground/locales/fr"
	"github.com/go-playground/locales/it"
	"github.com/go-playground/locales/ja"
	"github.com/go-playground/locales/ko"
	"github.com/go-playground/locales/nl"
	"github.com/go-playground/locales/pl"
	"github.com/go-playground/locales/pt"
	"github.com/go-playground/locales/ru"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Unit is a relative time unit.
type Unit string

const (
	UnitSecond  Unit = "second"
	UnitMinute  Unit = "minute"
	UnitHour    Unit = "hour"
	UnitDay     Unit = "day"
	UnitWeek    Unit = "week"
	UnitMonth   Unit = "month"
	UnitQuarter Unit = "quarter"
	UnitYear    Unit = "year"
)

var units = []Unit{UnitSecond, UnitMinute, UnitHour, UnitDay, UnitWeek, UnitMonth, UnitQuarter, UnitYear}

// isoDate is used for languages without CLDR date data.
const isoDate = "2006-01-02"

func tagFor(lang Language) language.Tag {
	tag, err := language.Parse(string(lang))
	if err != nil {
		return language.English
	}
	return tag
}

// FormatNumber groups digits and picks the decimal separator for lang.
func FormatNumber(lang Language, v float64) string {
	p := message.NewPrinter(tagFor(lang))
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return p.Sprint(number.Decimal(int64(v)))
	}
	return p.Sprint(number.Decimal(v))
}

// FormatDate renders t in the CLDR short date format of lang. Languages
// without locale data get an ISO date.
func FormatDate(lang Language, t time.Time) string {
	trans, ok := translators.GetTranslator(string(baseLanguage(lang)))
	if !ok {
		return t.Format(isoDate)
	}
	return trans.FmtDateShort(t)
}

// FormatRelativeTime renders value units relative to now ("in 3 days",
// "yesterday"). The plural form comes from the CLDR cardinal rules of lang.
// Languages without phrases use English.
func FormatRelativeTime(lang Language, value int, unit Unit) (string, error) {
	base := baseLanguage(lang)
	trans, ok := translators.GetTranslator(string(base))
	if !ok {
		base = DefaultLanguage
		trans, _ = translators.GetTranslator(string(base))
	}
	if _, ok := relativeTables[base].units[unit]; !ok {
		return "", fmt.Errorf("unknown relative time unit %q", unit)
	}
	if phrase, ok := relativeTables[base].specials[unit][value]; ok {
		return phrase, nil
	}

	direction := "future"
	abs := value
	if value < 0 {
		direction = "past"
		abs = -value
	}
	n := float64(abs)
	return trans.C(relativeKey(unit, direction), n, 0, trans.FmtNumber(n, 0))
}

func relativeKey(unit Unit, direction string) string {
	return string(unit) + ":" + direction
}

func baseLanguage(lang Language) Language {
	tag, err := language.Parse(string(lang))
	if err != nil {
		return lang
	}
	base, _ := tag.Base()
	return Language(base.String())
}

const (
	pOne   = locales.PluralRuleOne
	pTwo   = locales.PluralRuleTwo
	pFew   = locales.PluralRuleFew
	pMany  = locales.PluralRuleMany
	pOther = locales.PluralRuleOther
)

// words holds a unit name per plural rule. Rules a language does not list use
// the pOther entry.
type words map[locales.PluralRule]string

// relativePhrases describes one language. future and past are fmt templates
// around the unit word and must keep the {0} number placeholder.
type relativePhrases struct {
	future   string
	past     string
	units    map[Unit]words
	specials map[Unit]map[int]string
}

func other(w string) words { return words{pOther: w} }
func oneOther(one, rest string) words { return words{pOne: one, pOther: rest} }

var relativeTables = map[Language]relativePhrases{
	"en": {
		future: "in {0} %s",
		past:   "{0} %s ago",
		units: map[Unit]words{
			UnitSecond: oneOther("second", "seconds"), UnitMinute: oneOther("minute", "minutes"),
			UnitHour: oneOther("hour", "hours"), UnitDay: oneOther("day", "days"),
			UnitWeek: oneOther("week", "weeks"), UnitMonth: oneOther("month", "months"),
			UnitQuarter: oneOther("quarter", "quarters"), UnitYear: oneOther("year", "years"),
		},
		specials: map[Unit]map[int]string{
			UnitSecond:  {0: "now"},
			UnitMinute:  {0: "this minute"},
			UnitHour:    {0: "this hour"},
			UnitDay:     {-1: "yesterday", 0: "today", 1: "tomorrow"},
			UnitWeek:    {-1: "last week", 0: "this week", 1: "next week"},
			UnitMonth:   {-1: "last month", 0: "this month", 1: "next month"},
			UnitQuarter: {-1: "last quarter", 0: "this quarter", 1: "next quarter"},
			UnitYear:    {-1: "last year", 0: "this year", 1: "next year"},
		},
	},
	"es": {
		future: "dentro de {0} %s",
		past:   "hace {0} %s",
		units: map[Unit]words{
			UnitSecond: oneOther("segundo", "segundos"), UnitMinute: oneOther("minuto", "minutos"),
			UnitHour: oneOther("hora", "horas"), UnitDay: oneOther("día", "días"),
			UnitWeek: oneOther("semana", "semanas"), UnitMonth: oneOther("mes", "meses"),
			UnitQuarter: oneOther("trimestre", "trimestres"), UnitYear: oneOther("año", "años"),
		},
		specials: map[Unit]map[int]string{
			UnitSecond: {0: "ahora"},
			UnitDay:    {-1: "ayer", 0: "hoy", 1: "mañana"},
			UnitYear:   {-1: "el año pasado", 0: "este año", 1: "el próximo año"},
		},
	},
	"fr": {
		future: "dans {0} %s",
		past:   "il y a {0} %s",
		units: map[Unit]words{
			UnitSecond: oneOther("seconde", "secondes"), UnitMinute: oneOther("minute", "minutes"),
			UnitHour: oneOther("heure", "heures"), UnitDay: oneOther("jour", "jours"),
			UnitWeek: oneOther("semaine", "semaines"), UnitMonth: oneOther("mois", "mois"),
			UnitQuarter: oneOther("trimestre", "trimestres"), UnitYear: oneOther("an", "ans"),
		},
		specials: map[Unit]map[int]string{
			UnitSecond: {0: "maintenant"},
			UnitDay:    {-1: "hier", 0: "aujourd’hui", 1: "demain"},
			UnitYear:   {-1: "l’année dernière", 0: "cette année", 1: "l’année prochaine"},
		},
	},
	"de": {
		future: "in {0} %s",
		past:   "vor {0} %s",
		units: map[Unit]words{
			UnitSecond: oneOther("Sekunde", "Sekunden"), UnitMinute: oneOther("Minute", "Minuten"),
			UnitHour: oneOther("Stunde", "Stunden"), UnitDay: oneOther("Tag", "Tagen"),
			UnitWeek: oneOther("Woche", "Wochen"), UnitMonth: oneOther("Monat", "Monaten"),
			UnitQuarter: oneOther("Quartal", "Quartalen"), UnitYear: oneOther("Jahr", "Jahren"),
		},
		specials: map[Unit]map[int]string{
			UnitSecond: {0: "jetzt"},
			UnitDay:    {-1: "gestern", 0: "heute", 1: "morgen"},
			UnitYear:   {-1: "letztes Jahr", 0: "dieses Jahr", 1: "nächstes Jahr"},
		},
	},
	"it": {
		future: "tra {0} %s",
		past:   "{0} %s fa",
		units: map[Unit]words{
			UnitSecond: oneOther("secondo", "secondi"), UnitMinute: oneOther("minuto", "minuti"),
			UnitHour: oneOther("ora", "ore"), UnitDay: oneOther("giorno", "giorni"),
			UnitWeek: oneOther("settimana", "settimane"), UnitMonth: oneOther("mese", "mesi"),
			UnitQuarter: oneOther("trimestre", "trimestri"), UnitYear: oneOther("anno", "anni"),
		},
		specials: map[Unit]map[int]string{
			UnitSecond: {0: "ora"},
			UnitDay:    {-1: "ieri", 0: "oggi", 1: "domani"},
		},
	},
	"pt": {
		future: "em {0} %s",
		past:   "há {0} %s",
		units: map[Unit]words{
			UnitSecond: oneOther("segundo", "segundos"), UnitMinute: oneOther("minuto", "minutos"),
			UnitHour: oneOther("hora", "horas"), UnitDay: oneOther("dia", "dias"),
			UnitWeek: oneOther("semana", "semanas"), UnitMonth: oneOther("mês", "meses"),
			UnitQuarter: oneOther("trimestre", "trimestres"), UnitYear: oneOther("ano", "anos"),
		},
		specials: map[Unit]map[int]string{
			UnitSecond: {0: "agora"},
			UnitDay:    {-1: "ontem", 0: "hoje", 1: "amanhã"},
		},
	},
	"nl": {
		future: "over {0} %s",
		past:   "{0} %s geleden",
		units: map[Unit]words{
			UnitSecond: oneOther("seconde", "seconden"), UnitMinute: oneOther("minuut", "minuten"),
			UnitHour: oneOther("uur", "uur"), UnitDay: oneOther("dag", "dagen"),
			UnitWeek: oneOther("week", "weken"), UnitMonth: oneOther("maand", "maanden"),
			UnitQuarter: oneOther("kwartaal", "kwartalen"), UnitYear: oneOther("jaar", "jaar"),
		},
		specials: map[Unit]map[int]string{
			UnitSecond: {0: "nu"},
			UnitDay:    {-1: "gisteren", 0: "vandaag", 1: "morgen"},
		},
	},
	"ru": {
		future: "через {0} %s",
		past:   "{0} %s назад",
		units: map[Unit]words{
			UnitSecond:  {pOne: "секунду", pFew: "секунды", pMany: "секунд", pOther: "секунды"},
			UnitMinute:  {pOne: "минуту", pFew: "минуты", pMany: "минут", pOther: "минуты"},
			UnitHour:    {pOne: "час", pFew: "часа", pMany: "часов", pOther: "часа"},
			UnitDay:     {pOne: "день", pFew: "дня", pMany: "дней", pOther: "дня"},
			UnitWeek:    {pOne: "неделю", pFew: "недели", pMany: "недель", pOther: "недели"},
			UnitMonth:   {pOne: "месяц", pFew: "месяца", pMany: "месяцев", pOther: "месяца"},
			UnitQuarter: {pOne: "квартал", pFew: "квартала", pMany: "кварталов", pOther: "квартала"},
			UnitYear:    {pOne: "год", pFew: "года", pMany: "лет", pOther: "года"},
		},
		specials: map[Unit]map[int]string{
			UnitSecond: {0: "сейчас"},
			UnitDay:    {-1: "вчера", 0: "сегодня", 1: "завтра"},
		},
	},
	"pl": {
		future: "za {0} %s",
		past:   "{0} %s temu",
		units: map[Unit]words{
			UnitSecond:  {pOne: "sekundę", pFew: "sekundy", pMany: "sekund", pOther: "sekundy"},
			UnitMinute:  {pOne: "minutę", pFew: "minuty", pMany: "minut", pOther: "minuty"},
			UnitHour:    {pOne: "godzinę", pFew: "godziny", pMany: "godzin", pOther: "godziny"},
			UnitDay:     {pOne: "dzień", pFew: "dni", pMany: "dni", pOther: "dnia"},
			UnitWeek:    {pOne: "tydzień", pFew: "tygodnie", pMany: "tygodni", pOther: "tygodnia"},
			UnitMonth:   {pOne: "miesiąc", pFew: "miesiące", pMany: "miesięcy", pOther: "miesiąca"},
			UnitQuarter: {pOne: "kwartał", pFew: "kwartały", pMany: "kwartałów", pOther: "kwartału"},
			UnitYear:    {pOne: "rok", pFew: "lata", pMany: "lat", pOther: "roku"},
		},
		specials: map[Unit]map[int]string{
			UnitSecond: {0: "teraz"},
			UnitDay:    {-1: "wczoraj", 0: "dzisiaj", 1: "jutro"},
		},
	},
	"ar": {
		future: "خلال {0} %s",
		past:   "قبل {0} %s",
		units: map[Unit]words{
			UnitSecond:  {pTwo: "ثانيتين", pFew: "ثوانٍ", pOther: "ثانية"},
			UnitMinute:  {pTwo: "دقيقتين", pFew: "دقائق", pOther: "دقيقة"},
			UnitHour:    {pTwo: "ساعتين", pFew: "ساعات", pOther: "ساعة"},
			UnitDay:     {pTwo: "يومين", pFew: "أيام", pMany: "يومًا", pOther: "يوم"},
			UnitWeek:    {pTwo: "أسبوعين", pFew: "أسابيع", pMany: "أسبوعًا", pOther: "أسبوع"},
			UnitMonth:   {pTwo: "شهرين", pFew: "أشهر", pMany: "شهرًا", pOther: "شهر"},
			UnitQuarter: {pTwo: "ربعي سنة", pFew: "أرباع سنة", pOther: "ربع سنة"},
			UnitYear:    {pTwo: "سنتين", pFew: "سنوات", pMany: "سنة", pOther: "سنة"},
		},
		specials: map[Unit]map[int]string{
			UnitSecond: {0: "الآن"},
			UnitDay:    {-1: "أمس", 0: "اليوم", 1: "غدًا"},
		},
	},
	"ja": {
		future: "{0}%s後",
		past:   "{0}%s前",
		units: map[Unit]words{
			UnitSecond: other(" 秒"), UnitMinute: other(" 分"), UnitHour: other(" 時間"),
			UnitDay: other(" 日"), UnitWeek: other(" 週間"), UnitMonth: other(" か月"),
			UnitQuarter: other(" 四半期"), UnitYear: other(" 年"),
		},
		specials: map[Unit]map[int]string{
			UnitSecond: {0: "今"},
			UnitDay:    {-1: "昨日", 0: "今日", 1: "明日"},
		},
	},
	"zh": {
		future: "{0}%s后",
		past:   "{0}%s前",
		units: map[Unit]words{
			UnitSecond: other("秒钟"), UnitMinute: other("分钟"), UnitHour: other("小时"),
			UnitDay: other("天"), UnitWeek: other("周"), UnitMonth: other("个月"),
			UnitQuarter: other("个季度"), UnitYear: other("年"),
		},
		specials: map[Unit]map[int]string{
			UnitSecond: {0: "现在"},
			UnitDay:    {-1: "昨天", 0: "今天", 1: "明天"},
		},
	},
	"ko": {
		future: "{0}%s 후",
		past:   "{0}%s 전",
		units: map[Unit]words{
			UnitSecond: other("초"), UnitMinute: other("분"), UnitHour: other("시간"),
			UnitDay: other("일"), UnitWeek: other("주"), UnitMonth: other("개월"),
			UnitQuarter: other("분기"), UnitYear: other("년"),
		},
		specials: map[Unit]map[int]string{
			UnitSecond: {0: "지금"},
			UnitDay:    {-1: "어제", 0: "오늘", 1: "내일"},
		},
	},
}

var translators = mustTranslators()

// mustTranslators loads the relative time phrases into a universal translator,
// one cardinal entry per plural rule the locale defines.
func mustTranslators() *ut.UniversalTranslator {
	fallback := en.New()
	uni := ut.New(fallback, fallback,
		es.New(), fr.New(), de.New(), it.New(), pt.New(), nl.New(), ru.New(), pl.New(),
		ar.New(), ja.New(), zh.New(), ko.New(),
	)

	for lang, table := range relativeTables {
		trans, ok := uni.GetTranslator(string(lang))
		if !ok {
			panic(fmt.Sprintf("i18n: no locale data for %q", lang))
		}
		for _, unit := range units {
			forms := table.units[unit]
			for _, rule := range trans.PluralsCardinal() {
				word, ok := forms[rule]
				if !ok {
					word = forms[pOther]
				}
				if err := trans.AddCardinal(relativeKey(unit, "future"), fmt.Sprintf(table.future, word), rule, false); err != nil {
					panic(err)
				}
				if err := trans.AddCardinal(relativeKey(unit, "past"), fmt.Sprintf(table.past, word), rule, false); err != nil {
					panic(err)
				}
			}
		}
	}
	return uni
}
