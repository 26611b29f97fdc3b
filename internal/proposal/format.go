package proposal

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SqmPerPyeong is the area of one pyeong in square meters.
const SqmPerPyeong = 3.3058

// KST is the zone dates on the cover are printed in.
var KST = time.FixedZone("KST", 9*60*60)

var printer = message.NewPrinter(language.Korean)

// Number groups thousands the way ko-KR does, keeping at most three
// fraction digits.
func Number(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return printer.Sprintf("%d", int64(v))
	}
	s := printer.Sprintf("%.3f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// Currency is Number followed by 원.
func Currency(v float64) string {
	return Number(v) + "원"
}

// Year appends 년 to a non-empty year.
func Year(v string) string {
	if v == "" {
		return ""
	}
	return v + "년"
}

func AreaPyeong(v float64) string { return fmt.Sprintf("%.1f평", v) }

// SqmPyeong returns the area in square meters and in pyeong.
func (a *Area) SqmPyeong() (sqm, pyeong float64) {
	if a == nil {
		return 0, 0
	}
	if a.Unit == "pyeong" {
		return a.Value * SqmPerPyeong, a.Value
	}
	return a.Value, a.Value / SqmPerPyeong
}

var digits = regexp.MustCompile(`^\d+$`)

// ContractPeriod renders a contract period type and value.
func ContractPeriod(typ, value string) string {
	switch typ {
	case "six_months":
		return "6개월"
	case "twelve_months":
		return "12개월"
	case "custom":
		if value != "" {
			return value + "개월"
		}
		return "기간 협의"
	}
	if digits.MatchString(value) {
		return value + "개월"
	}
	if digits.MatchString(typ) {
		return typ + "개월"
	}
	if value != "" {
		return value
	}
	return typ
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006/01/02", "2006.01.02"}

// MoveInDate renders when an option can be moved into.
func MoveInDate(value, typ string) string {
	switch typ {
	case "immediate":
		return "즉시 입주 가능"
	case "negotiable":
		return "협의 가능"
	}
	if value == "" {
		return typ
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return fmt.Sprintf("%d년 %d월 %d일", t.Year(), int(t.Month()), t.Day())
		}
	}
	return value
}

var category1Labels = map[string]string{
	"exclusive_floor": "전용층",
	"separate_floor":  "분리층",
	"connected_floor": "연층",
	"exclusive_room":  "전용호실",
	"separate_room":   "분리호실",
	"connected_room":  "연접호실",
}

var category2Labels = map[string]string{
	"window_side": "창측",
	"inner_side":  "내측",
}

func Category1(c string) string {
	if l, ok := category1Labels[c]; ok {
		return l
	}
	return c
}

func Category2(c string) string {
	if l, ok := category2Labels[c]; ok {
		return l
	}
	return c
}

// Classification renders "name(category1/category2)".
func Classification(o *Option) string {
	return fmt.Sprintf("%s(%s/%s)", o.Name, Category1(o.Category1), Category2(o.Category2))
}

// brandAbbrs is ordered so that substring lookups are deterministic.
var brandAbbrs = []struct{ name, abbr string }{
	{"메리히어", "M"},
	{"마이크로웨이브", "M"},
	{"헬로먼데이", "H"},
	{"메가프로젝트", "M"},
	{"작심", "J"},
	{"지랩스", "G"},
	{"가라지", "G"},
	{"테드스페이스", "T"},
	{"스페이스에이드", "S"},
	{"플레이스캠프", "P"},
	{"무신사", "M"},
	{"비전포트", "V"},
	{"두드림", "D"},
	{"SSC", "S"},
	{"팀타운", "T"},
	{"TEC", "T"},
	{"스튜디오오스카", "S"},
	{"CEO SUITE", "C"},
	{"하품", "H"},
	{"에그스테이션", "E"},
	{"트리니티", "T"},
	{"넥스트데이", "N"},
	{"핀포인트", "P"},
	{"캔버스랩", "C"},
	{"워크플렉스", "W"},
	{"워크앤올", "W"},
	{"마이워크스페이스", "M"},
	{"리저스", "R"},
	{"스페이시즈", "S"},
	{"스테이지나인", "S"},
	{"저스트코", "J"},
	{"위워크", "W"},
	{"스파크플러스", "S"},
	{"패스트파이브", "F"},
}

// BrandAbbr anonymizes a brand as "X사": an exact match first, then the
// first known name it contains, then its own first letter.
func BrandAbbr(brand string) string {
	if brand == "" {
		return ""
	}
	for _, b := range brandAbbrs {
		if b.name == brand {
			return b.abbr + "사"
		}
	}
	for _, b := range brandAbbrs {
		if strings.Contains(brand, b.name) {
			return b.abbr + "사"
		}
	}
	r := []rune(brand)[0]
	return string(unicode.ToUpper(r)) + "사"
}

var creditTypes = map[string]string{
	"monthly":      "월별 제공",
	"printing":     "프린팅",
	"meeting_room": "미팅룸",
	"other":        "기타",
}

// Credits renders bundled credits, comma separated.
func Credits(cs []Credit) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		if c.Type == "other" && c.CustomName != "" {
			unit := c.Unit
			if unit == "" {
				unit = "크레딧"
			}
			s := fmt.Sprintf("%s %s %s 제공", c.CustomName, Number(c.Amount), unit)
			if c.Note != "" {
				s += " / " + c.Note
			}
			parts = append(parts, s)
			continue
		}
		name := creditTypes[c.Type]
		if name == "" {
			name = c.Type
		}
		if name == "" {
			name = "기타"
		}
		s := fmt.Sprintf("%s %s크레딧", name, Number(c.Amount))
		if c.Note != "" {
			s += " (" + c.Note + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

// DiscountRate is round((list-monthly)/list*100) as a percentage.
func DiscountRate(list, monthly float64) string {
	if list <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", int(math.Round((list-monthly)/list*100)))
}

// Transit renders the walking or transit time to the nearest station.
// Branches over 15 minutes away on foot are described by transit.
func Transit(b *Branch) string {
	if b == nil {
		b = &Branch{}
	}
	useTransit := b.IsTransit || b.WalkingDistance > 15
	if !useTransit {
		return fmt.Sprintf("%s 도보 %d분 거리", b.NearestSubway, b.WalkingDistance)
	}
	d := b.TransitDistance
	if d == 0 {
		d = b.WalkingDistance
	}
	return fmt.Sprintf("%s 대중교통 %d분 거리", b.NearestSubway, d)
}

// OneTimeFees renders "type: N원" items, or 없음.
func OneTimeFees(fees []Fee) string {
	if len(fees) == 0 {
		return "없음"
	}
	parts := make([]string, len(fees))
	for i, f := range fees {
		parts[i] = f.Type + ": " + Currency(f.Amount)
	}
	return strings.Join(parts, ", ")
}

func included(b bool) string {
	if b {
		return "포함"
	}
	return "별도"
}

// IssueDate renders a date the way ko-KR short dates read.
func IssueDate(t time.Time) string {
	t = t.In(KST)
	return fmt.Sprintf("%d. %d. %d.", t.Year(), int(t.Month()), t.Day())
}
