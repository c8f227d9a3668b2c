package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency is a DHIS2 period type.
type Frequency string

const (
	Daily            Frequency = "daily"
	Weekly           Frequency = "weekly"
	Monthly          Frequency = "monthly"
	Quarterly        Frequency = "quarterly"
	SixMonthly       Frequency = "sixmonthly"
	SixMonthlyApril  Frequency = "sixmonthly_april"
	Yearly           Frequency = "yearly"
	FinancialJuly    Frequency = "financial_july"
	FinancialOctober Frequency = "financial_october"
)

// Frequencies lists every supported period type.
var Frequencies = []Frequency{Daily, Weekly, Monthly, Quarterly, SixMonthly, SixMonthlyApril, Yearly, FinancialJuly, FinancialOctober}

// ParseFrequency accepts the names above as well as DHIS2 periodType
// spellings such as "SixMonthlyApril" or "FinancialJuly".
func ParseFrequency(s string) (Frequency, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for _, f := range Frequencies {
		if strings.ReplaceAll(string(f), "_", "") == norm {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// DateRange is an inclusive calendar interval.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FirstDate snaps the start of a range to the beginning of its period.
func (f Frequency) FirstDate(r DateRange) time.Time {
	t := r.Start
	switch f {
	case Weekly:
		// Snap to Monday
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		return date(t.Year(), t.Month(), t.Day()-(weekday-1))
	case Monthly:
		return date(t.Year(), t.Month(), 1)
	case Quarterly:
		return date(t.Year(), (t.Month()-1)/3*3+1, 1)
	case SixMonthly:
		return date(t.Year(), (t.Month()-1)/6*6+1, 1)
	case SixMonthlyApril:
		switch {
		case t.Month() >= time.October:
			return date(t.Year(), time.October, 1)
		case t.Month() >= time.April:
			return date(t.Year(), time.April, 1)
		default:
			return date(t.Year()-1, time.October, 1)
		}
	case Yearly:
		return date(t.Year(), time.January, 1)
	case FinancialJuly:
		return financialStart(t, time.July)
	case FinancialOctober:
		return financialStart(t, time.October)
	default: // daily
		return date(t.Year(), t.Month(), t.Day())
	}
}

func financialStart(t time.Time, month time.Month) time.Time {
	anniversary := date(t.Year(), month, 1)
	if t.Before(anniversary) {
		return anniversary.AddDate(-1, 0, 0)
	}
	return anniversary
}

// Next returns the first day of the period following the one starting at t.
func (f Frequency) Next(t time.Time) time.Time {
	switch f {
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Monthly:
		return t.AddDate(0, 1, 0)
	case Quarterly:
		return t.AddDate(0, 3, 0)
	case SixMonthly, SixMonthlyApril:
		return t.AddDate(0, 6, 0)
	case Yearly, FinancialJuly, FinancialOctober:
		return t.AddDate(1, 0, 0)
	default: // daily
		return t.AddDate(0, 0, 1)
	}
}

// Format renders the period containing t as a DHIS2 period token.
func (f Frequency) Format(t time.Time) string {
	switch f {
	case Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%dW%d", year, week)
	case Monthly:
		return t.Format("200601")
	case Quarterly:
		return fmt.Sprintf("%dQ%d", t.Year(), (int(t.Month())-1)/3+1)
	case SixMonthly:
		return fmt.Sprintf("%dS%d", t.Year(), (int(t.Month())-1)/6+1)
	case SixMonthlyApril:
		start := SixMonthlyApril.FirstDate(DateRange{Start: t})
		semester := 1
		if start.Month() == time.October {
			semester = 2
		}
		return fmt.Sprintf("%dAprilS%d", start.Year(), semester)
	case Yearly:
		return t.Format("2006")
	case FinancialJuly:
		return fmt.Sprintf("%dJuly", financialStart(t, time.July).Year())
	case FinancialOctober:
		return fmt.Sprintf("%dOct", financialStart(t, time.October).Year())
	default: // daily
		return t.Format("20060102")
	}
}

// Split returns every period token of the frequency between the period
// containing the start token and the period containing the end token.
func Split(startToken, endToken string, f Frequency) ([]string, error) {
	_, start, err := Parse(startToken)
	if err != nil {
		return nil, err
	}
	_, end, err := Parse(endToken)
	if err != nil {
		return nil, err
	}
	if end.End.Before(start.Start) {
		return nil, fmt.Errorf("period range %s..%s is reversed", startToken, endToken)
	}

	var tokens []string
	current := f.FirstDate(DateRange{Start: start.Start, End: end.End})
	for {
		tokens = append(tokens, f.Format(current))
		current = f.Next(current)
		if current.After(end.End) {
			break
		}
	}
	return tokens, nil
}

// Parse recognises a DHIS2 period token and returns its frequency and range.
func Parse(token string) (Frequency, DateRange, error) {
	fail := func() (Frequency, DateRange, error) {
		return "", DateRange{}, fmt.Errorf("unrecognised period %q", token)
	}
	if len(token) < 4 {
		return fail()
	}
	year, err := strconv.Atoi(token[:4])
	if err != nil {
		return fail()
	}
	rest := token[4:]

	switch {
	case strings.HasPrefix(rest, "AprilS"):
		s, err := strconv.Atoi(strings.TrimPrefix(rest, "AprilS"))
		if err != nil || s < 1 || s > 2 {
			return fail()
		}
		start := date(year, time.Month(s*6-2), 1)
		return SixMonthlyApril, DateRange{Start: start, End: start.AddDate(0, 6, -1)}, nil
	case rest == "July":
		start := date(year, time.July, 1)
		return FinancialJuly, DateRange{Start: start, End: start.AddDate(1, 0, -1)}, nil
	case rest == "Oct":
		start := date(year, time.October, 1)
		return FinancialOctober, DateRange{Start: start, End: start.AddDate(1, 0, -1)}, nil
	case strings.HasPrefix(rest, "Q"):
		q, err := strconv.Atoi(rest[1:])
		if err != nil || q < 1 || q > 4 {
			return fail()
		}
		start := date(year, time.Month(3*(q-1)+1), 1)
		return Quarterly, DateRange{Start: start, End: start.AddDate(0, 3, -1)}, nil
	case strings.HasPrefix(rest, "S"):
		s, err := strconv.Atoi(rest[1:])
		if err != nil || s < 1 || s > 2 {
			return fail()
		}
		start := date(year, time.Month((s-1)*6+1), 1)
		return SixMonthly, DateRange{Start: start, End: start.AddDate(0, 6, -1)}, nil
	case strings.HasPrefix(rest, "W"):
		w, err := strconv.Atoi(rest[1:])
		if err != nil || w < 1 || w > 53 {
			return fail()
		}
		start := isoWeekStart(year, w)
		return Weekly, DateRange{Start: start, End: start.AddDate(0, 0, 6)}, nil
	case len(rest) == 0:
		start := date(year, time.January, 1)
		return Yearly, DateRange{Start: start, End: date(year, time.December, 31)}, nil
	case len(rest) == 2:
		m, err := strconv.Atoi(rest)
		if err != nil || m < 1 || m > 12 {
			return fail()
		}
		start := date(year, time.Month(m), 1)
		return Monthly, DateRange{Start: start, End: start.AddDate(0, 1, -1)}, nil
	case len(rest) == 4:
		t, err := time.Parse("20060102", token)
		if err != nil {
			return fail()
		}
		return Daily, DateRange{Start: t, End: t}, nil
	}
	return fail()
}

// isoWeekStart returns the Monday of ISO week w of year.
func isoWeekStart(year, w int) time.Time {
	jan4 := date(year, time.January, 4)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	week1 := jan4.AddDate(0, 0, -(weekday - 1))
	return week1.AddDate(0, 0, (w-1)*7)
}

// Compare orders period tokens chronologically when both parse, and
// lexicographically otherwise.
func Compare(a, b string) int {
	_, ra, errA := Parse(a)
	_, rb, errB := Parse(b)
	if errA == nil && errB == nil {
		if c := ra.Start.Compare(rb.Start); c != 0 {
			return c
		}
		if c := ra.End.Compare(rb.End); c != 0 {
			return c
		}
	}
	return strings.Compare(a, b)
}
