package search

import (
	"math/big"
	"strings"
	"time"

	"github.com/gookit/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numbers = message.NewPrinter(language.English)

// Report is one throughput sample.
type Report struct {
	Total   uint64
	Rate    float64 // attempts per second since the previous report
	Elapsed time.Duration
	Final   bool
}

// FormatCount renders n with thousands separators.
func FormatCount(n uint64) string {
	return numbers.Sprintf("%d", n)
}

// FormatReport renders a throughput line.
func FormatReport(r Report, size *big.Int) string {
	var b strings.Builder
	if r.Final {
		b.WriteString(color.Cyan.Sprint("[stats:final]"))
	} else {
		b.WriteString(color.Cyan.Sprint("[stats]"))
	}
	b.WriteString(" total=")
	b.WriteString(color.Bold.Sprint(FormatCount(r.Total)))
	b.WriteString(numbers.Sprintf("  rate=%.1f attempts/s", r.Rate))
	if pct, ok := percentOf(r.Total, size); ok {
		b.WriteString(numbers.Sprintf("  done=%.2f%%", pct))
	}
	b.WriteString(color.Gray.Sprintf("  elapsed=%s", r.Elapsed.Round(time.Millisecond)))
	b.WriteString("\n")
	return b.String()
}

func percentOf(n uint64, size *big.Int) (float64, bool) {
	if size == nil || size.Sign() <= 0 {
		return 0, false
	}
	f := new(big.Float).SetUint64(n)
	f.Mul(f, big.NewFloat(100))
	f.Quo(f, new(big.Float).SetInt(size))
	pct, _ := f.Float64()
	return pct, true
}

// FormatResult renders the outcome of a search for humans. The bare match
// line for scripts is printed separately by the caller.
func FormatResult(res *Result) string {
	var b strings.Builder
	elapsed := res.Elapsed.Seconds()
	switch res.State {
	case Found:
		b.WriteString(color.Green.Sprint("[+] FOUND: "))
		b.WriteString(color.Bold.Sprintf("'%s'", res.Match))
		b.WriteString(numbers.Sprintf(" in %.2fs  (attempts≈%d)\n", elapsed, res.Attempts))
	case Exhausted:
		b.WriteString(color.Red.Sprint("[-] Not found"))
		b.WriteString(numbers.Sprintf(" after %.2fs  (attempts≈%d)\n", elapsed, res.Attempts))
	case Interrupted:
		b.WriteString(color.Yellow.Sprint("[!] Interrupted"))
		b.WriteString(numbers.Sprintf(" after %.2fs  (attempts≈%d, resume offset %d)\n", elapsed, res.Attempts, res.Offset))
	default:
		b.WriteString(numbers.Sprintf("[?] %s after %.2fs\n", res.State, elapsed))
	}
	return b.String()
}
