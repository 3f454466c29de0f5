package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	infoColor = color.New(color.FgCyan)
	locColor  = color.New(color.Faint)
)

// Pretty writes bag to w, one diagnostic per block:
//
//	error[BND4002]: Could not resolve "leftpad"
//	  --> src/index.js:3:17
//	  note: referenced from the application entry
//
// Call bag.Sort() beforehand for deterministic output. Colors are applied
// only when enabled; fatih/color also honors NO_COLOR on its own.
func Pretty(w io.Writer, bag *Bag, colored bool) {
	if bag == nil {
		return
	}
	for _, d := range bag.Items() {
		sev := d.Severity.String()
		if colored {
			switch d.Severity {
			case SevError:
				sev = errColor.Sprint(sev)
			case SevWarning:
				sev = warnColor.Sprint(sev)
			default:
				sev = infoColor.Sprint(sev)
			}
		}
		fmt.Fprintf(w, "%s[%s]: %s\n", sev, d.Code.ID(), d.Message)
		if !d.Primary.IsZero() {
			loc := d.Primary.String()
			if colored {
				loc = locColor.Sprint(loc)
			}
			fmt.Fprintf(w, "  --> %s\n", loc)
		}
		for _, n := range d.Notes {
			if n.Loc.IsZero() {
				fmt.Fprintf(w, "  note: %s\n", n.Msg)
				continue
			}
			fmt.Fprintf(w, "  note: %s (%s)\n", n.Msg, n.Loc.String())
		}
	}
}

// Summary returns a one-line count like "2 errors, 1 warning" or "" when
// the bag is empty.
func Summary(bag *Bag) string {
	if bag == nil || bag.Len() == 0 {
		return ""
	}
	var errs, warns int
	for _, d := range bag.Items() {
		switch d.Severity {
		case SevError:
			errs++
		case SevWarning:
			warns++
		}
	}
	plural := func(n int, word string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, word)
		}
		return fmt.Sprintf("%d %ss", n, word)
	}
	switch {
	case errs > 0 && warns > 0:
		return plural(errs, "error") + ", " + plural(warns, "warning")
	case errs > 0:
		return plural(errs, "error")
	case warns > 0:
		return plural(warns, "warning")
	}
	return fmt.Sprintf("%d messages", bag.Len())
}
