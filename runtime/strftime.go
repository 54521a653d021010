// The localtime/strftime slow op (spec.md §4.4's "localization" entry,
// SPEC_FULL.md §3): uses github.com/ncruces/go-strftime instead of
// hand-rolling a format converter the way the teacher's own
// runtime/datetime.go does, since the library is already in the
// dependency graph (indirectly, unused) for exactly this purpose.
package runtime

import (
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/wudi/harp/values"
)

// Strftime formats t per a POSIX strftime-style layout string, the
// shape the Perl POSIX::strftime builtin expects.
func Strftime(layout string, t time.Time) (*values.Value, error) {
	return values.NewString(strftime.Format(layout, t)), nil
}

// Localtime returns the epoch-seconds scalar's broken-down local time
// fields as a Perl-shaped list: (sec, min, hour, mday, mon, year, wday,
// yday, isdst), matching perlfunc's localtime() in list context.
func Localtime(epochSeconds *values.Value) []*values.Value {
	t := time.Unix(epochSeconds.ToInt(), 0).Local()
	_, offset := t.Zone()
	_, janOffset := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location()).Zone()
	isdst := int64(0)
	if offset != janOffset {
		isdst = 1
	}
	return []*values.Value{
		values.NewInt(int64(t.Second())),
		values.NewInt(int64(t.Minute())),
		values.NewInt(int64(t.Hour())),
		values.NewInt(int64(t.Day())),
		values.NewInt(int64(t.Month()) - 1),
		values.NewInt(int64(t.Year()) - 1900),
		values.NewInt(int64(t.Weekday())),
		values.NewInt(int64(t.YearDay()) - 1),
		values.NewInt(isdst),
	}
}
