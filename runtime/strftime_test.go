package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wudi/harp/values"
)

func TestStrftimeFormatsLayout(t *testing.T) {
	ts := time.Date(2026, time.March, 5, 9, 30, 0, 0, time.UTC)
	v, err := Strftime("%Y-%m-%d", ts)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-05", v.ToString())
}

func TestLocaltimeReturnsNinePerlShapedFields(t *testing.T) {
	fields := Localtime(values.NewInt(0))
	require.Len(t, fields, 9)
	for _, f := range fields {
		assert.Equal(t, values.KindInt, f.Kind)
	}
}

func TestLocaltimeMonthIsZeroIndexed(t *testing.T) {
	ts := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.Local)
	fields := Localtime(values.NewInt(ts.Unix()))
	mon := fields[4]
	assert.Equal(t, int64(0), mon.ToInt())
	year := fields[5]
	assert.Equal(t, int64(2026-1900), year.ToInt())
}
