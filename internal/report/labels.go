package report

// Trend is the 7-level single-session trend of an index.
type Trend string

const (
	StrongUp   Trend = "strong-up"
	Up         Trend = "up"
	MildUp     Trend = "mild-up"
	Flat       Trend = "flat"
	MildDown   Trend = "mild-down"
	Down       Trend = "down"
	StrongDown Trend = "strong-down"
)

var trendText = map[Trend][2]string{
	StrongUp:   {"强势上涨", "强势多头"},
	Up:         {"上涨", "多头"},
	MildUp:     {"温和上涨", "震荡偏多"},
	Flat:       {"震荡", "震荡"},
	MildDown:   {"温和下跌", "震荡偏空"},
	Down:       {"下跌", "空头"},
	StrongDown: {"强势下跌", "强势空头"},
}

func (t Trend) Text() string { return trendText[t][0] }

// Pattern is the chart-pattern label paired with t.
func (t Trend) Pattern() string { return trendText[t][1] }

// TrendOf classifies a change percentage.
func TrendOf(pct float64) Trend {
	switch {
	case pct > 1:
		return StrongUp
	case pct > 0.5:
		return Up
	case pct > 0:
		return MildUp
	case pct < -1:
		return StrongDown
	case pct < -0.5:
		return Down
	case pct < 0:
		return MildDown
	default:
		return Flat
	}
}

// Volume classifies total index turnover.
type Volume string

const (
	VolumeHeavy    Volume = "heavy"
	VolumeModerate Volume = "moderate"
	VolumeLight    Volume = "light"
)

var volumeText = map[Volume]string{
	VolumeHeavy:    "放量",
	VolumeModerate: "平量",
	VolumeLight:    "缩量",
}

func (v Volume) Text() string { return volumeText[v] }
