package content

// Bar is one rendered column of the revenue chart, in SVG user units.
type Bar struct {
	Name   string
	Value  float64
	Label  string
	X      int
	Y      int
	Width  int
	Height int
	Color  string
}

var barColors = []string{"#10b981", "#34d399", "#059669"}

const (
	barWidth = 80
	barGap   = 40
)

// Bars lays out the revenue projection as vertical bars scaled so the
// largest value fills height. Colors cycle through the palette.
func (p *Pitch) Bars(height int) []Bar {
	items := p.Financials.Revenue
	if len(items) == 0 || height <= 0 {
		return nil
	}

	var peak float64
	for _, it := range items {
		peak = max(peak, it.Value)
	}

	bars := make([]Bar, len(items))
	for i, it := range items {
		h := 0
		if peak > 0 {
			h = int(it.Value / peak * float64(height))
		}
		bars[i] = Bar{
			Name:   it.Name,
			Value:  it.Value,
			Label:  "R$ " + FormatAmount(it.Value, false),
			X:      barGap + i*(barWidth+barGap),
			Y:      height - h,
			Width:  barWidth,
			Height: h,
			Color:  barColors[i%len(barColors)],
		}
	}
	return bars
}

// ChartWidth is the SVG width needed for n bars.
func ChartWidth(n int) int {
	return barGap + n*(barWidth+barGap)
}
