package analysis

// Direction is the overall move of the tracked indices.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionChoppy Direction = "choppy"
)

var directionText = map[Direction]string{
	DirectionUp:     "上涨",
	DirectionDown:   "下跌",
	DirectionChoppy: "震荡",
}

// Text is the display label handed to the report generator.
func (d Direction) Text() string { return directionText[d] }

// FundDirection is the size and sign of a fund channel's net flow.
type FundDirection string

const (
	StrongInflow  FundDirection = "strong-inflow"
	MildInflow    FundDirection = "mild-inflow"
	MildOutflow   FundDirection = "mild-outflow"
	StrongOutflow FundDirection = "strong-outflow"
)

var fundDirectionText = map[FundDirection]string{
	StrongInflow:  "大幅流入",
	MildInflow:    "小幅流入",
	MildOutflow:   "小幅流出",
	StrongOutflow: "大幅流出",
}

func (f FundDirection) Text() string { return fundDirectionText[f] }

// Sentiment labels. Fund flow, breadth and the prepared report's combined
// rule each use a subset.
type Sentiment string

const (
	// fund flow
	Bullish           Sentiment = "bullish"
	CautiouslyBullish Sentiment = "cautiously-bullish"
	Bearish           Sentiment = "bearish"
	Pessimistic       Sentiment = "pessimistic"

	// breadth
	Strong         Sentiment = "strong"
	BullishLeaning Sentiment = "bullish-leaning"
	Neutral        Sentiment = "neutral"
	BearishLeaning Sentiment = "bearish-leaning"
	Weak           Sentiment = "weak"

	// combined
	NeutralBullish Sentiment = "neutral-bullish"
	NeutralBearish Sentiment = "neutral-bearish"
)

var sentimentText = map[Sentiment]string{
	Bullish:           "偏多",
	CautiouslyBullish: "谨慎偏多",
	Bearish:           "偏空",
	Pessimistic:       "悲观",
	Strong:            "强势",
	BullishLeaning:    "偏多",
	Neutral:           "中性",
	BearishLeaning:    "偏空",
	Weak:              "弱势",
	NeutralBullish:    "中性偏多",
	NeutralBearish:    "中性偏空",
}

func (s Sentiment) Text() string { return sentimentText[s] }

// BreadthLevels lists the breadth sentiments from weakest to strongest.
var BreadthLevels = []Sentiment{Weak, BearishLeaning, Neutral, BullishLeaning, Strong}

// EarningEffect grades limit-up names against limit-down names.
type EarningEffect string

const (
	EarningPronounced EarningEffect = "pronounced"
	EarningModerate   EarningEffect = "moderate"
	EarningPoor       EarningEffect = "poor"
)

var earningText = map[EarningEffect]string{
	EarningPronounced: "明显",
	EarningModerate:   "一般",
	EarningPoor:       "较差",
}

func (e EarningEffect) Text() string { return earningText[e] }
