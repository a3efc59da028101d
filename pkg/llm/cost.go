package llm

// Token pricing per 1M tokens (USD).
var pricing = map[string]modelPrice{
	"gpt-4o":            {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":       {Input: 0.15, Output: 0.60},
	"deepseek-chat":     {Input: 0.27, Output: 1.10},
	"deepseek-reasoner": {Input: 0.55, Output: 2.19},

	"claude-3-5-haiku-20241022":  {Input: 0.80, Output: 4.00},
	"claude-3-5-sonnet-20241022": {Input: 3.00, Output: 15.00},

	"gemini-2.0-flash": {Input: 0.10, Output: 0.40},
	"gemini-1.5-flash": {Input: 0.075, Output: 0.30},
}

type modelPrice struct {
	Input  float64 // per 1M input tokens
	Output float64 // per 1M output tokens
}

// EstimateCost returns the estimated cost in USD for the given model and token counts.
// Unknown and local models cost 0.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	p, ok := pricing[model]
	if !ok {
		return 0
	}
	return (float64(tokensIn) * p.Input / 1_000_000) + (float64(tokensOut) * p.Output / 1_000_000)
}
