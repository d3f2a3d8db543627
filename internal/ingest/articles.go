package ingest

// Article is one static reference article shipped with the binary. The
// slug is the permanent identity of the article's corpus record, so edit
// titles and bodies freely but never reuse or rename a slug.
type Article struct {
	Slug     string
	Title    string
	Category string
	Body     string
}

// Articles returns the built-in reference articles covering the evaluation
// rules. They back the bot even when the manual KB is empty and the help
// center is unreachable.
func Articles() []Article {
	return articles
}

var articles = []Article{
	{
		Slug:     "overview",
		Title:    "What is TradeScholar?",
		Category: "General",
		Body: `TradeScholar is a proprietary trading firm offering simulated trading evaluations.
Traders pass a challenge by hitting profit targets without breaking risk rules.
There is no real-money trading; all trading happens on demo accounts.
After passing, the trader pays only the real cost of the evaluation.
Payouts are issued via bank transfer or crypto depending on the account model.`,
	},
	{
		Slug:     "plus-two-step",
		Title:    "Plus 2-Step evaluation rules",
		Category: "Evaluations",
		Body: `Phase 1 target: 8 percent profit.
Phase 2 target: 5 percent profit.
Daily loss limit: 4 percent of the higher of starting balance or equity, resetting at 00:00 UTC.
Maximum loss limit: 8 percent of the initial balance.
Leverage: 1:100.
No consistency rule. Minimum 3 profitable days.
Weekend holding allowed, no news restrictions, no time limit.`,
	},
	{
		Slug:     "plus-one-step",
		Title:    "Plus 1-Step evaluation rules",
		Category: "Evaluations",
		Body: `Profit target: 10 percent.
Daily loss limit: 3 percent.
Maximum loss: 6 percent.
Leverage: 1:50.
Minimum 3 profitable days.
No consistency rule and no time limit.
Weekend holding allowed, no news restrictions.`,
	},
	{
		Slug:     "standard-one-step",
		Title:    "Standard 1-Step evaluation rules",
		Category: "Evaluations",
		Body: `Profit target: 10 percent.
Daily loss limit: 3 percent.
Maximum loss limit: 6 percent.
Leverage: 1:100.
Consistency rule: no single day may exceed 45 percent of total profit.
No minimum holding time. Weekend holding allowed.`,
	},
	{
		Slug:     "standard-two-step",
		Title:    "Standard 2-Step evaluation rules",
		Category: "Evaluations",
		Body: `Phase 1 target: 8 percent profit.
Phase 2 target: 5 percent profit.
Daily loss limit: 4 percent.
Maximum loss: 8 percent.
The 45 percent consistency rule applies.
No minimum holding time. Weekend holding allowed.`,
	},
	{
		Slug:     "plus-vs-standard",
		Title:    "Plus model versus Standard model",
		Category: "Evaluations",
		Body: `Plus model: no consistency rule, minimum 3 profitable days, minimum 2-minute average holding time.
Standard model: 45 percent consistency rule, no minimum days, no minimum holding time.
Both models allow weekend holding and news trading.`,
	},
	{
		Slug:     "drawdown-rules",
		Title:    "How drawdown limits are calculated",
		Category: "Risk",
		Body: `Daily loss limit: resets at 00:00 UTC and is calculated from whichever is higher,
the day's starting balance or starting equity.
Maximum loss limit: a fixed loss cap from the initial balance; equity may never fall below it.
Breaching either limit fails the evaluation immediately.`,
	},
	{
		Slug:     "payouts",
		Title:    "Payouts and rewards",
		Category: "Payouts",
		Body: `Rewards are issued after a passed evaluation via bank transfer or crypto.
The first payout can be requested 14 days after the first trade on the funded account.
Subsequent payouts follow a bi-weekly cycle. There are no payout fees.`,
	},
}
