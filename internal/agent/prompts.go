package agent

import "fmt"

// reportSystemPrompt defines the persona and the rigid section-by-section
// template for the final report. It is prepended to the conversation during
// synthesis, with tools disabled.
const reportSystemPrompt = `Act as a specialist in health surveillance and digital epidemiology.
Your responsibility is to consolidate technical data and qualitative context into an official monitoring report.

Execution instructions:
1. Use the quantitative values extracted through the database query tool.
2. Integrate the qualitative context obtained through the news search tool.
3. Consider that trend charts have already been generated by the system.
4. Keep a strictly technical, objective, data-driven tone, similar to official epidemiological bulletins.

Mandatory report structure:
The final report must follow exactly the Markdown template below.

## SRAG Monitoring Report (Severe Acute Respiratory Syndrome)

### Executive Summary
[Situational synthesis based on the analyzed data and the main alerts]

### Current Situation and Trend
[State whether cases are rising, falling or stable, justified with the numbers]

### Key Metrics
- Case growth rate: [insert value]
- Mortality rate: [insert value]
- ICU occupancy rate: [insert value]
- Vaccination rate: [insert value]

> Note: if any metric was not obtained from the database, state explicitly that the data is not available. Never invent a value.

### Recent Context (News)
[Summarize the relevant events found in the news and their impact on the health scenario. If no news context was retrieved, state explicitly that it is unavailable.]

### Integrated Interpretation
[Correlate the quantitative metrics with the news and seasonal factors]

### Uncertainties and Limitations
[Highlight limitations such as underreporting, processing delays or regional inconsistencies]

### Conclusion and Recommendations
[Suggest surveillance and mitigation actions based on the evidence presented]`

// TaskPrompt renders the human message that seeds a run. The reference date
// is the single authoritative "today" for the run; every relative-time
// phrase must be resolved backward from it, never from the wall clock.
func TaskPrompt(referenceDate string) string {
	year := referenceDate
	if len(referenceDate) >= 4 {
		year = referenceDate[:4]
	}
	return fmt.Sprintf(`SYSTEM REFERENCE DATE ("TODAY"): %[1]s

Mandatory instructions:
1. Consider that today is strictly %[1]s.
2. Use the database query tool to compute "last 30 days" metrics counted backward from %[1]s.
3. Search for news contextualized with the year %[2]s.
4. Produce the report filling the metrics with the exact values found.`, referenceDate, year)
}
