package prompts

const screenSpec = `Respond with a JSON array containing one object per listing:

[
  {"id": <listing ID>, "risk_level": "<Critical|High|Medium|Low>", "reason": "<short reason>"}
]

Constraints:
- id must be the ID given for the listing, unchanged
- Include every listing exactly once
- Output only the JSON array, no markdown fencing`

const refineSpec = `Respond with a JSON object matching this exact structure:

{
  "final_risk": "<Critical|High|Medium|Low>",
  "detailed_analysis": "<expert analysis>"
}

Output only the JSON object, no markdown fencing.`

var specs = map[Stage]string{
	StageScreen: screenSpec,
	StageRefine: refineSpec,
}

// Spec returns the hardcoded output specification for a stage.
// Specifications fix the response shape the inference client parses and
// cannot be overridden. Returns ErrInvalidStage if the stage is not recognized.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
