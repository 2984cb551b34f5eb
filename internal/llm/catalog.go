package llm

// AvailableModels lists the model ids offered to callers. The first usable
// alias doubles as the process-wide default.
var AvailableModels = []string{
	"gemini-2.0-flash-exp",
	"gemini-flash-latest",
	"gemini-flash-lite-latest",
	"gemini-3-pro-preview",
}

// DefaultModel is used whenever a call does not pin a model id.
const DefaultModel = "gemini-flash-latest"

// DefaultMaxTokens is the fixed output ceiling applied to every call.
const DefaultMaxTokens int32 = 8192
