package pipeline

import "github.com/santhosh-tekuri/jsonschema/v5"

// candidateSchema checks the shape of each model-emitted transaction object
// before field parsing. Shape failures drop the candidate, they never fail
// the document.
var candidateSchema = jsonschema.MustCompileString("candidate.json", `{
	"type": "object",
	"required": ["date", "description", "amount", "type"],
	"properties": {
		"date":        {"type": "string", "minLength": 1},
		"description": {"type": "string", "minLength": 1},
		"amount":      {"type": "string", "minLength": 1},
		"type":        {"type": "string", "enum": ["debit", "credit"]}
	}
}`)

// categoryAssignmentSchema checks each element of the categorization response.
var categoryAssignmentSchema = jsonschema.MustCompileString("assignment.json", `{
	"type": "object",
	"required": ["index", "category"],
	"properties": {
		"index":    {"type": "integer", "minimum": 1},
		"category": {"type": "string", "minLength": 1}
	}
}`)
