package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// knownOperations mirrors the generation operations the credit ledger prices.
var knownOperations = map[string]bool{
	"story_text":    true,
	"character_art": true,
	"storyboard":    true,
	"final_page":    true,
}

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// reject operations no cost is configured for before they reach the ledger
	v.RegisterStructValidation(consumeCreditsStructValidation, ConsumeCreditsRequest{})

	return v
}

func consumeCreditsStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(ConsumeCreditsRequest)

	if req.Operation != "" && !knownOperations[req.Operation] {
		sl.ReportError(req.Operation, "operation", "Operation", "known_operation", req.Operation)
	}
}
