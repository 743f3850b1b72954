package proxy

import (
	"encoding/json"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// chatCompletionsBody is the struct-validated shape of a canonical
// /v1/chat/completions request: non-empty model and messages, each message
// carrying a role. Only requests to that path are checked; bodies sent to
// the native dialect paths are not.
type chatCompletionsBody struct {
	Model    string `json:"model" validate:"required"`
	Messages []struct {
		Role    string `json:"role" validate:"required"`
		Content string `json:"content"`
	} `json:"messages" validate:"required,min=1,dive"`
}

func getValidator() *validator.Validate {
	validateOnce.Do(func() { validate = validator.New() })
	return validate
}

// validateChatCompletions reports a human-readable error if body doesn't
// satisfy chatCompletionsBody's constraints. Used only for POSTs to the
// canonical /v1/chat/completions path, before routing and dialect detection.
func validateChatCompletions(body []byte) error {
	var req chatCompletionsBody
	if err := json.Unmarshal(body, &req); err != nil {
		return err
	}
	return getValidator().Struct(req)
}
