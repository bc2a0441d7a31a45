package reformat

import "errors"

var (
	// ErrContractViolation indicates reformatted text does not contain the
	// same word sequence as its input.
	ErrContractViolation = errors.New("reformatted text changed the words")

	// ErrTextTooLong indicates the provider rejected a batch for its length.
	ErrTextTooLong = errors.New("text exceeds the model context length")

	// ErrEmptyAPIKey indicates that the API key was not provided.
	ErrEmptyAPIKey = errors.New("API key is required")

	// ErrUnknownProvider indicates an unsupported reformat provider name.
	ErrUnknownProvider = errors.New("unknown reformat provider")

	// ErrEmptyResponse indicates the provider returned no choices.
	ErrEmptyResponse = errors.New("no response from API")
)
