// ABOUTME: User-facing copy for classified errors and the retry affordance rules.
// ABOUTME: Decides when a retry button is offered and what it says.
package apperr

import "fmt"

// DefaultMaxRetries is shown in retry copy when an error did not record its
// own budget.
const DefaultMaxRetries = 3

// UserFriendlyMessage returns the copy shown to the user for an error.
func UserFriendlyMessage(s ErrorState) string {
	switch s.Kind {
	case KindNetwork:
		return "Connection failed. Please check your internet connection and try again."
	case KindTimeout:
		return "The request took too long to complete. Please try again."
	case KindRateLimit:
		return "Too many requests. Please wait a moment before trying again."
	case KindAuthentication:
		return "Authentication failed. Please check your configuration."
	case KindContentPolicy:
		return "Your prompt violates content policy. Please modify it and try again."
	case KindWalletConnection:
		return "Failed to connect to wallet. Please make sure your wallet is installed and unlocked."
	case KindNetworkMismatch:
		return "Please switch to Monad Testnet in your wallet."
	case KindUserRejected:
		return "Transaction was cancelled. You can try again when ready."
	case KindInsufficientFunds:
		return "Insufficient funds for gas fees. Please add more MON to your wallet."
	case KindPromptAlreadyUsed:
		return "This prompt has already been used. Please try a different prompt."
	case KindGenerationFailed:
		return "Failed to generate image. Please try again with a different prompt."
	case KindIPFSUploadFailed:
		return "Failed to upload to IPFS. Please try again."
	case KindMintingFailed:
		return "Failed to mint NFT. Please try again."
	case KindValidation:
		if s.Message != "" {
			return s.Message
		}
		return "Invalid input. Please check your input and try again."
	default:
		if s.Message != "" {
			return s.Message
		}
		return "An unexpected error occurred. Please try again."
	}
}

// ShouldShowRetry reports whether a retry affordance is offered: the error
// must be retryable and, when a budget is tracked, not yet exhausted.
// Dismissal is always available regardless of this result.
func ShouldShowRetry(s ErrorState) bool {
	if !s.Retryable {
		return false
	}
	if s.MaxRetries == nil || *s.MaxRetries == 0 || s.RetryCount == nil || *s.RetryCount == 0 {
		return true
	}
	return *s.RetryCount < *s.MaxRetries
}

// RetryButtonText returns the retry affordance label, including the attempt
// count when it is known.
func RetryButtonText(s ErrorState) string {
	if s.RetryCount != nil && *s.RetryCount > 0 {
		max := DefaultMaxRetries
		if s.MaxRetries != nil && *s.MaxRetries > 0 {
			max = *s.MaxRetries
		}
		return fmt.Sprintf("Retry (%d/%d)", *s.RetryCount, max)
	}
	return "Try Again"
}
