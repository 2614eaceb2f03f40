// ABOUTME: NFT metadata document pinned alongside each generated image.
// ABOUTME: Follows the common ERC-721 metadata layout with PromptMint extras.
package ipfs

import (
	"strconv"
	"time"
	"unicode/utf8"
)

// Attribute is one ERC-721 trait.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Metadata is the token metadata JSON.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
	Prompt      string      `json:"prompt"`
	CreatedAt   string      `json:"created_at"`
	GeneratedBy string      `json:"generated_by"`
}

const nameLimit = 50

// BuildMetadata describes an image pinned under imageCID.
func BuildMetadata(prompt, imageCID, model string, now time.Time) Metadata {
	now = now.UTC()
	name := prompt
	if utf8.RuneCountInString(prompt) > nameLimit {
		name = string([]rune(prompt)[:nameLimit]) + "..."
	}
	return Metadata{
		Name:        "AI Generated Art: " + name,
		Description: `AI-generated artwork created from the prompt: "` + prompt + `"`,
		Image:       "ipfs://" + imageCID,
		Attributes: []Attribute{
			{TraitType: "Generation Method", Value: model},
			{TraitType: "Created At", Value: now.Format("2006-01-02")},
			{TraitType: "Prompt Length", Value: strconv.Itoa(utf8.RuneCountInString(prompt))},
		},
		Prompt:      prompt,
		CreatedAt:   now.Format("2006-01-02T15:04:05.000Z07:00"),
		GeneratedBy: "PromptMint",
	}
}
