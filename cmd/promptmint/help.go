// ABOUTME: Help display for the promptmint CLI with commands, flags, examples and environment status.
// ABOUTME: envStatus reports which credentials are present without printing them.
package main

import (
	"fmt"
	"io"
	"os"
)

// printHelp writes usage, flags, examples and environment status to w.
func printHelp(w io.Writer, ver string) {
	fmt.Fprintf(w, "promptmint %s - AI image generation and NFT minting on Monad\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  promptmint -server [-bind addr]          Run the image generation API")
	fmt.Fprintln(w, "  promptmint generate \"<prompt>\"           Generate an image and pin it to IPFS")
	fmt.Fprintln(w, "  promptmint mint                          Mint the last generated image")
	fmt.Fprintln(w, "  promptmint retry-generate | retry-mint   Clear the error and try again")
	fmt.Fprintln(w, "  promptmint status                        Show generation and minting state")
	fmt.Fprintln(w, "  promptmint history [-type t] [-n 20] [-journal]")
	fmt.Fprintln(w, "  promptmint export [dir]                  Write history.md and history.html")
	fmt.Fprintln(w, "  promptmint reset                         Reset generation and minting")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <file>        YAML config file (default: $XDG_CONFIG_HOME/promptmint/config.yaml)")
	fmt.Fprintln(w, "  -bind <addr>          Listen address for -server (default: 127.0.0.1:7780)")
	fmt.Fprintln(w, "  -server-url <url>     Base URL of the generation API")
	fmt.Fprintln(w, "  -version              Print version and exit")
	fmt.Fprintln(w, "  -help                 Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  promptmint -server")
	fmt.Fprintln(w, "  promptmint generate \"A cat on a windowsill\"")
	fmt.Fprintln(w, "  promptmint mint")
	fmt.Fprintln(w, "  promptmint history -type minting -n 5")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  OPENAI_API_KEY              %s\n", envStatus("OPENAI_API_KEY"))
	fmt.Fprintf(w, "  PINATA_API_KEY              %s\n", envStatus("PINATA_API_KEY"))
	fmt.Fprintf(w, "  PINATA_SECRET_KEY           %s\n", envStatus("PINATA_SECRET_KEY"))
	fmt.Fprintf(w, "  PROMPTMINT_PRIVATE_KEY      %s\n", envStatus("PROMPTMINT_PRIVATE_KEY"))
	fmt.Fprintf(w, "  PROMPTMINT_CONTRACT_ADDRESS %s\n", envStatus("PROMPTMINT_CONTRACT_ADDRESS"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  The server needs the OpenAI and Pinata keys; minting needs the private key and contract.")
}

// envStatus returns "[set]" if the named environment variable is non-empty,
// or "[not set]" otherwise.
func envStatus(key string) string {
	if os.Getenv(key) != "" {
		return "[set]"
	}
	return "[not set]"
}
