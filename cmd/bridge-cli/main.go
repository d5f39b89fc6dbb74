// Command bridge-cli is a command-line interface for the privacy bridge:
// generating key triples and meta-addresses, and encoding/decoding claim
// links, all offline and without needing a running bridged instance.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/internal/note"
	"github.com/shieldbridge/core/internal/stealth"
	"github.com/shieldbridge/core/pkg/common"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("bridge-cli v%s\n", version)

	case "help":
		printUsage()

	case "status":
		cmdStatus()

	case "wallet":
		if len(os.Args) < 3 {
			fmt.Println("Usage: bridge-cli wallet <subcommand>")
			fmt.Println("Subcommands: new, meta-address <hex_seed>")
			os.Exit(1)
		}
		cmdWallet(os.Args[2:])

	case "claim-link":
		if len(os.Args) < 3 {
			fmt.Println("Usage: bridge-cli claim-link <subcommand>")
			fmt.Println("Subcommands: encode <stealth_priv_hex> <amount_sats> <leaf_index>, decode <link>")
			os.Exit(1)
		}
		cmdClaimLink(os.Args[2:])

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("bridge-cli - command-line interface for the privacy bridge")
	fmt.Println()
	fmt.Println("Usage: bridge-cli <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  version     Show version information")
	fmt.Println("  help        Show this help message")
	fmt.Println("  status      Explain that this tool runs offline (no daemon RPC)")
	fmt.Println("  wallet      Key triple operations (new, meta-address)")
	fmt.Println("  claim-link  Claim-link encode/decode")
}

func cmdStatus() {
	fmt.Println("bridge-cli does not connect to a running daemon over RPC;")
	fmt.Println("use this binary for offline key and claim-link operations.")
}

func cmdWallet(args []string) {
	switch args[0] {
	case "new":
		seedBytes, err := common.RandomBytes(32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: generating seed: %v\n", err)
			os.Exit(1)
		}
		var seed [32]byte
		copy(seed[:], seedBytes)
		keys := stealth.DeriveKeys(seed)
		common.Zeroize(seed[:])
		common.Zeroize(seedBytes)
		fmt.Println("New key triple generated.")
		fmt.Printf("  Meta-address: %s\n", keys.Meta().Encode())
		fmt.Println("  Keep the seed used to derive this triple secret; it is not printed here.")

	case "meta-address":
		if len(args) < 2 {
			fmt.Println("Usage: bridge-cli wallet meta-address <hex_seed>")
			return
		}
		seedBytes, err := hexDecode32(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		keys := stealth.DeriveKeys(seedBytes)
		fmt.Println(keys.Meta().Encode())

	default:
		fmt.Printf("Unknown wallet command: %s\n", args[0])
	}
}

func cmdClaimLink(args []string) {
	switch args[0] {
	case "encode":
		if len(args) < 4 {
			fmt.Println("Usage: bridge-cli claim-link encode <stealth_priv_hex> <amount_sats> <leaf_index>")
			return
		}
		privBytes, err := common.HexToBytes(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid hex private scalar: %v\n", err)
			os.Exit(1)
		}
		priv, err := field.ScalarFromCanonicalBytes(privBytes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		amountSats, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid amount: %v\n", err)
			os.Exit(1)
		}
		leafIndex, err := strconv.ParseUint(args[3], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid leaf index: %v\n", err)
			os.Exit(1)
		}
		link := note.EncodeClaimLink(note.Note{StealthPriv: priv, AmountSats: amountSats, LeafIndex: leafIndex})
		fmt.Println(link)

	case "decode":
		if len(args) < 2 {
			fmt.Println("Usage: bridge-cli claim-link decode <link>")
			return
		}
		n, err := note.DecodeClaimLink(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		privBytes := n.StealthPriv.Bytes()
		fmt.Printf("Stealth priv:  %s\n", common.BytesToHex(privBytes[:]))
		fmt.Printf("Amount (sats): %d\n", n.AmountSats)
		fmt.Printf("Leaf index:    %d\n", n.LeafIndex)

	default:
		fmt.Printf("Unknown claim-link command: %s\n", args[0])
	}
}

func hexDecode32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := common.HexToBytes(s)
	if err != nil {
		return out, fmt.Errorf("invalid hex seed: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("seed must be exactly 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
